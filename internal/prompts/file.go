package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/moibraahim/gymnation-task/internal/models"
)

// fileFormat is the layout of a prompts override file:
//
//	[context]
//	header = "### Relevant Business Information:"
//	max_chars = 2000
//
//	[templates]
//	default = """..."""
type fileFormat struct {
	Context struct {
		Header   string `toml:"header"`
		MaxChars int    `toml:"max_chars"`
	} `toml:"context"`
	Templates map[string]string `toml:"templates"`
}

// Load replaces the active templates with the built-ins overlaid by the
// contents of path. The active set is left untouched when the file is invalid.
func (b *Builder) Load(path string) error {
	var file fileFormat
	md, err := toml.DecodeFile(path, &file)
	if err != nil {
		return fmt.Errorf("%w: prompts file %s: %v", models.ErrConfiguration, path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return fmt.Errorf("%w: prompts file %s: unknown keys %s", models.ErrConfiguration, path, strings.Join(keys, ", "))
	}

	set := templateSet{
		templates:       make(map[string]string, len(builtinTemplates)),
		header:          DefaultContextHeader,
		maxContextChars: b.baseMaxContextChars,
	}
	for name, text := range builtinTemplates {
		set.templates[name] = text
	}

	names := make([]string, 0, len(file.Templates))
	for name := range file.Templates {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if !Known(key) {
			return fmt.Errorf("%w: prompts file %s: unknown template %q", models.ErrConfiguration, path, name)
		}
		text := strings.TrimSpace(file.Templates[name])
		if text == "" {
			return fmt.Errorf("%w: prompts file %s: template %q is empty", models.ErrConfiguration, path, name)
		}
		set.templates[key] = text
	}

	if header := strings.TrimSpace(file.Context.Header); header != "" {
		set.header = header
	}
	if file.Context.MaxChars < 0 {
		return fmt.Errorf("%w: prompts file %s: max_chars must be positive", models.ErrConfiguration, path)
	}
	if file.Context.MaxChars > 0 {
		set.maxContextChars = file.Context.MaxChars
	}

	b.replace(set)
	return nil
}

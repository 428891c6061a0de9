package prompts

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"

	"github.com/moibraahim/gymnation-task/internal/models"
)

// templateSet is an immutable snapshot of everything Build renders from.
type templateSet struct {
	templates       map[string]string
	header          string
	maxContextChars int
}

// Builder renders system prompts from named templates and retrieved passages.
// Templates may be replaced at runtime by Load or Watch.
type Builder struct {
	mu  sync.RWMutex
	set templateSet

	baseMaxContextChars int
}

func NewBuilder(maxContextChars int) *Builder {
	if maxContextChars <= 0 {
		maxContextChars = DefaultMaxContextChars
	}
	templates := make(map[string]string, len(builtinTemplates))
	for name, text := range builtinTemplates {
		templates[name] = text
	}
	return &Builder{
		set: templateSet{
			templates:       templates,
			header:          DefaultContextHeader,
			maxContextChars: maxContextChars,
		},
		baseMaxContextChars: maxContextChars,
	}
}

// Build returns the system prompt for the named template with passages
// appended as a context block.
func (b *Builder) Build(name string, passages []models.RetrievedPassage) (string, error) {
	set := b.snapshot()

	text, err := set.lookup(name)
	if err != nil {
		return "", err
	}

	block := set.contextBlock(passages)
	if block == "" {
		return text, nil
	}
	return text + "\n\n" + block, nil
}

// Template returns the raw template text.
func (b *Builder) Template(name string) (string, error) {
	return b.snapshot().lookup(name)
}

func (b *Builder) Names() []string {
	set := b.snapshot()
	names := make([]string, 0, len(set.templates))
	for name := range set.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *Builder) MaxContextChars() int {
	return b.snapshot().maxContextChars
}

func (b *Builder) snapshot() templateSet {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.set
}

func (b *Builder) replace(set templateSet) {
	b.mu.Lock()
	b.set = set
	b.mu.Unlock()
}

func (s templateSet) lookup(name string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if text, ok := s.templates[key]; ok {
		return text, nil
	}

	names := make([]string, 0, len(s.templates))
	for n := range s.templates {
		names = append(names, n)
	}
	sort.Strings(names)

	detail := fmt.Sprintf("unknown prompt type %q (available: %s)", name, strings.Join(names, ", "))
	if matches := fuzzy.Find(key, names); len(matches) > 0 && key != "" {
		detail += fmt.Sprintf("; did you mean %q?", matches[0].Str)
	}
	return "", fmt.Errorf("%w: %s", models.ErrConfiguration, detail)
}

// contextBlock keeps the highest-scored passages whose combined text fits the
// budget. Passages are dropped from the lowest score upwards.
func (s templateSet) contextBlock(passages []models.RetrievedPassage) string {
	if len(passages) == 0 {
		return ""
	}

	ordered := make([]models.RetrievedPassage, len(passages))
	copy(ordered, passages)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	parts := make([]string, 0, len(ordered))
	used := 0
	for _, p := range ordered {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		part := text
		if title := strings.TrimSpace(p.Title); title != "" {
			part = "[" + title + "]\n" + text
		}

		size := utf8.RuneCountInString(part)
		if len(parts) > 0 {
			size += 2
		}
		if used+size > s.maxContextChars {
			break
		}
		parts = append(parts, part)
		used += size
	}

	if len(parts) == 0 {
		return ""
	}
	return s.header + "\n" + strings.Join(parts, "\n\n")
}

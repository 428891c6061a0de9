package retrieval

import (
	"strings"
	"unicode/utf8"
)

const DefaultChunkSize = 400

// ChunkText splits text into pieces of at most size characters on word
// boundaries. A single word longer than size becomes its own chunk.
func ChunkText(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}

	var chunks []string
	var current strings.Builder
	runes := 0
	for _, word := range strings.Fields(text) {
		n := utf8.RuneCountInString(word)
		if runes > 0 && runes+1+n > size {
			chunks = append(chunks, current.String())
			current.Reset()
			runes = 0
		}
		if runes > 0 {
			current.WriteByte(' ')
			runes++
		}
		current.WriteString(word)
		runes += n
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

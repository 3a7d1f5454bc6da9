package reader

import (
	"strings"
	"unicode"
)

// Sentences splits text at '.', '!' or '?' followed by whitespace or the end of
// the text, optionally through closing quotes or brackets. The terminator and any
// such closers stay with their sentence; "3.5" is not a boundary.
func Sentences(text string) []string {
	text = strings.ReplaceAll(text, "—–", "")
	runes := []rune(text)

	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		end := i + 1
		for end < len(runes) && isCloser(runes[end]) {
			end++
		}
		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			continue
		}
		if s := normalize(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		start = end
		i = end - 1
	}
	if start < len(runes) {
		if s := normalize(string(runes[start:])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’':
		return true
	}
	return false
}

// DefaultChunkSize is the number of sentences per reader paragraph.
const DefaultChunkSize = 5

// Chunk groups the sentences of text n at a time, e.g. 23 sentences at n=5
// become chunks of 5, 5, 5, 5 and 3.
func Chunk(text string, n int) []string {
	if n <= 0 {
		n = DefaultChunkSize
	}
	sentences := Sentences(text)
	chunks := make([]string, 0, (len(sentences)+n-1)/n)
	for i := 0; i < len(sentences); i += n {
		end := i + n
		if end > len(sentences) {
			end = len(sentences)
		}
		chunks = append(chunks, strings.Join(sentences[i:end], " "))
	}
	return chunks
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

package embedsession

import "strings"

// chunkText splits content into overlapping windows of roughly size
// runes, each one prepended with header (document-identifying metadata)
// and prefix (an embedder-specific instruction string, left empty when
// the configured model needs none). Splitting happens on rune boundaries
// scanning backward to the nearest whitespace so words are never cut in
// half.
func chunkText(content, header, prefix string, size, overlap int) []string {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(content)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		} else {
			end = backtrackToWhitespace(runes, start, end)
		}

		body := strings.TrimSpace(string(runes[start:end]))
		if body != "" {
			chunks = append(chunks, buildChunk(header, prefix, body))
		}

		if end >= len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

func backtrackToWhitespace(runes []rune, start, end int) int {
	for i := end; i > start; i-- {
		if runes[i-1] == ' ' || runes[i-1] == '\n' {
			return i
		}
	}
	return end
}

func buildChunk(header, prefix, body string) string {
	var b strings.Builder
	if prefix != "" {
		b.WriteString(prefix)
	}
	if header != "" {
		b.WriteString(header)
		b.WriteString("\n\n")
	}
	b.WriteString(body)
	return b.String()
}

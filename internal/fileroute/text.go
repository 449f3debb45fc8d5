package fileroute

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nimbusdocs/ingestcore/internal/ingesterr"
	"github.com/nimbusdocs/ingestcore/internal/metastore"
)

// TextHandler populates pageContent from a plain-text source file.
type TextHandler struct {
	TrashDir string
}

// Handle reads path as UTF-8 text and builds a Document around it.
func (h *TextHandler) Handle(_ context.Context, path, filename string) (*metastore.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fileroute: reading %s: %w", filename, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("fileroute: %s is not valid UTF-8: %w", filename, ingesterr.ErrInvalidChunk)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("fileroute: stat %s: %w", filename, err)
	}

	content := string(data)
	doc := &metastore.Document{
		Title:       filename,
		Description: summarize(content),
		PageContent: content,
		Extension:   strings.TrimPrefix(strings.ToLower(extOf(filename)), "."),
		FileType:    "text",
		WordCount:   countWords(content),
		MtimeMs:     info.ModTime().UnixMilli(),
		Size:        info.Size(),
		Published:   time.Now().UTC().Format(time.RFC3339),
	}

	if err := trashFile(h.TrashDir, path); err != nil {
		return nil, fmt.Errorf("fileroute: trashing %s: %w", filename, err)
	}

	return doc, nil
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

func summarize(s string) string {
	const maxLen = 200
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "…"
}

func extOf(filename string) string {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 {
		return ""
	}
	return filename[i:]
}

// Package fileroute implements the extension/mime dispatch table that
// decides whether an ingested file is handled by the text pipeline or
// the image pipeline.
package fileroute

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nimbusdocs/ingestcore/internal/imagepipe"
	"github.com/nimbusdocs/ingestcore/internal/metastore"
)

// imageExtensions routes to the image pipeline; everything else that
// passes basic text sniffing routes to the text handler.
var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".tga": true,
	".nef": true, ".cr2": true, ".crw": true, ".arw": true, ".dng": true,
	".orf": true, ".rw2": true, ".pef": true, ".srw": true, ".raf": true,
}

// Handler routes a single file to a Document, or reports why it could
// not be ingested.
type Handler interface {
	Handle(ctx context.Context, path, filename string) (*metastore.Document, error)
}

// Router dispatches by lowercased file extension.
type Router struct {
	text  Handler
	image Handler
}

// New builds a Router with a text handler and an image pipeline wired to
// imgCfg's RAW decoder configuration.
func New(imgCfg imagepipe.Config, trashDir string) *Router {
	return &Router{
		text:  &TextHandler{TrashDir: trashDir},
		image: &ImageHandler{Config: imgCfg, TrashDir: trashDir},
	}
}

// Route returns the handler responsible for ext (including the dot,
// e.g. ".png"), lowercased.
func (r *Router) Route(ext string) Handler {
	if imageExtensions[strings.ToLower(ext)] {
		return r.image
	}
	return r.text
}

// Handle routes path by its extension and delegates.
func (r *Router) Handle(ctx context.Context, path, filename string) (*metastore.Document, error) {
	return r.Route(filepath.Ext(path)).Handle(ctx, path, filename)
}

// trashFile moves path into trashDir, creating it if necessary. The
// original file moves to trash only on successful conversion or on
// explicitly invalid content.
func trashFile(trashDir, path string) error {
	if trashDir == "" {
		return nil
	}
	if err := os.MkdirAll(trashDir, 0o755); err != nil {
		return fmt.Errorf("fileroute: create trash dir: %w", err)
	}
	dest := filepath.Join(trashDir, fmt.Sprintf("%d-%s", time.Now().UnixNano(), filepath.Base(path)))
	return os.Rename(path, dest)
}

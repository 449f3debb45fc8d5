package fileroute

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nimbusdocs/ingestcore/internal/imagepipe"
	"github.com/nimbusdocs/ingestcore/internal/ingesterr"
	"github.com/nimbusdocs/ingestcore/internal/metastore"
)

// ImageHandler runs a source file through the image pipeline and builds
// a Document carrying the base64 payload and extracted metadata.
type ImageHandler struct {
	Config   imagepipe.Config
	TrashDir string
}

// Handle decodes path via imagepipe.Decode. On InvalidImage it trashes
// the source file as explicitly invalid content; on success it trashes
// the source as converted. Any other decode error leaves the source in
// place.
func (h *ImageHandler) Handle(_ context.Context, path, filename string) (*metastore.Document, error) {
	info, statErr := os.Stat(path)
	if statErr != nil {
		return nil, fmt.Errorf("fileroute: stat %s: %w", filename, statErr)
	}

	result, err := imagepipe.Decode(h.Config, path, filename)
	if err != nil {
		if !errors.Is(err, ingesterr.ErrInvalidImage) {
			return nil, fmt.Errorf("fileroute: decoding %s: %w", filename, err)
		}
		if trashErr := trashFile(h.TrashDir, path); trashErr != nil {
			return nil, fmt.Errorf("fileroute: trashing invalid image %s: %w", filename, trashErr)
		}
		return nil, fmt.Errorf("fileroute: decoding %s: %w", filename, ingesterr.ErrInvalidImage)
	}

	doc := &metastore.Document{
		Title:          filename,
		Description:    result.Description,
		ImageBase64:    result.PNGBase64,
		BlurHash:       result.BlurHash,
		Camera:         result.Camera,
		Lens:           result.Lens,
		Location:       result.Location,
		CameraSettings: result.CameraSettings,
		Extension:      strings.TrimPrefix(strings.ToLower(extOf(filename)), "."),
		FileType:       "image",
		EmbeddingMode:  "server-decided",
		MtimeMs:        info.ModTime().UnixMilli(),
		Size:           info.Size(),
		Published:      time.Now().UTC().Format(time.RFC3339),
	}

	if err := trashFile(h.TrashDir, path); err != nil {
		return nil, fmt.Errorf("fileroute: trashing %s: %w", filename, err)
	}

	return doc, nil
}

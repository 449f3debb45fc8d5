package imagepipe

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/nimbusdocs/ingestcore/internal/ingesterr"
)

// decodeRAW invokes an external RAW decoder to produce a high-quality
// TIFF with camera white balance, transcodes it to the in-process image
// representation, and deletes the intermediate TIFF on every exit path.
// On decoder failure it falls back to extracting the embedded thumbnail
// only, surfacing that degradation in logs (step 3).
func decodeRAW(st *pipelineState) error {
	tiffPath, err := runRawDecoder(st.cfg.RawDecoderPath, st.path, false)
	if err == nil {
		defer os.Remove(tiffPath)
		data, readErr := readAllBounded(tiffPath)
		if readErr != nil {
			return fmt.Errorf("imagepipe: %s: reading decoded TIFF: %w", st.filename, readErr)
		}
		img, decErr := decodeViaTIFF(data)
		if decErr != nil {
			return fmt.Errorf("imagepipe: %s: decoding TIFF: %w", st.filename, ingesterr.ErrDecoderFailure)
		}
		st.img = img
		st.sourceExif = readSourceForEXIF(st.path)
		return nil
	}
	log.Printf("imagepipe: %s: RAW decode failed (%v), falling back to embedded thumbnail", st.filename, err)

	thumbPath, thumbErr := runRawDecoder(st.cfg.RawDecoderPath, st.path, true)
	if thumbErr != nil {
		return fmt.Errorf("imagepipe: %s: RAW decode and thumbnail fallback both failed: %w", st.filename, ingesterr.ErrDecoderFailure)
	}
	defer os.Remove(thumbPath)

	data, readErr := readAllBounded(thumbPath)
	if readErr != nil {
		return fmt.Errorf("imagepipe: %s: reading embedded thumbnail: %w", st.filename, readErr)
	}
	img, decErr := decodeViaJPEG(data)
	if decErr != nil {
		return fmt.Errorf("imagepipe: %s: decoding embedded thumbnail: %w", st.filename, ingesterr.ErrDecoderFailure)
	}
	st.img = img
	st.sourceExif = readSourceForEXIF(st.path)
	st.result.ThumbnailOnly = true
	return nil
}

// runRawDecoder shells out to a dcraw-compatible binary. thumbnailOnly
// selects the embedded-thumbnail extraction mode (dcraw's -e flag)
// instead of a full high-quality demosaic (-T -q 3 -w, TIFF output).
func runRawDecoder(decoderPath, srcPath string, thumbnailOnly bool) (string, error) {
	if decoderPath == "" {
		return "", fmt.Errorf("imagepipe: no RAW decoder configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var args []string
	if thumbnailOnly {
		args = []string{"-e", srcPath}
	} else {
		args = []string{"-T", "-q", "3", "-w", srcPath}
	}

	cmd := exec.CommandContext(ctx, decoderPath, args...)
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("imagepipe: running %s: %w", decoderPath, err)
	}

	ext := ".tiff"
	if thumbnailOnly {
		ext = ".thumb.jpg"
	}
	outPath := trimExt(srcPath) + ext
	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("imagepipe: expected decoder output %s: %w", outPath, err)
	}
	return outPath, nil
}

func trimExt(path string) string {
	ext := filepath.Ext(path)
	return path[:len(path)-len(ext)]
}

// readSourceForEXIF best-effort reads the original RAW file bytes for
// EXIF extraction; many RAW formats carry a standard EXIF block.
func readSourceForEXIF(path string) []byte {
	data, err := readAllBounded(path)
	if err != nil {
		return nil
	}
	return data
}

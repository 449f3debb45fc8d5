// Package imagepipe implements the image ingestion pipeline: decode
// whatever format the source file is in, normalize it to PNG, and
// extract the description material (EXIF, BlurHash, base64 payload) a
// Document needs.
//
// Exception-driven nested decoders are re-expressed here as a pipeline
// of result-producing stages, each with scoped acquisition of any temp
// path and guaranteed release on every exit path.
package imagepipe

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/tiff"

	"github.com/nimbusdocs/ingestcore/internal/ingesterr"
)

// rawExtensions are the RAW formats routed through the external decoder.
var rawExtensions = map[string]bool{
	".nef": true, ".cr2": true, ".crw": true, ".arw": true, ".dng": true,
	".orf": true, ".rw2": true, ".pef": true, ".srw": true, ".raf": true,
}

// Config holds the knobs the pipeline needs from the runtime configuration.
type Config struct {
	RawDecoderPath string // external RAW→TIFF decoder binary, e.g. "dcraw"
}

// Result is everything the image pipeline extracts from a source file.
type Result struct {
	PNGBase64      string
	Width, Height  int
	BlurHash       string
	Camera         string
	Lens           string
	Location       string
	CameraSettings string
	Description    string
	ThumbnailOnly  bool // true when RAW decode fell back to an embedded thumbnail
}

// pipelineState threads intermediate results between stages.
type pipelineState struct {
	cfg      Config
	path     string
	filename string

	img        image.Image
	sourceExif []byte // bytes to run EXIF extraction against (may differ from final PNG)

	result Result
}

// Decode runs the full image pipeline against the file at path, whose
// original (pre-ingest) name is filename.
func Decode(cfg Config, path, filename string) (*Result, error) {
	st := &pipelineState{cfg: cfg, path: path, filename: filename}

	if err := stageDecodeSource(st); err != nil {
		return nil, err
	}
	if err := stageValidate(st); err != nil {
		return nil, err
	}
	if err := stageEncodePNG(st); err != nil {
		return nil, err
	}
	if err := stageExtractEXIF(st); err != nil {
		return nil, err
	}
	stageBlurHash(st)
	stageDescription(st)

	return &st.result, nil
}

// stageDecodeSource produces st.img (and, for formats carrying EXIF,
// st.sourceExif) from whatever format the source file is in.
func stageDecodeSource(st *pipelineState) error {
	ext := strings.ToLower(filepath.Ext(st.path))

	switch {
	case ext == ".png":
		return decodeGeneric(st)
	case ext == ".tga":
		return decodeTGA(st)
	case rawExtensions[ext]:
		return decodeRAW(st)
	default:
		return decodeGeneric(st)
	}
}

func stageValidate(st *pipelineState) error {
	if st.img == nil {
		return fmt.Errorf("imagepipe: %s: %w", st.filename, ingesterr.ErrInvalidImage)
	}
	bounds := st.img.Bounds()
	st.result.Width, st.result.Height = bounds.Dx(), bounds.Dy()
	if st.result.Width <= 0 || st.result.Height <= 0 {
		return fmt.Errorf("imagepipe: %s: zero-dimension image: %w", st.filename, ingesterr.ErrInvalidImage)
	}
	return nil
}

func stageEncodePNG(st *pipelineState) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, st.img); err != nil {
		return fmt.Errorf("imagepipe: %s: encoding PNG: %w", st.filename, ingesterr.ErrDecoderFailure)
	}
	st.result.PNGBase64 = streamingBase64(buf.Bytes())
	return nil
}

// decodeGeneric uses the standard library's registered decoders
// (PNG, JPEG, GIF). On failure the caller must trash the source file and
// surface InvalidImage.
func decodeGeneric(st *pipelineState) error {
	data, err := readAllBounded(st.path)
	if err != nil {
		return fmt.Errorf("imagepipe: %s: reading source: %w", st.filename, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("imagepipe: %s: generic decode failed: %w", st.filename, ingesterr.ErrInvalidImage)
	}
	st.img = img
	st.sourceExif = data
	return nil
}

// decodeTGA performs an in-process TGA decode.
func decodeTGA(st *pipelineState) error {
	data, err := readAllBounded(st.path)
	if err != nil {
		return fmt.Errorf("imagepipe: %s: reading source: %w", st.filename, err)
	}
	img, err := tga.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("imagepipe: %s: tga decode failed: %w", st.filename, ingesterr.ErrDecoderFailure)
	}
	st.img = img
	// TGA carries no EXIF.
	return nil
}

// decodeViaTIFF decodes TIFF bytes produced by the external RAW decoder.
func decodeViaTIFF(data []byte) (image.Image, error) {
	return tiff.Decode(bytes.NewReader(data))
}

// decodeViaJPEG decodes JPEG bytes, used for the RAW thumbnail-only
// fallback path.
func decodeViaJPEG(data []byte) (image.Image, error) {
	return jpeg.Decode(bytes.NewReader(data))
}

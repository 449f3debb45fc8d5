package imagepipe

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeTestPNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 200, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create test png: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return path
}

func TestDecode_PNG(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPNG(t, dir, "apple.png", 64, 48)

	result, err := Decode(Config{}, path, "apple.png")
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if result.Width != 64 || result.Height != 48 {
		t.Errorf("dimensions = %dx%d, want 64x48", result.Width, result.Height)
	}
	if result.PNGBase64 == "" {
		t.Error("expected non-empty PNGBase64")
	}
	if result.BlurHash == "" {
		t.Error("expected non-empty BlurHash")
	}
	if result.Description == "" {
		t.Error("expected non-empty Description")
	}
}

func TestDecode_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-an-image.png")
	if err := os.WriteFile(path, []byte("not image data"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := Decode(Config{}, path, "not-an-image.png")
	if err == nil {
		t.Fatal("expected error decoding invalid image data")
	}
}

func TestThumbnail_PreservesSmallImages(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	got := thumbnail(img, 32)
	if got.Bounds().Dx() != 16 || got.Bounds().Dy() != 16 {
		t.Errorf("expected unchanged bounds, got %v", got.Bounds())
	}
}

func TestThumbnail_DownscalesLargeImages(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	got := thumbnail(img, 32)
	if got.Bounds().Dx() > 32 || got.Bounds().Dy() > 32 {
		t.Errorf("expected longest edge <= 32, got %v", got.Bounds())
	}
}

func TestStreamingBase64_RoundTrips(t *testing.T) {
	data := make([]byte, streamChunkBytes*2+137)
	for i := range data {
		data[i] = byte(i % 251)
	}
	encoded := streamingBase64(data)
	if encoded == "" {
		t.Fatal("expected non-empty encoding")
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Error("decoded bytes differ from the input")
	}
}

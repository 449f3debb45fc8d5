package fileroute

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/nimbusdocs/ingestcore/internal/imagepipe"
)

func TestRouter_RouteByExtension(t *testing.T) {
	r := New(imagepipe.Config{}, "")
	if _, ok := r.Route(".png").(*ImageHandler); !ok {
		t.Error("expected .png to route to ImageHandler")
	}
	if _, ok := r.Route(".txt").(*TextHandler); !ok {
		t.Error("expected .txt to route to TextHandler")
	}
	if _, ok := r.Route(".TGA").(*ImageHandler); !ok {
		t.Error("expected extension match to be case-insensitive")
	}
}

func TestTextHandler_Handle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("the quick brown fox jumps over the lazy dog"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	h := &TextHandler{}
	doc, err := h.Handle(context.Background(), path, "note.txt")
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if doc.FileType != "text" {
		t.Errorf("FileType = %q, want text", doc.FileType)
	}
	if doc.WordCount != 9 {
		t.Errorf("WordCount = %d, want 9", doc.WordCount)
	}
	if doc.PageContent == "" {
		t.Error("expected non-empty PageContent")
	}
}

func TestTextHandler_Handle_TrashesSource(t *testing.T) {
	dir := t.TempDir()
	trash := filepath.Join(dir, "trash")
	path := filepath.Join(dir, "note.txt")
	os.WriteFile(path, []byte("hello"), 0o644)

	h := &TextHandler{TrashDir: trash}
	if _, err := h.Handle(context.Background(), path, "note.txt"); err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected source file to be moved to trash")
	}
	entries, err := os.ReadDir(trash)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one file in trash dir, got %v, err=%v", entries, err)
	}
}

func TestImageHandler_Handle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "apple.png")
	writePNG(t, path, 32, 32)

	h := &ImageHandler{}
	doc, err := h.Handle(context.Background(), path, "apple.png")
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if doc.FileType != "image" {
		t.Errorf("FileType = %q, want image", doc.FileType)
	}
	if doc.ImageBase64 == "" {
		t.Error("expected non-empty ImageBase64")
	}
}

func TestImageHandler_Handle_InvalidImageTrashesSource(t *testing.T) {
	dir := t.TempDir()
	trash := filepath.Join(dir, "trash")
	path := filepath.Join(dir, "broken.png")
	os.WriteFile(path, []byte("not a real png"), 0o644)

	h := &ImageHandler{TrashDir: trash}
	_, err := h.Handle(context.Background(), path, "broken.png")
	if err == nil {
		t.Fatal("expected error for invalid image content")
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("expected invalid source file to be moved to trash")
	}
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 50, B: 50, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
}

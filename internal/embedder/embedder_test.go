package embedder

import (
	"context"
	"encoding/json"
	"image"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newFakeEmbeddingServer(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vec := make([]float32, dim)
		for i := range vec {
			vec[i] = float32(i + 1)
		}
		_ = json.NewEncoder(w).Encode([]embeddingResponse{{Embedding: [][]float32{vec}}})
	}))
}

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestEmbedChunks_NormalizesAndHandlesEmpty(t *testing.T) {
	srv := newFakeEmbeddingServer(t, 8)
	defer srv.Close()

	g := New(Config{TextBaseURL: srv.URL, TextModelDim: 8})
	vecs, err := g.EmbedChunks(context.Background(), []string{"hello", "", "world"})
	if err != nil {
		t.Fatalf("EmbedChunks error: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	if mag := magnitude(vecs[0]); math.Abs(mag-1.0) > 1e-5 {
		t.Errorf("chunk 0 magnitude = %v, want ~1.0", mag)
	}
	for _, v := range vecs[1] {
		if v != 0 {
			t.Fatalf("expected zero-vector fallback for empty chunk, got %v", vecs[1])
		}
	}
}

func TestEmbedQuery_FallsBackOnMultimodalFailure(t *testing.T) {
	textSrv := newFakeEmbeddingServer(t, 4)
	defer textSrv.Close()

	brokenMultimodal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer brokenMultimodal.Close()

	g := New(Config{
		TextBaseURL:       textSrv.URL,
		TextModelDim:      4,
		MultimodalBaseURL: brokenMultimodal.URL,
		MultimodalDim:     4,
	})

	vec, fellBack, err := g.EmbedQuery(context.Background(), "fox")
	if err != nil {
		t.Fatalf("EmbedQuery error: %v", err)
	}
	if !fellBack {
		t.Error("expected fallback to be reported")
	}
	if mag := magnitude(vec); math.Abs(mag-1.0) > 1e-5 {
		t.Errorf("fallback vector magnitude = %v, want ~1.0", mag)
	}
}

func TestEmbedQuery_UsesMultimodalWhenHealthy(t *testing.T) {
	mmSrv := newFakeEmbeddingServer(t, 16)
	defer mmSrv.Close()

	g := New(Config{MultimodalBaseURL: mmSrv.URL, MultimodalDim: 16})
	vec, fellBack, err := g.EmbedQuery(context.Background(), "apple")
	if err != nil {
		t.Fatalf("EmbedQuery error: %v", err)
	}
	if fellBack {
		t.Error("expected no fallback when multimodal endpoint is healthy")
	}
	if len(vec) != 16 {
		t.Errorf("len(vec) = %d, want 16", len(vec))
	}
}

func TestEmbedImageDirect_RequiresMultimodal(t *testing.T) {
	g := New(Config{})
	_, err := g.EmbedImageDirect(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)), "a red square", 512)
	if err == nil {
		t.Fatal("expected error when multimodal embedder is not configured")
	}
}

func TestNormalize_RejectsZeroVector(t *testing.T) {
	_, err := normalize([]float32{0, 0, 0})
	if err == nil {
		t.Fatal("expected error normalizing a zero-magnitude vector")
	}
}

func TestBuildMultimodalRequest_FormatSelection(t *testing.T) {
	promptGW := New(Config{MultimodalFormat: FormatPromptString, MultimodalDim: 8})
	req := promptGW.buildMultimodalRequest("a caption", []string{"b64"})
	if _, ok := req.Content.([]promptStringContent); !ok {
		t.Errorf("expected prompt_string content shape, got %T", req.Content)
	}

	imageDataGW := New(Config{MultimodalFormat: FormatImageData})
	req2 := imageDataGW.buildMultimodalRequest("a caption", []string{"b64"})
	if len(req2.Image) != 1 {
		t.Errorf("expected one image_data entry, got %d", len(req2.Image))
	}
}

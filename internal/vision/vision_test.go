package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func newFakeChatServer(t *testing.T, caption string, fail bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: caption}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestDescribeImages_Success(t *testing.T) {
	srv := newFakeChatServer(t, "a red apple on a white table", false)
	defer srv.Close()

	d := New("test-key", srv.URL+"/v1", "test-vision-model")
	results := d.DescribeImages(context.Background(), []string{"base64data"}, []string{"apple.png"})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	if results[0].AICaption != "a red apple on a white table" {
		t.Errorf("AICaption = %q", results[0].AICaption)
	}
	if results[0].Caption != "apple.png" {
		t.Errorf("Caption = %q, want apple.png", results[0].Caption)
	}
}

func TestDescribeImages_PerItemFailureDoesNotAbortBatch(t *testing.T) {
	srv := newFakeChatServer(t, "", true)
	defer srv.Close()

	d := New("test-key", srv.URL+"/v1", "test-vision-model")
	results := d.DescribeImages(context.Background(), []string{"a", "b"}, []string{"a.png", "b.png"})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Err == nil {
			t.Errorf("result %d: expected error", i)
		}
	}
}

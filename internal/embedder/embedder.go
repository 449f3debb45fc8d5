// Package embedder implements the embedder gateway: text chunk embedding,
// direct multimodal image embedding, and text-only query embedding
// through a multimodal endpoint, all normalized to unit L2 magnitude.
package embedder

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"math"
	"net/http"
	"time"

	"golang.org/x/image/draw"

	"github.com/nimbusdocs/ingestcore/internal/ingesterr"
)

const embedTimeout = 60 * time.Second

// Gateway wraps the text embedder and the optional multimodal embedder
// behind the wire protocol names (POST <base>/embedding).
type Gateway struct {
	httpClient *http.Client

	textBaseURL  string
	textModel    string
	textModelDim int

	multimodalBaseURL string
	multimodalModel   string
	multimodalDim     int
	multimodalFormat  WireFormat
}

// WireFormat selects which of the two multimodal request shapes the
// configured server expects: the implementation must pick one
// consistently and reuse it at query time.
type WireFormat int

const (
	// FormatPromptString sends {content:[{prompt_string, multimodal_data}], parameter:{output_dimension}}.
	FormatPromptString WireFormat = iota
	// FormatImageData sends {content:"Image: [img-0]", image_data:[{data,id}]}.
	FormatImageData
)

// Config configures a Gateway.
type Config struct {
	TextBaseURL  string
	TextModel    string
	TextModelDim int

	MultimodalBaseURL string
	MultimodalModel   string
	MultimodalDim     int
	MultimodalFormat  WireFormat
}

// New builds a Gateway from cfg.
func New(cfg Config) *Gateway {
	return &Gateway{
		httpClient:        &http.Client{Timeout: embedTimeout},
		textBaseURL:       cfg.TextBaseURL,
		textModel:         cfg.TextModel,
		textModelDim:      cfg.TextModelDim,
		multimodalBaseURL: cfg.MultimodalBaseURL,
		multimodalModel:   cfg.MultimodalModel,
		multimodalDim:     cfg.MultimodalDim,
		multimodalFormat:  cfg.MultimodalFormat,
	}
}

// MultimodalConfigured reports whether a multimodal embedder endpoint is
// configured.
func (g *Gateway) MultimodalConfigured() bool {
	return g.multimodalBaseURL != ""
}

type embeddingRequest struct {
	Content interface{}          `json:"content"`
	Image   []imageDataEntry     `json:"image_data,omitempty"`
	Param   *embeddingParameters `json:"parameter,omitempty"`
}

type embeddingParameters struct {
	OutputDimension int `json:"output_dimension"`
}

type imageDataEntry struct {
	Data string `json:"data"`
	ID   int    `json:"id"`
}

type promptStringContent struct {
	PromptString   string   `json:"prompt_string"`
	MultimodalData []string `json:"multimodal_data,omitempty"`
}

type embeddingResponse struct {
	Embedding [][]float32 `json:"embedding"`
}

// EmbedChunks sequentially POSTs each text chunk to <base>/embedding and
// returns one normalized vector per chunk. Empty chunks yield a
// zero-vector fallback rather than failing the batch.
func (g *Gateway) EmbedChunks(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if text == "" {
			out[i] = make([]float32, g.textModelDim)
			continue
		}
		vec, err := g.postEmbedding(ctx, g.textBaseURL, embeddingRequest{Content: text})
		if err != nil {
			return nil, fmt.Errorf("embedder: chunk %d: %w", i, err)
		}
		normalized, err := normalize(vec)
		if err != nil {
			return nil, fmt.Errorf("embedder: chunk %d: %w", i, err)
		}
		out[i] = normalized
	}
	return out, nil
}

// EmbedImageDirect resizes and PNG-encodes an image, then embeds it
// through the multimodal endpoint using the rich description as prompt
// text.
func (g *Gateway) EmbedImageDirect(ctx context.Context, img image.Image, description string, maxEdge int) ([]float32, error) {
	if !g.MultimodalConfigured() {
		return nil, fmt.Errorf("embedder: %w", ingesterr.ErrBackendUnavailable)
	}
	resized := resizeLongestEdge(img, maxEdge)
	b64, err := encodePNGBase64(resized)
	if err != nil {
		return nil, fmt.Errorf("embedder: encoding resized image: %w", err)
	}

	req := g.buildMultimodalRequest(description, []string{b64})
	vec, err := g.postEmbedding(ctx, g.multimodalBaseURL, req)
	if err != nil {
		return nil, fmt.Errorf("embedder: image embed: %w", err)
	}
	return normalize(vec)
}

// EmbedTextWithMultimodal embeds text-only input through the multimodal
// endpoint's text-only variant, so query vectors share the stored
// images' subspace.
func (g *Gateway) EmbedTextWithMultimodal(ctx context.Context, text string) ([]float32, error) {
	if !g.MultimodalConfigured() {
		return nil, fmt.Errorf("embedder: %w", ingesterr.ErrBackendUnavailable)
	}
	req := g.buildMultimodalRequest(text, nil)
	vec, err := g.postEmbedding(ctx, g.multimodalBaseURL, req)
	if err != nil {
		return nil, fmt.Errorf("embedder: multimodal text embed: %w", err)
	}
	normalized, err := normalize(vec)
	if err != nil {
		return nil, err
	}
	logVectorDiagnostics(normalized, g.multimodalDim)
	return normalized, nil
}

// EmbedQuery centralizes query-time embedder selection: route through the
// multimodal embedder when configured so query vectors land in the same
// subspace as stored image vectors, falling back to the standard text
// embedder only on multimodal failure, and surfacing that the fallback
// happened.
func (g *Gateway) EmbedQuery(ctx context.Context, text string) (vec []float32, usedFallback bool, err error) {
	if g.MultimodalConfigured() {
		vec, err = g.EmbedTextWithMultimodal(ctx, text)
		if err == nil {
			return vec, false, nil
		}
		log.Printf("embedder: multimodal query embed failed, falling back to text embedder: %v", err)
	}
	vec, err = g.EmbedChunks(ctx, []string{text})
	if err != nil {
		return nil, g.MultimodalConfigured(), err
	}
	return vec[0], g.MultimodalConfigured(), nil
}

func (g *Gateway) buildMultimodalRequest(prompt string, images []string) embeddingRequest {
	switch g.multimodalFormat {
	case FormatImageData:
		if len(images) == 0 {
			return embeddingRequest{Content: prompt}
		}
		entries := make([]imageDataEntry, len(images))
		for i, img := range images {
			entries[i] = imageDataEntry{Data: img, ID: i}
		}
		return embeddingRequest{Content: "Image: [img-0]", Image: entries}
	default: // FormatPromptString
		content := promptStringContent{PromptString: prompt}
		if len(images) > 0 {
			content.PromptString += "<__media__>"
			content.MultimodalData = images
		}
		return embeddingRequest{
			Content: []promptStringContent{content},
			Param:   &embeddingParameters{OutputDimension: g.multimodalDim},
		}
	}
}

func (g *Gateway) postEmbedding(ctx context.Context, baseURL string, req embeddingRequest) ([]float32, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/embedding", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ingesterr.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ingesterr.ErrBackendUnavailable, resp.StatusCode, string(respBody))
	}

	var result []embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result) == 0 || len(result[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	return result[0].Embedding[0], nil
}

// normalize rescales vec to unit L2 magnitude, rejecting zero-magnitude
// vectors.
func normalize(vec []float32) ([]float32, error) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	mag := math.Sqrt(sumSq)
	if mag == 0 {
		return nil, ingesterr.ErrZeroEmbedding
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / mag)
	}
	return out, nil
}

func resizeLongestEdge(img image.Image, maxEdge int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return img
	}
	scale := float64(maxEdge) / float64(w)
	if h > w {
		scale = float64(maxEdge) / float64(h)
	}
	dstW := int(float64(w) * scale)
	dstH := int(float64(h) * scale)
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func encodePNGBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// logVectorDiagnostics emits the magnitude/mean/std diagnostics and a
// dimension-mismatch warning.
func logVectorDiagnostics(vec []float32, expectedDim int) {
	if len(vec) == 0 {
		return
	}
	var sum, sumSq float64
	for _, v := range vec {
		sum += float64(v)
		sumSq += float64(v) * float64(v)
	}
	mean := sum / float64(len(vec))
	variance := sumSq/float64(len(vec)) - mean*mean
	if variance < 0 {
		variance = 0
	}
	std := math.Sqrt(variance)
	magnitude := math.Sqrt(sumSq)
	log.Printf("embedder: query vector dim=%d magnitude=%.4f mean=%.4f std=%.4f", len(vec), magnitude, mean, std)
	if expectedDim > 0 && len(vec) != expectedDim {
		log.Printf("embedder: dimension mismatch: got %d, collection expects %d", len(vec), expectedDim)
	}
}

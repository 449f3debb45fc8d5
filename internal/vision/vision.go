// Package vision implements the vision describer gateway:
// image captioning through an OpenAI chat-completions-shaped endpoint.
package vision

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const describeTimeout = 10 * time.Minute

const systemPrompt = "You perfectly describe images. Respond with a concise, factual caption."

// Describer wraps a chat-completions client configured to point at the
// configured vision LLM service.
type Describer struct {
	client *openai.Client
	model  string
}

// New builds a Describer. baseURL overrides the default OpenAI API
// endpoint so the gateway can target any OpenAI-compatible vision
// service (IMAGE2TEXT_BASE_PATH).
func New(apiKey, baseURL, model string) *Describer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Describer{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Description pairs a caller-supplied caption with the AI-generated one,
// matching the `{description:[caption, aiCaption]}` contract.
type Description struct {
	Caption   string
	AICaption string
	Err       error
}

// DescribeImages captions each base64-encoded PNG in bases64, pairing it
// with the corresponding entry in captions. A per-item failure is
// recorded in that item's Err field rather than aborting the batch.
func (d *Describer) DescribeImages(ctx context.Context, bases64, captions []string) []Description {
	out := make([]Description, len(bases64))
	for i, b64 := range bases64 {
		caption := ""
		if i < len(captions) {
			caption = captions[i]
		}
		aiCaption, err := d.describeOne(ctx, b64)
		out[i] = Description{Caption: caption, AICaption: aiCaption, Err: err}
	}
	return out
}

func (d *Describer) describeOne(ctx context.Context, base64PNG string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, describeTimeout)
	defer cancel()

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: "Describe this image in one sentence.",
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: "data:image/png;base64," + base64PNG,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision: describe: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

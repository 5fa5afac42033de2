package delegate

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/nvr-ai/go-nutrition/common"
	"github.com/nvr-ai/go-nutrition/logging"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const openAISystemPrompt = `You identify foods in meal photos. Answer with JSON only, in the form
{"foods":[{"name":"<dish name>","confidence":<0..1>,"portion":"small|medium|large","bbox":[x1,y1,x2,y2]}]}.
Use short lower-case dish names such as rice, chicken_curry, dal, kottu, hoppers, sambol, vegetables.
Omit bbox when unsure. Return {"foods":[]} when no food is visible.`

// OpenAIBackend asks a vision chat model to list the foods in the photo.
type OpenAIBackend struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIBackend creates a chat-completion backend.
//
// Arguments:
// - apiKey: The API key.
// - model: The vision-capable model name.
// - baseURL: Optional API base URL for compatible gateways; empty uses the default.
// - logger: Logger for token usage; nil disables logging.
//
// Returns:
// - *OpenAIBackend: The backend.
func NewOpenAIBackend(apiKey, model, baseURL string, logger *zap.Logger) *OpenAIBackend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIBackend{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logging.Component(logger, "delegate_openai"),
	}
}

// Name implements Backend.
func (b *OpenAIBackend) Name() string { return BackendOpenAI }

// Detect implements Backend.
func (b *OpenAIBackend) Detect(ctx context.Context, req Request) ([]common.Candidate, error) {
	content := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: userPrompt(req),
		},
		{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(req.Image),
				Detail: openai.ImageURLDetailLow,
			},
		},
	}

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: openAISystemPrompt},
			{Role: openai.ChatMessageRoleUser, MultiContent: content},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, errors.Wrap(err, "openai chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	b.logger.Debug("openai usage",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))

	return Normalize([]byte(stripCodeFence(resp.Choices[0].Message.Content)))
}

func userPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("List the foods in this meal photo.")
	if req.CulturalContext != "" {
		fmt.Fprintf(&sb, " Cuisine context: %s.", req.CulturalContext)
	}
	if req.Text != "" {
		fmt.Fprintf(&sb, " The user describes it as: %q.", req.Text)
	}
	if req.Width > 0 && req.Height > 0 {
		fmt.Fprintf(&sb, " The image is %dx%d pixels.", req.Width, req.Height)
	}
	return sb.String()
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

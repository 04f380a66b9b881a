package delegate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const systemPrompt = `
You are VOX, a voice assistant living inside a code editor.
Your replies are read aloud by a speech synthesizer.

RULES:
1. Answer in at most three short sentences.
2. Plain text only. No markdown, no code blocks, no lists.
3. If the user asks about code you cannot see, say so briefly.
4. Never describe editor commands you did not run.
`

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	// HTTPClient is optional; set it to route through a proxy.
	HTTPClient *http.Client
}

// OpenAI answers transcripts with a chat completion.
type OpenAI struct {
	client openai.Client
	model  string
	hasKey bool
	logger *slog.Logger
}

func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) *OpenAI {
	model := cfg.Model
	if model == "" {
		model = string(openai.ChatModelGPT5Nano)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
		hasKey: cfg.APIKey != "",
		logger: logger,
	}
}

// Available checks the key is set and the configured model is reachable.
func (o *OpenAI) Available(ctx context.Context) bool {
	if !o.hasKey {
		return false
	}
	if _, err := o.client.Models.Get(ctx, o.model); err != nil {
		o.logger.Warn("openai probe failed", "model", o.model, "err", err)
		return false
	}
	return true
}

func (o *OpenAI) Query(ctx context.Context, text string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		},
		Model: openai.ChatModel(o.model),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", errors.New("empty message content")
	}

	o.logger.Debug("openai replied", "chars", len(content))
	return content, nil
}

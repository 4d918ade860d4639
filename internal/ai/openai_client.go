package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var ErrEmptyReply = errors.New("ai: empty reply")

type OpenAIClient struct {
	client *openai.Client
	model  string
	log    *zap.Logger
}

// NewOpenAIClient builds a client for the chat completions API. baseURL may be
// empty for the public endpoint.
func NewOpenAIClient(apiKey, model, baseURL string, log *zap.Logger) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		log:    log,
	}
}

func (c *OpenAIClient) Classify(ctx context.Context, text string) (string, error) {
	raw, err := c.complete(ctx, []Message{
		{Role: openai.ChatMessageRoleSystem, Text: ClassifierPrompt},
		{Role: openai.ChatMessageRoleUser, Text: text},
	}, 10, 0.1)
	if err != nil {
		return "", err
	}

	label := strings.ToLower(strings.TrimSpace(raw))
	label = strings.Trim(label, ".\"'` ")
	c.log.Debug("intent classified", zap.String("label", label))
	return label, nil
}

func (c *OpenAIClient) Generate(ctx context.Context, text, note string, faqs []FAQ) (string, error) {
	var sb strings.Builder
	for i, f := range faqs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("Q: " + f.Question + "\nA: " + f.Answer)
	}

	raw, err := c.complete(ctx, []Message{
		{Role: openai.ChatMessageRoleSystem, Text: fmt.Sprintf(ResponderPrompt, note, sb.String())},
		{Role: openai.ChatMessageRoleUser, Text: text},
	}, 300, 0.7)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(raw), nil
}

func (c *OpenAIClient) complete(ctx context.Context, history []Message, maxTokens int, temperature float32) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Text,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		c.log.Warn("openai request failed", zap.Error(err))
		return "", fmt.Errorf("openai: %w", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		c.log.Warn("openai returned no content")
		return "", ErrEmptyReply
	}

	raw := resp.Choices[0].Message.Content
	c.log.Debug("openai raw response", zap.String("content", short(raw)))
	return raw, nil
}

func short(s string) string {
	if r := []rune(s); len(r) > 180 {
		return string(r[:180]) + "..."
	}
	return s
}

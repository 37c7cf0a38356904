package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

const defaultAnthropicModel = "claude-3-haiku-20240307"

type Anthropic struct {
	client *anthropic.Client
	model  string
}

func NewAnthropic(apiKey, model string) (*Anthropic, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}
	if model == "" {
		model = defaultAnthropicModel
	}
	return &Anthropic{client: anthropic.NewClient(apiKey), model: model}, nil
}

func (a *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	msgs := make([]anthropic.Message, 0, len(req.History)+1)
	for _, m := range req.History {
		role := anthropic.RoleUser
		if m.Role == RoleAssistant {
			role = anthropic.RoleAssistant
		}
		msgs = append(msgs, anthropic.Message{
			Role:    role,
			Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(m.Text)},
		})
	}
	msgs = append(msgs, anthropic.Message{
		Role:    anthropic.RoleUser,
		Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(req.User)},
	})

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	temperature := req.Temperature

	mreq := anthropic.MessagesRequest{
		Model:       anthropic.Model(a.model),
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	}
	if req.System != "" {
		mreq.MultiSystem = []anthropic.MessageSystemPart{{Type: "text", Text: req.System}}
	}

	resp, err := a.client.CreateMessages(ctx, mreq)
	if err != nil {
		return "", mapAnthropicError(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text.WriteString(*block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", fmt.Errorf("anthropic: %w", ErrEmptyCompletion)
	}
	return text.String(), nil
}

func mapAnthropicError(err error) error {
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) && reqErr.StatusCode != 0 {
		return &StatusError{Provider: "anthropic", StatusCode: reqErr.StatusCode, Err: err}
	}
	// APIError is only produced from a decoded non-2xx body
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: "anthropic", Err: err}
	}
	return unavailable("anthropic", err)
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmorganca/ollama/api"
)

const defaultOllamaModel = "llama3.1"

// Ollama uses a local model server located through OLLAMA_HOST.
type Ollama struct {
	client *api.Client
	model  string
}

func NewOllama(model string) (*Ollama, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	if model == "" {
		model = defaultOllamaModel
	}
	return &Ollama{client: client, model: model}, nil
}

func (o *Ollama) Complete(ctx context.Context, req Request) (string, error) {
	msgs := make([]api.Message, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: req.System})
	}
	for _, m := range req.History {
		msgs = append(msgs, api.Message{Role: m.Role, Content: m.Text})
	}
	msgs = append(msgs, api.Message{Role: RoleUser, Content: req.User})

	stream := false
	options := map[string]any{}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	var out strings.Builder
	err := o.client.Chat(ctx, &api.ChatRequest{
		Model:    o.model,
		Messages: msgs,
		Stream:   &stream,
		Options:  options,
	}, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		var se api.StatusError
		if errors.As(err, &se) {
			return "", &StatusError{Provider: "ollama", StatusCode: se.StatusCode, Err: err}
		}
		return "", unavailable("ollama", err)
	}

	if strings.TrimSpace(out.String()) == "" {
		return "", fmt.Errorf("ollama: %w", ErrEmptyCompletion)
	}
	return out.String(), nil
}

package llmclient

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIBackend adapts github.com/sashabaranov/go-openai to the Backend
// contract. Non-streaming completions are used here: the router needs a
// single text result per call, not a token stream (streaming stays in the
// demo harness, where it is a presentation concern).
type OpenAIBackend struct {
	client *openai.Client
}

// NewOpenAIBackend builds a backend against the given API key.
func NewOpenAIBackend(apiKey string) *OpenAIBackend {
	return &OpenAIBackend{client: openai.NewClient(apiKey)}
}

func (b *OpenAIBackend) Complete(ctx context.Context, req Request) (string, error) {
	if req.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Deadline)
		defer cancel()
	}

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &BackendError{Kind: Invalid, Err: errors.New("empty choices")}
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyError maps the open-ended errors the provider SDK can return into
// the closed ErrorKind taxonomy the router reasons about.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
			return &BackendError{Kind: Auth, Err: err}
		case apiErr.HTTPStatusCode == 429:
			return &BackendError{Kind: RateLimited, Err: err}
		case apiErr.HTTPStatusCode >= 500:
			return &BackendError{Kind: Transient, Err: err}
		default:
			return &BackendError{Kind: Invalid, Err: err}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &BackendError{Kind: Transient, Err: err}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "connection"):
		return &BackendError{Kind: Transient, Err: err}
	case strings.Contains(msg, "rate"):
		return &BackendError{Kind: RateLimited, Err: err}
	case strings.Contains(msg, "auth") || strings.Contains(msg, "key"):
		return &BackendError{Kind: Auth, Err: err}
	default:
		return &BackendError{Kind: Transient, Err: err}
	}
}

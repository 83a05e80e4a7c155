package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const defaultLMStudioURL = "http://localhost:1234/v1"

// OpenAI implements Provider for OpenAI and OpenAI-compatible servers such as
// LM Studio.
type OpenAI struct {
	name       string
	model      string
	client     *openai.Client
	maxRetries int
}

// NewOpenAI creates an OpenAI provider. The key comes from opts.APIKey or
// OPENAI_API_KEY.
func NewOpenAI(model string, opts Options) (*OpenAI, error) {
	key := opts.APIKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("MARGINALIA_OPENAI_BASE_URL")
	}
	return newOpenAICompatible("openai", model, key, baseURL, opts), nil
}

// NewLMStudio creates a provider for a local LM Studio server. No key is
// required.
func NewLMStudio(model string, opts Options) (*OpenAI, error) {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("LMSTUDIO_HOST")
	}
	if baseURL == "" {
		baseURL = defaultLMStudioURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/chat/completions")
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL += "/v1"
	}
	key := opts.APIKey
	if key == "" {
		key = "lm-studio"
	}
	return newOpenAICompatible("lmstudio", model, key, baseURL, opts), nil
}

func newOpenAICompatible(name, model, key, baseURL string, opts Options) *OpenAI {
	cfg := openai.DefaultConfig(key)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = opts.httpClient()
	return &OpenAI{
		name:       name,
		model:      model,
		client:     openai.NewClientWithConfig(cfg),
		maxRetries: opts.retries(),
	}
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) request(req Request) openai.ChatCompletionRequest {
	r := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		MaxTokens:   maxTokens(req),
		Temperature: float32(req.Temperature),
	}
	if len(req.Schema) > 0 {
		r.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "reviewer_result",
				Schema: req.Schema,
			},
		}
	}
	return r
}

func (o *OpenAI) Complete(ctx context.Context, req Request) (Response, error) {
	var resp Response
	err := retryWithBackoff(ctx, o.maxRetries, func() error {
		result, err := o.client.CreateChatCompletion(ctx, o.request(req))
		if err != nil {
			return openaiError(err)
		}
		if len(result.Choices) == 0 {
			return fmt.Errorf("no choices in response")
		}
		if result.Choices[0].Message.Content == "" {
			return fmt.Errorf("empty text content in API response")
		}
		resp = Response{
			Content:    result.Choices[0].Message.Content,
			TokensUsed: result.Usage.TotalTokens,
		}
		return nil
	})
	return resp, err
}

// Stream uses the chat completion stream; only opening the stream is retried.
func (o *OpenAI) Stream(ctx context.Context, req Request, onDelta func(string)) (Response, error) {
	var s *openai.ChatCompletionStream
	err := retryWithBackoff(ctx, o.maxRetries, func() error {
		var err error
		s, err = o.client.CreateChatCompletionStream(ctx, o.request(req))
		if err != nil {
			return openaiError(err)
		}
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	defer s.Close()

	var b strings.Builder
	tokens := 0
	for {
		chunk, err := s.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Response{}, fmt.Errorf("reading stream: %w", openaiError(err))
		}
		if chunk.Usage != nil {
			tokens = chunk.Usage.TotalTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			b.WriteString(delta)
			if onDelta != nil {
				onDelta(delta)
			}
		}
	}
	if b.Len() == 0 {
		return Response{}, fmt.Errorf("empty text content in API response")
	}
	return Response{Content: b.String(), TokensUsed: tokens}, nil
}

// ListModels returns the models the endpoint exposes.
func (o *OpenAI) ListModels(ctx context.Context) ([]Model, error) {
	list, err := o.client.ListModels(ctx)
	if err != nil {
		return nil, openaiError(err)
	}
	models := make([]Model, 0, len(list.Models))
	for _, m := range list.Models {
		var modified time.Time
		if m.CreatedAt > 0 {
			modified = time.Unix(m.CreatedAt, 0).UTC()
		}
		models = append(models, Model{Name: m.ID, ModifiedAt: modified})
	}
	return models, nil
}

// openaiError maps SDK errors onto the shared error types.
func openaiError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return statusError(apiErr.HTTPStatusCode, []byte(apiErr.Message))
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return statusError(reqErr.HTTPStatusCode, []byte(reqErr.Error()))
	}
	return err
}

package providers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic implements Provider for Anthropic's Messages API.
type Anthropic struct {
	model      string
	client     anthropic.Client
	maxRetries int
}

// NewAnthropic creates an Anthropic provider. The key comes from opts.APIKey
// or ANTHROPIC_API_KEY.
func NewAnthropic(model string, opts Options) (*Anthropic, error) {
	key := opts.APIKey
	if key == "" {
		key = os.Getenv("ANTHROPIC_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithHTTPClient(opts.httpClient()),
		// Retries are handled by retryWithBackoff.
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &Anthropic{
		model:      model,
		client:     anthropic.NewClient(reqOpts...),
		maxRetries: opts.retries(),
	}, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Complete(ctx context.Context, req Request) (Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(maxTokens(req)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	var resp Response
	err := retryWithBackoff(ctx, a.maxRetries, func() error {
		message, err := a.client.Messages.New(ctx, params)
		if err != nil {
			return anthropicError(err)
		}

		var b strings.Builder
		for _, block := range message.Content {
			if block.Type == "text" {
				b.WriteString(block.Text)
			}
		}
		if b.Len() == 0 {
			return fmt.Errorf("empty text content in API response")
		}
		resp = Response{
			Content:    b.String(),
			TokensUsed: int(message.Usage.InputTokens + message.Usage.OutputTokens),
		}
		return nil
	})
	return resp, err
}

func anthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return statusError(apiErr.StatusCode, []byte(apiErr.Error()))
	}
	return err
}

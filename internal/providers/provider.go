package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Request contains the data sent to a model for one review.
type Request struct {
	SystemPrompt  string
	UserPrompt    string
	MaxTokens     int
	Temperature   float64
	ContextWindow int
	// Schema, when set, asks the backend for structured output matching it.
	Schema json.RawMessage
}

// Response contains the raw model output.
type Response struct {
	Content    string
	TokensUsed int
}

// Provider is the model backend abstraction.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Name() string
}

// Streamer is implemented by providers that can deliver output incrementally.
// onDelta receives each newly generated piece of text in order.
type Streamer interface {
	Stream(ctx context.Context, req Request, onDelta func(string)) (Response, error)
}

// Model describes a model available on a backend.
type Model struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modifiedAt,omitzero"`
	Size       int64     `json:"size,omitempty"`
}

// ModelLister is implemented by providers that can enumerate their models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]Model, error)
}

// Options overrides environment-derived provider settings.
type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

const (
	defaultTimeout    = 300 * time.Second
	defaultMaxRetries = 3
	defaultMaxTokens  = 4096
)

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (o Options) retries() int {
	if o.MaxRetries < 0 {
		return 0
	}
	if o.MaxRetries == 0 {
		return defaultMaxRetries
	}
	return o.MaxRetries
}

var defaultModels = map[string]string{
	"ollama":    "llama3.2",
	"openai":    "gpt-4o-mini",
	"lmstudio":  "local-model",
	"anthropic": "claude-3-5-haiku-latest",
	"gemini":    "gemini-2.0-flash",
}

// Names returns the supported provider names.
func Names() []string {
	names := make([]string, 0, len(defaultModels))
	for n := range defaultModels {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	return defaultModels[canonical(provider)]
}

func canonical(provider string) string {
	p := strings.ToLower(strings.TrimSpace(provider))
	switch p {
	case "", "local":
		return "ollama"
	case "google":
		return "gemini"
	case "lm-studio":
		return "lmstudio"
	}
	return p
}

// New creates a provider by name. An empty model selects the provider's
// default.
func New(provider, model string, opts Options) (Provider, error) {
	name := canonical(provider)
	if model == "" {
		model = defaultModels[name]
	}
	switch name {
	case "ollama":
		return NewOllama(model, opts)
	case "openai":
		return NewOpenAI(model, opts)
	case "lmstudio":
		return NewLMStudio(model, opts)
	case "anthropic":
		return NewAnthropic(model, opts)
	case "gemini":
		return NewGemini(model, opts)
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

// ParseModelSpec splits "provider:model". A spec without a provider prefix
// names a model on the default provider. Ollama tags such as "llama3:8b" are
// kept intact when the prefix is not a known provider.
func ParseModelSpec(spec string) (provider, model string, err error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", "", fmt.Errorf("empty model spec")
	}
	prefix, rest, found := strings.Cut(spec, ":")
	if !found {
		return "", spec, nil
	}
	if _, ok := defaultModels[canonical(prefix)]; !ok {
		return "", spec, nil
	}
	if rest == "" {
		return "", "", fmt.Errorf("invalid model spec %q: expected provider:model", spec)
	}
	return canonical(prefix), rest, nil
}

func maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultMaxTokens
}

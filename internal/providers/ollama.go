package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dshills/marginalia/internal/logging"
	"github.com/dshills/marginalia/internal/stream"
)

const defaultOllamaURL = "http://localhost:11434"

// Ollama talks to a local Ollama server through its native generate API.
type Ollama struct {
	model      string
	baseURL    string
	apiKey     string
	client     *http.Client
	maxRetries int
}

// NewOllama creates an Ollama provider. The server address comes from
// opts.BaseURL, then OLLAMA_HOST, then the local default.
func NewOllama(model string, opts Options) (*Ollama, error) {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_HOST")
	}
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("MARGINALIA_OLLAMA_API_KEY")
	}
	return &Ollama{
		model:      model,
		baseURL:    normalizeOllamaURL(baseURL),
		apiKey:     apiKey,
		client:     opts.httpClient(),
		maxRetries: opts.retries(),
	}, nil
}

// normalizeOllamaURL accepts bare host:port values and strips API paths.
func normalizeOllamaURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return defaultOllamaURL
	}
	if !strings.Contains(u, "://") {
		u = "http://" + u
	}
	u = strings.TrimRight(u, "/")
	for _, suffix := range []string{"/api/generate", "/api", "/v1/chat/completions", "/v1"} {
		u = strings.TrimSuffix(u, suffix)
	}
	return u
}

func (o *Ollama) Name() string { return "ollama" }

// Model returns the configured model name.
func (o *Ollama) Model() string { return o.model }

type ollamaGenerateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Format  json.RawMessage `json:"format,omitempty"`
	Stream  bool            `json:"stream"`
	Options ollamaOptions   `json:"options"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumCtx      int      `json:"num_ctx,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type ollamaGenerateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	Error           string `json:"error"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (o *Ollama) payload(req Request, streaming bool) ([]byte, error) {
	body := ollamaGenerateRequest{
		Model:  o.model,
		Prompt: req.UserPrompt,
		System: req.SystemPrompt,
		Format: req.Schema,
		Stream: streaming,
		Options: ollamaOptions{
			NumCtx:     req.ContextWindow,
			NumPredict: maxTokens(req),
		},
	}
	if req.Temperature > 0 {
		t := req.Temperature
		body.Options.Temperature = &t
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	return payload, nil
}

// open sends the generate request and returns the response once the status
// has been checked. Only this part is retried.
func (o *Ollama) open(ctx context.Context, payload []byte) (*http.Response, error) {
	var resp *http.Response
	err := retryWithBackoff(ctx, o.maxRetries, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if o.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
		}

		httpResp, err := o.client.Do(httpReq)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		if httpResp.StatusCode != http.StatusOK {
			defer httpResp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 64<<10))
			return statusError(httpResp.StatusCode, ollamaErrorBody(body))
		}
		resp = httpResp
		return nil
	})
	return resp, err
}

// ollamaErrorBody unwraps {"error": "..."} bodies.
func ollamaErrorBody(body []byte) []byte {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return []byte(e.Error)
	}
	return body
}

func (o *Ollama) Complete(ctx context.Context, req Request) (Response, error) {
	payload, err := o.payload(req, false)
	if err != nil {
		return Response{}, err
	}
	httpResp, err := o.open(ctx, payload)
	if err != nil {
		return Response{}, err
	}
	defer httpResp.Body.Close()

	var result ollamaGenerateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&result); err != nil {
		return Response{}, fmt.Errorf("parsing response: %w", err)
	}
	if result.Error != "" {
		return Response{}, fmt.Errorf("ollama: %s", result.Error)
	}
	if result.Response == "" {
		return Response{}, fmt.Errorf("empty text content in API response")
	}
	return Response{
		Content:    result.Response,
		TokensUsed: result.PromptEvalCount + result.EvalCount,
	}, nil
}

// Stream requests a streamed generation and decodes the newline-delimited
// chunks incrementally.
func (o *Ollama) Stream(ctx context.Context, req Request, onDelta func(string)) (Response, error) {
	payload, err := o.payload(req, true)
	if err != nil {
		return Response{}, err
	}
	httpResp, err := o.open(ctx, payload)
	if err != nil {
		return Response{}, err
	}
	defer httpResp.Body.Close()

	tail := &lineTail{max: maxFinalLine}
	text, err := stream.Pump(ctx, io.TeeReader(httpResp.Body, tail), stream.New(stream.DefaultField), onDelta)
	if err != nil {
		return Response{}, fmt.Errorf("reading stream: %w", err)
	}

	if tail.dropped > 0 {
		logging.C(ctx).Warn().Int("lines", tail.dropped).Int("max_bytes", tail.max).Msg("ollama: stream line exceeded buffer, token usage may be missing")
	}
	var final ollamaGenerateResponse
	if last := tail.lastLine(); len(last) > 0 {
		if err := json.Unmarshal(last, &final); err != nil {
			logging.C(ctx).Warn().Err(err).Int("bytes", len(last)).Msg("ollama: undecodable final chunk, token usage unknown")
		}
	}
	if final.Error != "" {
		return Response{}, fmt.Errorf("ollama: %s", final.Error)
	}
	if text == "" {
		return Response{}, fmt.Errorf("empty text content in API response")
	}
	return Response{Content: text, TokensUsed: final.PromptEvalCount + final.EvalCount}, nil
}

type ollamaTagsResponse struct {
	Models []struct {
		Name       string    `json:"name"`
		ModifiedAt time.Time `json:"modified_at"`
		Size       int64     `json:"size"`
	} `json:"models"`
}

// ListModels returns the locally installed models.
func (o *Ollama) ListModels(ctx context.Context) ([]Model, error) {
	var models []Model
	err := retryWithBackoff(ctx, o.maxRetries, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		httpResp, err := o.client.Do(httpReq)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer httpResp.Body.Close()

		body, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		if httpResp.StatusCode != http.StatusOK {
			return statusError(httpResp.StatusCode, ollamaErrorBody(body))
		}

		var tags ollamaTagsResponse
		if err := json.Unmarshal(body, &tags); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
		models = make([]Model, 0, len(tags.Models))
		for _, m := range tags.Models {
			models = append(models, Model{Name: m.Name, ModifiedAt: m.ModifiedAt, Size: m.Size})
		}
		return nil
	})
	return models, err
}

// maxFinalLine bounds the buffered final chunk, whose context array can run
// to hundreds of kilobytes.
const maxFinalLine = 4 << 20

// lineTail keeps the most recent non-blank line written to it. A line longer
// than max is dropped whole.
type lineTail struct {
	max     int
	cur     []byte
	last    []byte
	over    bool
	dropped int // lines discarded for length
}

func (t *lineTail) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		seg := p
		if i >= 0 {
			seg = p[:i]
		}
		if !t.over {
			if len(t.cur)+len(seg) > t.max {
				t.over = true
				t.dropped++
				t.cur = t.cur[:0]
			} else {
				t.cur = append(t.cur, seg...)
			}
		}
		if i < 0 {
			break
		}
		if !t.over && len(bytes.TrimSpace(t.cur)) > 0 {
			t.last = append(t.last[:0], t.cur...)
		}
		t.cur = t.cur[:0]
		t.over = false
		p = p[i+1:]
	}
	return n, nil
}

// lastLine returns the last non-blank line, including an unterminated one.
func (t *lineTail) lastLine() []byte {
	if cur := bytes.TrimSpace(t.cur); !t.over && len(cur) > 0 {
		return cur
	}
	return bytes.TrimSpace(t.last)
}

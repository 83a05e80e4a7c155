package review

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/marginalia/internal/cache"
	"github.com/dshills/marginalia/internal/config"
	"github.com/dshills/marginalia/internal/document"
	"github.com/dshills/marginalia/internal/feedback"
	"github.com/dshills/marginalia/internal/logging"
	"github.com/dshills/marginalia/internal/providers"
	"github.com/dshills/marginalia/internal/redact"
)

// ToolName is reported in every Report.
const ToolName = "marginalia"

const reviewMaxTokens = 4096

// Factory creates the provider for one reviewer.
type Factory func(provider, model string) (providers.Provider, error)

// DefaultFactory builds providers from cfg. The configured base URL only
// applies to the configured provider.
func DefaultFactory(cfg config.Config) Factory {
	return func(provider, model string) (providers.Provider, error) {
		opts := providers.Options{Timeout: cfg.Timeout()}
		if provider == cfg.Provider {
			opts.BaseURL = cfg.BaseURL
		}
		return providers.New(provider, model, opts)
	}
}

// StreamSink receives generated text as it arrives. It is called from
// several goroutines at once when more than one persona streams.
type StreamSink func(persona, delta string)

// Option configures an Engine.
type Option func(*Engine)

// WithCache enables response caching.
func WithCache(c *cache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithStreamSink streams reviewer output to sink for providers that support
// it.
func WithStreamSink(sink StreamSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithVersion sets the version reported in each Report.
func WithVersion(v string) Option {
	return func(e *Engine) { e.version = v }
}

// Engine runs personas against a document and merges their feedback.
type Engine struct {
	cfg     config.Config
	factory Factory
	cache   *cache.Cache
	sink    StreamSink
	version string
}

// NewEngine creates an Engine. A nil factory uses DefaultFactory(cfg).
func NewEngine(cfg config.Config, factory Factory, opts ...Option) *Engine {
	if factory == nil {
		factory = DefaultFactory(cfg)
	}
	e := &Engine{cfg: cfg, factory: factory, version: "dev"}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run reviews doc with every persona concurrently and merges the results.
// A persona that fails is recorded in Report.Failures; the other personas
// still run. Run only returns an error when no persona is selected or ctx
// ends.
func (e *Engine) Run(ctx context.Context, doc document.Document, personas []Persona) (*Report, error) {
	start := time.Now()
	if len(personas) == 0 {
		return nil, ErrNoPersonas
	}

	runID := uuid.NewString()
	ctx = logging.WithRun(ctx, runID)
	log := logging.C(ctx)

	info := DocumentInfo{Name: doc.Name, Text: doc.Text}
	if e.cfg.Privacy.RedactSecrets {
		info.Text, info.Redactions = redact.Document(doc.Text)
		if n := redact.Total(info.Redactions); n > 0 {
			log.Info().Int("count", n).Msg("redacted secrets from document")
		}
	}
	info.Bytes = len(info.Text)

	log.Debug().
		Int("personas", len(personas)).
		Int("bytes", info.Bytes).
		Int("concurrency", e.cfg.Concurrency).
		Msg("starting review")

	outcomes := make([]outcome, len(personas))
	var llmMs atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.cfg.Concurrency, 1))
	for i, p := range personas {
		g.Go(func() error {
			outcomes[i] = e.review(gctx, info.Text, p, false)
			llmMs.Add(outcomes[i].llmMs)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{
		Tool:     ToolName,
		Version:  e.version,
		RunID:    runID,
		Document: info,
		Personas: personas,
	}
	assemble(report, outcomes)
	report.Timing = Timing{
		LLMMs:   llmMs.Load(),
		TotalMs: time.Since(start).Milliseconds(),
	}

	log.Debug().
		Int("reviewers", report.Summary.Reviewers).
		Int("failed", report.Summary.Failed).
		Int("regions", report.Summary.Regions).
		Int64("ms", report.Timing.TotalMs).
		Msg("review finished")
	return report, nil
}

// Retry re-runs persona id against the report's document, bypassing the
// cache, and returns a new report with regions recomputed from scratch. The
// input report is not modified.
func (e *Engine) Retry(ctx context.Context, report *Report, id string) (*Report, error) {
	if report == nil {
		return nil, errors.New("retry: nil report")
	}
	p := FindPersona(report.Personas, id)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPersona, id)
	}
	start := time.Now()
	ctx = logging.WithRun(ctx, report.RunID)

	fresh := e.review(ctx, report.Document.Text, *p, true)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outcomes := make([]outcome, len(report.Personas))
	for i, rp := range report.Personas {
		switch {
		case rp.ID == id:
			outcomes[i] = fresh
		case report.Reviewer(rp.ID) != nil:
			outcomes[i] = outcome{result: report.Reviewer(rp.ID)}
		default:
			outcomes[i] = outcome{failure: findFailure(report.Failures, rp.ID)}
		}
	}

	out := &Report{
		Tool:     report.Tool,
		Version:  report.Version,
		RunID:    report.RunID,
		Document: report.Document,
		Personas: report.Personas,
	}
	assemble(out, outcomes)
	out.Timing = Timing{
		LLMMs:   report.Timing.LLMMs + fresh.llmMs,
		TotalMs: report.Timing.TotalMs + time.Since(start).Milliseconds(),
	}

	logging.C(ctx).Debug().
		Str("persona", id).
		Bool("ok", fresh.result != nil).
		Msg("retried reviewer")
	return out, nil
}

type outcome struct {
	result  *ReviewerResult
	failure *Failure
	llmMs   int64
}

// assemble fills reviewers, failures, regions and summary from outcomes in
// roster order.
func assemble(r *Report, outcomes []outcome) {
	r.Reviewers = []ReviewerResult{}
	r.Failures = []Failure{}
	for _, o := range outcomes {
		switch {
		case o.result != nil:
			r.Reviewers = append(r.Reviewers, *o.result)
		case o.failure != nil:
			r.Failures = append(r.Failures, *o.failure)
		}
	}
	r.Regions, r.Dropped = MergeResults(r.Document.Text, r.Reviewers)
	r.Summary = ComputeSummary(r)
}

func findFailure(failures []Failure, id string) *Failure {
	for i := range failures {
		if failures[i].Persona.ID == id {
			return &failures[i]
		}
	}
	return nil
}

// resolve picks the provider and model for p.
func (e *Engine) resolve(p Persona) (provider, model string, err error) {
	provider, model = e.cfg.Provider, e.cfg.Model
	if p.Model != "" {
		pp, pm, err := providers.ParseModelSpec(p.Model)
		if err != nil {
			return "", "", fmt.Errorf("persona %s: %w", p.ID, err)
		}
		if pp != "" {
			provider = pp
		}
		model = pm
	}
	if model == "" {
		model = providers.DefaultModel(provider)
	}
	return provider, model, nil
}

// review runs one persona. Errors become a Failure; they never abort the run.
func (e *Engine) review(ctx context.Context, base string, p Persona, skipCache bool) outcome {
	start := time.Now()
	log := logging.C(ctx).With().Str("persona", p.ID).Logger()

	providerName, model, err := e.resolve(p)
	if err != nil {
		return failed(p, providerName, model, err)
	}
	prov, err := e.factory(providerName, model)
	if err != nil {
		return failed(p, providerName, model, fmt.Errorf("creating provider: %w", err))
	}
	providerName = prov.Name()

	req := providers.Request{
		SystemPrompt:  SystemPrompt(p, e.cfg.MaxComments),
		UserPrompt:    BuildUserPrompt(base),
		MaxTokens:     reviewMaxTokens,
		Temperature:   e.cfg.Temperature,
		ContextWindow: e.cfg.ContextWindow,
		Schema:        feedback.Schema(),
	}
	key := cache.BuildKey(
		providerName, model, req.SystemPrompt, req.UserPrompt,
		strconv.FormatFloat(req.Temperature, 'f', -1, 64),
		strconv.Itoa(req.ContextWindow),
	)

	rr := ReviewerResult{Persona: p, Provider: providerName, Model: model}

	if !skipCache && e.cache != nil {
		if content, ok := e.cache.Get(key); ok {
			if result, err := feedback.Parse(content); err == nil {
				log.Debug().Msg("cache hit")
				result.Truncate(e.cfg.MaxComments)
				rr.Result = result
				rr.Cached = true
				rr.DurationMs = time.Since(start).Milliseconds()
				if e.sink != nil {
					e.sink(p.ID, content)
				}
				return outcome{result: &rr}
			}
			log.Warn().Msg("ignoring unparseable cache entry")
		}
	}

	llmStart := time.Now()
	resp, err := e.call(ctx, prov, p.ID, req)
	if err != nil {
		o := failed(p, providerName, model, fmt.Errorf("provider %s: %w", providerName, err))
		o.llmMs = time.Since(llmStart).Milliseconds()
		log.Warn().Err(err).Msg("reviewer failed")
		return o
	}
	rr.TokensUsed = resp.TokensUsed

	content := resp.Content
	result, perr := feedback.Parse(content)
	if perr != nil {
		log.Debug().Err(perr).Msg("invalid result, attempting repair")
		repair := req
		repair.UserPrompt = RepairPrompt(perr, content)
		resp2, err := prov.Complete(ctx, repair)
		if err != nil {
			o := failed(p, providerName, model, fmt.Errorf("repair pass failed: %w (original error: %w)", err, perr))
			o.llmMs = time.Since(llmStart).Milliseconds()
			return o
		}
		rr.TokensUsed += resp2.TokensUsed
		content = resp2.Content
		result, perr = feedback.Parse(content)
		if perr != nil {
			o := failed(p, providerName, model, fmt.Errorf("response validation failed after repair: %w", perr))
			o.llmMs = time.Since(llmStart).Milliseconds()
			log.Warn().Err(perr).Msg("reviewer result invalid")
			return o
		}
		rr.Repaired = true
	}
	llmMs := time.Since(llmStart).Milliseconds()

	if e.cache != nil {
		if err := e.cache.Put(key, p.ID, content); err != nil {
			log.Warn().Err(err).Msg("writing cache entry")
		}
	}

	result.Truncate(e.cfg.MaxComments)
	rr.Result = result
	rr.DurationMs = time.Since(start).Milliseconds()
	log.Debug().
		Int("comments", len(result.SnippetFeedback)).
		Int("tokens", rr.TokensUsed).
		Msg("reviewer finished")
	return outcome{result: &rr, llmMs: llmMs}
}

// call streams when both the provider and the engine support it.
func (e *Engine) call(ctx context.Context, prov providers.Provider, persona string, req providers.Request) (providers.Response, error) {
	if s, ok := prov.(providers.Streamer); ok && e.sink != nil {
		return s.Stream(ctx, req, func(delta string) { e.sink(persona, delta) })
	}
	return prov.Complete(ctx, req)
}

func failed(p Persona, provider, model string, err error) outcome {
	f := failureOf(p, provider, model, err)
	return outcome{failure: &f}
}

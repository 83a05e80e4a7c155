package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/dshills/marginalia/internal/annotate"
	"github.com/dshills/marginalia/internal/document"
	"github.com/dshills/marginalia/internal/logging"
	"github.com/dshills/marginalia/internal/output"
	"github.com/dshills/marginalia/internal/providers"
	"github.com/dshills/marginalia/internal/review"
)

type reviewRequest struct {
	Text     string   `json:"text" validate:"required"`
	Name     string   `json:"name,omitempty"`
	Personas []string `json:"personas,omitempty"`
	Provider string   `json:"provider,omitempty"`
	Model    string   `json:"model,omitempty"`
}

type mergeReviewer struct {
	Reviewer    string                `json:"reviewer" validate:"required"`
	Annotations []annotate.Annotation `json:"annotations"`
}

type mergeRequest struct {
	Base      string          `json:"base" validate:"required"`
	Reviewers []mergeReviewer `json:"reviewers" validate:"dive"`
}

type mergeResponse struct {
	Regions  []annotate.Region    `json:"regions"`
	Dropped  []annotate.Unlocated `json:"dropped"`
	Segments []output.Segment     `json:"segments"`
}

type retryRequest struct {
	Report   *review.Report `json:"report" validate:"required"`
	Persona  string         `json:"persona" validate:"required"`
	Provider string         `json:"provider,omitempty"`
	Model    string         `json:"model,omitempty"`
}

type modelsResponse struct {
	Provider string            `json:"provider"`
	Models   []providers.Model `json:"models"`
}

// streamEvent is one line of the NDJSON review stream.
type streamEvent struct {
	Type    string         `json:"type"`
	Persona string         `json:"persona,omitempty"`
	Text    string         `json:"text,omitempty"`
	Report  *review.Report `json:"report,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// maxBody bounds request bodies. A JSON-encoded document can be several
// times larger than its text, and retry bodies carry the whole report.
func (s *Server) maxBody() int64 {
	return int64(s.opt.Config.MaxDocumentBytes)*6 + 1<<20
}

// engine returns an Engine for the per-request provider and model overrides.
func (s *Server) engine(provider, model string, opts ...review.Option) *review.Engine {
	cfg := s.opt.Config
	if provider != "" && provider != cfg.Provider {
		cfg.Provider = provider
		cfg.BaseURL = ""
		cfg.Model = ""
	}
	if model != "" {
		cfg.Model = model
	}
	base := []review.Option{review.WithVersion(s.opt.Version)}
	if s.opt.Cache != nil {
		base = append(base, review.WithCache(s.opt.Cache))
	}
	return review.NewEngine(cfg, s.opt.Factory, append(base, opts...)...)
}

func (s *Server) prepare(req reviewRequest) (document.Document, []review.Persona, error) {
	doc, err := document.Read(strings.NewReader(req.Text), req.Name, int64(s.opt.Config.MaxDocumentBytes))
	if err != nil {
		return document.Document{}, nil, err
	}
	ids := req.Personas
	if len(ids) == 0 {
		ids = s.opt.Config.Personas
	}
	personas, err := review.SelectPersonas(s.opt.Personas, ids)
	if err != nil {
		return document.Document{}, nil, badRequest("%v", err)
	}
	return doc, personas, nil
}

func (s *Server) listPersonas(http.ResponseWriter, *http.Request) (any, error) {
	return s.opt.Personas, nil
}

func (s *Server) listModels(_ http.ResponseWriter, r *http.Request) (any, error) {
	cfg := s.opt.Config
	provider := r.URL.Query().Get("provider")
	if provider == "" {
		provider = cfg.Provider
	}
	factory := s.opt.Factory
	if factory == nil {
		factory = review.DefaultFactory(cfg)
	}
	p, err := factory(provider, "")
	if err != nil {
		return nil, badRequest("%v", err)
	}
	lister, ok := p.(providers.ModelLister)
	if !ok {
		return nil, &apiError{status: http.StatusNotImplemented, msg: fmt.Sprintf("provider %s cannot list models", p.Name())}
	}
	models, err := lister.ListModels(r.Context())
	if err != nil {
		return nil, &apiError{status: http.StatusBadGateway, msg: err.Error()}
	}
	if models == nil {
		models = []providers.Model{}
	}
	return modelsResponse{Provider: p.Name(), Models: models}, nil
}

func (s *Server) review(w http.ResponseWriter, r *http.Request) (any, error) {
	req, err := decodeJSON[reviewRequest](w, r, s.maxBody())
	if err != nil {
		return nil, err
	}
	doc, personas, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	return s.engine(req.Provider, req.Model).Run(r.Context(), doc, personas)
}

func (s *Server) reviewStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[reviewRequest](w, r, s.maxBody())
	if err != nil {
		respondError(w, r, err)
		return
	}
	doc, personas, err := s.prepare(req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	ev := &eventWriter{enc: json.NewEncoder(w), rc: http.NewResponseController(w)}

	eng := s.engine(req.Provider, req.Model, review.WithStreamSink(func(persona, delta string) {
		ev.send(streamEvent{Type: "delta", Persona: persona, Text: delta})
	}))
	report, err := eng.Run(r.Context(), doc, personas)
	if err != nil {
		logging.C(r.Context()).Warn().Err(err).Msg("stream review aborted")
		ev.send(streamEvent{Type: "error", Error: err.Error()})
		return
	}
	ev.send(streamEvent{Type: "report", Report: report})
}

// eventWriter serializes NDJSON events from concurrent reviewers and flushes
// each one.
type eventWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
	rc  *http.ResponseController
}

func (e *eventWriter) send(ev streamEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(ev); err != nil {
		return
	}
	_ = e.rc.Flush()
}

func (s *Server) merge(w http.ResponseWriter, r *http.Request) (any, error) {
	req, err := decodeJSON[mergeRequest](w, r, s.maxBody())
	if err != nil {
		return nil, err
	}
	batches := make([]annotate.Batch, len(req.Reviewers))
	seen := make(map[string]bool, len(req.Reviewers))
	for i, rv := range req.Reviewers {
		if seen[rv.Reviewer] {
			return nil, badRequest("duplicate reviewer %q", rv.Reviewer)
		}
		seen[rv.Reviewer] = true
		batches[i] = annotate.Batch{Reviewer: annotate.ReviewerID(rv.Reviewer), Annotations: rv.Annotations}
	}
	spans, dropped := annotate.LocateSpans(req.Base, batches)
	regions := annotate.MergeSpans(spans)
	if err := annotate.Validate(regions); err != nil {
		return nil, fmt.Errorf("merge produced invalid regions: %w", err)
	}
	if dropped == nil {
		dropped = []annotate.Unlocated{}
	}
	return mergeResponse{
		Regions:  regions,
		Dropped:  dropped,
		Segments: output.Segments(req.Base, regions),
	}, nil
}

func (s *Server) retry(w http.ResponseWriter, r *http.Request) (any, error) {
	req, err := decodeJSON[retryRequest](w, r, s.maxBody())
	if err != nil {
		return nil, err
	}
	return s.engine(req.Provider, req.Model).Retry(r.Context(), req.Report, req.Persona)
}

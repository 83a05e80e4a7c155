package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dshills/marginalia/internal/annotate"
	"github.com/dshills/marginalia/internal/cache"
	"github.com/dshills/marginalia/internal/config"
	"github.com/dshills/marginalia/internal/document"
	"github.com/dshills/marginalia/internal/logging"
	"github.com/dshills/marginalia/internal/review"
)

// Service holds what the tool handlers share.
type Service struct {
	cfg      config.Config
	personas []review.Persona
	factory  review.Factory
	cache    *cache.Cache
	version  string
}

// Options configures a Service. Zero values fall back to the built-in
// personas and the config-driven provider factory.
type Options struct {
	Config   config.Config
	Personas []review.Persona
	Factory  review.Factory
	Cache    *cache.Cache
	Version  string
}

// NewService creates a Service.
func NewService(opt Options) *Service {
	if len(opt.Personas) == 0 {
		opt.Personas = review.DefaultPersonas()
	}
	return &Service{
		cfg:      opt.Config,
		personas: opt.Personas,
		factory:  opt.Factory,
		cache:    opt.Cache,
		version:  opt.Version,
	}
}

// LocateSnippet finds the first verbatim occurrence of a snippet.
func (s *Service) LocateSnippet(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input LocateSnippetInput,
) (*mcp.CallToolResult, LocateSnippetOutput, error) {
	start, end, ok := annotate.Locate(input.Base, input.Snippet)
	if !ok {
		return nil, LocateSnippetOutput{}, nil
	}
	rs, re := annotate.RuneOffsets(input.Base, start, end)
	return nil, LocateSnippetOutput{Found: true, Start: start, End: end, RuneStart: rs, RuneEnd: re}, nil
}

// MergeAnnotations merges reviewer annotations into non-overlapping regions.
func (s *Service) MergeAnnotations(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input MergeAnnotationsInput,
) (*mcp.CallToolResult, MergeAnnotationsOutput, error) {
	batches := make([]annotate.Batch, 0, len(input.Reviewers))
	seen := make(map[string]bool, len(input.Reviewers))
	for i, rv := range input.Reviewers {
		id := strings.TrimSpace(rv.Reviewer)
		if id == "" {
			return nil, MergeAnnotationsOutput{}, fmt.Errorf("reviewers[%d].reviewer is required", i)
		}
		if seen[id] {
			return nil, MergeAnnotationsOutput{}, fmt.Errorf("duplicate reviewer %q", id)
		}
		seen[id] = true
		batches = append(batches, annotate.Batch{Reviewer: annotate.ReviewerID(id), Annotations: rv.Annotations})
	}

	spans, dropped := annotate.LocateSpans(input.Base, batches)
	regions := annotate.MergeSpans(spans)
	if err := annotate.Validate(regions); err != nil {
		return nil, MergeAnnotationsOutput{}, fmt.Errorf("merge produced invalid regions: %w", err)
	}
	if dropped == nil {
		dropped = []annotate.Unlocated{}
	}
	return nil, MergeAnnotationsOutput{Regions: regions, Dropped: dropped}, nil
}

// ReviewDocument runs the selected personas against a document.
func (s *Service) ReviewDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ReviewDocumentInput,
) (*mcp.CallToolResult, ReviewDocumentOutput, error) {
	doc, err := document.Read(strings.NewReader(input.Text), input.Name, int64(s.cfg.MaxDocumentBytes))
	if err != nil {
		return nil, ReviewDocumentOutput{}, err
	}
	ids := input.Personas
	if len(ids) == 0 {
		ids = s.cfg.Personas
	}
	personas, err := review.SelectPersonas(s.personas, ids)
	if err != nil {
		return nil, ReviewDocumentOutput{}, err
	}

	cfg := s.cfg
	if input.Provider != "" && input.Provider != cfg.Provider {
		cfg.Provider = input.Provider
		cfg.BaseURL = ""
		cfg.Model = ""
	}
	if input.Model != "" {
		cfg.Model = input.Model
	}
	opts := []review.Option{review.WithVersion(s.version)}
	if s.cache != nil {
		opts = append(opts, review.WithCache(s.cache))
	}

	report, err := review.NewEngine(cfg, s.factory, opts...).Run(ctx, doc, personas)
	if err != nil {
		return nil, ReviewDocumentOutput{}, err
	}
	logging.C(ctx).Info().
		Str("run", report.RunID).
		Int("reviewers", len(report.Reviewers)).
		Int("failed", len(report.Failures)).
		Msg("mcp review done")
	return nil, ReviewDocumentOutput{Report: report}, nil
}

// ListPersonas returns the persona roster.
func (s *Service) ListPersonas(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ ListPersonasInput,
) (*mcp.CallToolResult, ListPersonasOutput, error) {
	return nil, ListPersonasOutput{Personas: s.personas}, nil
}

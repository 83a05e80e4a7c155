package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/marginalia/internal/annotate"
	"github.com/dshills/marginalia/internal/config"
	"github.com/dshills/marginalia/internal/providers"
)

type fakeProvider struct{}

func (fakeProvider) Name() string { return "fake" }

func (fakeProvider) Complete(context.Context, providers.Request) (providers.Response, error) {
	return providers.Response{Content: `{"scores":{"clarity":60,"tone":60,"alignment":60,"efficiency":60,"completeness":60},` +
		`"snippetFeedback":[{"snippet":"grew 10%","comment":"source?"}],"generalComments":["fine"]}`}, nil
}

func setupSession(t *testing.T) *mcp.ClientSession {
	t.Helper()

	cfg := config.Default()
	cfg.Provider = "fake"
	cfg.Cache.Enabled = false
	svc := NewService(Options{
		Config:  cfg,
		Version: "test",
		Factory: func(string, string) (providers.Provider, error) { return fakeProvider{}, nil },
	})
	server := NewServer(svc)

	st, ct := mcp.NewInMemoryTransports()
	ctx := context.Background()

	_, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool[T any](t *testing.T, session *mcp.ClientSession, name string, args any) T {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.False(t, result.IsError, "%s returned an error: %v", name, result.Content)
	require.NotNil(t, result.StructuredContent)

	raw, err := json.Marshal(result.StructuredContent)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestListTools(t *testing.T) {
	session := setupSession(t)
	result, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}
	sort.Strings(names)
	assert.Equal(t, []string{"list_personas", "locate_snippet", "merge_annotations", "review_document"}, names)
}

func TestLocateSnippet(t *testing.T) {
	session := setupSession(t)

	out := callTool[LocateSnippetOutput](t, session, "locate_snippet", LocateSnippetInput{
		Base:    "café au lait, café noir",
		Snippet: "au lait",
	})
	assert.True(t, out.Found)
	assert.Equal(t, 6, out.Start)
	assert.Equal(t, 13, out.End)
	assert.Equal(t, 5, out.RuneStart)
	assert.Equal(t, 12, out.RuneEnd)

	miss := callTool[LocateSnippetOutput](t, session, "locate_snippet", LocateSnippetInput{Base: "abc", Snippet: "ABC"})
	assert.False(t, miss.Found)
}

func TestMergeAnnotations(t *testing.T) {
	session := setupSession(t)

	out := callTool[MergeAnnotationsOutput](t, session, "merge_annotations", MergeAnnotationsInput{
		Base: "The quick brown fox jumps.",
		Reviewers: []ReviewerAnnotations{
			{Reviewer: "A", Annotations: []annotate.Annotation{{Snippet: "quick brown", Comment: "c1"}}},
			{Reviewer: "B", Annotations: []annotate.Annotation{
				{Snippet: "brown fox", Comment: "c2"},
				{Snippet: "lazy dog", Comment: "c3"},
			}},
		},
	})
	require.Len(t, out.Regions, 1)
	assert.Equal(t, 4, out.Regions[0].Start)
	assert.Equal(t, 19, out.Regions[0].End)
	assert.Equal(t, []annotate.ReviewerID{"A", "B"}, out.Regions[0].Reviewers)
	assert.Equal(t, []annotate.Comment{{Reviewer: "A", Text: "c1"}, {Reviewer: "B", Text: "c2"}}, out.Regions[0].Comments)
	require.Len(t, out.Dropped, 1)
	assert.Equal(t, "lazy dog", out.Dropped[0].Snippet)
}

func TestMergeAnnotations_MissingReviewer(t *testing.T) {
	session := setupSession(t)
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "merge_annotations",
		Arguments: MergeAnnotationsInput{
			Base:      "abc",
			Reviewers: []ReviewerAnnotations{{Reviewer: " ", Annotations: []annotate.Annotation{}}},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestMergeAnnotations_DuplicateReviewer(t *testing.T) {
	session := setupSession(t)
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "merge_annotations",
		Arguments: MergeAnnotationsInput{
			Base: "abc",
			Reviewers: []ReviewerAnnotations{
				{Reviewer: "A", Annotations: []annotate.Annotation{}},
				{Reviewer: " A ", Annotations: []annotate.Annotation{}},
			},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestReviewDocument(t *testing.T) {
	session := setupSession(t)

	out := callTool[ReviewDocumentOutput](t, session, "review_document", ReviewDocumentInput{
		Text:     "Revenue grew 10% this quarter.",
		Name:     "q3.md",
		Personas: []string{"skeptic", "editor"},
	})
	require.NotNil(t, out.Report)
	assert.Equal(t, "q3.md", out.Report.Document.Name)
	require.Len(t, out.Report.Reviewers, 2)
	assert.Equal(t, "editor", out.Report.Reviewers[0].Persona.ID)
	require.Len(t, out.Report.Regions, 1)
	assert.Equal(t, []annotate.ReviewerID{"editor", "skeptic"}, out.Report.Regions[0].Reviewers)
	assert.InDelta(t, 60.0, out.Report.Summary.Overall, 0.001)
}

func TestReviewDocument_UnknownPersona(t *testing.T) {
	session := setupSession(t)
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "review_document",
		Arguments: ReviewDocumentInput{Text: "hello", Personas: []string{"poet"}},
	})
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, fmt.Sprintf("unknown persona %q", "poet"))
}

func TestListPersonas(t *testing.T) {
	session := setupSession(t)
	out := callTool[ListPersonasOutput](t, session, "list_personas", ListPersonasInput{})
	require.Len(t, out.Personas, 4)
	assert.Equal(t, "editor", out.Personas[0].ID)
}

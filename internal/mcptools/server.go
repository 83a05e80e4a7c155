package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dshills/marginalia/internal/logging"
)

// NewServer creates an MCP server with every marginalia tool registered.
func NewServer(svc *Service) *mcp.Server {
	version := svc.version
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "marginalia",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "locate_snippet",
		Description: "Find the first exact occurrence of a snippet in a document. Returns byte and code point offsets, or found=false.",
	}, svc.LocateSnippet)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "merge_annotations",
		Description: "Locate every reviewer's snippets in a document and merge overlapping ones into non-overlapping regions carrying all their comments. Snippets that are not found are returned as dropped.",
	}, svc.MergeAnnotations)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "review_document",
		Description: "Review a document with several reviewer personas (editor, skeptic, target reader, stakeholder) using the configured model provider. Returns scores, comments and merged regions.",
	}, svc.ReviewDocument)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_personas",
		Description: "List the reviewer personas available to review_document.",
	}, svc.ListPersonas)

	return server
}

// Run serves the tools over stdio until ctx ends or the client disconnects.
func Run(ctx context.Context, svc *Service) error {
	logging.Named("mcp").Info().Msg("mcp server on stdio")
	return NewServer(svc).Run(ctx, &mcp.StdioTransport{})
}

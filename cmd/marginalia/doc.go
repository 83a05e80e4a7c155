// Marginalia reviews documents with several AI reviewer personas and merges
// their snippet comments into non-overlapping annotated regions.
//
// Usage:
//
//	marginalia review draft.md                 # review with every persona
//	marginalia review --persona editor,skeptic # review stdin with two personas
//	marginalia merge draft.md results.json     # merge saved reviewer results
//	marginalia serve                           # HTTP API on server.addr
//	marginalia mcp                             # MCP tools over stdio
//
// Exit codes: 0 success, 1 some reviewers failed, 2 usage, 3 auth, 4 runtime.
package main

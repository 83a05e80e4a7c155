// Package redact removes secrets from a document before it is sent to any
// model provider.
//
// Detection uses regex heuristics covering common secret shapes: API keys,
// JWTs, private keys, AWS credentials, bearer tokens, database connection
// strings and provider-specific tokens. The redacted text becomes the base
// document, so reviewer snippets quote the placeholder rather than the secret.
//
// [ShouldRedactPath] lets callers refuse whole files such as .env by name.
package redact

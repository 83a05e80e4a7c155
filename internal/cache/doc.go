// Package cache provides a file-based cache for raw model responses.
//
// Entries are keyed by a SHA-256 hash of everything that determines a
// response: provider, model, persona prompt, sampling settings and the
// redacted document. Each entry stores the raw response with a creation
// timestamp; entries older than the TTL are treated as misses and removed.
//
// Merge results are never cached; they are recomputed from reviewer results.
// The default directory is $XDG_CACHE_HOME/marginalia (or the OS equivalent).
package cache

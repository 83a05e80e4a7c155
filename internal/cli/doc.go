// Package cli wires together the Cobra command tree for the marginalia binary.
//
// It defines the root command and all subcommands (review, merge, serve, mcp,
// personas, models, config, cache, version), binds flags, reads
// configuration, invokes the review engine, and returns deterministic exit
// codes.
package cli

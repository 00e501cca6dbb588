// Package parser is the external-contract front end described in spec §4.3:
// given file contents, produce entities and relationships in the shared
// data-model shape. The core does not prescribe how parsing is done; it
// only requires deterministic output for a given (content, options) pair,
// partial per-file results on error, and respect for batch/caching options.
package parser

import (
	"context"

	"codegraph/internal/types"
)

// Options configures a parse batch.
type Options struct {
	BatchSize int
	UseCache  bool
}

// File is one input to a parse batch: its path and raw content.
type File struct {
	Path    string
	Content []byte
}

// Parser extracts entities and relationships from source files. A real
// front end backs this with tree-sitter (TreeSitterParser); when no parser
// is configured, the dev agent falls back to the Heuristic synthesizer.
type Parser interface {
	// ParseFiles parses files and returns one FileParseResult per input,
	// in the same order. Empty input yields empty output, never an error.
	ParseFiles(ctx context.Context, files []File, opts Options) []types.FileParseResult
	// SupportedExtensions lists the file extensions this parser recognizes.
	SupportedExtensions() []string
}

// cacheKey identifies a (path, content-hash) pair for the parse cache.
type cacheKey struct {
	path string
	hash string
}

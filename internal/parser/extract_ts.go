package parser

import (
	sitter "github.com/smacker/go-tree-sitter"

	"codegraph/internal/types"
)

// extractTSSymbols reuses the JS walk plus the interface_declaration case,
// mirroring the teacher's near-identical extractJSSymbols/extractTSSymbols
// pair (TypeScript is a superset grammar for the node types this engine
// cares about).
func extractTSSymbols(root *sitter.Node, path, content string) ([]types.Entity, []types.ParsedRelationship) {
	return extractJSLikeSymbols(root, path, content, "typescript")
}

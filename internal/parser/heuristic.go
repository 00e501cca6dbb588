package parser

import (
	"bufio"
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"codegraph/internal/types"
)

// Heuristic synthesizes an approximate entity/relationship set when no
// tree-sitter parser is configured (spec §4.3). It is explicitly marked
// (FileParseResult.Heuristic = true) so downstream consumers can discount
// confidence in the result.
//
// The canonical heuristic subset fixed here (spec §9's Open Question on a
// non-uniform heuristic relationship set): one file entity, one module
// entity per file, naming-derived class/function stubs recognized by a
// declaration keyword at line start, contains (file->module), defines_class
// / defines_function (module->top-level entity), has_method (class->method:
// for a Go-style `func (recv Type) Name(...)` declaration the receiver
// clause is a syntactic prefix before the method name and its type is
// matched directly, mirroring extract_go.go's real receiver resolution;
// for class-body languages without receiver syntax, indentation nesting
// under the last seen class is used instead), and uses (naming heuristic:
// any other known entity's name appearing as an identifier token elsewhere
// in the file). Nothing else; any construct outside that subset is left
// unindexed rather than guessed at.
type Heuristic struct{}

// NewHeuristic builds the fallback synthesizer.
func NewHeuristic() *Heuristic { return &Heuristic{} }

func (h *Heuristic) SupportedExtensions() []string {
	return []string{".ts", ".tsx", ".js", ".jsx", ".py", ".java", ".cpp", ".c", ".go", ".rs"}
}

func (h *Heuristic) ParseFiles(ctx context.Context, files []File, opts Options) []types.FileParseResult {
	if len(files) == 0 {
		return nil
	}
	out := make([]types.FileParseResult, len(files))
	for i, f := range files {
		select {
		case <-ctx.Done():
			out[i] = types.FileParseResult{FilePath: f.Path, Error: &types.ParseError{FilePath: f.Path, Message: ctx.Err().Error()}, Heuristic: true}
			continue
		default:
		}
		out[i] = h.parseOne(f)
	}
	return out
}

var declPattern = regexp.MustCompile(`^\s*(?:export\s+|public\s+|private\s+|func\s+|def\s+|class\s+|function\s+|interface\s+)*\b(class|interface|func|function|def)\s+([A-Za-z_][A-Za-z0-9_]*)`)
var goMethodPattern = regexp.MustCompile(`^\s*func\s*\(\s*[A-Za-z_]\w*\s+\*?([A-Za-z_]\w*)\s*\)\s*([A-Za-z_]\w*)\s*\(`)
var identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// decl is one declaration-line finding from the first pass.
type decl struct {
	name string
	typ  types.EntityType
	line int
}

func (h *Heuristic) parseOne(f File) types.FileParseResult {
	ext := strings.ToLower(filepath.Ext(f.Path))
	language := languageForExtension(ext)
	base := filepath.Base(f.Path)
	moduleName := strings.TrimSuffix(base, ext)

	file := types.Entity{Name: base, Type: types.EntityFile, FilePath: f.Path, Language: language, Metadata: map[string]any{"heuristic": true}}
	module := types.Entity{Name: moduleName, Type: types.EntityModule, FilePath: f.Path, Language: language, Metadata: map[string]any{"heuristic": true}}

	entities := []types.Entity{file, module}
	rels := []types.ParsedRelationship{{
		From: types.EntityRef{Name: file.Name, FilePath: f.Path, Type: types.EntityFile},
		To:   types.EntityRef{Name: module.Name, FilePath: f.Path, Type: types.EntityModule},
		Type: types.RelContains,
	}}

	lines := splitLines(f.Content)

	// First pass: recognize declarations line by line. Go-style receiver
	// methods are matched by the receiver clause prefixing the method name;
	// everything else falls back to the generic decl keyword, promoted to
	// a method when indented under the last seen class.
	var decls []decl
	var lastClass string
	for i, line := range lines {
		lineNo := i + 1

		if language == "go" {
			if m := goMethodPattern.FindStringSubmatch(line); m != nil {
				receiver, name := m[1], m[2]
				decls = append(decls, decl{name: name, typ: types.EntityMethod, line: lineNo})
				rels = append(rels, types.ParsedRelationship{
					From: types.EntityRef{Name: receiver, FilePath: f.Path, Type: types.EntityClass},
					To:   types.EntityRef{Name: name, FilePath: f.Path, Type: types.EntityMethod},
					Type: types.RelHasMethod,
				})
				continue
			}
		}

		m := declPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		kind, name := m[1], m[2]
		entType := types.EntityFunction
		defineRel := types.RelDefinesFunction
		switch kind {
		case "class":
			entType, defineRel = types.EntityClass, types.RelDefinesClass
			lastClass = name
		case "interface":
			entType, defineRel = types.EntityInterface, types.RelDefinesClass
			lastClass = name
		default:
			if lastClass != "" && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) {
				entType = types.EntityMethod
			}
		}
		decls = append(decls, decl{name: name, typ: entType, line: lineNo})

		if entType == types.EntityMethod && lastClass != "" {
			rels = append(rels, types.ParsedRelationship{
				From: types.EntityRef{Name: lastClass, FilePath: f.Path, Type: types.EntityClass},
				To:   types.EntityRef{Name: name, FilePath: f.Path, Type: types.EntityMethod},
				Type: types.RelHasMethod,
			})
		} else {
			rels = append(rels, types.ParsedRelationship{
				From: types.EntityRef{Name: module.Name, FilePath: f.Path, Type: types.EntityModule},
				To:   types.EntityRef{Name: name, FilePath: f.Path, Type: entType},
				Type: defineRel,
			})
		}
	}

	known := make(map[string]types.EntityType, len(decls))
	declAt := make(map[int]decl, len(decls))
	for _, d := range decls {
		known[d.name] = d.typ
		declAt[d.line] = d
		idx := d.line
		entities = append(entities, types.Entity{
			Name: d.name, Type: d.typ, FilePath: f.Path, Language: language,
			Location: types.Location{Start: types.Position{Line: d.line, Index: &idx}},
			Metadata: map[string]any{"heuristic": true, "signature": strings.TrimSpace(lines[d.line-1])},
		})
	}

	// Second pass: "uses" edges via the naming heuristic (spec's
	// Supplemented features): any other known entity's name occurring as
	// an identifier token is a use, attributed to whichever declaration is
	// in scope at that line (or the module, before the first declaration).
	scopeName, scopeType := module.Name, types.EntityModule
	seen := map[string]bool{}
	for i, line := range lines {
		lineNo := i + 1
		if d, ok := declAt[lineNo]; ok {
			scopeName, scopeType = d.name, d.typ
		}
		for _, tok := range identifierPattern.FindAllString(line, -1) {
			if tok == scopeName {
				continue
			}
			targetType, ok := known[tok]
			if !ok {
				continue
			}
			key := scopeName + "->" + tok
			if seen[key] {
				continue
			}
			seen[key] = true
			rels = append(rels, types.ParsedRelationship{
				From:     types.EntityRef{Name: scopeName, FilePath: f.Path, Type: scopeType},
				To:       types.EntityRef{Name: tok, FilePath: f.Path, Type: targetType},
				Type:     types.RelUses,
				Metadata: map[string]any{"heuristic": true, "naming": tok},
			})
		}
	}

	return types.FileParseResult{FilePath: f.Path, Entities: entities, Relationships: rels, Heuristic: true}
}

func splitLines(content []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func languageForExtension(ext string) string {
	switch ext {
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx":
		return "javascript"
	case ".py":
		return "python"
	case ".java":
		return "java"
	case ".cpp", ".cc", ".cxx":
		return "cpp"
	case ".c", ".h":
		return "c"
	case ".go":
		return "go"
	case ".rs":
		return "rust"
	default:
		return "unknown"
	}
}

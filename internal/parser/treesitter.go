package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"codegraph/internal/logging"
	"codegraph/internal/types"
)

// TreeSitterParser extracts entities and relationships from source files
// using tree-sitter grammars. One *sitter.Parser is kept per language since
// SetLanguage is not safe to call concurrently on a shared parser; Parse
// calls for different files of the same language serialize behind that
// language's mutex while different languages run in parallel.
type TreeSitterParser struct {
	languages map[string]*languageParser

	cacheMu sync.Mutex
	cache   map[cacheKey]types.FileParseResult
}

type languageParser struct {
	mu       sync.Mutex
	parser   *sitter.Parser
	language *sitter.Language
	extract  func(root *sitter.Node, path, content string) ([]types.Entity, []types.ParsedRelationship)
}

// NewTreeSitterParser builds a parser covering the languages the default
// configuration enables: Go, JavaScript, TypeScript, Python (spec.md's
// treeSitter.languageConfigs set, minus Rust — see DESIGN.md for why the
// rust grammar is not wired in by default).
func NewTreeSitterParser() *TreeSitterParser {
	p := &TreeSitterParser{
		languages: make(map[string]*languageParser),
		cache:     make(map[cacheKey]types.FileParseResult),
	}
	p.register("go", golang.GetLanguage(), extractGoSymbols)
	p.register("javascript", javascript.GetLanguage(), extractJSSymbols)
	p.register("typescript", typescript.GetLanguage(), extractTSSymbols)
	p.register("python", python.GetLanguage(), extractPythonSymbols)
	return p
}

func (p *TreeSitterParser) register(name string, lang *sitter.Language, extract func(*sitter.Node, string, string) ([]types.Entity, []types.ParsedRelationship)) {
	sp := sitter.NewParser()
	sp.SetLanguage(lang)
	p.languages[name] = &languageParser{parser: sp, language: lang, extract: extract}
}

// Close releases every language parser's native resources.
func (p *TreeSitterParser) Close() {
	for _, lp := range p.languages {
		lp.parser.Close()
	}
}

var extensionToLanguage = map[string]string{
	".go":  "go",
	".js":  "javascript",
	".jsx": "javascript",
	".ts":  "typescript",
	".tsx": "typescript",
	".py":  "python",
}

// SupportedExtensions lists every extension with a registered grammar.
func (p *TreeSitterParser) SupportedExtensions() []string {
	exts := make([]string, 0, len(extensionToLanguage))
	for ext, lang := range extensionToLanguage {
		if _, ok := p.languages[lang]; ok {
			exts = append(exts, ext)
		}
	}
	return exts
}

// ParseFiles implements Parser. Each file gets a per-file timeout (spec
// §5: "Parse batches have a per-file timeout (default 5s)"); a file that
// times out or errors yields a partial result with its error attached
// rather than aborting the batch.
func (p *TreeSitterParser) ParseFiles(ctx context.Context, files []File, opts Options) []types.FileParseResult {
	if len(files) == 0 {
		return nil
	}
	results := make([]types.FileParseResult, len(files))
	for i, f := range files {
		results[i] = p.parseOne(ctx, f, opts)
	}
	return results
}

func (p *TreeSitterParser) parseOne(ctx context.Context, f File, opts Options) types.FileParseResult {
	hash := contentHash(f.Content)
	key := cacheKey{path: f.Path, hash: hash}

	if opts.UseCache {
		p.cacheMu.Lock()
		cached, ok := p.cache[key]
		p.cacheMu.Unlock()
		if ok {
			return cached
		}
	}

	lang, ok := extensionToLanguage[strings.ToLower(filepath.Ext(f.Path))]
	if !ok {
		return types.FileParseResult{FilePath: f.Path, Error: &types.ParseError{FilePath: f.Path, Message: "unsupported language"}}
	}
	lp, ok := p.languages[lang]
	if !ok {
		return types.FileParseResult{FilePath: f.Path, Error: &types.ParseError{FilePath: f.Path, Message: "grammar not registered: " + lang}}
	}

	parseCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	log := logging.Get(logging.Parser)
	timer := logging.StartTimer(logging.Parser, "parseOne:"+f.Path)
	defer timer.Stop()

	lp.mu.Lock()
	tree, err := lp.parser.ParseCtx(parseCtx, nil, f.Content)
	lp.mu.Unlock()
	if err != nil {
		log.Warn("parse failed", map[string]any{"path": f.Path, "error": err.Error()})
		return types.FileParseResult{FilePath: f.Path, Error: &types.ParseError{FilePath: f.Path, Message: err.Error()}}
	}
	defer tree.Close()

	entities, rels := lp.extract(tree.RootNode(), f.Path, string(f.Content))
	for i := range entities {
		entities[i].Language = lang
	}

	result := types.FileParseResult{FilePath: f.Path, Entities: entities, Relationships: rels}

	if opts.UseCache {
		p.cacheMu.Lock()
		p.cache[key] = result
		p.cacheMu.Unlock()
	}
	return result
}

func contentHash(content []byte) string {
	// FNV-ish cheap hash: the store package computes the durable content
	// hash at upsert time from identifying fields; this is only a parse
	// cache key, so collision resistance requirements are much lower.
	var h uint64 = 1469598103934665603
	for _, b := range content {
		h ^= uint64(b)
		h *= 1099511628211
	}
	return fmt.Sprintf("%x", h)
}

func nodeText(n *sitter.Node, content string) string {
	if n == nil {
		return ""
	}
	return n.Content([]byte(content))
}

func isExportedGoName(name string) bool {
	return len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z'
}

func loc(n *sitter.Node) types.Location {
	start := n.StartPoint()
	end := n.EndPoint()
	startIdx := int(n.StartByte())
	endIdx := int(n.EndByte())
	return types.Location{
		Start: types.Position{Line: int(start.Row) + 1, Column: int(start.Column), Index: &startIdx},
		End:   types.Position{Line: int(end.Row) + 1, Column: int(end.Column), Index: &endIdx},
	}
}

func fileEntity(path, language string) types.Entity {
	return types.Entity{
		Name:     filepath.Base(path),
		Type:     types.EntityFile,
		FilePath: path,
		Language: language,
		Location: types.Location{},
	}
}

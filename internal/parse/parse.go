// Package parse runs the tree-sitter grammars registered in package lang over
// a single source file and collects its symbols, imports and call sites.
package parse

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/acp/internal/lang"
	"github.com/phobologic/acp/internal/symbols"
)

// ErrUnsupportedLanguage is returned for files no extractor claims.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// FileResult is the extraction output for one file.
type FileResult struct {
	Path      string
	Language  string
	Symbols   []symbols.Symbol
	Imports   []symbols.Import
	Calls     []symbols.FunctionCall
	ModuleDoc string
	// HasErrors reports a syntax tree containing ERROR nodes. Extraction is
	// best-effort in that case and never fails.
	HasErrors bool
}

// Parsers caches one tree-sitter parser per grammar.
// A Parsers value is not safe for concurrent use; each worker owns one.
type Parsers struct {
	byGrammar map[*sitter.Language]*sitter.Parser
}

// NewParsers returns an empty parser cache.
func NewParsers() *Parsers {
	return &Parsers{byGrammar: make(map[*sitter.Language]*sitter.Parser)}
}

func (p *Parsers) get(l *lang.Language, ext string) *sitter.Parser {
	grammar := l.GrammarFor(ext)
	if parser, ok := p.byGrammar[grammar]; ok {
		return parser
	}
	parser := l.NewParser(ext)
	p.byGrammar[grammar] = parser
	return parser
}

// Close releases the cached parsers.
func (p *Parsers) Close() {
	for g, parser := range p.byGrammar {
		parser.Close()
		delete(p.byGrammar, g)
	}
}

// File parses source and extracts everything the language extractor offers.
// path selects the language by extension and is recorded verbatim.
func File(ctx context.Context, parsers *Parsers, path string, source []byte) (*FileResult, error) {
	ext := filepath.Ext(path)
	name := lang.ForExtension(ext)
	l, ok := lang.Languages[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedLanguage)
	}

	result := &FileResult{Path: path, Language: name}
	if len(source) == 0 {
		return result, nil
	}

	if parsers == nil {
		parsers = NewParsers()
		defer parsers.Close()
	}
	tree, err := parsers.get(l, ext).ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	result.HasErrors = root.HasError()
	result.Symbols = l.Extractor.ExtractSymbols(root, source)
	symbols.EnsureUniqueQualifiedNames(result.Symbols)
	result.Imports = l.Extractor.ExtractImports(root, source)
	result.Calls = l.Extractor.ExtractCalls(root, source, "")
	result.ModuleDoc = lang.ModuleDoc(l, root, source)
	return result, nil
}

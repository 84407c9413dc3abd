// Package lang provides the language registry mapping file extensions to
// tree-sitter grammars and the extractor that turns their syntax trees into
// normalized symbols, imports and call sites.
package lang

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/acp/internal/symbols"
)

// Unknown is the language name reported for unsupported extensions.
const Unknown = "unknown"

var whitespaceRe = regexp.MustCompile(`\s+`)

// Extractor turns a parsed syntax tree into the normalized symbol model.
// Implementations are stateless and safe to share across goroutines.
type Extractor interface {
	// Extensions lists the file extensions the extractor claims.
	Extensions() []string
	// ExtractSymbols returns symbols in source order (depth-first pre-order).
	ExtractSymbols(root *sitter.Node, source []byte) []symbols.Symbol
	ExtractImports(root *sitter.Node, source []byte) []symbols.Import
	// ExtractCalls returns call sites. enclosing seeds the caller used for
	// calls outside any function; empty means the language sentinel.
	ExtractCalls(root *sitter.Node, source []byte, enclosing string) []symbols.FunctionCall
	// ExtractDocComment returns the raw native doc comment of a declaration node.
	ExtractDocComment(node *sitter.Node, source []byte) string
}

// Language holds tree-sitter configuration for a supported language.
type Language struct {
	Name       string
	Extensions []string
	Extractor  Extractor

	lang *sitter.Language
	// grammars overrides the grammar per extension (.tsx uses the tsx grammar).
	grammars map[string]*sitter.Language
}

// GetLanguage returns the default tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// GrammarFor returns the grammar used for files with the given extension.
func (l *Language) GrammarFor(ext string) *sitter.Language {
	if g, ok := l.grammars[strings.ToLower(ext)]; ok {
		return g
	}
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for the given extension.
// Each goroutine must use its own parser (not thread-safe).
func (l *Language) NewParser(ext string) *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.GrammarFor(ext))
	return p
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

func register(l *Language) {
	if l.Extractor != nil && len(l.Extensions) == 0 {
		l.Extensions = l.Extractor.Extensions()
	}
	Languages[l.Name] = l
}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language name for a file extension, or Unknown.
func ForExtension(ext string) string {
	if name, ok := getExtensionMap()[strings.ToLower(ext)]; ok {
		return name
	}
	return Unknown
}

// Names returns the registered language names, sorted.
func Names() []string {
	names := make([]string, 0, len(Languages))
	for name := range Languages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func startLine(node *sitter.Node) int {
	return int(node.StartPoint().Row) + 1
}

func endLine(node *sitter.Node) int {
	end := int(node.EndPoint().Row) + 1
	// A node ending at column 0 stops at the previous line's newline.
	if node.EndPoint().Column == 0 && end > startLine(node) {
		end--
	}
	return end
}

func fieldText(node *sitter.Node, field string, source []byte) string {
	return NodeText(node.ChildByFieldName(field), source)
}

// firstChildOfType returns the first direct child with one of the given types.
func firstChildOfType(node *sitter.Node, types ...string) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		for _, t := range types {
			if child.Type() == t {
				return child
			}
		}
	}
	return nil
}

// firstDescendantOfType does a pre-order search for the first node of a type.
func firstDescendantOfType(node *sitter.Node, types ...string) *sitter.Node {
	if node == nil {
		return nil
	}
	for _, t := range types {
		if node.Type() == t {
			return node
		}
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if found := firstDescendantOfType(node.NamedChild(i), types...); found != nil {
			return found
		}
	}
	return nil
}

func hasChildType(node *sitter.Node, t string) bool {
	return firstChildOfType(node, t) != nil
}

// rightmostIdentifier returns the last identifier-like segment of a callee
// expression: "a.b.c" -> "c", "pkg::name" -> "name".
func rightmostIdentifier(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '('); i > 0 {
		text = text[:i]
	}
	text = stripAngleGroups(text)
	if i := strings.IndexByte(text, '['); i > 0 {
		text = text[:i]
	}
	for _, sep := range []string{"::", ".", "->"} {
		if i := strings.LastIndex(text, sep); i >= 0 {
			text = text[i+len(sep):]
		}
	}
	return strings.TrimSpace(text)
}

// stripAngleGroups removes generic argument groups: "Vec::<u8>::new" -> "Vec::::new".
func stripAngleGroups(text string) string {
	if !strings.Contains(text, "<") {
		return text
	}
	var b strings.Builder
	depth := 0
	for i := 0; i < len(text); i++ {
		switch {
		case text[i] == '<':
			depth++
		case text[i] == '>' && depth > 0 && (i == 0 || text[i-1] != '-'):
			depth--
		case depth == 0:
			b.WriteByte(text[i])
		}
	}
	return b.String()
}

// callStack tracks the innermost enclosing function during call extraction.
type callStack struct {
	names    []string
	sentinel string
}

func (s *callStack) push(name string) { s.names = append(s.names, name) }
func (s *callStack) pop()             { s.names = s.names[:len(s.names)-1] }

func (s *callStack) top() string {
	if len(s.names) == 0 {
		return s.sentinel
	}
	return s.names[len(s.names)-1]
}

// headerText returns the declaration text up to its body, whitespace
// collapsed: "pub fn run(x: i32) -> bool" for a Rust function item.
func headerText(node *sitter.Node, source []byte) string {
	body := node.ChildByFieldName("body")
	if body == nil {
		return strings.TrimSuffix(CollapseWhitespace(NodeText(node, source)), ";")
	}
	return CollapseWhitespace(string(source[node.StartByte():body.StartByte()]))
}

// typeAnnotationText strips the leading ':' of a TypeScript type annotation.
func typeAnnotationText(node *sitter.Node, source []byte) string {
	text := CollapseWhitespace(NodeText(node, source))
	return strings.TrimSpace(strings.TrimPrefix(text, ":"))
}

package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// moduleDocTags mark a leading /** */ block as file documentation rather
// than the doc of the first declaration.
var moduleDocTags = []string{"@module", "@fileoverview", "@file", "@packageDocumentation"}

// ModuleDoc returns the file-level documentation of a parsed file: the Python
// module docstring, Rust //! lines, the Go package comment, the Javadoc on a
// Java package declaration or a tagged leading JSDoc block.
func ModuleDoc(l *Language, root *sitter.Node, source []byte) string {
	if l == nil || root == nil {
		return ""
	}
	switch l.Extractor.(type) {
	case pythonExtractor, rustExtractor:
		return l.Extractor.ExtractDocComment(root, source)
	case goExtractor:
		if pc := firstChildOfType(root, "package_clause"); pc != nil {
			return l.Extractor.ExtractDocComment(pc, source)
		}
	case javaExtractor:
		if pd := firstChildOfType(root, "package_declaration"); pd != nil {
			return l.Extractor.ExtractDocComment(pd, source)
		}
	case ecmaExtractor:
		for i := 0; i < int(root.NamedChildCount()); i++ {
			child := root.NamedChild(i)
			if child.Type() != "comment" {
				return ""
			}
			text := NodeText(child, source)
			if !strings.HasPrefix(text, "/**") {
				continue
			}
			for _, tag := range moduleDocTags {
				if strings.Contains(text, tag) {
					return text
				}
			}
		}
	}
	return ""
}

package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

func init() {
	register(&Language{
		Name: "typescript",
		Extractor: ecmaExtractor{
			extensions: []string{".ts", ".tsx"},
		},
		lang: typescript.GetLanguage(),
		grammars: map[string]*sitter.Language{
			".tsx": tsx.GetLanguage(),
		},
	})
}

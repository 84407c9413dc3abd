package lang

import (
	"github.com/smacker/go-tree-sitter/javascript"
)

func init() {
	register(&Language{
		Name: "javascript",
		Extractor: ecmaExtractor{
			extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		},
		lang: javascript.GetLanguage(),
	})
}

package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/phobologic/acp/internal/symbols"
)

func init() {
	register(&Language{
		Name:      "java",
		Extractor: javaExtractor{},
		lang:      java.GetLanguage(),
	})
}

type javaExtractor struct{}

func (javaExtractor) Extensions() []string { return []string{".java"} }

func (e javaExtractor) ExtractSymbols(root *sitter.Node, source []byte) []symbols.Symbol {
	var out []symbols.Symbol
	for i := 0; i < int(root.NamedChildCount()); i++ {
		e.declaration(root.NamedChild(i), "", false, source, &out)
	}
	return out
}

// declaration handles type declarations at any nesting depth. inInterface
// marks members of an interface, which are implicitly public.
func (e javaExtractor) declaration(node *sitter.Node, parent string, inInterface bool, source []byte, out *[]symbols.Symbol) {
	switch node.Type() {
	case "class_declaration", "record_declaration":
		sym := e.symbol(node, symbols.Class, parent, inInterface, source)
		*out = append(*out, sym)
		if params := node.ChildByFieldName("parameters"); params != nil {
			// Record components become fields.
			for _, p := range javaParameters(params, source) {
				*out = append(*out, symbols.Symbol{
					Name:          p.Name,
					QualifiedName: symbols.QualifiedName(sym.QualifiedName, p.Name, "."),
					Kind:          symbols.Field,
					Visibility:    symbols.Private,
					StartLine:     sym.StartLine,
					EndLine:       sym.StartLine,
					Parent:        sym.QualifiedName,
					ReturnType:    p.Type,
					Signature:     p.Type + " " + p.Name,
				})
			}
		}
		e.body(node.ChildByFieldName("body"), sym.QualifiedName, false, source, out)
	case "interface_declaration", "annotation_type_declaration":
		sym := e.symbol(node, symbols.Interface, parent, inInterface, source)
		*out = append(*out, sym)
		e.body(node.ChildByFieldName("body"), sym.QualifiedName, true, source, out)
	case "enum_declaration":
		sym := e.symbol(node, symbols.Enum, parent, inInterface, source)
		*out = append(*out, sym)
		body := node.ChildByFieldName("body")
		if body == nil {
			return
		}
		for i := 0; i < int(body.NamedChildCount()); i++ {
			child := body.NamedChild(i)
			switch child.Type() {
			case "enum_constant":
				v := e.symbol(child, symbols.EnumVariant, sym.QualifiedName, false, source)
				v.Visibility = symbols.Public
				v.Exported = sym.Exported
				v.IsStatic = true
				v.Signature = CollapseWhitespace(fieldText(child, "name", source) + NodeText(child.ChildByFieldName("arguments"), source))
				*out = append(*out, v)
			case "enum_body_declarations":
				e.body(child, sym.QualifiedName, false, source, out)
			}
		}
	case "method_declaration", "constructor_declaration", "compact_constructor_declaration", "annotation_type_element_declaration":
		sym := e.symbol(node, symbols.Method, parent, inInterface, source)
		sym.Parameters = javaParameters(node.ChildByFieldName("parameters"), source)
		sym.ReturnType = CollapseWhitespace(fieldText(node, "type", source))
		*out = append(*out, sym)
	case "field_declaration", "constant_declaration":
		typeText := CollapseWhitespace(fieldText(node, "type", source))
		for i := 0; i < int(node.ChildCount()); i++ {
			if node.FieldNameForChild(i) != "declarator" {
				continue
			}
			decl := node.Child(i)
			sym := e.symbol(node, symbols.Field, parent, inInterface, source)
			sym.Name = fieldText(decl, "name", source)
			sym.QualifiedName = symbols.QualifiedName(parent, sym.Name, ".")
			sym.ReturnType = typeText
			sym.Signature = strings.TrimSpace(javaModifierKeywords(node, source) + " " + typeText + " " + sym.Name)
			if sym.IsStatic && strings.Contains(javaModifierKeywords(node, source), "final") && isUpperSnake(sym.Name) {
				sym.Kind = symbols.Constant
			}
			*out = append(*out, sym)
		}
	}
}

func (e javaExtractor) body(body *sitter.Node, parent string, inInterface bool, source []byte, out *[]symbols.Symbol) {
	if body == nil {
		return
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		e.declaration(body.NamedChild(i), parent, inInterface, source, out)
	}
}

func (e javaExtractor) symbol(node *sitter.Node, kind symbols.Kind, parent string, inInterface bool, source []byte) symbols.Symbol {
	name := fieldText(node, "name", source)
	mods := javaModifierKeywords(node, source)
	vis := javaVisibility(mods, inInterface)
	sym := symbols.Symbol{
		Name:          name,
		QualifiedName: symbols.QualifiedName(parent, name, "."),
		Kind:          kind,
		Visibility:    vis,
		Exported:      vis == symbols.Public,
		StartLine:     startLine(node),
		EndLine:       endLine(node),
		Parent:        parent,
		Signature:     javaSignature(node, source),
		DocComment:    e.ExtractDocComment(node, source),
		IsStatic:      javaHasKeyword(mods, "static") || (inInterface && kind == symbols.Field),
	}
	if tp := node.ChildByFieldName("type_parameters"); tp != nil {
		sym.Generics = splitTypeList(NodeText(tp, source))
	}
	return sym
}

func (javaExtractor) ExtractImports(root *sitter.Node, source []byte) []symbols.Import {
	var out []symbols.Import
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		if n.Type() != "import_declaration" {
			continue
		}
		pathNode := firstChildOfType(n, "scoped_identifier", "identifier")
		path := NodeText(pathNode, source)
		imp := symbols.Import{Line: startLine(n)}
		if hasChildType(n, "asterisk") {
			imp.Source = path
			imp.IsNamespace = true
			imp.Names = []symbols.ImportedName{{Name: "*"}}
		} else if j := strings.LastIndex(path, "."); j >= 0 {
			imp.Source = path[:j]
			imp.Names = []symbols.ImportedName{{Name: path[j+1:]}}
		} else {
			imp.Source = path
			imp.Names = []symbols.ImportedName{{Name: path}}
		}
		out = append(out, imp)
	}
	return out
}

func (javaExtractor) ExtractCalls(root *sitter.Node, source []byte, enclosing string) []symbols.FunctionCall {
	stack := &callStack{sentinel: symbols.ClassSentinel}
	if enclosing != "" {
		stack.sentinel = enclosing
	}
	var classes []string
	var out []symbols.FunctionCall
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		pushedFn, pushedClass := false, false
		switch n.Type() {
		case "class_declaration", "record_declaration", "interface_declaration", "enum_declaration":
			parent := ""
			if len(classes) > 0 {
				parent = classes[len(classes)-1]
			}
			classes = append(classes, symbols.QualifiedName(parent, fieldText(n, "name", source), "."))
			pushedClass = true
		case "method_declaration", "constructor_declaration":
			parent := ""
			if len(classes) > 0 {
				parent = classes[len(classes)-1]
			}
			stack.push(symbols.QualifiedName(parent, fieldText(n, "name", source), "."))
			pushedFn = true
		case "method_invocation":
			call := symbols.FunctionCall{
				Caller: stack.top(),
				Callee: fieldText(n, "name", source),
				Line:   startLine(n),
			}
			if obj := n.ChildByFieldName("object"); obj != nil {
				call.Receiver = CollapseWhitespace(NodeText(obj, source))
				call.IsMethod = true
			}
			if call.Callee != "" {
				out = append(out, call)
			}
		case "object_creation_expression":
			if callee := rightmostIdentifier(fieldText(n, "type", source)); callee != "" {
				out = append(out, symbols.FunctionCall{Caller: stack.top(), Callee: callee, Line: startLine(n)})
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
		if pushedFn {
			stack.pop()
		}
		if pushedClass {
			classes = classes[:len(classes)-1]
		}
	}
	walk(root)
	return out
}

// ExtractDocComment returns the Javadoc block above a declaration.
func (javaExtractor) ExtractDocComment(node *sitter.Node, source []byte) string {
	return blockDocAbove(node, source)
}

// javaModifierKeywords returns the keyword modifiers of a declaration,
// without annotations: "public static final".
func javaModifierKeywords(node *sitter.Node, source []byte) string {
	mods := firstChildOfType(node, "modifiers")
	if mods == nil {
		return ""
	}
	var words []string
	for i := 0; i < int(mods.ChildCount()); i++ {
		child := mods.Child(i)
		switch child.Type() {
		case "marker_annotation", "annotation":
			continue
		}
		words = append(words, NodeText(child, source))
	}
	return strings.Join(words, " ")
}

func javaHasKeyword(mods, keyword string) bool {
	for _, w := range strings.Fields(mods) {
		if w == keyword {
			return true
		}
	}
	return false
}

func javaVisibility(mods string, inInterface bool) symbols.Visibility {
	switch {
	case javaHasKeyword(mods, "public"):
		return symbols.Public
	case javaHasKeyword(mods, "private"):
		return symbols.Private
	case javaHasKeyword(mods, "protected"):
		return symbols.Protected
	case inInterface:
		return symbols.Public
	}
	return symbols.Internal
}

// javaSignature renders a declaration header with keyword modifiers only.
func javaSignature(node *sitter.Node, source []byte) string {
	start := node.StartByte()
	prefix := ""
	if mods := firstChildOfType(node, "modifiers"); mods != nil {
		prefix = javaModifierKeywords(node, source)
		start = mods.EndByte()
	}
	end := node.EndByte()
	if body := node.ChildByFieldName("body"); body != nil {
		end = body.StartByte()
	}
	if start > end {
		start = end
	}
	rest := strings.TrimSuffix(CollapseWhitespace(string(source[start:end])), ";")
	return strings.TrimSpace(prefix + " " + rest)
}

func javaParameters(list *sitter.Node, source []byte) []symbols.Parameter {
	if list == nil {
		return nil
	}
	var params []symbols.Parameter
	for i := 0; i < int(list.NamedChildCount()); i++ {
		p := list.NamedChild(i)
		switch p.Type() {
		case "formal_parameter":
			params = append(params, symbols.Parameter{
				Name: fieldText(p, "name", source),
				Type: CollapseWhitespace(fieldText(p, "type", source)),
			})
		case "spread_parameter":
			var typeText, name string
			for j := 0; j < int(p.NamedChildCount()); j++ {
				child := p.NamedChild(j)
				switch child.Type() {
				case "variable_declarator":
					name = fieldText(child, "name", source)
				case "modifiers":
				default:
					if typeText == "" {
						typeText = CollapseWhitespace(NodeText(child, source))
					}
				}
			}
			params = append(params, symbols.Parameter{Name: name, Type: typeText, IsRest: true})
		}
	}
	return params
}

package lang

import (
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/phobologic/acp/internal/symbols"
)

func init() {
	register(&Language{
		Name:      "go",
		Extractor: goExtractor{},
		lang:      golang.GetLanguage(),
	})
}

type goExtractor struct{}

func (goExtractor) Extensions() []string { return []string{".go"} }

func (e goExtractor) ExtractSymbols(root *sitter.Node, source []byte) []symbols.Symbol {
	var out []symbols.Symbol
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		switch node.Type() {
		case "function_declaration":
			out = append(out, e.function(node, source))
		case "method_declaration":
			out = append(out, e.method(node, source))
		case "type_declaration":
			out = append(out, e.typeDeclaration(node, source)...)
		case "const_declaration":
			out = append(out, e.valueDeclaration(node, source, symbols.Constant, "const_spec")...)
		case "var_declaration":
			out = append(out, e.valueDeclaration(node, source, symbols.Variable, "var_spec")...)
		}
	}
	return out
}

func (e goExtractor) function(node *sitter.Node, source []byte) symbols.Symbol {
	name := fieldText(node, "name", source)
	sym := goSymbol(name, symbols.Function, node)
	sym.QualifiedName = name
	sym.Parameters = goParameters(node.ChildByFieldName("parameters"), source)
	sym.ReturnType = CollapseWhitespace(fieldText(node, "result", source))
	sym.Generics = goTypeParameters(node.ChildByFieldName("type_parameters"), source)
	sym.Signature = goExtractSignature(node, source)
	sym.DocComment = e.ExtractDocComment(node, source)
	return sym
}

func (e goExtractor) method(node *sitter.Node, source []byte) symbols.Symbol {
	name := fieldText(node, "name", source)
	recv := goFindReceiverType(node, source)
	sym := goSymbol(name, symbols.Method, node)
	sym.Parent = recv
	sym.QualifiedName = symbols.QualifiedName(recv, name, ".")
	sym.Parameters = goParameters(node.ChildByFieldName("parameters"), source)
	sym.ReturnType = CollapseWhitespace(fieldText(node, "result", source))
	sym.Signature = goExtractSignature(node, source)
	sym.DocComment = e.ExtractDocComment(node, source)
	return sym
}

func (e goExtractor) typeDeclaration(decl *sitter.Node, source []byte) []symbols.Symbol {
	var specs []*sitter.Node
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		child := decl.NamedChild(i)
		if child.Type() == "type_spec" || child.Type() == "type_alias" {
			specs = append(specs, child)
		}
	}

	var out []symbols.Symbol
	for _, spec := range specs {
		name := fieldText(spec, "name", source)
		if name == "" {
			continue
		}
		typeNode := spec.ChildByFieldName("type")

		kind := symbols.TypeAlias
		if typeNode != nil && spec.Type() == "type_spec" {
			switch typeNode.Type() {
			case "struct_type":
				kind = symbols.Struct
			case "interface_type":
				kind = symbols.Interface
			}
		}

		// Grouped specs carry their own doc; a lone spec takes the declaration's.
		docNode := spec
		anchor := spec
		if len(specs) == 1 {
			docNode = decl
			anchor = decl
		}

		sym := goSymbol(name, kind, anchor)
		sym.QualifiedName = name
		sym.Generics = goTypeParameters(spec.ChildByFieldName("type_parameters"), source)
		sym.Signature = "type " + name
		if typeNode != nil && kind == symbols.TypeAlias {
			sym.Signature += " " + CollapseWhitespace(NodeText(typeNode, source))
		}
		sym.DocComment = e.ExtractDocComment(docNode, source)
		out = append(out, sym)

		switch kind {
		case symbols.Struct:
			out = append(out, e.structFields(typeNode, name, source)...)
		case symbols.Interface:
			out = append(out, e.interfaceMethods(typeNode, name, source)...)
		}
	}
	return out
}

func (e goExtractor) structFields(structType *sitter.Node, parent string, source []byte) []symbols.Symbol {
	list := firstChildOfType(structType, "field_declaration_list")
	if list == nil {
		return nil
	}
	var out []symbols.Symbol
	for i := 0; i < int(list.NamedChildCount()); i++ {
		field := list.NamedChild(i)
		if field.Type() != "field_declaration" {
			continue
		}
		typeText := CollapseWhitespace(fieldText(field, "type", source))
		names := childrenByField(field, "name", source)
		if len(names) == 0 {
			// Embedded field: the type name doubles as the field name.
			embedded := strings.TrimPrefix(typeText, "*")
			if i := strings.LastIndex(embedded, "."); i >= 0 {
				embedded = embedded[i+1:]
			}
			if j := strings.Index(embedded, "["); j > 0 {
				embedded = embedded[:j]
			}
			names = []string{embedded}
		}
		for _, name := range names {
			if name == "" {
				continue
			}
			sym := goSymbol(name, symbols.Field, field)
			sym.Parent = parent
			sym.QualifiedName = symbols.QualifiedName(parent, name, ".")
			sym.Signature = name + " " + typeText
			sym.ReturnType = typeText
			sym.DocComment = e.ExtractDocComment(field, source)
			out = append(out, sym)
		}
	}
	return out
}

func (e goExtractor) interfaceMethods(ifaceType *sitter.Node, parent string, source []byte) []symbols.Symbol {
	var out []symbols.Symbol
	for i := 0; i < int(ifaceType.NamedChildCount()); i++ {
		m := ifaceType.NamedChild(i)
		if m.Type() != "method_spec" && m.Type() != "method_elem" {
			continue
		}
		name := fieldText(m, "name", source)
		if name == "" {
			continue
		}
		sym := goSymbol(name, symbols.Method, m)
		sym.Parent = parent
		sym.QualifiedName = symbols.QualifiedName(parent, name, ".")
		sym.Parameters = goParameters(m.ChildByFieldName("parameters"), source)
		sym.ReturnType = CollapseWhitespace(fieldText(m, "result", source))
		sym.Signature = CollapseWhitespace(NodeText(m, source))
		sym.DocComment = e.ExtractDocComment(m, source)
		out = append(out, sym)
	}
	return out
}

// valueDeclaration handles const (...) and var (...) blocks: one symbol per
// declared identifier, each exported by its own case.
func (e goExtractor) valueDeclaration(decl *sitter.Node, source []byte, kind symbols.Kind, specType string) []symbols.Symbol {
	var specs []*sitter.Node
	var collect func(n *sitter.Node)
	collect = func(n *sitter.Node) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case specType:
				specs = append(specs, child)
			case "var_spec_list":
				collect(child)
			}
		}
	}
	collect(decl)

	var out []symbols.Symbol
	for _, spec := range specs {
		typeText := CollapseWhitespace(fieldText(spec, "type", source))
		docNode := spec
		anchor := spec
		if len(specs) == 1 {
			docNode = decl
			anchor = decl
		}
		for _, name := range childrenByField(spec, "name", source) {
			if name == "_" || name == "" {
				continue
			}
			sym := goSymbol(name, kind, anchor)
			sym.QualifiedName = name
			sym.ReturnType = typeText
			sym.Signature = strings.TrimSpace(name + " " + typeText)
			sym.DocComment = e.ExtractDocComment(docNode, source)
			out = append(out, sym)
		}
	}
	return out
}

func (goExtractor) ExtractImports(root *sitter.Node, source []byte) []symbols.Import {
	var out []symbols.Import
	var visitSpec func(n *sitter.Node)
	visitSpec = func(n *sitter.Node) {
		switch n.Type() {
		case "import_spec":
			path := strings.Trim(fieldText(n, "path", source), "\"`")
			imp := symbols.Import{Source: path, Line: startLine(n)}
			base := path
			if i := strings.LastIndex(base, "/"); i >= 0 {
				base = base[i+1:]
			}
			name := fieldText(n, "name", source)
			switch name {
			case ".":
				imp.IsNamespace = true
				imp.Names = []symbols.ImportedName{{Name: base, Alias: "."}}
			case "":
				imp.Names = []symbols.ImportedName{{Name: base}}
			default:
				imp.Names = []symbols.ImportedName{{Name: base, Alias: name}}
			}
			out = append(out, imp)
		case "import_spec_list", "import_declaration":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				visitSpec(n.NamedChild(i))
			}
		}
	}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() == "import_declaration" {
			visitSpec(child)
		}
	}
	return out
}

func (goExtractor) ExtractCalls(root *sitter.Node, source []byte, enclosing string) []symbols.FunctionCall {
	stack := &callStack{sentinel: symbols.PackageSentinel}
	if enclosing != "" {
		stack.sentinel = enclosing
	}
	var out []symbols.FunctionCall
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		pushed := false
		switch n.Type() {
		case "function_declaration":
			stack.push(fieldText(n, "name", source))
			pushed = true
		case "method_declaration":
			stack.push(symbols.QualifiedName(goFindReceiverType(n, source), fieldText(n, "name", source), "."))
			pushed = true
		case "call_expression":
			fn := n.ChildByFieldName("function")
			if fn != nil {
				call := symbols.FunctionCall{Caller: stack.top(), Line: startLine(n)}
				if fn.Type() == "selector_expression" {
					call.Callee = fieldText(fn, "field", source)
					call.Receiver = CollapseWhitespace(fieldText(fn, "operand", source))
					call.IsMethod = true
				} else {
					call.Callee = rightmostIdentifier(NodeText(fn, source))
				}
				if call.Callee != "" {
					out = append(out, call)
				}
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
		if pushed {
			stack.pop()
		}
	}
	walk(root)
	return out
}

func (goExtractor) ExtractDocComment(node *sitter.Node, source []byte) string {
	if !startsLine(node, source) {
		return ""
	}
	if doc := lineDocAbove(node, source, "//"); doc != "" {
		return doc
	}
	return blockCommentAbove(node, source, false)
}

func goSymbol(name string, kind symbols.Kind, node *sitter.Node) symbols.Symbol {
	vis := goVisibility(name)
	return symbols.Symbol{
		Name:       name,
		Kind:       kind,
		Visibility: vis,
		Exported:   vis == symbols.Public,
		StartLine:  startLine(node),
		EndLine:    endLine(node),
	}
}

func goVisibility(name string) symbols.Visibility {
	r, _ := utf8.DecodeRuneInString(name)
	if unicode.IsUpper(r) {
		return symbols.Public
	}
	return symbols.Private
}

// goFindReceiverType extracts the receiver type name from a method_declaration node.
// Navigates: method_declaration → receiver parameter_list → parameter_declaration → type.
func goFindReceiverType(node *sitter.Node, source []byte) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	for j := 0; j < int(recv.NamedChildCount()); j++ {
		param := recv.NamedChild(j)
		if param.Type() == "parameter_declaration" {
			return goExtractTypeName(param.ChildByFieldName("type"), source)
		}
	}
	return ""
}

// goExtractTypeName unwraps pointer and generic receiver types down to the
// bare type identifier.
func goExtractTypeName(typeNode *sitter.Node, source []byte) string {
	if typeNode == nil {
		return ""
	}
	switch typeNode.Type() {
	case "type_identifier":
		return NodeText(typeNode, source)
	case "pointer_type", "generic_type", "parenthesized_type":
		for k := 0; k < int(typeNode.NamedChildCount()); k++ {
			if name := goExtractTypeName(typeNode.NamedChild(k), source); name != "" {
				return name
			}
		}
	}
	return ""
}

func goParameters(list *sitter.Node, source []byte) []symbols.Parameter {
	if list == nil {
		return nil
	}
	var params []symbols.Parameter
	for i := 0; i < int(list.NamedChildCount()); i++ {
		decl := list.NamedChild(i)
		isRest := decl.Type() == "variadic_parameter_declaration"
		if decl.Type() != "parameter_declaration" && !isRest {
			continue
		}
		typeText := CollapseWhitespace(fieldText(decl, "type", source))
		names := childrenByField(decl, "name", source)
		if len(names) == 0 {
			names = []string{"_"}
		}
		for _, name := range names {
			params = append(params, symbols.Parameter{Name: name, Type: typeText, IsRest: isRest})
		}
	}
	return params
}

func goTypeParameters(list *sitter.Node, source []byte) []string {
	if list == nil {
		return nil
	}
	var out []string
	for i := 0; i < int(list.NamedChildCount()); i++ {
		out = append(out, CollapseWhitespace(NodeText(list.NamedChild(i), source)))
	}
	return out
}

// goExtractSignature renders "Name[T any](params) result" without the receiver.
func goExtractSignature(defNode *sitter.Node, source []byte) string {
	sig := fieldText(defNode, "name", source)
	if tp := defNode.ChildByFieldName("type_parameters"); tp != nil {
		sig += CollapseWhitespace(NodeText(tp, source))
	}
	sig += CollapseWhitespace(fieldText(defNode, "parameters", source))
	if result := CollapseWhitespace(fieldText(defNode, "result", source)); result != "" {
		sig += " " + result
	}
	return sig
}

// childrenByField returns the text of every child attached to a field name.
// Go declarations repeat the name field for "a, b int".
func childrenByField(node *sitter.Node, field string, source []byte) []string {
	var out []string
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.FieldNameForChild(i) == field {
			out = append(out, NodeText(node.Child(i), source))
		}
	}
	return out
}

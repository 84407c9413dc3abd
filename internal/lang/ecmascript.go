package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/acp/internal/symbols"
)

// ecmaExtractor serves JavaScript and TypeScript. The grammars share their
// declaration shapes; TypeScript adds interfaces, type aliases, enums,
// namespaces and accessibility modifiers.
type ecmaExtractor struct {
	extensions []string
}

func (e ecmaExtractor) Extensions() []string { return e.extensions }

type ecmaWalker struct {
	e      ecmaExtractor
	source []byte
	out    []symbols.Symbol
}

func (e ecmaExtractor) ExtractSymbols(root *sitter.Node, source []byte) []symbols.Symbol {
	w := &ecmaWalker{e: e, source: source}
	w.statements(root, "", false)
	w.markExportClauses(root)
	return w.out
}

// statements visits a program, namespace body or statement block.
func (w *ecmaWalker) statements(block *sitter.Node, parent string, exported bool) {
	for i := 0; i < int(block.NamedChildCount()); i++ {
		w.statement(block.NamedChild(i), block.NamedChild(i), parent, exported)
	}
}

// statement handles one declaration. outer is the node that owns the doc
// comment: the export_statement for exported declarations.
func (w *ecmaWalker) statement(node, outer *sitter.Node, parent string, exported bool) {
	src := w.source
	switch node.Type() {
	case "export_statement":
		if decl := node.ChildByFieldName("declaration"); decl != nil {
			w.statement(decl, node, parent, true)
			return
		}
		// export default function () {} and friends carry the value inline.
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			switch child.Type() {
			case "function_declaration", "generator_function_declaration", "class_declaration",
				"abstract_class_declaration", "class", "function", "function_expression":
				w.statement(child, node, parent, true)
			}
		}
	case "function_declaration", "generator_function_declaration", "function_signature", "function", "function_expression":
		name := fieldText(node, "name", src)
		if name == "" {
			name = "default"
		}
		sym := w.symbol(name, symbols.Function, node, outer, parent, exported)
		w.fillCallable(&sym, node)
		w.out = append(w.out, sym)
	case "class_declaration", "abstract_class_declaration", "class":
		name := fieldText(node, "name", src)
		if name == "" {
			name = "default"
		}
		sym := w.symbol(name, symbols.Class, node, outer, parent, exported)
		sym.Signature = headerText(node, src)
		sym.Generics = ecmaTypeParameters(node, src)
		w.out = append(w.out, sym)
		if body := node.ChildByFieldName("body"); body != nil {
			w.classBody(body, sym.QualifiedName, exported)
		}
	case "interface_declaration":
		name := fieldText(node, "name", src)
		sym := w.symbol(name, symbols.Interface, node, outer, parent, exported)
		sym.Signature = headerText(node, src)
		sym.Generics = ecmaTypeParameters(node, src)
		w.out = append(w.out, sym)
		if body := node.ChildByFieldName("body"); body != nil {
			w.interfaceBody(body, sym.QualifiedName, exported)
		}
	case "type_alias_declaration":
		name := fieldText(node, "name", src)
		sym := w.symbol(name, symbols.TypeAlias, node, outer, parent, exported)
		sym.Signature = strings.TrimSuffix(CollapseWhitespace(NodeText(node, src)), ";")
		sym.Generics = ecmaTypeParameters(node, src)
		w.out = append(w.out, sym)
	case "enum_declaration":
		name := fieldText(node, "name", src)
		sym := w.symbol(name, symbols.Enum, node, outer, parent, exported)
		sym.Signature = headerText(node, src)
		w.out = append(w.out, sym)
		if body := node.ChildByFieldName("body"); body != nil {
			w.enumBody(body, sym.QualifiedName, exported)
		}
	case "internal_module", "module":
		name := strings.Trim(fieldText(node, "name", src), `"'`)
		sym := w.symbol(name, symbols.Namespace, node, outer, parent, exported)
		sym.Signature = headerText(node, src)
		w.out = append(w.out, sym)
		if body := node.ChildByFieldName("body"); body != nil {
			w.statements(body, sym.QualifiedName, exported)
		}
	case "ambient_declaration":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			w.statement(node.NamedChild(i), outer, parent, exported)
		}
	case "expression_statement":
		// namespace Foo {} parses as an expression statement in some grammar versions.
		if inner := firstChildOfType(node, "internal_module"); inner != nil {
			w.statement(inner, outer, parent, exported)
		}
	case "lexical_declaration", "variable_declaration":
		isConst := hasChildType(node, "const")
		for i := 0; i < int(node.NamedChildCount()); i++ {
			decl := node.NamedChild(i)
			if decl.Type() != "variable_declarator" {
				continue
			}
			nameNode := decl.ChildByFieldName("name")
			if nameNode == nil || nameNode.Type() != "identifier" {
				continue
			}
			name := NodeText(nameNode, src)
			value := decl.ChildByFieldName("value")
			if value != nil && isFunctionValue(value) {
				sym := w.symbol(name, symbols.Function, decl, outer, parent, exported)
				w.fillCallable(&sym, value)
				sym.Signature = name + " = " + sym.Signature
				w.out = append(w.out, sym)
				continue
			}
			kind := symbols.Variable
			if isConst && isUpperSnake(name) {
				kind = symbols.Constant
			}
			sym := w.symbol(name, kind, decl, outer, parent, exported)
			sym.ReturnType = typeAnnotationText(decl.ChildByFieldName("type"), src)
			sym.Signature = CollapseWhitespace(NodeText(nameNode, src) + " " + NodeText(decl.ChildByFieldName("type"), src))
			w.out = append(w.out, sym)
		}
	}
}

func (w *ecmaWalker) symbol(name string, kind symbols.Kind, node, outer *sitter.Node, parent string, exported bool) symbols.Symbol {
	vis := symbols.Public
	if strings.HasPrefix(name, "#") {
		vis = symbols.Private
	}
	return symbols.Symbol{
		Name:          name,
		QualifiedName: symbols.QualifiedName(parent, name, "."),
		Kind:          kind,
		Visibility:    vis,
		Exported:      exported && vis == symbols.Public,
		StartLine:     startLine(outer),
		EndLine:       endLine(node),
		Parent:        parent,
		DocComment:    w.e.ExtractDocComment(outer, w.source),
		IsAsync:       hasChildType(node, "async"),
	}
}

// fillCallable sets parameters, return type, generics and signature from a
// function-like node.
func (w *ecmaWalker) fillCallable(sym *symbols.Symbol, fn *sitter.Node) {
	src := w.source
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		// Single-parameter arrow functions: x => x * 2.
		if p := fn.ChildByFieldName("parameter"); p != nil {
			sym.Parameters = []symbols.Parameter{{Name: NodeText(p, src)}}
		}
	} else {
		sym.Parameters = ecmaParameters(params, src)
	}
	sym.ReturnType = typeAnnotationText(fn.ChildByFieldName("return_type"), src)
	sym.Generics = ecmaTypeParameters(fn, src)
	sym.IsAsync = sym.IsAsync || hasChildType(fn, "async")
	sig := strings.TrimSuffix(headerText(fn, src), "=>")
	sym.Signature = strings.TrimSpace(sig)
}

func (w *ecmaWalker) classBody(body *sitter.Node, parent string, exported bool) {
	src := w.source
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		switch member.Type() {
		case "method_definition", "method_signature", "abstract_method_signature":
			name := fieldText(member, "name", src)
			sym := w.symbol(name, symbols.Method, member, member, parent, exported)
			w.applyModifiers(&sym, member)
			w.fillCallable(&sym, member)
			w.out = append(w.out, sym)
		case "field_definition", "public_field_definition":
			nameNode := member.ChildByFieldName("property")
			if nameNode == nil {
				nameNode = member.ChildByFieldName("name")
			}
			name := NodeText(nameNode, src)
			if name == "" {
				continue
			}
			value := member.ChildByFieldName("value")
			kind := symbols.Property
			if value != nil && isFunctionValue(value) {
				kind = symbols.Method
			}
			sym := w.symbol(name, kind, member, member, parent, exported)
			w.applyModifiers(&sym, member)
			if kind == symbols.Method {
				w.fillCallable(&sym, value)
				sym.Signature = name + " = " + sym.Signature
			} else {
				sym.ReturnType = typeAnnotationText(member.ChildByFieldName("type"), src)
				sym.Signature = strings.TrimSuffix(CollapseWhitespace(NodeText(member, src)), ";")
			}
			w.out = append(w.out, sym)
		}
	}
}

// applyModifiers reads static and TypeScript accessibility modifiers.
func (w *ecmaWalker) applyModifiers(sym *symbols.Symbol, member *sitter.Node) {
	for i := 0; i < int(member.ChildCount()); i++ {
		child := member.Child(i)
		switch child.Type() {
		case "static":
			sym.IsStatic = true
		case "accessibility_modifier":
			switch NodeText(child, w.source) {
			case "private":
				sym.Visibility = symbols.Private
			case "protected":
				sym.Visibility = symbols.Protected
			}
		}
	}
	if strings.HasPrefix(sym.Name, "#") {
		sym.Visibility = symbols.Private
	}
	sym.Exported = sym.Exported && sym.Visibility == symbols.Public
}

func (w *ecmaWalker) interfaceBody(body *sitter.Node, parent string, exported bool) {
	src := w.source
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		switch member.Type() {
		case "method_signature":
			sym := w.symbol(fieldText(member, "name", src), symbols.Method, member, member, parent, exported)
			w.fillCallable(&sym, member)
			w.out = append(w.out, sym)
		case "property_signature":
			sym := w.symbol(fieldText(member, "name", src), symbols.Property, member, member, parent, exported)
			sym.ReturnType = typeAnnotationText(member.ChildByFieldName("type"), src)
			sym.Signature = strings.TrimRight(CollapseWhitespace(NodeText(member, src)), ";,")
			w.out = append(w.out, sym)
		}
	}
}

func (w *ecmaWalker) enumBody(body *sitter.Node, parent string, exported bool) {
	src := w.source
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		var name string
		switch member.Type() {
		case "property_identifier":
			name = NodeText(member, src)
		case "enum_assignment":
			name = fieldText(member, "name", src)
		default:
			continue
		}
		sym := w.symbol(name, symbols.EnumVariant, member, member, parent, exported)
		sym.Signature = CollapseWhitespace(NodeText(member, src))
		w.out = append(w.out, sym)
	}
}

// markExportClauses applies `export { a, b as c }`, `export default a` and
// CommonJS assignments to already extracted top-level symbols. The local
// name is marked, never the alias.
func (w *ecmaWalker) markExportClauses(root *sitter.Node) {
	src := w.source
	mark := func(name string) {
		for i := range w.out {
			if w.out[i].Parent == "" && w.out[i].Name == name {
				w.out[i].Exported = true
			}
		}
	}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		switch stmt.Type() {
		case "export_statement":
			if stmt.ChildByFieldName("source") != nil {
				continue
			}
			if clause := firstChildOfType(stmt, "export_clause"); clause != nil {
				for j := 0; j < int(clause.NamedChildCount()); j++ {
					spec := clause.NamedChild(j)
					if spec.Type() == "export_specifier" {
						mark(fieldText(spec, "name", src))
					}
				}
			}
			if value := stmt.ChildByFieldName("value"); value != nil && value.Type() == "identifier" {
				mark(NodeText(value, src))
			}
		case "expression_statement":
			assign := firstChildOfType(stmt, "assignment_expression")
			if assign == nil {
				continue
			}
			left := CollapseWhitespace(fieldText(assign, "left", src))
			right := assign.ChildByFieldName("right")
			switch {
			case left == "module.exports" && right != nil && right.Type() == "object":
				for j := 0; j < int(right.NamedChildCount()); j++ {
					prop := right.NamedChild(j)
					switch prop.Type() {
					case "shorthand_property_identifier":
						mark(NodeText(prop, src))
					case "pair":
						if v := prop.ChildByFieldName("value"); v != nil && v.Type() == "identifier" {
							mark(NodeText(v, src))
						}
					}
				}
			case left == "module.exports" && right != nil && right.Type() == "identifier":
				mark(NodeText(right, src))
			case strings.HasPrefix(left, "exports.") || strings.HasPrefix(left, "module.exports."):
				if right != nil && right.Type() == "identifier" {
					mark(NodeText(right, src))
				}
				mark(left[strings.LastIndex(left, ".")+1:])
			}
		}
	}
}

func (e ecmaExtractor) ExtractImports(root *sitter.Node, source []byte) []symbols.Import {
	var out []symbols.Import
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement":
			out = append(out, ecmaImport(n, source))
			return
		case "export_statement":
			if src := n.ChildByFieldName("source"); src != nil {
				imp := symbols.Import{Source: strings.Trim(NodeText(src, source), "'\"`"), Line: startLine(n)}
				if clause := firstChildOfType(n, "export_clause"); clause != nil {
					imp.Names = ecmaSpecifiers(clause, "export_specifier", source)
				} else {
					imp.IsNamespace = true
					imp.Names = []symbols.ImportedName{{Name: "*"}}
				}
				out = append(out, imp)
				return
			}
		case "call_expression":
			// CommonJS: const x = require("y").
			if fieldText(n, "function", source) == "require" {
				args := n.ChildByFieldName("arguments")
				if args != nil && args.NamedChildCount() > 0 && args.NamedChild(0).Type() == "string" {
					imp := symbols.Import{
						Source: strings.Trim(NodeText(args.NamedChild(0), source), "'\"`"),
						Line:   startLine(n),
					}
					if decl := n.Parent(); decl != nil && decl.Type() == "variable_declarator" {
						nameNode := decl.ChildByFieldName("name")
						switch {
						case nameNode == nil:
						case nameNode.Type() == "identifier":
							imp.IsDefault = true
							imp.Names = []symbols.ImportedName{{Name: NodeText(nameNode, source)}}
						case nameNode.Type() == "object_pattern":
							for j := 0; j < int(nameNode.NamedChildCount()); j++ {
								prop := nameNode.NamedChild(j)
								if prop.Type() == "shorthand_property_identifier_pattern" {
									imp.Names = append(imp.Names, symbols.ImportedName{Name: NodeText(prop, source)})
								}
							}
						}
					}
					out = append(out, imp)
				}
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
	return out
}

func ecmaImport(n *sitter.Node, source []byte) symbols.Import {
	imp := symbols.Import{
		Source: strings.Trim(fieldText(n, "source", source), "'\"`"),
		Line:   startLine(n),
	}
	clause := firstChildOfType(n, "import_clause")
	if clause == nil {
		return imp
	}
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		child := clause.NamedChild(i)
		switch child.Type() {
		case "identifier":
			imp.IsDefault = true
			imp.Names = append(imp.Names, symbols.ImportedName{Name: NodeText(child, source)})
		case "namespace_import":
			imp.IsNamespace = true
			alias := NodeText(firstChildOfType(child, "identifier"), source)
			imp.Names = append(imp.Names, symbols.ImportedName{Name: "*", Alias: alias})
		case "named_imports":
			imp.Names = append(imp.Names, ecmaSpecifiers(child, "import_specifier", source)...)
		}
	}
	return imp
}

func ecmaSpecifiers(list *sitter.Node, specType string, source []byte) []symbols.ImportedName {
	var names []symbols.ImportedName
	for i := 0; i < int(list.NamedChildCount()); i++ {
		spec := list.NamedChild(i)
		if spec.Type() != specType {
			continue
		}
		names = append(names, symbols.ImportedName{
			Name:  fieldText(spec, "name", source),
			Alias: fieldText(spec, "alias", source),
		})
	}
	return names
}

func (e ecmaExtractor) ExtractCalls(root *sitter.Node, source []byte, enclosing string) []symbols.FunctionCall {
	stack := &callStack{sentinel: symbols.ModuleSentinel}
	if enclosing != "" {
		stack.sentinel = enclosing
	}
	var classes []string
	var out []symbols.FunctionCall
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		pushedFn, pushedClass := false, false
		switch n.Type() {
		case "class_declaration", "abstract_class_declaration", "class":
			classes = append(classes, fieldText(n, "name", source))
			pushedClass = true
		case "function_declaration", "generator_function_declaration":
			stack.push(fieldText(n, "name", source))
			pushedFn = true
		case "method_definition":
			parent := ""
			if len(classes) > 0 {
				parent = classes[len(classes)-1]
			}
			stack.push(symbols.QualifiedName(parent, fieldText(n, "name", source), "."))
			pushedFn = true
		case "variable_declarator":
			if value := n.ChildByFieldName("value"); value != nil && isFunctionValue(value) {
				stack.push(fieldText(n, "name", source))
				pushedFn = true
			}
		case "call_expression":
			fn := n.ChildByFieldName("function")
			if fn != nil {
				call := symbols.FunctionCall{Caller: stack.top(), Line: startLine(n)}
				if fn.Type() == "member_expression" {
					call.Callee = fieldText(fn, "property", source)
					call.Receiver = CollapseWhitespace(fieldText(fn, "object", source))
					call.IsMethod = true
				} else {
					call.Callee = rightmostIdentifier(NodeText(fn, source))
				}
				if call.Callee != "" {
					out = append(out, call)
				}
			}
		case "new_expression":
			if ctor := n.ChildByFieldName("constructor"); ctor != nil {
				if callee := rightmostIdentifier(NodeText(ctor, source)); callee != "" {
					out = append(out, symbols.FunctionCall{Caller: stack.top(), Callee: callee, Line: startLine(n)})
				}
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

// ExtractDocComment returns the /** */ block above a declaration.
func (ecmaExtractor) ExtractDocComment(node *sitter.Node, source []byte) string {
	return blockDocAbove(node, source)
}

func isFunctionValue(n *sitter.Node) bool {
	switch n.Type() {
	case "arrow_function", "function", "function_expression", "generator_function":
		return true
	}
	return false
}

func ecmaTypeParameters(node *sitter.Node, source []byte) []string {
	tp := node.ChildByFieldName("type_parameters")
	if tp == nil {
		return nil
	}
	return splitTypeList(NodeText(tp, source))
}

func ecmaParameters(list *sitter.Node, source []byte) []symbols.Parameter {
	var params []symbols.Parameter
	for i := 0; i < int(list.NamedChildCount()); i++ {
		p := list.NamedChild(i)
		var param symbols.Parameter
		switch p.Type() {
		case "identifier", "object_pattern", "array_pattern":
			param.Name = CollapseWhitespace(NodeText(p, source))
		case "assignment_pattern":
			param.Name = CollapseWhitespace(fieldText(p, "left", source))
			param.Default = CollapseWhitespace(fieldText(p, "right", source))
			param.IsOptional = true
		case "rest_pattern":
			param.Name = strings.TrimPrefix(CollapseWhitespace(NodeText(p, source)), "...")
			param.IsRest = true
		case "required_parameter", "optional_parameter":
			pattern := p.ChildByFieldName("pattern")
			if pattern != nil && pattern.Type() == "rest_pattern" {
				param.IsRest = true
				param.Name = strings.TrimPrefix(CollapseWhitespace(NodeText(pattern, source)), "...")
			} else {
				param.Name = CollapseWhitespace(NodeText(pattern, source))
			}
			if param.Name == "this" {
				continue
			}
			param.Type = typeAnnotationText(p.ChildByFieldName("type"), source)
			param.Default = CollapseWhitespace(fieldText(p, "value", source))
			param.IsOptional = p.Type() == "optional_parameter" || param.Default != ""
		default:
			continue
		}
		if param.Name == "" {
			continue
		}
		params = append(params, param)
	}
	return params
}

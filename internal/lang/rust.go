package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/phobologic/acp/internal/symbols"
)

func init() {
	register(&Language{
		Name:      "rust",
		Extractor: rustExtractor{},
		lang:      rust.GetLanguage(),
	})
}

const rustSep = "::"

type rustExtractor struct{}

func (rustExtractor) Extensions() []string { return []string{".rs"} }

func (e rustExtractor) ExtractSymbols(root *sitter.Node, source []byte) []symbols.Symbol {
	var out []symbols.Symbol
	e.items(root, "", source, &out)
	return out
}

// items visits the items of a source file or module body.
func (e rustExtractor) items(block *sitter.Node, parent string, source []byte, out *[]symbols.Symbol) {
	for i := 0; i < int(block.NamedChildCount()); i++ {
		node := block.NamedChild(i)
		switch node.Type() {
		case "function_item":
			*out = append(*out, e.function(node, parent, "", source))
		case "struct_item", "union_item":
			sym := e.item(node, symbols.Struct, parent, source)
			*out = append(*out, sym)
			if body := node.ChildByFieldName("body"); body != nil && body.Type() == "field_declaration_list" {
				e.fields(body, sym.QualifiedName, source, out)
			}
		case "enum_item":
			sym := e.item(node, symbols.Enum, parent, source)
			*out = append(*out, sym)
			if body := node.ChildByFieldName("body"); body != nil {
				for j := 0; j < int(body.NamedChildCount()); j++ {
					variant := body.NamedChild(j)
					if variant.Type() != "enum_variant" {
						continue
					}
					v := e.item(variant, symbols.EnumVariant, sym.QualifiedName, source)
					v.Visibility = sym.Visibility
					v.Exported = sym.Exported
					v.Signature = CollapseWhitespace(NodeText(variant, source))
					*out = append(*out, v)
				}
			}
		case "trait_item":
			sym := e.item(node, symbols.Trait, parent, source)
			*out = append(*out, sym)
			if body := node.ChildByFieldName("body"); body != nil {
				for j := 0; j < int(body.NamedChildCount()); j++ {
					m := body.NamedChild(j)
					if m.Type() != "function_item" && m.Type() != "function_signature_item" {
						continue
					}
					fn := e.function(m, sym.QualifiedName, sym.Name, source)
					fn.Visibility = sym.Visibility
					fn.Exported = sym.Exported
					*out = append(*out, fn)
				}
			}
		case "impl_item":
			e.impl(node, parent, source, out)
		case "mod_item":
			sym := e.item(node, symbols.Module, parent, source)
			*out = append(*out, sym)
			if body := node.ChildByFieldName("body"); body != nil {
				e.items(body, sym.QualifiedName, source, out)
			}
		case "const_item":
			sym := e.item(node, symbols.Constant, parent, source)
			sym.ReturnType = CollapseWhitespace(fieldText(node, "type", source))
			*out = append(*out, sym)
		case "static_item":
			sym := e.item(node, symbols.Variable, parent, source)
			sym.ReturnType = CollapseWhitespace(fieldText(node, "type", source))
			sym.IsStatic = true
			*out = append(*out, sym)
		case "type_item":
			*out = append(*out, e.item(node, symbols.TypeAlias, parent, source))
		}
	}
}

// item builds the common part of a named Rust item.
func (e rustExtractor) item(node *sitter.Node, kind symbols.Kind, parent string, source []byte) symbols.Symbol {
	name := fieldText(node, "name", source)
	vis := rustVisibility(node, source)
	sym := symbols.Symbol{
		Name:          name,
		QualifiedName: symbols.QualifiedName(parent, name, rustSep),
		Kind:          kind,
		Visibility:    vis,
		Exported:      vis == symbols.Public,
		StartLine:     startLine(node),
		EndLine:       endLine(node),
		Parent:        parent,
		Signature:     headerText(node, source),
		DocComment:    e.ExtractDocComment(node, source),
	}
	if tp := node.ChildByFieldName("type_parameters"); tp != nil {
		sym.Generics = splitTypeList(NodeText(tp, source))
	}
	return sym
}

// function handles free functions, trait members and impl members. A member
// whose parameter list starts with self is a Method.
func (e rustExtractor) function(node *sitter.Node, parent, parentName string, source []byte) symbols.Symbol {
	sym := e.item(node, symbols.Function, parent, source)
	params := node.ChildByFieldName("parameters")
	sym.Parameters = rustParameters(params, source)
	if parentName != "" && len(sym.Parameters) > 0 && sym.Parameters[0].Name == "self" {
		sym.Kind = symbols.Method
	}
	sym.ReturnType = CollapseWhitespace(fieldText(node, "return_type", source))
	if mods := firstChildOfType(node, "function_modifiers"); mods != nil {
		text := NodeText(mods, source)
		sym.IsAsync = strings.Contains(text, "async")
	}
	if parentName != "" && sym.Kind != symbols.Method {
		// Associated functions (constructors) are static.
		sym.IsStatic = true
	}
	return sym
}

// impl emits the synthetic Impl symbol and its members, which take the
// implementing type as parent.
func (e rustExtractor) impl(node *sitter.Node, parent string, source []byte, out *[]symbols.Symbol) {
	typeName := rustBaseType(fieldText(node, "type", source))
	traitName := rustBaseType(fieldText(node, "trait", source))
	name := typeName
	if traitName != "" {
		name = traitName + " for " + typeName
	}
	sym := symbols.Symbol{
		Name:          name,
		QualifiedName: symbols.QualifiedName(parent, name, rustSep),
		Kind:          symbols.Impl,
		Visibility:    symbols.Public,
		StartLine:     startLine(node),
		EndLine:       endLine(node),
		Parent:        parent,
		Signature:     headerText(node, source),
		DocComment:    e.ExtractDocComment(node, source),
	}
	if tp := node.ChildByFieldName("type_parameters"); tp != nil {
		sym.Generics = splitTypeList(NodeText(tp, source))
	}
	*out = append(*out, sym)

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	owner := symbols.QualifiedName(parent, typeName, rustSep)
	for i := 0; i < int(body.NamedChildCount()); i++ {
		m := body.NamedChild(i)
		switch m.Type() {
		case "function_item":
			fn := e.function(m, owner, typeName, source)
			if traitName != "" {
				// Trait implementations are as visible as the trait.
				fn.Visibility = symbols.Public
				fn.Exported = true
			}
			*out = append(*out, fn)
		case "const_item":
			c := e.item(m, symbols.Constant, owner, source)
			c.ReturnType = CollapseWhitespace(fieldText(m, "type", source))
			*out = append(*out, c)
		case "type_item":
			*out = append(*out, e.item(m, symbols.TypeAlias, owner, source))
		}
	}
}

func (e rustExtractor) fields(list *sitter.Node, parent string, source []byte, out *[]symbols.Symbol) {
	for i := 0; i < int(list.NamedChildCount()); i++ {
		f := list.NamedChild(i)
		if f.Type() != "field_declaration" {
			continue
		}
		sym := e.item(f, symbols.Field, parent, source)
		sym.ReturnType = CollapseWhitespace(fieldText(f, "type", source))
		sym.Signature = strings.TrimSuffix(CollapseWhitespace(NodeText(f, source)), ",")
		*out = append(*out, sym)
	}
}

func (rustExtractor) ExtractImports(root *sitter.Node, source []byte) []symbols.Import {
	var out []symbols.Import
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "use_declaration":
			if arg := n.ChildByFieldName("argument"); arg != nil {
				imp := rustUseTree(arg, source)
				imp.Line = startLine(n)
				out = append(out, imp)
			}
			return
		case "extern_crate_declaration":
			name := fieldText(n, "name", source)
			out = append(out, symbols.Import{
				Source: name,
				Names:  []symbols.ImportedName{{Name: name, Alias: fieldText(n, "alias", source)}},
				Line:   startLine(n),
			})
			return
		case "function_item":
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
	return out
}

func rustUseTree(arg *sitter.Node, source []byte) symbols.Import {
	var imp symbols.Import
	switch arg.Type() {
	case "scoped_identifier":
		imp.Source = fieldText(arg, "path", source)
		imp.Names = []symbols.ImportedName{{Name: fieldText(arg, "name", source)}}
	case "identifier", "crate", "self", "super":
		imp.Source = NodeText(arg, source)
		imp.Names = []symbols.ImportedName{{Name: imp.Source}}
	case "use_as_clause":
		path := fieldText(arg, "path", source)
		imp.Source, imp.Names = splitRustPath(path)
		if len(imp.Names) > 0 {
			imp.Names[0].Alias = fieldText(arg, "alias", source)
		}
	case "use_wildcard":
		imp.Source = strings.TrimSuffix(strings.TrimSuffix(NodeText(arg, source), "*"), "::")
		imp.IsNamespace = true
		imp.Names = []symbols.ImportedName{{Name: "*"}}
	case "scoped_use_list", "use_list":
		imp.Source = fieldText(arg, "path", source)
		list := arg.ChildByFieldName("list")
		if list == nil {
			list = arg
		}
		for i := 0; i < int(list.NamedChildCount()); i++ {
			item := list.NamedChild(i)
			switch item.Type() {
			case "use_as_clause":
				_, names := splitRustPath(fieldText(item, "path", source))
				if len(names) > 0 {
					names[0].Alias = fieldText(item, "alias", source)
					imp.Names = append(imp.Names, names[0])
				}
			case "use_wildcard":
				imp.IsNamespace = true
				imp.Names = append(imp.Names, symbols.ImportedName{Name: "*"})
			default:
				imp.Names = append(imp.Names, symbols.ImportedName{Name: CollapseWhitespace(NodeText(item, source))})
			}
		}
	default:
		imp.Source = CollapseWhitespace(NodeText(arg, source))
	}
	return imp
}

// splitRustPath splits "a::b::C" into source "a::b" and name C.
func splitRustPath(path string) (string, []symbols.ImportedName) {
	if i := strings.LastIndex(path, rustSep); i >= 0 {
		return path[:i], []symbols.ImportedName{{Name: path[i+len(rustSep):]}}
	}
	return path, []symbols.ImportedName{{Name: path}}
}

func (rustExtractor) ExtractCalls(root *sitter.Node, source []byte, enclosing string) []symbols.FunctionCall {
	stack := &callStack{sentinel: symbols.ModuleSentinel}
	if enclosing != "" {
		stack.sentinel = enclosing
	}
	var owners []string
	var out []symbols.FunctionCall
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		pushedFn, pushedOwner := false, false
		switch n.Type() {
		case "impl_item":
			owners = append(owners, rustBaseType(fieldText(n, "type", source)))
			pushedOwner = true
		case "trait_item":
			owners = append(owners, fieldText(n, "name", source))
			pushedOwner = true
		case "function_item":
			owner := ""
			if len(owners) > 0 && n.Parent() != nil && n.Parent().Type() == "declaration_list" {
				owner = owners[len(owners)-1]
			}
			stack.push(symbols.QualifiedName(owner, fieldText(n, "name", source), rustSep))
			pushedFn = true
		case "call_expression":
			fn := n.ChildByFieldName("function")
			if fn != nil && fn.Type() == "generic_function" {
				fn = fn.ChildByFieldName("function")
			}
			if fn != nil {
				call := symbols.FunctionCall{Caller: stack.top(), Line: startLine(n)}
				switch fn.Type() {
				case "field_expression":
					call.Callee = fieldText(fn, "field", source)
					call.Receiver = CollapseWhitespace(fieldText(fn, "value", source))
					call.IsMethod = true
				case "scoped_identifier":
					call.Callee = fieldText(fn, "name", source)
					call.Receiver = CollapseWhitespace(fieldText(fn, "path", source))
				default:
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
		if pushedFn {
			stack.pop()
		}
		if pushedOwner {
			owners = owners[:len(owners)-1]
		}
	}
	walk(root)
	return out
}

// ExtractDocComment returns the /// run or /** */ block above an item that
// starts its own line.
func (rustExtractor) ExtractDocComment(node *sitter.Node, source []byte) string {
	if node.Type() == "source_file" {
		return innerDocAtTop(source, "//!")
	}
	if !startsLine(node, source) {
		return ""
	}
	if doc := lineDocAbove(node, source, "///"); doc != "" {
		return doc
	}
	return blockDocAbove(node, source)
}

func rustVisibility(node *sitter.Node, source []byte) symbols.Visibility {
	mod := firstChildOfType(node, "visibility_modifier")
	if mod == nil {
		return symbols.Private
	}
	if CollapseWhitespace(NodeText(mod, source)) == "pub" {
		return symbols.Public
	}
	// pub(crate), pub(super), pub(in path)
	return symbols.Crate
}

// rustBaseType strips references, lifetimes and generic arguments from a
// type: "&'a Foo<T>" -> "Foo".
func rustBaseType(text string) string {
	text = CollapseWhitespace(text)
	text = strings.TrimLeft(text, "&")
	if strings.HasPrefix(text, "'") {
		if i := strings.Index(text, " "); i >= 0 {
			text = text[i+1:]
		}
	}
	text = strings.TrimPrefix(text, "mut ")
	if i := strings.Index(text, "<"); i > 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

func rustParameters(list *sitter.Node, source []byte) []symbols.Parameter {
	if list == nil {
		return nil
	}
	var params []symbols.Parameter
	for i := 0; i < int(list.NamedChildCount()); i++ {
		p := list.NamedChild(i)
		switch p.Type() {
		case "self_parameter":
			params = append(params, symbols.Parameter{Name: "self", Type: "Self"})
		case "parameter":
			name := CollapseWhitespace(fieldText(p, "pattern", source))
			name = strings.TrimPrefix(name, "mut ")
			params = append(params, symbols.Parameter{
				Name: name,
				Type: CollapseWhitespace(fieldText(p, "type", source)),
			})
		case "variadic_parameter":
			params = append(params, symbols.Parameter{Name: "...", IsRest: true})
		}
	}
	return params
}

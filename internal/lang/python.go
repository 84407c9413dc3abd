package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/phobologic/acp/internal/symbols"
)

func init() {
	register(&Language{
		Name:      "python",
		Extractor: pythonExtractor{},
		lang:      python.GetLanguage(),
	})
}

type pythonExtractor struct{}

func (pythonExtractor) Extensions() []string { return []string{".py", ".pyi"} }

func (e pythonExtractor) ExtractSymbols(root *sitter.Node, source []byte) []symbols.Symbol {
	var out []symbols.Symbol
	e.walkBlock(root, "", source, &out)
	return out
}

// walkBlock visits the statements of a module or class body. parent is the
// qualified name of the enclosing class, or "" at module level.
func (e pythonExtractor) walkBlock(block *sitter.Node, parent string, source []byte, out *[]symbols.Symbol) {
	for i := 0; i < int(block.NamedChildCount()); i++ {
		stmt := block.NamedChild(i)
		switch stmt.Type() {
		case "function_definition":
			*out = append(*out, e.function(stmt, nil, parent, source))
		case "class_definition":
			e.class(stmt, parent, source, out)
		case "decorated_definition":
			def := stmt.ChildByFieldName("definition")
			if def == nil {
				continue
			}
			switch def.Type() {
			case "function_definition":
				*out = append(*out, e.function(def, stmt, parent, source))
			case "class_definition":
				e.class(def, parent, source, out)
			}
		case "expression_statement":
			if assign := firstChildOfType(stmt, "assignment"); assign != nil {
				if sym, ok := e.assignment(assign, parent, source); ok {
					*out = append(*out, sym)
				}
			}
		case "if_statement", "try_statement", "block":
			// Conditional definitions (TYPE_CHECKING guards, import fallbacks).
			if parent == "" {
				for j := 0; j < int(stmt.NamedChildCount()); j++ {
					child := stmt.NamedChild(j)
					if child.Type() == "block" {
						e.walkBlock(child, parent, source, out)
					}
				}
			}
		}
	}
}

func (e pythonExtractor) function(node, decorated *sitter.Node, parent string, source []byte) symbols.Symbol {
	name := fieldText(node, "name", source)
	kind := symbols.Function
	if parent != "" {
		kind = symbols.Method
	}
	vis := pythonVisibility(name)
	sym := symbols.Symbol{
		Name:          name,
		QualifiedName: symbols.QualifiedName(parent, name, "."),
		Kind:          kind,
		Visibility:    vis,
		Exported:      vis == symbols.Public,
		StartLine:     startLine(node),
		EndLine:       endLine(node),
		Parent:        parent,
		Parameters:    pythonParameters(node.ChildByFieldName("parameters"), source),
		ReturnType:    CollapseWhitespace(fieldText(node, "return_type", source)),
		Signature:     pythonExtractFunctionSignature(node, source),
		IsAsync:       hasChildType(node, "async"),
		DocComment:    e.ExtractDocComment(node, source),
	}
	if decorated != nil && pythonHasDecorator(decorated, "staticmethod", source) {
		sym.IsStatic = true
	}
	return sym
}

func (e pythonExtractor) class(node *sitter.Node, parent string, source []byte, out *[]symbols.Symbol) {
	name := fieldText(node, "name", source)
	qn := symbols.QualifiedName(parent, name, ".")
	vis := pythonVisibility(name)
	sym := symbols.Symbol{
		Name:          name,
		QualifiedName: qn,
		Kind:          symbols.Class,
		Visibility:    vis,
		Exported:      vis == symbols.Public,
		StartLine:     startLine(node),
		EndLine:       endLine(node),
		Parent:        parent,
		Signature:     pythonExtractClassSignature(node, source),
		DocComment:    e.ExtractDocComment(node, source),
	}
	if tp := node.ChildByFieldName("type_parameters"); tp != nil {
		sym.Generics = splitTypeList(NodeText(tp, source))
	}
	*out = append(*out, sym)
	if body := node.ChildByFieldName("body"); body != nil {
		e.walkBlock(body, qn, source, out)
	}
}

// assignment turns module constants/variables and class attributes into symbols.
func (pythonExtractor) assignment(node *sitter.Node, parent string, source []byte) (symbols.Symbol, bool) {
	left := node.ChildByFieldName("left")
	if left == nil || left.Type() != "identifier" {
		return symbols.Symbol{}, false
	}
	name := NodeText(left, source)
	kind := symbols.Variable
	switch {
	case parent != "":
		kind = symbols.Field
	case isUpperSnake(name):
		kind = symbols.Constant
	}
	vis := pythonVisibility(name)
	return symbols.Symbol{
		Name:          name,
		QualifiedName: symbols.QualifiedName(parent, name, "."),
		Kind:          kind,
		Visibility:    vis,
		Exported:      vis == symbols.Public,
		StartLine:     startLine(node),
		EndLine:       endLine(node),
		Parent:        parent,
		ReturnType:    CollapseWhitespace(fieldText(node, "type", source)),
		Signature:     pythonExtractFieldSignature(node, source),
	}, true
}

func (pythonExtractor) ExtractImports(root *sitter.Node, source []byte) []symbols.Import {
	var out []symbols.Import
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				name, alias := pythonImportName(n.NamedChild(i), source)
				if name == "" {
					continue
				}
				out = append(out, symbols.Import{
					Source:      name,
					Names:       []symbols.ImportedName{{Name: name, Alias: alias}},
					IsNamespace: true,
					Line:        startLine(n),
				})
			}
			return
		case "import_from_statement":
			moduleNode := n.ChildByFieldName("module_name")
			imp := symbols.Import{Source: NodeText(moduleNode, source), Line: startLine(n)}
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				if moduleNode != nil && child.StartByte() == moduleNode.StartByte() {
					continue
				}
				if child.Type() == "wildcard_import" {
					imp.IsNamespace = true
					imp.Names = append(imp.Names, symbols.ImportedName{Name: "*"})
					continue
				}
				if name, alias := pythonImportName(child, source); name != "" {
					imp.Names = append(imp.Names, symbols.ImportedName{Name: name, Alias: alias})
				}
			}
			out = append(out, imp)
			return
		case "function_definition", "class_definition":
			// Only module-level (and guarded) imports describe file dependencies.
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
	return out
}

func pythonImportName(node *sitter.Node, source []byte) (name, alias string) {
	switch node.Type() {
	case "dotted_name":
		return NodeText(node, source), ""
	case "aliased_import":
		return fieldText(node, "name", source), fieldText(node, "alias", source)
	}
	return "", ""
}

func (pythonExtractor) ExtractCalls(root *sitter.Node, source []byte, enclosing string) []symbols.FunctionCall {
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
		case "class_definition":
			parent := ""
			if len(classes) > 0 {
				parent = classes[len(classes)-1]
			}
			classes = append(classes, symbols.QualifiedName(parent, fieldText(n, "name", source), "."))
			pushedClass = true
		case "function_definition":
			parent := ""
			if len(classes) > 0 && pythonDirectlyInClass(n) {
				parent = classes[len(classes)-1]
			}
			stack.push(symbols.QualifiedName(parent, fieldText(n, "name", source), "."))
			pushedFn = true
		case "call":
			fn := n.ChildByFieldName("function")
			if fn != nil {
				call := symbols.FunctionCall{Caller: stack.top(), Line: startLine(n)}
				if fn.Type() == "attribute" {
					call.Callee = fieldText(fn, "attribute", source)
					call.Receiver = CollapseWhitespace(fieldText(fn, "object", source))
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

// pythonDirectlyInClass reports whether a function is a method of the
// innermost class rather than a function nested in another function.
func pythonDirectlyInClass(funcNode *sitter.Node) bool {
	parent := funcNode.Parent()
	if parent != nil && parent.Type() == "decorated_definition" {
		parent = parent.Parent()
	}
	return parent != nil && parent.Type() == "block" &&
		parent.Parent() != nil && parent.Parent().Type() == "class_definition"
}

// ExtractDocComment returns the docstring content of a function, class or module.
func (pythonExtractor) ExtractDocComment(node *sitter.Node, source []byte) string {
	body := node.ChildByFieldName("body")
	if node.Type() == "module" {
		body = node
	}
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str.Type() != "string" {
		return ""
	}
	return strings.TrimSpace(pythonStringContent(NodeText(str, source)))
}

// pythonVisibility: dunder names are public, __name is private, _name protected.
func pythonVisibility(name string) symbols.Visibility {
	switch {
	case strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") && len(name) > 4:
		return symbols.Public
	case strings.HasPrefix(name, "__"):
		return symbols.Private
	case strings.HasPrefix(name, "_"):
		return symbols.Protected
	}
	return symbols.Public
}

func pythonHasDecorator(decorated *sitter.Node, name string, source []byte) bool {
	for i := 0; i < int(decorated.NamedChildCount()); i++ {
		child := decorated.NamedChild(i)
		if child.Type() != "decorator" {
			continue
		}
		text := strings.TrimSpace(strings.TrimPrefix(NodeText(child, source), "@"))
		if text == name {
			return true
		}
	}
	return false
}

func pythonParameters(list *sitter.Node, source []byte) []symbols.Parameter {
	if list == nil {
		return nil
	}
	var params []symbols.Parameter
	for i := 0; i < int(list.NamedChildCount()); i++ {
		p := list.NamedChild(i)
		var param symbols.Parameter
		switch p.Type() {
		case "identifier":
			param.Name = NodeText(p, source)
		case "typed_parameter":
			inner := p.NamedChild(0)
			param.Type = CollapseWhitespace(fieldText(p, "type", source))
			if inner != nil {
				switch inner.Type() {
				case "list_splat_pattern", "dictionary_splat_pattern":
					param.Name = strings.TrimLeft(NodeText(inner, source), "*")
					param.IsRest = true
				default:
					param.Name = NodeText(inner, source)
				}
			}
		case "default_parameter", "typed_default_parameter":
			param.Name = fieldText(p, "name", source)
			param.Type = CollapseWhitespace(fieldText(p, "type", source))
			param.Default = CollapseWhitespace(fieldText(p, "value", source))
			param.IsOptional = true
		case "list_splat_pattern", "dictionary_splat_pattern":
			param.Name = strings.TrimLeft(NodeText(p, source), "*")
			param.IsRest = true
		default:
			// keyword_separator and positional_separator carry no name.
			continue
		}
		if param.Name == "" {
			continue
		}
		if len(params) == 0 && i == 0 && (param.Name == "self" || param.Name == "cls") {
			continue
		}
		params = append(params, param)
	}
	return params
}

func pythonExtractClassSignature(node *sitter.Node, source []byte) string {
	name := fieldText(node, "name", source)
	if args := node.ChildByFieldName("superclasses"); args != nil {
		return name + CollapseWhitespace(NodeText(args, source))
	}
	return name
}

// pythonExtractFieldSignature renders "name: type" when an annotation is present.
func pythonExtractFieldSignature(node *sitter.Node, source []byte) string {
	name := fieldText(node, "left", source)
	if annotation := fieldText(node, "type", source); annotation != "" {
		return name + ": " + CollapseWhitespace(annotation)
	}
	return name
}

func pythonExtractFunctionSignature(node *sitter.Node, source []byte) string {
	sig := fieldText(node, "name", source) + CollapseWhitespace(fieldText(node, "parameters", source))
	if returnType := fieldText(node, "return_type", source); returnType != "" {
		sig += " -> " + CollapseWhitespace(returnType)
	}
	if hasChildType(node, "async") {
		sig = "async " + sig
	}
	return sig
}

func isUpperSnake(name string) bool {
	hasLetter := false
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			hasLetter = true
		case r == '_' || (r >= '0' && r <= '9'):
		default:
			return false
		}
	}
	return hasLetter
}

// splitTypeList splits "[T, U]" or "<T, U>" into its entries.
func splitTypeList(text string) []string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(strings.TrimPrefix(text, "["), "<")
	text = strings.TrimSuffix(strings.TrimSuffix(text, "]"), ">")
	var out []string
	depth := 0
	start := 0
	for i, r := range text {
		switch r {
		case '<', '[', '(':
			depth++
		case '>', ']', ')':
			depth--
		case ',':
			if depth == 0 {
				if part := CollapseWhitespace(text[start:i]); part != "" {
					out = append(out, part)
				}
				start = i + 1
			}
		}
	}
	if part := CollapseWhitespace(text[start:]); part != "" {
		out = append(out, part)
	}
	return out
}

// Package symbols defines the normalized cross-language symbol model produced
// by the language extractors.
package symbols

import (
	"fmt"
	"strings"
)

// Kind indicates the syntactic kind of a symbol.
type Kind string

const (
	Function    Kind = "function"
	Method      Kind = "method"
	Class       Kind = "class"
	Struct      Kind = "struct"
	Interface   Kind = "interface"
	Trait       Kind = "trait"
	Enum        Kind = "enum"
	EnumVariant Kind = "enum_variant"
	Constant    Kind = "constant"
	Variable    Kind = "variable"
	Property    Kind = "property"
	Field       Kind = "field"
	TypeAlias   Kind = "type_alias"
	Module      Kind = "module"
	Namespace   Kind = "namespace"
	Impl        Kind = "impl"
)

// Visibility is the access level of a symbol after language-specific derivation.
type Visibility string

const (
	Public    Visibility = "public"
	Private   Visibility = "private"
	Protected Visibility = "protected"
	Internal  Visibility = "internal"
	Crate     Visibility = "crate"
)

// Call-site sentinels used as the caller when a call happens outside any function.
const (
	ModuleSentinel  = "<module>"
	PackageSentinel = "<package>"
	ClassSentinel   = "<class>"
)

// Parameter is one entry of a function's parameter list.
type Parameter struct {
	Name       string `json:"name"`
	Type       string `json:"type,omitempty"`
	Default    string `json:"default,omitempty"`
	IsRest     bool   `json:"is_rest,omitempty"`
	IsOptional bool   `json:"is_optional,omitempty"`
}

// Symbol is the canonical extracted symbol record.
// Lines are 1-indexed and StartLine <= EndLine.
type Symbol struct {
	Name          string
	QualifiedName string
	Kind          Kind
	Visibility    Visibility
	StartLine     int
	EndLine       int
	Signature     string
	Parameters    []Parameter
	ReturnType    string
	Generics      []string
	Parent        string
	DocComment    string
	Exported      bool
	IsAsync       bool
	IsStatic      bool
}

// IsAnnotatable reports whether the symbol kind receives @acp annotations.
func (s *Symbol) IsAnnotatable() bool { return s.Kind.IsAnnotatable() }

// IsAnnotatable reports whether symbols of kind k receive @acp annotations.
func (k Kind) IsAnnotatable() bool {
	switch k {
	case Function, Method, Class, Struct, Interface, Trait:
		return true
	}
	return false
}

// ImportedName is one name brought into scope by an import.
type ImportedName struct {
	Name  string `json:"name"`
	Alias string `json:"alias,omitempty"`
}

// Import is a module import statement.
type Import struct {
	Source      string         `json:"source"`
	Names       []ImportedName `json:"names,omitempty"`
	IsDefault   bool           `json:"is_default,omitempty"`
	IsNamespace bool           `json:"is_namespace,omitempty"`
	Line        int            `json:"line"`
}

// FunctionCall is a single call site. Callee is the name as written; it is
// never resolved against definitions at extraction time.
type FunctionCall struct {
	Caller   string
	Callee   string
	Line     int
	IsMethod bool
	Receiver string
}

// QualifiedName joins a parent qualified name and a name with sep.
func QualifiedName(parent, name, sep string) string {
	if parent == "" {
		return name
	}
	return parent + sep + name
}

// EnsureUniqueQualifiedNames suffixes repeated qualified names with #2, #3, ...
// so that qualified names stay unique within one file (Go allows several init
// functions, Java allows overloads).
func EnsureUniqueQualifiedNames(syms []Symbol) {
	seen := make(map[string]int, len(syms))
	for i := range syms {
		qn := syms[i].QualifiedName
		seen[qn]++
		if n := seen[qn]; n > 1 {
			syms[i].QualifiedName = fmt.Sprintf("%s#%d", qn, n)
		}
	}
}

// Find returns the first symbol with the given qualified name.
func Find(syms []Symbol, qualifiedName string) *Symbol {
	for i := range syms {
		if syms[i].QualifiedName == qualifiedName {
			return &syms[i]
		}
	}
	return nil
}

// FormatParameters renders a parameter list as "(a: T, b = 1, ...rest)".
func FormatParameters(params []Parameter) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		var b strings.Builder
		if p.IsRest {
			b.WriteString("...")
		}
		b.WriteString(p.Name)
		if p.IsOptional {
			b.WriteString("?")
		}
		if p.Type != "" {
			b.WriteString(": ")
			b.WriteString(p.Type)
		}
		if p.Default != "" {
			b.WriteString(" = ")
			b.WriteString(p.Default)
		}
		parts = append(parts, b.String())
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// maxDocLookback bounds how far upward a doc comment search reads.
const maxDocLookback = 400

// previousLines returns the lines above the line containing offset,
// nearest first.
func previousLines(source []byte, offset uint32, limit int) []string {
	end := int(offset)
	if end > len(source) {
		end = len(source)
	}
	// Move to the start of the current line.
	for end > 0 && source[end-1] != '\n' {
		end--
	}
	var lines []string
	for end > 0 && len(lines) < limit {
		lineEnd := end - 1 // index of '\n'
		start := lineEnd
		for start > 0 && source[start-1] != '\n' {
			start--
		}
		lines = append(lines, strings.TrimRight(string(source[start:lineEnd]), "\r"))
		end = start
	}
	return lines
}

// startsLine reports whether node is the first thing on its line, ignoring
// attributes. Members declared on their parent's line have no doc of their own.
func startsLine(node *sitter.Node, source []byte) bool {
	start := int(node.StartByte())
	if start > len(source) {
		return false
	}
	i := start
	for i > 0 && source[i-1] != '\n' {
		i--
	}
	before := strings.TrimSpace(string(source[i:start]))
	return before == "" || (strings.HasPrefix(before, "#[") && strings.HasSuffix(before, "]"))
}

// isAttributeLine reports decorator and attribute lines that may sit between
// a doc comment and its declaration.
func isAttributeLine(trimmed string) bool {
	return strings.HasPrefix(trimmed, "@") || strings.HasPrefix(trimmed, "#[")
}

// blockDocAbove returns the /** ... */ block immediately above a node, with
// markers intact. Decorator lines between the block and the node are skipped.
func blockDocAbove(node *sitter.Node, source []byte) string {
	return blockCommentAbove(node, source, true)
}

// blockCommentAbove returns the block comment ending on the line above a node.
// With requireDoc only /** blocks qualify.
func blockCommentAbove(node *sitter.Node, source []byte, requireDoc bool) string {
	prev := previousLines(source, node.StartByte(), maxDocLookback)
	i := 0
	for i < len(prev) && isAttributeLine(strings.TrimSpace(prev[i])) {
		i++
	}
	if i >= len(prev) {
		return ""
	}
	if !strings.HasSuffix(strings.TrimSpace(prev[i]), "*/") {
		return ""
	}
	var block []string
	for ; i < len(prev); i++ {
		block = append(block, prev[i])
		trimmed := strings.TrimSpace(prev[i])
		if strings.HasPrefix(trimmed, "/**") {
			return joinReversed(block)
		}
		if strings.HasPrefix(trimmed, "/*") {
			if requireDoc {
				return ""
			}
			return joinReversed(block)
		}
		if strings.Contains(trimmed, "/*") {
			// Opened after code on the same line.
			return ""
		}
	}
	return ""
}

// lineDocAbove accumulates consecutive comment lines starting with one of the
// prefixes immediately above a node. Stops at the first non-comment line.
func lineDocAbove(node *sitter.Node, source []byte, prefixes ...string) string {
	prev := previousLines(source, node.StartByte(), maxDocLookback)
	i := 0
	for i < len(prev) && strings.HasPrefix(strings.TrimSpace(prev[i]), "#[") {
		i++
	}
	var block []string
	for ; i < len(prev); i++ {
		trimmed := strings.TrimSpace(prev[i])
		if !hasAnyPrefix(trimmed, prefixes) {
			break
		}
		block = append(block, trimmed)
	}
	if len(block) == 0 {
		return ""
	}
	return joinReversed(block)
}

// innerDocAtTop returns the leading run of lines with prefix at the top of a
// file, such as Rust's //! module docs.
func innerDocAtTop(source []byte, prefix string) string {
	var block []string
	for _, line := range strings.Split(string(source), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, prefix) {
			block = append(block, trimmed)
			continue
		}
		if trimmed == "" && len(block) == 0 {
			continue
		}
		break
	}
	return strings.Join(block, "\n")
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func joinReversed(lines []string) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[len(lines)-1-i] = strings.TrimSpace(l)
	}
	return strings.Join(out, "\n")
}

// pythonStringContent strips the prefix and quotes of a Python string literal.
func pythonStringContent(raw string) string {
	raw = strings.TrimLeft(raw, "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(raw, q) && strings.HasSuffix(raw, q) && len(raw) >= 2*len(q) {
			return raw[len(q) : len(raw)-len(q)]
		}
	}
	return raw
}

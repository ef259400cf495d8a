package parser

import "strings"

// Span tags a byte range of an input line with a syntactic role, for
// consumption by the (out-of-scope) line editor's highlighter. Role is
// one of spec.md section 4.1's eight kinds: "command", "flag",
// "argument", "string", "keyword", "method", "operator", "comment".
type Span struct {
	Start, End int
	Role       string
}

// surfaceModules are the bridge surfaces a "name.method(...)" call can
// dot into; used to recognise the "method" highlight kind on scripted
// lines. Kept in sync with bridge.Bridge.Surfaces's four modules.
var surfaceModules = map[string]bool{
	"fs": true, "proc": true, "net": true, "utils": true,
}

// Highlight returns the spans a renderer would colourise for input,
// without evaluating it. Grounded on quantum_parser.cpp's separate
// tokenisation pass used for syntax highlighting independent of
// execution.
func Highlight(input string) []Span {
	plan, err := Parse(input)
	if err != nil || plan == nil {
		return nil
	}

	if plan.Mode == ModeScripted {
		return highlightScripted(input)
	}
	return highlightTraditional(input, plan.Commands)
}

// pipelineOperators are the traditional-mode tokens highlighted as
// "operator". Parse's segment splitter itself splits only on a single
// "|"; the others are highlighted wherever they occur in input.
var pipelineOperators = []string{"&&", "||", "|", ";", "&"}

func highlightTraditional(input string, commands []Command) []Span {
	var spans []Span
	offset := 0
	for _, cmd := range commands {
		idx := strings.Index(input[offset:], cmd.Raw)
		if idx < 0 {
			continue
		}
		segStart := offset + idx
		segEnd := segStart + len(cmd.Raw)

		nameIdx := strings.Index(input[segStart:segEnd], cmd.Name)
		if nameIdx < 0 {
			offset = segEnd
			continue
		}
		nameStart := segStart + nameIdx
		nameEnd := nameStart + len(cmd.Name)
		spans = append(spans, Span{Start: nameStart, End: nameEnd, Role: "command"})
		spans = append(spans, argumentSpans(input, nameEnd, segEnd)...)

		offset = segEnd
	}

	for _, op := range pipelineOperators {
		offset = 0
		for {
			idx := strings.Index(input[offset:], op)
			if idx < 0 {
				break
			}
			start := offset + idx
			spans = append(spans, Span{Start: start, End: start + len(op), Role: "operator"})
			offset = start + len(op)
		}
	}
	return spans
}

// argumentSpans tokenises input[start:end] (the flags and positional
// arguments following a command name) on whitespace, tagging each
// token "flag" if it begins with a non-numeric "-" and "argument"
// otherwise. It does not re-split quoted strings; spec.md section
// 4.1's highlighter is best-effort, not a second parser.
func argumentSpans(input string, start, end int) []Span {
	var spans []Span
	i := start
	for i < end {
		for i < end && input[i] == ' ' {
			i++
		}
		if i >= end {
			break
		}
		tokStart := i
		for i < end && input[i] != ' ' {
			i++
		}
		tok := input[tokStart:i]
		role := "argument"
		if strings.HasPrefix(tok, "-") && !isNumeric(tok) {
			role = "flag"
		}
		spans = append(spans, Span{Start: tokStart, End: i, Role: role})
	}
	return spans
}

// scriptedOperators lists the Starlark operator tokens highlighted in
// scripted mode, longest first so e.g. "==" matches before "=".
var scriptedOperators = []string{
	"==", "!=", "<=", ">=", "//", "+=", "-=", "*=", "/=",
	"+", "-", "*", "/", "%", "=", "<", ">", ".", ",", "(", ")", "[", "]", "{", "}", ":",
}

func highlightScripted(input string) []Span {
	var spans []Span
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == '#':
			start := i
			for i < len(input) && input[i] != '\n' {
				i++
			}
			spans = append(spans, Span{Start: start, End: i, Role: "comment"})
		case isIdentByte(c) && !(c >= '0' && c <= '9'):
			start := i
			for i < len(input) && isIdentByte(input[i]) {
				i++
			}
			word := input[start:i]
			switch {
			case starlarkKeywords[word]:
				spans = append(spans, Span{Start: start, End: i, Role: "keyword"})
			case surfaceModules[word] && i < len(input) && input[i] == '.':
				spans = append(spans, Span{Start: start, End: i, Role: "method"})
				spans = append(spans, methodCallSpan(input, i))
			}
		case c == '"' || c == '\'':
			quote := c
			start := i
			i++
			for i < len(input) && input[i] != quote {
				i++
			}
			if i < len(input) {
				i++
			}
			spans = append(spans, Span{Start: start, End: i, Role: "string"})
		case c == ' ' || c == '\t' || c == '\n':
			i++
		default:
			matched := false
			for _, op := range scriptedOperators {
				if strings.HasPrefix(input[i:], op) {
					spans = append(spans, Span{Start: i, End: i + len(op), Role: "operator"})
					i += len(op)
					matched = true
					break
				}
			}
			if !matched {
				i++
			}
		}
	}
	return spans
}

// methodCallSpan tags the "methodName" half of a "module.methodName"
// dotted call, where dot is the index of the '.' immediately following
// the module identifier. Returns a zero-width span if no identifier
// follows the dot (e.g. a trailing "fs." at end of input).
func methodCallSpan(input string, dot int) Span {
	start := dot + 1
	end := start
	for end < len(input) && isIdentByte(input[end]) {
		end++
	}
	return Span{Start: start, End: end, Role: "method"}
}

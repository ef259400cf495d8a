// Package parser implements the shell's single source of truth for
// turning a raw input line into a structured command plan: the
// classifier that chooses between traditional-pipeline and scripted
// evaluation, the tokeniser, and the completion/highlight helpers the
// (out-of-scope) line editor consults.
//
// Grounded on core/shell/parser.go (a stub in the teacher) and
// quantum_parser.cpp from the original C++ implementation, with the
// scripted-syntax detection predicates restated for Starlark — see
// SPEC_FULL.md section 4.1 for why Starlark and not JavaScript.
package parser

import (
	"strings"

	"github.com/anmitsu/go-shlex"

	"github.com/nexusshell/nexus/internal/nexuserr"
)

// Mode classifies a line.
type Mode int

const (
	ModeTraditional Mode = iota
	ModeScripted
)

func (m Mode) String() string {
	if m == ModeScripted {
		return "scripted"
	}
	return "traditional"
}

// Command is one element of a Plan: name, positional args, flags.
type Command struct {
	Name       string
	Args       []string
	Flags      map[string]any // string or bool
	Background bool
	Raw        string
}

// Plan is the parser's output for one input line.
type Plan struct {
	Original string
	Mode     Mode
	Commands []Command
	Script   string // non-empty iff Mode == ModeScripted
}

// starlarkKeywords is the set of reserved words that mark a line as
// scripted. Starlark's keyword list per go.starlark.net/starlark,
// restated here rather than imported so the classifier never needs to
// touch the evaluator (spec.md: "classification never evaluates the
// line").
var starlarkKeywords = map[string]bool{
	"def": true, "lambda": true, "for": true, "in": true, "if": true,
	"elif": true, "else": true, "return": true, "load": true,
	"pass": true, "break": true, "continue": true, "not": true,
	"and": true, "or": true,
}

// Parse classifies and tokenises a raw input line. It is a total
// function: every input yields a Plan or a *nexuserr.Error with Kind
// KindSyntax and a valid Offset in [0, len(input)].
func Parse(input string) (*Plan, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return &Plan{Original: input, Mode: ModeTraditional}, nil
	}

	if isScriptedSyntax(trimmed) {
		return &Plan{Original: input, Mode: ModeScripted, Script: input}, nil
	}

	if isPipelineSyntax(trimmed) {
		segments, err := splitPipeline(trimmed)
		if err != nil {
			return nil, err
		}
		for _, seg := range segments {
			if isScriptedSyntax(seg) {
				// Mixed: any scripted segment promotes the whole plan.
				return &Plan{Original: input, Mode: ModeScripted, Script: input}, nil
			}
		}
		commands := make([]Command, 0, len(segments))
		for _, seg := range segments {
			cmd, err := parseSingleCommand(seg)
			if err != nil {
				return nil, err
			}
			commands = append(commands, cmd)
		}
		return &Plan{Original: input, Mode: ModeTraditional, Commands: commands}, nil
	}

	cmd, err := parseSingleCommand(trimmed)
	if err != nil {
		return nil, err
	}
	return &Plan{Original: input, Mode: ModeTraditional, Commands: []Command{cmd}}, nil
}

// Valid reports whether input parses without error. Convenience
// wrapper grounded on quantum_parser.cpp's is_valid_syntax.
func Valid(input string) bool {
	_, err := Parse(input)
	return err == nil
}

// SyntaxErrors returns a human-readable list of syntax problems with
// input, or an empty slice if none. Convenience wrapper grounded on
// quantum_parser.cpp's get_syntax_errors.
func SyntaxErrors(input string) []string {
	var errs []string
	if _, err := Parse(input); err != nil {
		errs = append(errs, err.Error())
	}
	return errs
}

// isScriptedSyntax implements spec.md section 4.1's classification
// rules, restated for Starlark: a dotted method call, a Starlark
// keyword as a whole word outside quotes, a comprehension bracket, or
// an unbalanced leading bracket/brace/paren on a multi-line input.
func isScriptedSyntax(input string) bool {
	if hasDottedCall(input) {
		return true
	}
	if hasKeyword(input) {
		return true
	}
	if strings.Contains(input, "\n") && hasUnbalancedOpenBracket(input) {
		return true
	}
	return false
}

// hasDottedCall detects identifier.identifier( outside quotes, e.g.
// fs.listDir( or proc.exec(.
func hasDottedCall(input string) bool {
	inSingle, inDouble := false, false
	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case c == '.' && !inSingle && !inDouble:
			if isIdentByte(prevByte(input, i)) {
				j := i + 1
				start := j
				for j < len(input) && isIdentByte(input[j]) {
					j++
				}
				if j > start && j < len(input) && input[j] == '(' {
					return true
				}
			}
		}
	}
	return false
}

func prevByte(s string, i int) byte {
	if i == 0 {
		return 0
	}
	return s[i-1]
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// hasKeyword detects a Starlark keyword as a standalone word outside
// quoted strings.
func hasKeyword(input string) bool {
	inSingle, inDouble := false, false
	word := strings.Builder{}

	flush := func() bool {
		if starlarkKeywords[word.String()] {
			return true
		}
		word.Reset()
		return false
	}

	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
			if flush() {
				return true
			}
		case c == '"' && !inSingle:
			inDouble = !inDouble
			if flush() {
				return true
			}
		case inSingle || inDouble:
			// inside a quoted string, ignore content for keyword purposes
		case isIdentByte(c):
			word.WriteByte(c)
		default:
			if flush() {
				return true
			}
		}
	}
	return flush()
}

func hasUnbalancedOpenBracket(input string) bool {
	depth := 0
	inSingle, inDouble := false, false
	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case inSingle || inDouble:
		case c == '{' || c == '[' || c == '(':
			depth++
		case c == '}' || c == ']' || c == ')':
			depth--
		}
	}
	return depth > 0
}

// isPipelineSyntax reports whether input contains a top-level `|` that
// is not `||` and not inside quotes.
func isPipelineSyntax(input string) bool {
	inSingle, inDouble := false, false
	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case c == '|' && !inSingle && !inDouble:
			if i+1 < len(input) && input[i+1] == '|' {
				i++ // skip the second pipe, it's a logical-or, not a pipeline
				continue
			}
			if i > 0 && input[i-1] == '|' {
				continue
			}
			return true
		}
	}
	return false
}

// splitPipeline splits input on unquoted, single `|` characters and
// trims whitespace from each segment.
func splitPipeline(input string) ([]string, error) {
	var segments []string
	var cur strings.Builder
	inSingle, inDouble := false, false

	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
			cur.WriteByte(c)
		case c == '"' && !inSingle:
			inDouble = !inDouble
			cur.WriteByte(c)
		case c == '|' && !inSingle && !inDouble:
			if i+1 < len(input) && input[i+1] == '|' {
				cur.WriteByte(c)
				cur.WriteByte(input[i+1])
				i++
				continue
			}
			segments = append(segments, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if inSingle || inDouble {
		return nil, nexuserr.AtOffset("unterminated quote", len(input))
	}
	segments = append(segments, strings.TrimSpace(cur.String()))
	return segments, nil
}

// parseSingleCommand tokenises one traditional-shell command segment
// into name/args/flags, grounded on core/shell.go's use of
// anmitsu/go-shlex for quote-aware splitting plus the flag-expansion
// rules from spec.md section 3.
func parseSingleCommand(segment string) (Command, error) {
	background := false
	trimmed := strings.TrimSpace(segment)
	if strings.HasSuffix(trimmed, "&") && !strings.HasSuffix(trimmed, "&&") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "&"))
		background = true
	}

	tokens, err := shlex.Split(trimmed, true)
	if err != nil {
		serr := nexuserr.Wrap(nexuserr.KindSyntax, err, "unterminated quote or trailing escape")
		serr.Offset = len(trimmed)
		return Command{}, serr
	}
	if len(tokens) == 0 {
		return Command{Raw: segment, Background: background}, nil
	}

	cmd := Command{
		Name:       tokens[0],
		Flags:      map[string]any{},
		Background: background,
		Raw:        segment,
	}

	for _, tok := range tokens[1:] {
		switch {
		case strings.HasPrefix(tok, "--") && strings.Contains(tok, "="):
			kv := strings.SplitN(strings.TrimPrefix(tok, "--"), "=", 2)
			cmd.Flags[kv[0]] = kv[1]
		case strings.HasPrefix(tok, "--"):
			cmd.Flags[strings.TrimPrefix(tok, "--")] = true
		case strings.HasPrefix(tok, "-") && len(tok) > 1 && !isNumeric(tok):
			for _, r := range tok[1:] {
				cmd.Flags[string(r)] = true
			}
		default:
			cmd.Args = append(cmd.Args, tok)
		}
	}

	return cmd, nil
}

func isNumeric(tok string) bool {
	for _, r := range tok[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(tok) > 1
}

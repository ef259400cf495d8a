package parser

import (
	"sort"
	"strings"
)

// Completions returns candidate completions for the token at cursor
// within input, drawn from known. It never evaluates input; it only
// looks at the partial word under the cursor, matching the
// non-evaluating contract spec.md assigns to the classifier's
// auxiliary operations. Per spec.md section 4.1, an exact match of the
// whole word comes first, followed by every other prefix match in
// alphabetical order.
func Completions(input string, cursor int, known []string) []string {
	if cursor < 0 || cursor > len(input) {
		cursor = len(input)
	}
	prefix := currentWord(input, cursor)
	if prefix == "" {
		return nil
	}
	var exact, rest []string
	for _, name := range known {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if name == prefix {
			exact = append(exact, name)
		} else {
			rest = append(rest, name)
		}
	}
	sort.Strings(exact)
	sort.Strings(rest)
	return append(exact, rest...)
}

// currentWord returns the run of non-whitespace characters ending at
// cursor.
func currentWord(input string, cursor int) string {
	start := cursor
	for start > 0 && !isSpace(input[start-1]) {
		start--
	}
	return input[start:cursor]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t'
}

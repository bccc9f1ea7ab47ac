package backend

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/petal-labs/cuke/core"
)

var (
	// numberLiteral parameterizes integer literals in step text.
	numberLiteral = regexp.MustCompile(`\d+`)

	// quotedLiteral parameterizes double-quoted strings in step text.
	quotedLiteral = regexp.MustCompile(`"[^"]*"`)
)

// generateSnippet produces a Go step definition stub for an undefined
// step. Obvious literals (numbers, quoted strings) become capture groups.
// keywordPlaceholder stands in for the Gherkin keyword, which the
// compiled scenario does not preserve.
func generateSnippet(step core.Step, keywordPlaceholder string, naming core.NamingConvention) string {
	pattern := snippetPattern(step.Text)
	name := functionName(step.Text, naming)

	var sb strings.Builder
	fmt.Fprintf(&sb, "// %s %s\n", keywordPlaceholder, step.Text)
	fmt.Fprintf(&sb, "b.Step(`%s`, func(ctx context.Context, w *core.World, args []string, arg *core.StepArgument) error {\n", pattern)
	fmt.Fprintf(&sb, "\treturn errors.New(\"pending: %s\")\n", name)
	sb.WriteString("})")
	return sb.String()
}

// snippetPattern converts step text into an anchored regular expression
// with capture groups for quoted strings and numbers.
func snippetPattern(text string) string {
	escaped := regexp.QuoteMeta(text)
	escaped = quotedLiteral.ReplaceAllString(escaped, `"([^"]*)"`)
	escaped = numberLiteral.ReplaceAllString(escaped, `(\d+)`)
	return "^" + escaped + "$"
}

// functionName derives an identifier from step text per the naming
// convention, dropping literals and non-alphanumeric characters.
func functionName(text string, naming core.NamingConvention) string {
	clean := quotedLiteral.ReplaceAllString(text, "")
	clean = numberLiteral.ReplaceAllString(clean, "")

	var words []string
	for _, w := range strings.Fields(clean) {
		var b strings.Builder
		for _, r := range w {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(unicode.ToLower(r))
			}
		}
		if b.Len() > 0 {
			words = append(words, b.String())
		}
	}
	if len(words) == 0 {
		return "undefined_step"
	}

	if naming == core.NamingCamelCase {
		out := words[0]
		for _, w := range words[1:] {
			out += strings.ToUpper(w[:1]) + w[1:]
		}
		return out
	}
	return strings.Join(words, "_")
}

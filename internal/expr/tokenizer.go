// internal/expr/tokenizer.go
package expr

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/solatis/qamatrix/internal/types"
)

/*
 * Expression tokenizer.
 *
 * Splits condition text into tokens without understanding the grammar:
 *   - runs of non-whitespace, non-special characters form one token
 *   - whitespace separates tokens and is dropped
 *   - every special character is a one-character token
 *   - a quote starts a literal that runs to the matching unescaped quote
 *     and is emitted whole, quotes included
 *
 * Inside a literal a doubled quote stands for one quote character, as in
 * SQL: 'O''Brien'. A literal must start a token and must be followed by
 * whitespace, a special character or the end of input. Violations are reported as *SyntaxError
 * with the rune offset and a short excerpt of the surrounding text.
 *
 * Positions count runes, not bytes, so excerpts never split a character.
 */

// NullValue is the sentinel spelled in matrices and conditions for "no value".
const NullValue = "<NULL>"

// nullPlaceholder replaces NullValue while tokenizing; '<' and '>' are
// special characters of the condition grammar and would split it.
const nullPlaceholder = "#NULL#"

// Character sets of the condition grammar used by SplitCondition.
const (
	ConditionQuotes   = "'"
	ConditionSpecials = ",:()=<>"
)

// SyntaxError reports the position of a tokenizing failure.
type SyntaxError struct {
	Expression string
	Position   int
	Near       string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s\nInvalid expression near position %d\n%s", e.Expression, e.Position, e.Near)
}

// Unwrap classifies tokenizer failures as format errors.
func (e *SyntaxError) Unwrap() error { return types.ErrFormat }

// Tokenize splits expression using the given quote, escape and special
// character sets. Any set may be empty.
func Tokenize(expression, quotes, escapes, specials string) ([]string, error) {
	runes := []rune(expression)
	n := len(runes)

	var tokens []string
	start := 0

	flush := func(end int) {
		if end > start {
			tokens = append(tokens, string(runes[start:end]))
		}
	}

	for pos := 0; pos < n; pos++ {
		c := runes[pos]

		switch {
		case strings.ContainsRune(quotes, c):
			if start != pos {
				return nil, newSyntaxError(runes, pos)
			}
			end, ok := closingQuote(runes, pos, escapes)
			if !ok {
				return nil, newSyntaxError(runes, pos)
			}
			if next := end + 1; next < n && !unicode.IsSpace(runes[next]) && !strings.ContainsRune(specials, runes[next]) {
				return nil, newSyntaxError(runes, end)
			}
			tokens = append(tokens, string(runes[pos:end+1]))
			pos = end
			start = end + 1

		case unicode.IsSpace(c):
			flush(pos)
			start = pos + 1

		case strings.ContainsRune(specials, c):
			flush(pos)
			tokens = append(tokens, string(c))
			start = pos + 1
		}
	}
	flush(n)

	return tokens, nil
}

// closingQuote finds the quote matching the one at open. An escape
// character consumes the character following it, and so does a quote
// followed by the same quote.
func closingQuote(runes []rune, open int, escapes string) (int, bool) {
	quote := runes[open]
	for i := open + 1; i < len(runes); i++ {
		c := runes[i]
		if strings.ContainsRune(escapes, c) {
			i++
			continue
		}
		if c == quote {
			if i+1 < len(runes) && runes[i+1] == quote {
				i++
				continue
			}
			return i, true
		}
	}
	return 0, false
}

// Quote renders s as a condition literal.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Unquote returns the text of a literal token produced by SplitCondition.
// Other tokens are returned unchanged.
func Unquote(token string) string {
	if len(token) < 2 || token[0] != '\'' || token[len(token)-1] != '\'' {
		return token
	}
	return strings.ReplaceAll(token[1:len(token)-1], "''", "'")
}

// SplitCondition tokenizes a constraint condition such as
// "ISNULL(F,5) IN (5,7)" or "F = <NULL>". The NULL sentinel inside a
// literal is plain text.
func SplitCondition(condition string) ([]string, error) {
	prepared := replaceUnquoted(condition, NullValue, " "+nullPlaceholder+" ")
	tokens, err := Tokenize(prepared, ConditionQuotes, "", ConditionSpecials)
	if err != nil {
		return nil, err
	}
	for i, tok := range tokens {
		if tok == nullPlaceholder {
			tokens[i] = NullValue
		}
	}
	return tokens, nil
}

// replaceUnquoted replaces old with repl outside of condition literals.
func replaceUnquoted(s, old, repl string) string {
	if !strings.Contains(s, old) {
		return s
	}
	var sb strings.Builder
	quoted := false
	for i := 0; i < len(s); {
		if !quoted && strings.HasPrefix(s[i:], old) {
			sb.WriteString(repl)
			i += len(old)
			continue
		}
		if strings.IndexByte(ConditionQuotes, s[i]) >= 0 {
			quoted = !quoted
		}
		sb.WriteByte(s[i])
		i++
	}
	return sb.String()
}

// Excerpt context sizes.
const (
	leadDots    = 3
	excerptLen  = 10
	excerptTail = 3
)

func newSyntaxError(runes []rune, pos int) *SyntaxError {
	var near strings.Builder
	near.WriteString(strings.Repeat(".", min(leadDots, pos)))

	rest := len(runes) - pos
	if rest < excerptLen+excerptTail {
		near.WriteString(string(runes[pos:]))
	} else {
		near.WriteString(string(runes[pos : pos+excerptLen]))
		near.WriteString("...")
	}

	return &SyntaxError{
		Expression: string(runes),
		Position:   pos,
		Near:       near.String(),
	}
}

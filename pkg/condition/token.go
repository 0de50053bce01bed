// Package condition implements the trigger condition language: a tokeniser,
// a compiler producing panic-safe predicates over event maps, an equality
// atom extractor, and the nested search tree that indexes triggers.
package condition

import (
	"regexp"
	"strings"
)

// TokenType classifies lexed tokens.
type TokenType string

const (
	TokenField    TokenType = "FIELD"
	TokenString   TokenType = "STRING"
	TokenNumber   TokenType = "NUMBER"
	TokenBoolean  TokenType = "BOOLEAN"
	TokenNone     TokenType = "NONE"
	TokenOperator TokenType = "OPERATOR"
	TokenLogical  TokenType = "LOGICAL"
	TokenBracket  TokenType = "BRACKET"
	TokenComma    TokenType = "COMMA"
	TokenUnknown  TokenType = "UNKNOWN"
)

// Token is a single lexed unit of a condition source string.
type Token struct {
	Type TokenType
	Text string
}

// tokenSpec pairs an anchored pattern with the type it produces. Order
// matters: multi-word operators must be tried before single-word keywords,
// and keywords before bare fields.
type tokenSpec struct {
	typ TokenType
	re  *regexp.Regexp
}

var tokenSpecs = []tokenSpec{
	{TokenOperator, regexp.MustCompile(`^not\s+is_null\b`)},
	{TokenOperator, regexp.MustCompile(`^not\s+in\b`)},
	{TokenOperator, regexp.MustCompile(`^(==|!=|>=|<=|>|<|!~|~)`)},
	{TokenOperator, regexp.MustCompile(`^(in|regex|is_null)\b`)},
	{TokenLogical, regexp.MustCompile(`^(and|or|not)\b`)},
	{TokenBoolean, regexp.MustCompile(`^([Tt]rue|[Ff]alse)\b`)},
	{TokenNone, regexp.MustCompile(`^([Nn]ull|[Nn]one)\b`)},
	{TokenField, regexp.MustCompile(`^\$[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_-]+|\[-?\d+\])*`)},
	{TokenString, regexp.MustCompile(`^'(?:[^'\\]|\\.)*'`)},
	{TokenString, regexp.MustCompile(`^"(?:[^"\\]|\\.)*"`)},
	// Bare dotted numerics (IP addresses, date-like strings) lex as strings.
	{TokenString, regexp.MustCompile(`^\d+(?:\.\d+){2,}`)},
	{TokenNumber, regexp.MustCompile(`^[-+]?\d+(?:\.\d+)?`)},
	{TokenBracket, regexp.MustCompile(`^[()\[\]]`)},
	{TokenComma, regexp.MustCompile(`^,`)},
}

var unknownRun = regexp.MustCompile(`^[^\s(),\[\]]+`)

// Tokenize lexes a condition source into typed tokens. It never fails:
// unrecognised runs become UNKNOWN tokens for the parser to reject.
func Tokenize(source string) []Token {
	var tokens []Token
	rest := source
	for {
		rest = strings.TrimLeft(rest, " \t\r\n")
		if rest == "" {
			return tokens
		}
		matched := false
		for _, spec := range tokenSpecs {
			loc := spec.re.FindStringIndex(rest)
			if loc == nil {
				continue
			}
			text := rest[:loc[1]]
			if spec.typ == TokenOperator {
				text = normalizeOperator(text)
			}
			tokens = append(tokens, Token{Type: spec.typ, Text: text})
			rest = rest[loc[1]:]
			matched = true
			break
		}
		if matched {
			continue
		}
		loc := unknownRun.FindStringIndex(rest)
		if loc == nil {
			// Lone bracket-class byte that no spec claimed; consume one rune.
			tokens = append(tokens, Token{Type: TokenUnknown, Text: rest[:1]})
			rest = rest[1:]
			continue
		}
		tokens = append(tokens, Token{Type: TokenUnknown, Text: rest[:loc[1]]})
		rest = rest[loc[1]:]
	}
}

// normalizeOperator collapses interior whitespace so "not   in" and
// "not in" compare equal downstream.
func normalizeOperator(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

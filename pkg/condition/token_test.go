package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeBasicExpression(t *testing.T) {
	tokens := Tokenize(`$system.tenant_id == 1 and $text == "/ping"`)
	require.Len(t, tokens, 7)

	assert.Equal(t, Token{TokenField, "$system.tenant_id"}, tokens[0])
	assert.Equal(t, Token{TokenOperator, "=="}, tokens[1])
	assert.Equal(t, Token{TokenNumber, "1"}, tokens[2])
	assert.Equal(t, Token{TokenLogical, "and"}, tokens[3])
	assert.Equal(t, Token{TokenField, "$text"}, tokens[4])
	assert.Equal(t, Token{TokenOperator, "=="}, tokens[5])
	assert.Equal(t, Token{TokenString, `"/ping"`}, tokens[6])
}

func TestTokenizeMultiWordOperators(t *testing.T) {
	tokens := Tokenize(`$status not in ["a", "b"] and $name not   is_null`)

	var ops []string
	for _, tok := range tokens {
		if tok.Type == TokenOperator {
			ops = append(ops, tok.Text)
		}
	}
	assert.Equal(t, []string{"not in", "not is_null"}, ops)
}

func TestTokenizeDottedNumericLiterals(t *testing.T) {
	// IP addresses and similar dotted numerics are strings, not fields.
	tokens := Tokenize(`$ip == 192.168.0.1`)
	require.Len(t, tokens, 3)
	assert.Equal(t, Token{TokenString, "192.168.0.1"}, tokens[2])

	// Plain decimals stay numbers.
	tokens = Tokenize(`$score >= 0.75`)
	require.Len(t, tokens, 3)
	assert.Equal(t, Token{TokenNumber, "0.75"}, tokens[2])
}

func TestTokenizeFieldWithIndex(t *testing.T) {
	tokens := Tokenize(`$items[0].name == 'x' or $tail[-1] != 2`)
	assert.Equal(t, Token{TokenField, "$items[0].name"}, tokens[0])
	assert.Equal(t, Token{TokenField, "$tail[-1]"}, tokens[4])
}

func TestTokenizeNeverFails(t *testing.T) {
	tokens := Tokenize(`@@@ $a == ??? #!`)
	var unknown int
	for _, tok := range tokens {
		if tok.Type == TokenUnknown {
			unknown++
		}
	}
	assert.GreaterOrEqual(t, unknown, 2)
}

func TestTokenizeBooleansAndNull(t *testing.T) {
	tokens := Tokenize(`$a == true and $b == null and $c == False`)
	assert.Equal(t, TokenBoolean, tokens[2].Type)
	assert.Equal(t, TokenNone, tokens[6].Type)
	assert.Equal(t, TokenBoolean, tokens[10].Type)
}

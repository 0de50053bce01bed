package condition

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Atom is a flat equality constraint ($field == literal, field without dots)
// extracted from a condition for search-tree placement.
type Atom struct {
	Field string
	Value any
}

// Compiled is the evaluable form of a condition source string.
type Compiled struct {
	Source     string
	Hash       string
	SearchPath []Atom

	root node
}

// Match evaluates the compiled predicate against an event. It never panics:
// internal evaluation errors are logged and count as no-match.
func (c *Compiled) Match(event map[string]any) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Condition evaluation panicked",
				"condition", c.Source, "panic", r)
			matched = false
		}
	}()
	return truthy(c.root.eval(event))
}

// Compile tokenises and parses a condition source. The returned Compiled
// carries the stable hash of the trimmed source and the sorted equality
// atoms usable as a search path.
func Compile(source string) (*Compiled, error) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return nil, fmt.Errorf("empty condition")
	}

	p := &parser{tokens: Tokenize(trimmed)}
	root, err := p.parseExpression()
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", trimmed, err)
	}
	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("parse %q: trailing tokens at %d", trimmed, p.pos)
	}

	sum := sha256.Sum256([]byte(trimmed))
	return &Compiled{
		Source:     trimmed,
		Hash:       hex.EncodeToString(sum[:]),
		SearchPath: extractAtoms(root),
		root:       root,
	}, nil
}

// extractAtoms walks the conjunction spine of the AST and collects flat
// equality atoms. Only atoms that are necessary conditions of the whole
// expression qualify, so branches under or/not are never descended.
func extractAtoms(root node) []Atom {
	byField := map[string]Atom{}
	var walk func(n node)
	walk = func(n node) {
		switch t := n.(type) {
		case *logicalNode:
			if t.op != "and" {
				return
			}
			for _, op := range t.operands {
				walk(op)
			}
		case *compareNode:
			if t.op != "==" {
				return
			}
			field, lit, ok := flatEquality(t)
			if !ok {
				return
			}
			if _, dup := byField[field]; !dup {
				byField[field] = Atom{Field: field, Value: lit}
			}
		}
	}
	walk(root)

	atoms := make([]Atom, 0, len(byField))
	for _, a := range byField {
		atoms = append(atoms, a)
	}
	sort.Slice(atoms, func(i, j int) bool { return atoms[i].Field < atoms[j].Field })
	return atoms
}

// flatEquality matches $field == literal (either operand order) where the
// field path has a single segment.
func flatEquality(cmp *compareNode) (string, any, bool) {
	if f, ok := cmp.left.(*fieldNode); ok && len(f.segments) == 1 {
		if lit, ok := cmp.right.(*literalNode); ok {
			return f.segments[0], lit.val, true
		}
	}
	if f, ok := cmp.right.(*fieldNode); ok && len(f.segments) == 1 {
		if lit, ok := cmp.left.(*literalNode); ok {
			return f.segments[0], lit.val, true
		}
	}
	return "", nil, false
}

// parser is a recursive-descent parser over the token stream.
//
// expression := and ( "or" and )*
// and        := unary ( "and" unary )*
// unary      := "not" unary | comparison
// comparison := primary ( OPERATOR primary? )?
// primary    := "(" expression ")" | list | FIELD | literal
type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) peek() (Token, bool) {
	if p.pos >= len(p.tokens) {
		return Token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) next() (Token, bool) {
	tok, ok := p.peek()
	if ok {
		p.pos++
	}
	return tok, ok
}

func (p *parser) parseExpression() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	operands := []node{left}
	for {
		tok, ok := p.peek()
		if !ok || tok.Type != TokenLogical || tok.Text != "or" {
			break
		}
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		operands = append(operands, right)
	}
	if len(operands) == 1 {
		return left, nil
	}
	return &logicalNode{op: "or", operands: operands}, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	operands := []node{left}
	for {
		tok, ok := p.peek()
		if !ok || tok.Type != TokenLogical || tok.Text != "and" {
			break
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		operands = append(operands, right)
	}
	if len(operands) == 1 {
		return left, nil
	}
	return &logicalNode{op: "and", operands: operands}, nil
}

func (p *parser) parseUnary() (node, error) {
	if tok, ok := p.peek(); ok && tok.Type == TokenLogical && tok.Text == "not" {
		p.pos++
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notNode{child: child}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	tok, ok := p.peek()
	if !ok || tok.Type != TokenOperator {
		return left, nil
	}
	p.pos++

	cmp := &compareNode{op: tok.Text, left: left}
	if tok.Text == "is_null" || tok.Text == "not is_null" {
		return cmp, nil
	}

	right, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	cmp.right = right

	if tok.Text == "regex" {
		if lit, ok := right.(*literalNode); ok {
			pattern := fmt.Sprintf("%v", lit.val)
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
			}
			cmp.re = re
		}
	}
	return cmp, nil
}

func (p *parser) parsePrimary() (node, error) {
	tok, ok := p.next()
	if !ok {
		return nil, fmt.Errorf("unexpected end of condition")
	}

	switch tok.Type {
	case TokenBracket:
		switch tok.Text {
		case "(":
			inner, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			closing, ok := p.next()
			if !ok || closing.Text != ")" {
				return nil, fmt.Errorf("missing closing parenthesis")
			}
			return inner, nil
		case "[":
			return p.parseList()
		}
		return nil, fmt.Errorf("unexpected bracket %q", tok.Text)

	case TokenField:
		return &fieldNode{segments: fieldSegments(tok.Text)}, nil

	case TokenString:
		return &literalNode{val: unquote(tok.Text)}, nil

	case TokenNumber:
		f, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q: %w", tok.Text, err)
		}
		return &literalNode{val: f}, nil

	case TokenBoolean:
		return &literalNode{val: strings.EqualFold(tok.Text, "true")}, nil

	case TokenNone:
		return &literalNode{val: nil}, nil
	}

	return nil, fmt.Errorf("unexpected token %q (%s)", tok.Text, tok.Type)
}

func (p *parser) parseList() (node, error) {
	list := &listNode{}
	for {
		tok, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("unterminated list")
		}
		if tok.Type == TokenBracket && tok.Text == "]" {
			p.pos++
			return list, nil
		}
		item, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		list.items = append(list.items, item)

		tok, ok = p.peek()
		if ok && tok.Type == TokenComma {
			p.pos++
		}
	}
}

// fieldSegments turns "$a.b[0].c" into ["a", "b", "0", "c"].
func fieldSegments(text string) []string {
	text = strings.TrimPrefix(text, "$")
	text = strings.ReplaceAll(text, "[", ".")
	text = strings.ReplaceAll(text, "]", "")
	return strings.Split(text, ".")
}

// unquote strips matching quotes and unescapes interior quote escapes.
// Bare dotted numerics arrive unquoted and pass through untouched.
func unquote(text string) string {
	if len(text) >= 2 {
		first, last := text[0], text[len(text)-1]
		if (first == '\'' && last == '\'') || (first == '"' && last == '"') {
			inner := text[1 : len(text)-1]
			inner = strings.ReplaceAll(inner, `\`+string(first), string(first))
			inner = strings.ReplaceAll(inner, `\\`, `\`)
			return inner
		}
	}
	return text
}

package condition

import (
	"regexp"
	"strings"

	"github.com/botforge/scenario/pkg/value"
)

// node is an evaluable fragment of a parsed condition. eval may panic on
// malformed trees; the compiled predicate recovers and returns false.
type node interface {
	eval(event map[string]any) any
}

// fieldNode resolves a dollar path against the event. Missing keys and
// out-of-range indices evaluate to nil.
type fieldNode struct {
	segments []string
}

func (n *fieldNode) eval(event map[string]any) any {
	v, ok := value.GetSegments(event, n.segments)
	if !ok {
		return nil
	}
	return v
}

// literalNode holds a string, number, boolean or null literal.
type literalNode struct {
	val any
}

func (n *literalNode) eval(map[string]any) any { return n.val }

// listNode evaluates each element, for use as the right side of "in".
type listNode struct {
	items []node
}

func (n *listNode) eval(event map[string]any) any {
	out := make([]any, len(n.items))
	for i, item := range n.items {
		out[i] = item.eval(event)
	}
	return out
}

// compareNode applies a binary or postfix-unary operator. For the regex
// operator with a literal pattern, re holds the pattern compiled at parse
// time.
type compareNode struct {
	op    string
	left  node
	right node
	re    *regexp.Regexp
}

func (n *compareNode) eval(event map[string]any) any {
	left := n.left.eval(event)

	switch n.op {
	case "is_null":
		return value.IsNull(left)
	case "not is_null":
		return !value.IsNull(left)
	}

	right := n.right.eval(event)

	switch n.op {
	case "==":
		return looseEqual(left, right)
	case "!=":
		return !looseEqual(left, right)
	case ">", "<", ">=", "<=":
		return order(n.op, left, right)
	case "~":
		return strings.Contains(value.Stringify(left), value.Stringify(right))
	case "!~":
		return !strings.Contains(value.Stringify(left), value.Stringify(right))
	case "in":
		return contains(right, left)
	case "not in":
		return !contains(right, left)
	case "regex":
		re := n.re
		if re == nil {
			var err error
			re, err = regexp.Compile(value.Stringify(right))
			if err != nil {
				return false
			}
		}
		return re.MatchString(value.Stringify(left))
	}
	return false
}

// looseEqual implements == semantics: identity for null, numeric coercion
// when one side parses cleanly, string-form comparison otherwise.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return value.Equal(a, b)
}

// order implements the ordering operators. Null on either side is never
// ordered. Two non-numeric strings compare lexically.
func order(op string, a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	af, aok := value.AsFloat(a)
	bf, bok := value.AsFloat(b)
	if aok && bok {
		switch op {
		case ">":
			return af > bf
		case "<":
			return af < bf
		case ">=":
			return af >= bf
		case "<=":
			return af <= bf
		}
		return false
	}
	as, bs := value.Stringify(a), value.Stringify(b)
	switch op {
	case ">":
		return as > bs
	case "<":
		return as < bs
	case ">=":
		return as >= bs
	case "<=":
		return as <= bs
	}
	return false
}

// contains implements "in": element equality over lists, substring
// membership when the right side is a plain string.
func contains(container, item any) bool {
	switch c := container.(type) {
	case []any:
		for _, el := range c {
			if looseEqual(el, item) {
				return true
			}
		}
		return false
	case string:
		return strings.Contains(c, value.Stringify(item))
	default:
		return false
	}
}

// logicalNode short-circuits and/or over its operands.
type logicalNode struct {
	op       string
	operands []node
}

func (n *logicalNode) eval(event map[string]any) any {
	if n.op == "and" {
		for _, op := range n.operands {
			if !truthy(op.eval(event)) {
				return false
			}
		}
		return true
	}
	for _, op := range n.operands {
		if truthy(op.eval(event)) {
			return true
		}
	}
	return false
}

// notNode negates its child.
type notNode struct {
	child node
}

func (n *notNode) eval(event map[string]any) any {
	return !truthy(n.child.eval(event))
}

func truthy(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return value.IsTruthy(v)
}

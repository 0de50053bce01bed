package placeholder

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/botforge/scenario/pkg/value"
)

// awaitable is the shape of an async action handle, matched structurally so
// this package stays independent of the action bus.
type awaitable interface {
	Ready() bool
}

// applyModifier transforms the current value with one modifier from the
// chain. Returning nil marks the placeholder unresolved unless a later
// fallback rescues it.
func applyModifier(current any, mod string) any {
	if mod == "" {
		return current
	}

	if out, ok := applyArithmetic(current, mod); ok {
		return out
	}

	name, arg := mod, ""
	if idx := strings.IndexByte(mod, ':'); idx >= 0 {
		name, arg = mod[:idx], mod[idx+1:]
	}

	// fallback is the only modifier that must see a nil value.
	if name == "fallback" {
		if current == nil || current == "" {
			return unquoteArg(arg)
		}
		return current
	}
	if current == nil {
		switch name {
		case "is_null":
			return true
		case "exists", "true", "ready", "not_ready":
			return false
		default:
			return nil
		}
	}

	switch name {
	case "upper":
		return strings.ToUpper(value.Stringify(current))
	case "lower":
		return strings.ToLower(value.Stringify(current))
	case "title":
		return titleCase(value.Stringify(current))
	case "capitalize":
		return capitalize(value.Stringify(current))
	case "truncate":
		return truncate(value.Stringify(current), arg)
	case "length":
		return length(current)
	case "case":
		return convertCase(value.Stringify(current), arg)
	case "regex":
		return regexExtract(value.Stringify(current), arg)
	case "code":
		return "<code>" + value.Stringify(current) + "</code>"

	case "equals":
		return value.Equal(current, unquoteArg(arg))
	case "in_list":
		return inList(current, arg)
	case "true":
		return value.IsTruthy(current)
	case "exists":
		return true
	case "is_null":
		return value.IsNull(current)
	case "value":
		if value.IsTruthy(current) {
			return unquoteArg(arg)
		}
		return nil

	case "format":
		return formatValue(current, arg)
	case "tags":
		return tags(current)
	case "list":
		return bulletList(current)
	case "comma":
		return commaJoin(current)

	case "shift":
		return shiftTime(current, arg)
	case "seconds":
		return intervalSeconds(value.Stringify(current))
	case "to_second", "to_minute", "to_hour", "to_date", "to_week", "to_month", "to_year":
		return truncateTime(current, name)

	case "expand":
		return expand(current)
	case "keys":
		return mapKeys(current)

	case "ready":
		h, ok := current.(awaitable)
		return ok && h.Ready()
	case "not_ready":
		h, ok := current.(awaitable)
		return ok && !h.Ready()
	}

	// Unknown modifiers pass the value through untouched.
	return current
}

// applyArithmetic handles +n -n *n /n %n. The whole modifier must parse as
// an operator followed by a number.
func applyArithmetic(current any, mod string) (any, bool) {
	if len(mod) < 2 {
		return nil, false
	}
	op := mod[0]
	if op != '+' && op != '-' && op != '*' && op != '/' && op != '%' {
		return nil, false
	}
	operand, err := strconv.ParseFloat(strings.TrimSpace(mod[1:]), 64)
	if err != nil {
		return nil, false
	}
	base, ok := value.AsFloat(current)
	if !ok {
		return nil, true
	}
	var out float64
	switch op {
	case '+':
		out = base + operand
	case '-':
		out = base - operand
	case '*':
		out = base * operand
	case '/':
		if operand == 0 {
			return nil, true
		}
		out = base / operand
	case '%':
		if operand == 0 {
			return nil, true
		}
		out = float64(int64(base) % int64(operand))
	}
	return value.Normalize(out), true
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
	return string(runes)
}

func truncate(s, arg string) any {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func length(v any) any {
	switch n := v.(type) {
	case string:
		return int64(len([]rune(n)))
	case []any:
		return int64(len(n))
	case map[string]any:
		return int64(len(n))
	default:
		return int64(len([]rune(value.Stringify(v))))
	}
}

// splitWords breaks an identifier into lowercase words across spaces,
// underscores, dashes and camelCase humps.
func splitWords(s string) []string {
	var words []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			words = append(words, strings.ToLower(current.String()))
			current.Reset()
		}
	}
	for i, r := range s {
		switch {
		case r == ' ' || r == '_' || r == '-':
			flush()
		case r >= 'A' && r <= 'Z' && i > 0:
			flush()
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return words
}

func convertCase(s, kind string) any {
	words := splitWords(s)
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "snake":
		return strings.Join(words, "_")
	case "kebab":
		return strings.Join(words, "-")
	case "camel":
		for i := 1; i < len(words); i++ {
			words[i] = capitalize(words[i])
		}
		return strings.Join(words, "")
	case "pascal":
		for i := range words {
			words[i] = capitalize(words[i])
		}
		return strings.Join(words, "")
	case "upper":
		return strings.ToUpper(s)
	case "lower":
		return strings.ToLower(s)
	default:
		return s
	}
}

// regexExtract returns the first capture group of the first match, or the
// whole match when the pattern has no groups. No match resolves to nil.
func regexExtract(s, pattern string) any {
	re, err := regexp.Compile(unquoteArg(pattern))
	if err != nil {
		return nil
	}
	match := re.FindStringSubmatch(s)
	if match == nil {
		return nil
	}
	if len(match) > 1 {
		return match[1]
	}
	return match[0]
}

func inList(current any, arg string) bool {
	for _, item := range strings.Split(arg, ",") {
		if value.Equal(current, strings.TrimSpace(item)) {
			return true
		}
	}
	return false
}

func tags(v any) any {
	items := asList(v)
	parts := make([]string, 0, len(items))
	for _, item := range items {
		tag := strings.TrimSpace(value.Stringify(item))
		if tag == "" {
			continue
		}
		parts = append(parts, "#"+strings.ReplaceAll(tag, " ", "_"))
	}
	return strings.Join(parts, " ")
}

func bulletList(v any) any {
	items := asList(v)
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, "• "+value.Stringify(item))
	}
	return strings.Join(parts, "\n")
}

func commaJoin(v any) any {
	items := asList(v)
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, value.Stringify(item))
	}
	return strings.Join(parts, ", ")
}

func asList(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{v}
}

// expand flattens one level of a list of lists. Non-list elements are kept
// as-is.
func expand(v any) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}
	out := make([]any, 0, len(list))
	for _, el := range list {
		if inner, ok := el.([]any); ok {
			out = append(out, inner...)
		} else {
			out = append(out, el)
		}
	}
	return out
}

func mapKeys(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}

// unquoteArg strips optional quotes from a modifier argument.
func unquoteArg(arg string) string {
	arg = strings.TrimSpace(arg)
	if lit, ok := unquoteWhole(arg); ok {
		return lit
	}
	return arg
}

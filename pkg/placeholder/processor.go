package placeholder

import (
	"log/slog"
	"strings"

	"github.com/botforge/scenario/pkg/value"
)

// DefaultMaxNesting bounds recursive resolution of placeholders inside
// placeholder paths.
const DefaultMaxNesting = 10

// Processor resolves placeholder templates inside arbitrary value trees.
type Processor struct {
	maxNesting int
}

// Option configures a Processor.
type Option func(*Processor)

// WithMaxNesting overrides the nested-placeholder depth bound.
func WithMaxNesting(depth int) Option {
	return func(p *Processor) {
		if depth > 0 {
			p.maxNesting = depth
		}
	}
}

// New returns a Processor with the given options applied.
func New(opts ...Option) *Processor {
	p := &Processor{maxNesting: DefaultMaxNesting}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process resolves placeholders anywhere inside input, using values as the
// lookup map. Maps and lists are rebuilt with processed children; the input
// is never mutated. Unresolved placeholders stay verbatim in their strings.
func (p *Processor) Process(input any, values map[string]any) any {
	return p.process(input, values, 0)
}

func (p *Processor) process(input any, values map[string]any, depth int) any {
	switch node := input.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, child := range node {
			out[k] = p.process(child, values, depth)
		}
		return out
	case []any:
		return p.processList(node, values, depth)
	case string:
		return p.processString(node, values, depth)
	default:
		return input
	}
}

// processList processes each element, splicing one level when an element is
// a single placeholder with the expand modifier that resolved to a list.
func (p *Processor) processList(list []any, values map[string]any, depth int) []any {
	out := make([]any, 0, len(list))
	for _, el := range list {
		s, isString := el.(string)
		if isString && isWholePlaceholder(s) && hasExpandModifier(s) {
			resolved, ok := p.resolve(s[1:len(s)-1], values, depth)
			if ok {
				if items, isList := resolved.([]any); isList {
					out = append(out, items...)
					continue
				}
				out = append(out, resolved)
				continue
			}
			out = append(out, s)
			continue
		}
		out = append(out, p.process(el, values, depth))
	}
	return out
}

// processString substitutes placeholders in a single string. A template that
// is exactly one placeholder keeps the native type of the resolved value;
// embedded placeholders are stringified into the surrounding text.
func (p *Processor) processString(s string, values map[string]any, depth int) any {
	spans := findPlaceholders(s)
	if len(spans) == 0 {
		return s
	}

	if len(spans) == 1 && spans[0].start == 0 && spans[0].end == len(s) {
		resolved, ok := p.resolve(s[1:len(s)-1], values, depth)
		if !ok {
			return s
		}
		return resolved
	}

	var b strings.Builder
	prev := 0
	for _, span := range spans {
		b.WriteString(s[prev:span.start])
		resolved, ok := p.resolve(s[span.start+1:span.end-1], values, depth)
		if !ok {
			b.WriteString(s[span.start:span.end])
		} else {
			b.WriteString(value.Stringify(resolved))
		}
		prev = span.end
	}
	b.WriteString(s[prev:])
	return b.String()
}

// resolve evaluates the inside of one placeholder: nested placeholders
// first, then the path lookup, then the modifier chain. The boolean is
// false when the final value is nil, which callers render verbatim.
func (p *Processor) resolve(content string, values map[string]any, depth int) (any, bool) {
	if depth >= p.maxNesting {
		slog.Warn("Placeholder nesting limit reached", "content", content, "limit", p.maxNesting)
		return nil, false
	}

	content = p.resolveNested(content, values, depth)

	parts := splitModifiers(content)
	current, _ := resolvePath(values, parts[0])

	for _, mod := range parts[1:] {
		current = applyModifier(current, strings.TrimSpace(mod))
	}

	if current == nil {
		return nil, false
	}
	return current, true
}

// resolveNested substitutes inner placeholders inside a placeholder body so
// paths like user.{system.lang}.greeting work. Unresolved inner placeholders
// stay verbatim and make the outer lookup fail naturally.
func (p *Processor) resolveNested(content string, values map[string]any, depth int) string {
	spans := findPlaceholders(content)
	if len(spans) == 0 {
		return content
	}
	var b strings.Builder
	prev := 0
	for _, span := range spans {
		b.WriteString(content[prev:span.start])
		resolved, ok := p.resolve(content[span.start+1:span.end-1], values, depth+1)
		if !ok {
			b.WriteString(content[span.start:span.end])
		} else {
			b.WriteString(value.Stringify(resolved))
		}
		prev = span.end
	}
	b.WriteString(content[prev:])
	return b.String()
}

// span marks a balanced top-level {...} region, end exclusive.
type span struct {
	start, end int
}

// findPlaceholders scans for balanced top-level brace pairs. Unbalanced
// braces yield no span for the affected region.
func findPlaceholders(s string) []span {
	var spans []span
	depth := 0
	start := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				spans = append(spans, span{start: start, end: i + 1})
			}
		}
	}
	return spans
}

// isWholePlaceholder reports whether the string is exactly one balanced
// placeholder with nothing around it.
func isWholePlaceholder(s string) bool {
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return false
	}
	spans := findPlaceholders(s)
	return len(spans) == 1 && spans[0].start == 0 && spans[0].end == len(s)
}

// hasExpandModifier reports whether the placeholder body carries |expand.
func hasExpandModifier(s string) bool {
	for _, part := range splitModifiers(s[1 : len(s)-1]) {
		if strings.TrimSpace(part) == "expand" {
			return true
		}
	}
	return false
}

// splitModifiers splits a placeholder body on top-level pipes, honouring
// quotes and nested braces so modifier arguments may contain either.
func splitModifiers(content string) []string {
	var parts []string
	var quote byte
	depth := 0
	start := 0
	for i := 0; i < len(content); i++ {
		c := content[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case '|':
			if depth == 0 {
				parts = append(parts, content[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, content[start:])
	return parts
}

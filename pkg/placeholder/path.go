// Package placeholder implements the recursive template substitution engine.
// A placeholder has the grammar {path|modifier:arg|modifier:arg|...}; the
// path walks a value map, modifiers transform the resolved value
// left-to-right. Substitution preserves native types when a template is a
// single placeholder and degrades to string interpolation otherwise.
package placeholder

import (
	"strings"

	"github.com/botforge/scenario/pkg/value"
)

// parsePath splits a placeholder path into lookup segments. Bracket segments
// carry either a list index ([0], [-1]) or a quoted map key (['some key']).
// A path that is entirely one quoted string is a literal, not a lookup; the
// second return value reports that case.
func parsePath(path string) (segments []string, literal string, isLiteral bool) {
	path = strings.TrimSpace(path)
	if lit, ok := unquoteWhole(path); ok {
		return nil, lit, true
	}

	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			segments = append(segments, current.String())
			current.Reset()
		}
	}

	for i := 0; i < len(path); i++ {
		switch c := path[i]; c {
		case '.':
			flush()
		case '[':
			flush()
			end := matchingBracket(path, i)
			if end < 0 {
				// Unbalanced bracket: treat the rest as an opaque segment.
				current.WriteString(path[i:])
				i = len(path)
				break
			}
			inner := strings.TrimSpace(path[i+1 : end])
			if lit, ok := unquoteWhole(inner); ok {
				segments = append(segments, lit)
			} else {
				segments = append(segments, inner)
			}
			i = end
		default:
			current.WriteByte(c)
		}
	}
	flush()
	return segments, "", false
}

// matchingBracket returns the index of the ] closing the [ at open,
// honouring quoted content, or -1.
func matchingBracket(s string, open int) int {
	var quote byte
	for i := open + 1; i < len(s); i++ {
		c := s[i]
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
		case ']':
			return i
		}
	}
	return -1
}

// unquoteWhole strips a matching pair of outer quotes and unescapes interior
// escaped quotes. Returns false when the string is not wholly quoted.
func unquoteWhole(s string) (string, bool) {
	if len(s) < 2 {
		return "", false
	}
	first, last := s[0], s[len(s)-1]
	if first != last || (first != '\'' && first != '"') {
		return "", false
	}
	inner := s[1 : len(s)-1]
	inner = strings.ReplaceAll(inner, `\`+string(first), string(first))
	inner = strings.ReplaceAll(inner, `\\`, `\`)
	return inner, true
}

// resolvePath walks the parsed path into the value map. The boolean reports
// whether the path fully resolved to a non-nil value.
func resolvePath(values map[string]any, path string) (any, bool) {
	segments, literal, isLiteral := parsePath(path)
	if isLiteral {
		return literal, true
	}
	if len(segments) == 0 {
		return nil, false
	}
	v, ok := value.GetSegments(values, segments)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

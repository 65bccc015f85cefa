package dsl

import (
	"fmt"
	"strings"
)

// Expand recursively substitutes `{{expr}}` placeholders found in template
// against ctx. Three substitution rules apply, in order of precedence:
//
//   - A string that is ENTIRELY a single `{{expr}}` (optionally surrounded
//     by whitespace) evaluates to the expression's native value, so
//     `"{{count}}"` with count=3 yields the float64 3, not the string "3".
//   - A string containing one or more `{{expr}}` fragments mixed with other
//     text is expanded by substituting the string representation of each
//     fragment's value in place, leaving the rest of the string intact.
//   - Arrays and maps are walked recursively, expanding every leaf; scalars
//     that are not strings (bool/float64/nil) pass through unchanged.
func Expand(template any, ctx map[string]any) (any, error) {
	switch t := template.(type) {
	case string:
		return expandString(t, ctx)

	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			v, err := Expand(item, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			v, err := Expand(item, ctx)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil

	default:
		return t, nil
	}
}

// expandString implements the full-match-vs-partial-substitution rule for a
// single string template.
func expandString(s string, ctx map[string]any) (any, error) {
	frags, err := splitPlaceholders(s)
	if err != nil {
		return nil, err
	}

	if len(frags) == 1 && frags[0].isExpr {
		return evalString(frags[0].text, ctx)
	}

	var sb strings.Builder
	for _, f := range frags {
		if !f.isExpr {
			sb.WriteString(f.text)
			continue
		}
		v, err := evalString(f.text, ctx)
		if err != nil {
			return nil, err
		}
		if v == nil && !isNullLiteral(f.text) {
			// Undefined lookup inside a partial match: keep the placeholder
			// literal rather than silently coercing nil to "".
			sb.WriteString("{{" + f.text + "}}")
			continue
		}
		sb.WriteString(toStringCoerce(v))
	}
	return sb.String(), nil
}

// isNullLiteral reports whether expr is exactly the null/nil literal token,
// as opposed to an expression that merely evaluates to nil (an undefined
// lookup, a falsy branch of ||, etc).
func isNullLiteral(expr string) bool {
	t := strings.TrimSpace(expr)
	return t == "null" || t == "nil"
}

type fragment struct {
	text   string
	isExpr bool
}

// splitPlaceholders splits s into literal-text and `{{expr}}` fragments. A
// lone fragment covering the entire (trimmed) string is reported as a
// single full-match expression fragment so the caller can preserve its
// native type; otherwise fragments are emitted in document order.
func splitPlaceholders(s string) ([]fragment, error) {
	var frags []fragment
	i := 0
	for i < len(s) {
		start := strings.Index(s[i:], "{{")
		if start == -1 {
			frags = append(frags, fragment{text: s[i:]})
			break
		}
		start += i
		if start > i {
			frags = append(frags, fragment{text: s[i:start]})
		}
		end := strings.Index(s[start+2:], "}}")
		if end == -1 {
			return nil, fmt.Errorf("unterminated %q in template %q", "{{", s)
		}
		end += start + 2
		frags = append(frags, fragment{text: strings.TrimSpace(s[start+2 : end]), isExpr: true})
		i = end + 2
	}

	if len(frags) == 1 && frags[0].isExpr {
		return frags, nil
	}
	// A single expr fragment surrounded only by whitespace literal fragments
	// still counts as a full match.
	trimmedFull := true
	exprCount := 0
	for _, f := range frags {
		if f.isExpr {
			exprCount++
			continue
		}
		if strings.TrimSpace(f.text) != "" {
			trimmedFull = false
		}
	}
	if exprCount == 1 && trimmedFull {
		for _, f := range frags {
			if f.isExpr {
				return []fragment{f}, nil
			}
		}
	}
	return frags, nil
}

// GetPath resolves a dotted/bracketed path like "a.b[0].c" against obj,
// returning nil if any segment is missing or of the wrong shape. It backs
// the `getPath` builtin exposed to expressions.
func GetPath(obj any, path string) any {
	path = strings.TrimSpace(path)
	if path == "" {
		return obj
	}

	current := obj
	for _, seg := range splitPath(path) {
		if seg.index {
			idx := seg.name
			var key any = idx
			if n, ok := parsePathInt(idx); ok {
				key = float64(n)
			}
			current = getIndex(current, key)
			continue
		}
		current = getMember(current, seg.name)
	}
	return current
}

type pathSegment struct {
	name  string
	index bool
}

// splitPath tokenizes a getPath path string into dotted member names and
// bracketed index/key segments, e.g. "a.b[0][\"c\"]" -> [a, b, 0(idx), c(idx)].
func splitPath(path string) []pathSegment {
	var segs []pathSegment
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			segs = append(segs, pathSegment{name: cur.String()})
			cur.Reset()
		}
	}

	runes := []rune(path)
	i := 0
	for i < len(runes) {
		switch runes[i] {
		case '.':
			flush()
			i++
		case '[':
			flush()
			j := i + 1
			for j < len(runes) && runes[j] != ']' {
				j++
			}
			inner := strings.Trim(string(runes[i+1:j]), `"'`)
			segs = append(segs, pathSegment{name: inner, index: true})
			i = j + 1
		default:
			cur.WriteRune(runes[i])
			i++
		}
	}
	flush()
	return segs
}

func parsePathInt(s string) (int, bool) {
	n := 0
	if s == "" {
		return 0, false
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return 0, false
		}
		n = n*10 + int(ch-'0')
	}
	return n, true
}

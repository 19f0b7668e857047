// Package liquid evaluates the variable-interpolation tokens embedded in
// document bodies before Markdown conversion.
//
// The dialect is deliberately small: `{{ path.to.value }}` substitutes a
// value from the render context, and `{% raw %} ... {% endraw %}` marks a
// region that passes through verbatim with its tag markers removed, so
// documents can show literal token syntax (e.g. posts about templating).
// Evaluation is deterministic and side-effect free; an unresolved token is
// an error, never a silent blank.
package liquid

import (
	"fmt"
	"strings"

	gerrors "github.com/milkyware/glacier/internal/errors"
)

const (
	openVar  = "{{"
	closeVar = "}}"
	openTag  = "{%"
	closeTag = "%}"
)

// Context is the lookup root for token resolution. By convention it holds
// "site" (configuration view) and "page" (merged front matter) subtrees.
type Context map[string]any

// Render evaluates all tokens in src against ctx.
func Render(src []byte, ctx Context) ([]byte, error) {
	s := string(src)
	var out strings.Builder
	out.Grow(len(s))

	for len(s) > 0 {
		varIdx := strings.Index(s, openVar)
		tagIdx := strings.Index(s, openTag)

		// Nothing token-like left.
		if varIdx < 0 && tagIdx < 0 {
			out.WriteString(s)
			break
		}

		next, isTag := varIdx, false
		if varIdx < 0 || (tagIdx >= 0 && tagIdx < varIdx) {
			next, isTag = tagIdx, true
		}

		out.WriteString(s[:next])
		s = s[next:]

		if isTag {
			rest, err := consumeTag(s, &out)
			if err != nil {
				return nil, err
			}
			s = rest
			continue
		}

		end := strings.Index(s, closeVar)
		if end < 0 {
			return nil, gerrors.NewContent(gerrors.SeverityError,
				fmt.Sprintf("unterminated %q token", openVar))
		}
		expr := strings.TrimSpace(s[len(openVar):end])
		value, ok := resolve(ctx, expr)
		if !ok {
			return nil, gerrors.NewContent(gerrors.SeverityError,
				fmt.Sprintf("unresolved template token {{ %s }}", expr))
		}
		out.WriteString(stringify(value))
		s = s[end+len(closeVar):]
	}

	return []byte(out.String()), nil
}

// consumeTag handles a `{% ... %}` tag at the start of s. Only raw/endraw
// exist; anything else is a content error rather than a silent passthrough.
func consumeTag(s string, out *strings.Builder) (string, error) {
	end := strings.Index(s, closeTag)
	if end < 0 {
		return "", gerrors.NewContent(gerrors.SeverityError,
			fmt.Sprintf("unterminated %q tag", openTag))
	}
	name := strings.TrimSpace(s[len(openTag):end])
	rest := s[end+len(closeTag):]

	switch name {
	case "raw":
		stop, tail, err := findEndRaw(rest)
		if err != nil {
			return "", err
		}
		// The raw region body passes through untouched; the markers are dropped.
		out.WriteString(rest[:stop])
		return tail, nil
	case "endraw":
		return "", gerrors.NewContent(gerrors.SeverityError, "{% endraw %} without matching {% raw %}")
	default:
		return "", gerrors.NewContent(gerrors.SeverityError,
			fmt.Sprintf("unknown template tag {%% %s %%}", name))
	}
}

// findEndRaw locates the closing {% endraw %} tag, returning the length of
// the raw body and the remainder after the closing tag.
func findEndRaw(s string) (bodyLen int, tail string, err error) {
	search := s
	offset := 0
	for {
		idx := strings.Index(search, openTag)
		if idx < 0 {
			return 0, "", gerrors.NewContent(gerrors.SeverityError, "{% raw %} without matching {% endraw %}")
		}
		end := strings.Index(search[idx:], closeTag)
		if end < 0 {
			return 0, "", gerrors.NewContent(gerrors.SeverityError, "{% raw %} without matching {% endraw %}")
		}
		name := strings.TrimSpace(search[idx+len(openTag) : idx+end])
		if name == "endraw" {
			return offset + idx, s[offset+idx+end+len(closeTag):], nil
		}
		offset += idx + end + len(closeTag)
		search = s[offset:]
	}
}

// resolve walks a dotted path through nested maps.
func resolve(ctx Context, expr string) (any, bool) {
	if expr == "" {
		return nil, false
	}
	var current any = map[string]any(ctx)
	for _, part := range strings.Split(expr, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", x)
	}
}

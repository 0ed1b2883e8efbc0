// internal/dom/selector.go
package dom

import (
	"fmt"
	"strings"

	jkdom "github.com/JohannesKaufmann/dom"
	"golang.org/x/net/html"
)

// matcher is one compiled simple selector: an optional tag name plus any
// number of class, id, and attribute conditions. Combinators are not
// supported inside a segment; paths handle descent (see deep.go).
type matcher struct {
	tag     string
	id      string
	classes []string
	attrs   []attrCond
}

type attrCond struct {
	key string
	op  string // "" presence, "=" equals, "*=" contains
	val string
}

func parseSelector(sel string) (matcher, error) {
	var m matcher
	s := strings.TrimSpace(sel)
	if s == "" || s == "*" {
		return m, nil
	}

	// Leading tag name runs until the first ., #, or [.
	i := strings.IndexAny(s, ".#[")
	if i != 0 {
		if i < 0 {
			m.tag = strings.ToLower(s)
			return m, nil
		}
		m.tag = strings.ToLower(s[:i])
		s = s[i:]
	}

	for s != "" {
		switch s[0] {
		case '.':
			rest := s[1:]
			end := strings.IndexAny(rest, ".#[")
			if end < 0 {
				end = len(rest)
			}
			if end == 0 {
				return m, fmt.Errorf("selector %q: empty class", sel)
			}
			m.classes = append(m.classes, rest[:end])
			s = rest[end:]
		case '#':
			rest := s[1:]
			end := strings.IndexAny(rest, ".#[")
			if end < 0 {
				end = len(rest)
			}
			if end == 0 {
				return m, fmt.Errorf("selector %q: empty id", sel)
			}
			m.id = rest[:end]
			s = rest[end:]
		case '[':
			end := strings.IndexByte(s, ']')
			if end < 0 {
				return m, fmt.Errorf("selector %q: unterminated attribute", sel)
			}
			cond, err := parseAttrCond(s[1:end])
			if err != nil {
				return m, fmt.Errorf("selector %q: %w", sel, err)
			}
			m.attrs = append(m.attrs, cond)
			s = s[end+1:]
		default:
			return m, fmt.Errorf("selector %q: unexpected %q", sel, s[0])
		}
	}
	return m, nil
}

func parseAttrCond(body string) (attrCond, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return attrCond{}, fmt.Errorf("empty attribute condition")
	}
	if i := strings.Index(body, "*="); i >= 0 {
		return attrCond{key: body[:i], op: "*=", val: unquote(body[i+2:])}, nil
	}
	if i := strings.IndexByte(body, '='); i >= 0 {
		return attrCond{key: body[:i], op: "=", val: unquote(body[i+1:])}, nil
	}
	return attrCond{key: body}, nil
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func (m matcher) matches(n *html.Node) bool {
	if m.tag != "" && jkdom.NodeName(n) != m.tag {
		return false
	}
	if m.id != "" && jkdom.GetAttributeOr(n, "id", "") != m.id {
		return false
	}
	if len(m.classes) > 0 {
		fields := strings.Fields(jkdom.GetAttributeOr(n, "class", ""))
		for _, want := range m.classes {
			found := false
			for _, f := range fields {
				if f == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	for _, c := range m.attrs {
		got := jkdom.GetAttributeOr(n, c.key, "")
		switch c.op {
		case "":
			if !hasAttr(n, c.key) {
				return false
			}
		case "=":
			if got != c.val {
				return false
			}
		case "*=":
			if !strings.Contains(got, c.val) {
				return false
			}
		}
	}
	return true
}

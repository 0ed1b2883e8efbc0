// internal/dom/element.go
package dom

import (
	"fmt"
	"io"
	"strings"
	"sync"

	jkdom "github.com/JohannesKaufmann/dom"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Element is the page surface the scraper operates on. Query and QueryAll
// stay inside the current tree scope and never cross a shadow boundary;
// crossing happens explicitly through ShadowRoot (see deep.go).
type Element interface {
	TagName() string
	Attr(name string) string
	// Text returns the concatenated text content of the element's own tree,
	// excluding encapsulated shadow subtrees.
	Text() string
	// HTML returns the serialized outer markup of the element.
	HTML() string
	Children() []Element
	Query(selector string) Element
	QueryAll(selector string) []Element
	// ShadowRoot returns the element's shadow tree root, or nil when the
	// element hosts none.
	ShadowRoot() Element
	Click() error
	// Dispatch delivers a synthesized event, the fallback activation path
	// when a direct Click errors.
	Dispatch(event string) error
	Visible() bool
	Enabled() bool
}

// Page is one loaded browser page: a root element plus a location identifier.
type Page interface {
	Root() Element
	Location() string
}

// Document is a Page backed by a parsed HTML tree. Shadow roots are modeled
// as declarative <template shadowrootmode> subtrees. Event handlers can be
// attached to nodes so tests and offline replays can script UI reactions
// to activation.
type Document struct {
	root     *html.Node
	location string

	mu       sync.Mutex
	handlers map[*html.Node]map[string]func() error
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Document{
		root:     root,
		handlers: make(map[*html.Node]map[string]func() error),
	}, nil
}

// ParseString parses an HTML document from a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func (d *Document) Root() Element {
	return &element{doc: d, n: d.root}
}

func (d *Document) Location() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.location
}

func (d *Document) SetLocation(loc string) {
	d.mu.Lock()
	d.location = loc
	d.mu.Unlock()
}

// OnEvent registers a handler invoked when the given event is delivered to
// the element. The handler may mutate the document tree.
func (d *Document) OnEvent(el Element, event string, fn func() error) {
	e, ok := el.(*element)
	if !ok || e == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.handlers[e.n]
	if m == nil {
		m = make(map[string]func() error)
		d.handlers[e.n] = m
	}
	m[event] = fn
}

// OnClick registers a click handler on the element.
func (d *Document) OnClick(el Element, fn func() error) {
	d.OnEvent(el, "click", fn)
}

// SetInnerHTML replaces the element's children with the parsed fragment.
// Used by scripted pages to simulate asynchronous UI updates.
func (d *Document) SetInnerHTML(el Element, markup string) error {
	e, ok := el.(*element)
	if !ok || e == nil {
		return fmt.Errorf("set inner html: not a document element")
	}
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return fmt.Errorf("parse fragment: %w", err)
	}
	for c := e.n.FirstChild; c != nil; {
		next := c.NextSibling
		e.n.RemoveChild(c)
		c = next
	}
	for _, n := range nodes {
		e.n.AppendChild(n)
	}
	return nil
}

func (d *Document) handler(n *html.Node, event string) func() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handlers[n][event]
}

type element struct {
	doc *Document
	n   *html.Node
}

func (e *element) TagName() string {
	return jkdom.NodeName(e.n)
}

func (e *element) Attr(name string) string {
	return jkdom.GetAttributeOr(e.n, name, "")
}

func (e *element) Text() string {
	var b strings.Builder
	collectText(e.n, &b)
	return strings.TrimSpace(b.String())
}

func collectText(n *html.Node, b *strings.Builder) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isShadowTemplate(c) {
			continue
		}
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			continue
		}
		collectText(c, b)
	}
}

func (e *element) HTML() string {
	var b strings.Builder
	if err := html.Render(&b, e.n); err != nil {
		return ""
	}
	return b.String()
}

func (e *element) Children() []Element {
	var out []Element
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || isShadowTemplate(c) {
			continue
		}
		out = append(out, &element{doc: e.doc, n: c})
	}
	return out
}

func (e *element) Query(selector string) Element {
	m, err := parseSelector(selector)
	if err != nil {
		return nil
	}
	found := queryFirst(e.n, m)
	if found == nil {
		return nil
	}
	return &element{doc: e.doc, n: found}
}

func (e *element) QueryAll(selector string) []Element {
	m, err := parseSelector(selector)
	if err != nil {
		return nil
	}
	var out []Element
	for _, n := range queryAll(e.n, m) {
		out = append(out, &element{doc: e.doc, n: n})
	}
	return out
}

func (e *element) ShadowRoot() Element {
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		if isShadowTemplate(c) {
			return &element{doc: e.doc, n: c}
		}
	}
	return nil
}

func (e *element) Click() error {
	if fn := e.doc.handler(e.n, "click"); fn != nil {
		return fn()
	}
	return nil
}

func (e *element) Dispatch(event string) error {
	if fn := e.doc.handler(e.n, event); fn != nil {
		return fn()
	}
	return nil
}

func (e *element) Visible() bool {
	for n := e.n; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if hasAttr(n, "hidden") {
			return false
		}
		style := strings.ReplaceAll(jkdom.GetAttributeOr(n, "style", ""), " ", "")
		if strings.Contains(style, "display:none") {
			return false
		}
	}
	return true
}

func (e *element) Enabled() bool {
	return !hasAttr(e.n, "disabled")
}

func isShadowTemplate(n *html.Node) bool {
	return n.Type == html.ElementNode &&
		jkdom.NodeName(n) == "template" &&
		jkdom.GetAttributeOr(n, "shadowrootmode", "") != ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// queryFirst walks the element's own tree depth-first, treating shadow
// templates as opaque boundaries, and returns the first match.
func queryFirst(ctx *html.Node, m matcher) *html.Node {
	for c := ctx.FirstChild; c != nil; c = c.NextSibling {
		if isShadowTemplate(c) {
			continue
		}
		if c.Type == html.ElementNode && m.matches(c) {
			return c
		}
		if found := queryFirst(c, m); found != nil {
			return found
		}
	}
	return nil
}

func queryAll(ctx *html.Node, m matcher) []*html.Node {
	var out []*html.Node
	for c := ctx.FirstChild; c != nil; c = c.NextSibling {
		if isShadowTemplate(c) {
			continue
		}
		if c.Type == html.ElementNode && m.matches(c) {
			out = append(out, c)
		}
		out = append(out, queryAll(c, m)...)
	}
	return out
}

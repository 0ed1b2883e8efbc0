// internal/dom/deep.go
package dom

import "strings"

// maxShadowDepth bounds the recursive shadow scan. The target UI nests
// shadow roots roughly ten levels deep; anything past this is a cycle or a
// page shape this tool was never written for.
const maxShadowDepth = 25

// FindOne resolves a whitespace-separated path of simple selectors through
// nested shadow trees. At each segment it tries, in order: a normal
// descendant query on the current context, a query against the context's own
// shadow root, and finally a recursive scan over every descendant shadow
// root. The first hit becomes the context for the next segment.
//
// Absence is not an error: FindOne returns nil as soon as a segment fails to
// resolve. The worst case is a full recursive scan of the subtree, so call
// sites are confined to points where the DOM has just changed, never tight
// loops.
func FindOne(root Element, path string) Element {
	segments := strings.Fields(path)
	if root == nil || len(segments) == 0 {
		return nil
	}
	current := root
	for _, seg := range segments {
		current = findSegment(current, seg)
		if current == nil {
			return nil
		}
	}
	return current
}

// FindAll resolves all but the last segment like FindOne, then collects every
// match for the final segment with the same three-tier fallback, including
// results from every shadow subtree encountered.
func FindAll(root Element, path string) []Element {
	segments := strings.Fields(path)
	if root == nil || len(segments) == 0 {
		return nil
	}
	scope := root
	for _, seg := range segments[:len(segments)-1] {
		scope = findSegment(scope, seg)
		if scope == nil {
			return nil
		}
	}
	return findSegmentAll(scope, segments[len(segments)-1])
}

func findSegment(ctx Element, sel string) Element {
	if el := ctx.Query(sel); el != nil {
		return el
	}
	if shadow := ctx.ShadowRoot(); shadow != nil {
		if el := shadow.Query(sel); el != nil {
			return el
		}
	}
	return queryInShadow(ctx, sel, 0)
}

// queryInShadow recursively searches every descendant shadow root for the
// selector, depth-first, host order.
func queryInShadow(ctx Element, sel string, depth int) Element {
	if depth > maxShadowDepth {
		return nil
	}
	if shadow := ctx.ShadowRoot(); shadow != nil {
		if el := shadow.Query(sel); el != nil {
			return el
		}
		if el := queryInHosts(shadow, sel, depth+1); el != nil {
			return el
		}
	}
	return queryInHosts(ctx, sel, depth+1)
}

func queryInHosts(scope Element, sel string, depth int) Element {
	if depth > maxShadowDepth {
		return nil
	}
	for _, child := range descendants(scope) {
		shadow := child.ShadowRoot()
		if shadow == nil {
			continue
		}
		if el := shadow.Query(sel); el != nil {
			return el
		}
		if el := queryInShadow(child, sel, depth+1); el != nil {
			return el
		}
	}
	return nil
}

func findSegmentAll(ctx Element, sel string) []Element {
	if out := ctx.QueryAll(sel); len(out) > 0 {
		return out
	}
	if shadow := ctx.ShadowRoot(); shadow != nil {
		if out := shadow.QueryAll(sel); len(out) > 0 {
			return out
		}
	}
	return queryAllInShadow(ctx, sel, 0)
}

// queryAllInShadow concatenates matches from every shadow subtree below ctx,
// preserving host order.
func queryAllInShadow(ctx Element, sel string, depth int) []Element {
	if depth > maxShadowDepth {
		return nil
	}
	var out []Element
	if shadow := ctx.ShadowRoot(); shadow != nil {
		out = append(out, shadow.QueryAll(sel)...)
		ctx = shadow
	}
	for _, child := range descendants(ctx) {
		if shadow := child.ShadowRoot(); shadow != nil {
			out = append(out, shadow.QueryAll(sel)...)
			out = append(out, queryAllInShadow(child, sel, depth+1)...)
		}
	}
	return out
}

func descendants(el Element) []Element {
	var out []Element
	for _, c := range el.Children() {
		out = append(out, c)
		out = append(out, descendants(c)...)
	}
	return out
}

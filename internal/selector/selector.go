// Package selector computes short, human-readable CSS selectors for DOM elements.
// It works against the read-only Node capability so any tree (a live page
// snapshot, a parsed HTML document, a test fake) can be resolved the same way.
package selector

import (
	"strconv"
	"strings"
)

// Node is the read-only view of one element in a document tree.
type Node interface {
	// TagName returns the element's tag name in any case.
	TagName() string
	// Identifier returns the element's id attribute, or "".
	Identifier() string
	// Parent returns the parent element. ok is false at the document root.
	Parent() (parent Node, ok bool)
	// ChildIndex returns the 1-based position among the parent's element children.
	ChildIndex() int
	// SameTagSiblings counts the parent's element children sharing this tag,
	// including the node itself.
	SameTagSiblings() int
}

// Separator joins path segments.
const Separator = " > "

// Resolve returns a selector that identifies n within its document, or ""
// when n is nil. An element carrying an id resolves to "#id" with no further
// traversal; otherwise the walk climbs until an ancestor with an id or the
// document root is reached.
func Resolve(n Node) string {
	if isNil(n) {
		return ""
	}
	if id := n.Identifier(); id != "" {
		return "#" + id
	}

	var segments []string
	cur := n
	for {
		if id := cur.Identifier(); id != "" {
			segments = append(segments, "#"+id)
			break
		}
		segments = append(segments, segment(cur))

		parent, ok := cur.Parent()
		if !ok || isNil(parent) {
			break
		}
		cur = parent
	}

	// Segments were collected innermost first.
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return strings.Join(segments, Separator)
}

func segment(n Node) string {
	tag := strings.ToLower(n.TagName())
	if n.SameTagSiblings() > 1 {
		return tag + ":nth-child(" + strconv.Itoa(n.ChildIndex()) + ")"
	}
	return tag
}

// isNil catches typed nil pointers hidden behind the interface.
func isNil(n Node) bool {
	if n == nil {
		return true
	}
	if p, ok := n.(interface{ IsNil() bool }); ok {
		return p.IsNil()
	}
	return false
}

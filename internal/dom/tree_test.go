package dom

import (
	"bytes"
	"strings"

	"a11yscan/internal/selector"

	"golang.org/x/net/html"
)

// element adapts a parsed html node to selector.Node so resolver output can
// be checked against real parser trees.
type element struct {
	n *html.Node
}

func parseDoc(s string) (*html.Node, error) {
	return html.Parse(strings.NewReader(s))
}

func find(root *html.Node, pred func(*html.Node) bool) *element {
	if root.Type == html.ElementNode && pred(root) {
		return &element{n: root}
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if e := find(c, pred); e != nil {
			return e
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func byClass(root *html.Node, c string) *element {
	return find(root, func(n *html.Node) bool {
		for _, f := range strings.Fields(attr(n, "class")) {
			if f == c {
				return true
			}
		}
		return false
	})
}

func byID(root *html.Node, id string) *element {
	return find(root, func(n *html.Node) bool { return attr(n, "id") == id })
}

func byTag(root *html.Node, tag string) *element {
	return find(root, func(n *html.Node) bool { return n.Data == tag })
}

func (e *element) IsNil() bool        { return e == nil }
func (e *element) TagName() string    { return e.n.Data }
func (e *element) Identifier() string { return attr(e.n, "id") }

func (e *element) Parent() (selector.Node, bool) {
	p := e.n.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil, false
	}
	return &element{n: p}, true
}

func (e *element) ChildIndex() int {
	idx := 1
	for s := e.n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			idx++
		}
	}
	return idx
}

func (e *element) SameTagSiblings() int {
	count := 0
	for c := e.n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == e.n.Data {
			count++
		}
	}
	return count
}

func (e *element) outerHTML() string {
	var buf bytes.Buffer
	_ = html.Render(&buf, e.n)
	return buf.String()
}

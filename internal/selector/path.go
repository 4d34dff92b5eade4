package selector

// Step is one level of a captured ancestor chain.
type Step struct {
	Tag     string `json:"tag" yaml:"tag"`
	ID      string `json:"id,omitempty" yaml:"id,omitempty"`
	Index   int    `json:"index" yaml:"index"`
	SameTag int    `json:"sameTag" yaml:"same_tag"`
}

// Path is an element's ancestor chain as captured from a live document,
// innermost element first. The last step is the outermost element captured;
// its parent is treated as the document root.
type Path []Step

// Node exposes the innermost step of the path as a Node, or nil for an
// empty path.
func (p Path) Node() Node {
	if len(p) == 0 {
		return nil
	}
	return pathNode{path: p}
}

type pathNode struct {
	path Path
	i    int
}

func (n pathNode) TagName() string    { return n.path[n.i].Tag }
func (n pathNode) Identifier() string { return n.path[n.i].ID }
func (n pathNode) ChildIndex() int    { return n.path[n.i].Index }

func (n pathNode) SameTagSiblings() int {
	if c := n.path[n.i].SameTag; c > 0 {
		return c
	}
	return 1
}

func (n pathNode) Parent() (Node, bool) {
	if n.i+1 >= len(n.path) {
		return nil, false
	}
	return pathNode{path: n.path, i: n.i + 1}, true
}

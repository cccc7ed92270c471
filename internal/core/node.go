package core

// Node is a single entry of the tree: either a *Dir or a *File.
type Node interface {
	Name() string
	Parent() *Dir
	IsDir() bool
}

// File is a leaf node holding text content.
type File struct {
	name    string
	dir     *Dir
	content string
}

// Dir is a directory node. Children are keyed by name; the parent link is
// a back-reference only, ownership flows from the root downwards.
type Dir struct {
	name     string
	parent   *Dir
	children map[string]Node
}

func newDir(name string, parent *Dir) *Dir {
	return &Dir{
		name:     name,
		parent:   parent,
		children: make(map[string]Node),
	}
}

func (f *File) Name() string {
	return f.name
}

func (f *File) Parent() *Dir {
	return f.dir
}

func (f *File) IsDir() bool {
	return false
}

// Content returns the file's text.
func (f *File) Content() string {
	return f.content
}

// SetContent replaces the file's text.
func (f *File) SetContent(content string) {
	f.content = content
}

func (d *Dir) Name() string {
	return d.name
}

func (d *Dir) Parent() *Dir {
	return d.parent
}

func (d *Dir) IsDir() bool {
	return true
}

// Child returns the named child, or nil.
func (d *Dir) Child(name string) Node {
	return d.children[name]
}

// Len returns the number of children.
func (d *Dir) Len() int {
	return len(d.children)
}

// Children returns the children in no particular order.
func (d *Dir) Children() []Node {
	nodes := make([]Node, 0, len(d.children))
	for _, child := range d.children {
		nodes = append(nodes, child)
	}
	return nodes
}

// isAncestorOf reports whether d is n itself or one of its ancestors.
func (d *Dir) isAncestorOf(n *Dir) bool {
	for cur := n; cur != nil; cur = cur.parent {
		if cur == d {
			return true
		}
	}
	return false
}

func (d *Dir) attach(child Node) {
	switch c := child.(type) {
	case *Dir:
		c.parent = d
	case *File:
		c.dir = d
	}
	d.children[child.Name()] = child
}

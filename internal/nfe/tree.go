package nfe

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errNoRoot = errors.New("no xml root element")

// node is an element reduced to its local name, own character data and children.
// Namespaces and prefixes are dropped on purpose: NF-e emitters do not agree on them.
type node struct {
	name     string
	text     strings.Builder
	children []*node
}

// parseTree reads text into a node tree. A nil root with errNoRoot (or a syntax error)
// means the input never looked like XML; a non-nil root with an error means the document
// opened but its tree is malformed.
func parseTree(text string) (*node, error) {
	d := xml.NewDecoder(strings.NewReader(text))
	d.Strict = true
	// text is already UTF-8; ignore whatever the declaration claims
	d.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }

	var root *node
	var stack []*node
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return root, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local}
			if len(stack) == 0 {
				if root != nil {
					return root, fmt.Errorf("second root element <%s>", t.Name.Local)
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, errNoRoot
	}
	if len(stack) > 0 {
		return root, fmt.Errorf("unclosed element <%s>", stack[len(stack)-1].name)
	}
	return root, nil
}

// find returns the first descendant (depth-first, document order) named local.
func (n *node) find(local string) *node {
	if n == nil {
		return nil
	}
	for _, c := range n.children {
		if c.name == local {
			return c
		}
		if m := c.find(local); m != nil {
			return m
		}
	}
	return nil
}

// findPath follows direct children by local name.
func (n *node) findPath(path ...string) *node {
	cur := n
	for _, p := range path {
		if cur == nil {
			return nil
		}
		var next *node
		for _, c := range cur.children {
			if c.name == p {
				next = c
				break
			}
		}
		cur = next
	}
	return cur
}

// childrenNamed returns the direct children named local, or every descendant so named
// when there are no direct ones.
func (n *node) childrenNamed(local string) []*node {
	if n == nil {
		return nil
	}
	var out []*node
	for _, c := range n.children {
		if c.name == local {
			out = append(out, c)
		}
	}
	if len(out) > 0 {
		return out
	}
	n.walk(func(d *node) {
		if d.name == local {
			out = append(out, d)
		}
	})
	return out
}

func (n *node) walk(fn func(*node)) {
	for _, c := range n.children {
		fn(c)
		c.walk(fn)
	}
}

// value is the trimmed text of the direct child named local, falling back to the first
// descendant so named. Missing elements yield "".
func (n *node) value(local string) string {
	if n == nil {
		return ""
	}
	if c := n.findPath(local); c != nil {
		return c.ownText()
	}
	return n.find(local).ownText()
}

func (n *node) ownText() string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.text.String())
}

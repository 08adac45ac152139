package morph

import (
	"bytes"
	"errors"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var ErrNotSingleRoot = errors.New("markup must contain exactly one root element")

// Attributes with meaning to the reconciler
const (
	// KeyAttr identifies an element across renders
	KeyAttr = "id"
	// RemovingAttr marks an element whose removal is in progress. Such
	// elements are left alone by later patches.
	RemovingAttr = "data-is-removing"
	// ExitAttr lists classes that start an exit transition. Elements
	// carrying it are never replaced in place.
	ExitAttr = "ekg-removed"
)

// Kind names a tree mutation
type Kind string

const (
	OpInsert  Kind = "insert"
	OpMove    Kind = "move"
	OpReplace Kind = "replace"
	OpText    Kind = "text"
	OpAttr    Kind = "attr"
	OpAttrDel Kind = "attr_del"
	OpRemove  Kind = "remove"
)

// Op is one mutation applied to the live tree. Path holds child indexes
// from the patched root at the moment the op was applied: after the
// mutation for insert, move and replace, before it for remove.
type Op struct {
	Kind  Kind   `json:"op"`
	Path  []int  `json:"path"`
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
	HTML  string `json:"html,omitempty"`
}

// Options tune a patch
type Options struct {
	// OnBeforeRemove is asked before a node is discarded. Returning false
	// keeps the node in place; the caller then owns its removal.
	OnBeforeRemove func(n *html.Node) bool
}

// Patch morphs root in place so that it matches markup, which must parse
// to a single element. Nodes are preserved wherever tag and key allow.
func Patch(root *html.Node, markup string, opts Options) ([]Op, error) {
	to, err := Parse(markup)
	if err != nil {
		return nil, err
	}
	return PatchNode(root, to, opts), nil
}

// PatchNode morphs root to match to. to is not modified.
func PatchNode(root, to *html.Node, opts Options) []Op {
	p := &patcher{root: root, opts: opts}
	p.element(root, to)
	return p.ops
}

// Parse reads markup as a body fragment and returns its single root element
func Parse(markup string) (*html.Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, err
	}

	var root *html.Node
	for _, n := range nodes {
		switch n.Type {
		case html.ElementNode:
			if root != nil {
				return nil, ErrNotSingleRoot
			}
			root = n
		case html.TextNode:
			if strings.TrimSpace(n.Data) != "" {
				return nil, ErrNotSingleRoot
			}
		}
	}
	if root == nil {
		return nil, ErrNotSingleRoot
	}
	return root, nil
}

type patcher struct {
	root *html.Node
	opts Options
	ops  []Op
}

func (p *patcher) emit(kind Kind, n *html.Node, name, value, markup string) {
	p.ops = append(p.ops, Op{Kind: kind, Path: PathOf(p.root, n), Name: name, Value: value, HTML: markup})
}

// element syncs attributes then children
func (p *patcher) element(from, to *html.Node) {
	p.attributes(from, to)
	p.children(from, to)
}

func (p *patcher) attributes(from, to *html.Node) {
	for _, a := range to.Attr {
		if v, ok := Attr(from, a.Key); ok && v == a.Val {
			continue
		}
		upsert(from, a)
		p.emit(OpAttr, from, a.Key, a.Val, "")
	}

	for i := 0; i < len(from.Attr); {
		key := from.Attr[i].Key
		if _, ok := Attr(to, key); ok {
			i++
			continue
		}
		from.Attr = append(from.Attr[:i], from.Attr[i+1:]...)
		p.emit(OpAttrDel, from, key, "", "")
	}
}

func (p *patcher) children(from, to *html.Node) {
	keyed := make(map[string]*html.Node)
	for c := from.FirstChild; c != nil; c = c.NextSibling {
		if k := keyOf(c); k != "" && !removing(c) {
			keyed[k] = c
		}
	}
	used := make(map[*html.Node]bool)

	cur := from.FirstChild
	for t := to.FirstChild; t != nil; t = t.NextSibling {
		cur = skipRemoving(cur)
		key := keyOf(t)

		var match *html.Node
		if key != "" {
			if m, ok := keyed[key]; ok && !used[m] && sameKind(m, t) {
				match = m
			}
		} else {
			// Keyed nodes wait for their key; the first unkeyed one decides
			for n := cur; n != nil; n = n.NextSibling {
				if removing(n) || keyOf(n) != "" {
					continue
				}
				if sameKind(n, t) {
					match = n
				}
				break
			}
		}

		if match != nil {
			used[match] = true
			switch {
			case match == cur:
				cur = cur.NextSibling
			case key == "":
				cur = match.NextSibling
			default:
				from.RemoveChild(match)
				insertBefore(from, match, cur)
				p.emit(OpMove, match, "", "", "")
			}
			p.morph(match, t)
			continue
		}

		clone := Clone(t)
		used[clone] = true
		if key == "" && cur != nil && keyOf(cur) == "" && !hasExit(cur) {
			next := cur.NextSibling
			from.InsertBefore(clone, cur)
			from.RemoveChild(cur)
			cur = next
			p.emit(OpReplace, clone, "", "", render(clone))
			continue
		}
		insertBefore(from, clone, cur)
		p.emit(OpInsert, clone, "", "", render(clone))
	}

	for n := from.FirstChild; n != nil; {
		next := n.NextSibling
		if !used[n] && !removing(n) {
			p.discard(n)
		}
		n = next
	}
}

// morph updates a node already known to be compatible with to
func (p *patcher) morph(from, to *html.Node) {
	switch from.Type {
	case html.ElementNode:
		p.element(from, to)
	case html.TextNode, html.CommentNode:
		if from.Data != to.Data {
			from.Data = to.Data
			p.emit(OpText, from, "", to.Data, "")
		}
	}
}

func (p *patcher) discard(n *html.Node) {
	if p.opts.OnBeforeRemove != nil && !p.opts.OnBeforeRemove(n) {
		return
	}
	p.emit(OpRemove, n, "", "", "")
	n.Parent.RemoveChild(n)
}

// ============================================================================
// Node helpers
// ============================================================================

// PathOf returns the child-index path from root to n, or nil when n is not
// below root.
func PathOf(root, n *html.Node) []int {
	var path []int
	for cur := n; cur != root; cur = cur.Parent {
		if cur == nil || cur.Parent == nil {
			return nil
		}
		i := 0
		for s := cur.Parent.FirstChild; s != cur; s = s.NextSibling {
			i++
		}
		path = append(path, i)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	if path == nil {
		path = []int{}
	}
	return path
}

// Attr looks up an attribute by key
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or adds an attribute
func SetAttr(n *html.Node, key, val string) {
	upsert(n, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes an attribute, reporting whether it was present
func RemoveAttr(n *html.Node, key string) bool {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return true
		}
	}
	return false
}

func upsert(n *html.Node, a html.Attribute) {
	for i := range n.Attr {
		if n.Attr[i].Key == a.Key {
			n.Attr[i] = a
			return
		}
	}
	n.Attr = append(n.Attr, a)
}

// Clone deep-copies n without parent or sibling links
func Clone(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(Clone(child))
	}
	return c
}

func render(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

func keyOf(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	v, _ := Attr(n, KeyAttr)
	return v
}

func removing(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	_, ok := Attr(n, RemovingAttr)
	return ok
}

func hasExit(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	_, ok := Attr(n, ExitAttr)
	return ok
}

func skipRemoving(n *html.Node) *html.Node {
	for n != nil && removing(n) {
		n = n.NextSibling
	}
	return n
}

func sameKind(a, b *html.Node) bool {
	if a.Type != b.Type {
		return false
	}
	if a.Type == html.ElementNode {
		return a.Data == b.Data && a.Namespace == b.Namespace
	}
	return true
}

func insertBefore(parent, n, ref *html.Node) {
	if ref == nil {
		parent.AppendChild(n)
		return
	}
	parent.InsertBefore(n, ref)
}

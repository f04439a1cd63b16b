// Package dom is the live document the cosmetic engine works against: an HTML
// tree with a mutation API, mutation observers, selector queries and a
// computed-style resolver.
package dom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/bnema/cosmetic/internal/mainloop"
)

// ReadyState mirrors document.readyState.
type ReadyState string

const (
	StateLoading     ReadyState = "loading"
	StateInteractive ReadyState = "interactive"
	StateComplete    ReadyState = "complete"
)

// Document owns an HTML tree. Every mutation goes through it so observers
// see the change. It is not safe for concurrent use: callers run on the
// scheduler's loop.
type Document struct {
	root  *html.Node
	sched mainloop.Scheduler
	url   string
	state ReadyState

	noObserver bool
	observers  []*MutationObserver

	contentLoaded []*listener
	errorHandlers []*errorListener

	version   uint64
	selectors *selectorCache
	sheets    *sheetCache
}

type listener struct{ fn func() }

type errorListener struct{ fn func(*html.Node) }

// Option configures a Document.
type Option func(*Document)

// WithURL sets the document URL.
func WithURL(url string) Option {
	return func(d *Document) { d.url = url }
}

// WithReadyState sets the initial ready state. Parsed documents default to
// complete.
func WithReadyState(state ReadyState) Option {
	return func(d *Document) { d.state = state }
}

// WithoutMutationObserver simulates a host lacking an observation primitive.
func WithoutMutationObserver() Option {
	return func(d *Document) { d.noObserver = true }
}

// Parse reads an HTML document.
func Parse(r io.Reader, sched mainloop.Scheduler, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	d := &Document{
		root:      root,
		sched:     sched,
		url:       "about:blank",
		state:     StateComplete,
		selectors: newSelectorCache(),
		sheets:    &sheetCache{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// ParseString is Parse for a string.
func ParseString(markup string, sched mainloop.Scheduler, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(markup), sched, opts...)
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// URL returns the document URL.
func (d *Document) URL() string { return d.url }

// Scheduler returns the loop the document delivers events on.
func (d *Document) Scheduler() mainloop.Scheduler { return d.sched }

// Version increments on every mutation.
func (d *Document) Version() uint64 { return d.version }

// DocumentElement returns the <html> element.
func (d *Document) DocumentElement() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// Head returns <head>, or nil.
func (d *Document) Head() *html.Node { return d.childByAtom(atom.Head) }

// Body returns <body>, or nil.
func (d *Document) Body() *html.Node { return d.childByAtom(atom.Body) }

func (d *Document) childByAtom(a atom.Atom) *html.Node {
	de := d.DocumentElement()
	if de == nil {
		return nil
	}
	for c := de.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
	}
	return nil
}

// ReadyState returns the current ready state.
func (d *Document) ReadyState() ReadyState { return d.state }

// SetReadyState advances the ready state. Leaving "loading" fires the
// DOMContentLoaded listeners as a task.
func (d *Document) SetReadyState(state ReadyState) {
	prev := d.state
	d.state = state
	if prev == StateLoading && state != StateLoading {
		listeners := append([]*listener(nil), d.contentLoaded...)
		d.sched.Post(func() {
			for _, l := range listeners {
				if d.hasContentLoaded(l) {
					l.fn()
				}
			}
		})
	}
}

// OnContentLoaded registers fn for DOMContentLoaded and returns a remover.
func (d *Document) OnContentLoaded(fn func()) func() {
	l := &listener{fn: fn}
	d.contentLoaded = append(d.contentLoaded, l)
	return func() {
		for i, x := range d.contentLoaded {
			if x == l {
				d.contentLoaded = append(d.contentLoaded[:i], d.contentLoaded[i+1:]...)
				return
			}
		}
	}
}

func (d *Document) hasContentLoaded(l *listener) bool {
	for _, x := range d.contentLoaded {
		if x == l {
			return true
		}
	}
	return false
}

// OnResourceError registers a capturing listener for resource load failures.
func (d *Document) OnResourceError(fn func(*html.Node)) func() {
	l := &errorListener{fn: fn}
	d.errorHandlers = append(d.errorHandlers, l)
	return func() {
		for i, x := range d.errorHandlers {
			if x == l {
				d.errorHandlers = append(d.errorHandlers[:i], d.errorHandlers[i+1:]...)
				return
			}
		}
	}
}

// DispatchResourceError reports that n failed to load its resource.
func (d *Document) DispatchResourceError(n *html.Node) {
	handlers := append([]*errorListener(nil), d.errorHandlers...)
	d.sched.Post(func() {
		for _, h := range handlers {
			h.fn(n)
		}
	})
}

// CreateElement returns a detached element.
func (d *Document) CreateElement(tag string) *html.Node {
	tag = strings.ToLower(tag)
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

// CreateTextNode returns a detached text node.
func (d *Document) CreateTextNode(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

// AppendChild appends child to parent, detaching it from its previous parent.
func (d *Document) AppendChild(parent, child *html.Node) error {
	return d.InsertBefore(parent, child, nil)
}

// InsertBefore inserts child into parent before ref (nil appends).
func (d *Document) InsertBefore(parent, child, ref *html.Node) error {
	if parent == nil || child == nil {
		return fmt.Errorf("%w: nil node", ErrHierarchy)
	}
	for p := parent; p != nil; p = p.Parent {
		if p == child {
			return fmt.Errorf("%w: node is an ancestor of parent", ErrHierarchy)
		}
	}
	if ref != nil && ref.Parent != parent {
		return fmt.Errorf("%w: reference is not a child of parent", ErrHierarchy)
	}
	if old := child.Parent; old != nil {
		d.RemoveChild(old, child)
	}
	parent.InsertBefore(child, ref)
	d.version++
	d.queueChildList(parent, []*html.Node{child}, nil)
	return nil
}

// RemoveChild detaches child from parent. It is a no-op when child is not a
// child of parent.
func (d *Document) RemoveChild(parent, child *html.Node) {
	if parent == nil || child == nil || child.Parent != parent {
		return
	}
	d.queueChildList(parent, nil, []*html.Node{child})
	parent.RemoveChild(child)
	d.version++
}

// Remove detaches n from its parent.
func (d *Document) Remove(n *html.Node) {
	if n != nil && n.Parent != nil {
		d.RemoveChild(n.Parent, n)
	}
}

// AppendHTML parses markup in the context of parent and appends the result.
func (d *Document) AppendHTML(parent *html.Node, markup string) ([]*html.Node, error) {
	if parent == nil || parent.Type != html.ElementNode {
		return nil, fmt.Errorf("%w: parent must be an element", ErrHierarchy)
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), parent)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	for _, n := range nodes {
		if err := d.AppendChild(parent, n); err != nil {
			return nil, err
		}
	}
	return nodes, nil
}

// Attr returns the value of attribute key.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil || n.Type != html.ElementNode {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether attribute key exists.
func HasAttr(n *html.Node, key string) bool {
	_, ok := Attr(n, key)
	return ok
}

// SetAttribute sets an attribute and notifies observers.
func (d *Document) SetAttribute(n *html.Node, key, val string) {
	if n == nil || n.Type != html.ElementNode {
		return
	}
	key = strings.ToLower(key)
	old, had := Attr(n, key)
	if had {
		for i := range n.Attr {
			if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
				n.Attr[i].Val = val
				break
			}
		}
	} else {
		n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	}
	d.version++
	d.queueAttribute(n, key, old, had)
}

// RemoveAttribute deletes an attribute and notifies observers when it existed.
func (d *Document) RemoveAttribute(n *html.Node, key string) {
	old, had := Attr(n, key)
	if !had {
		return
	}
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			break
		}
	}
	d.version++
	d.queueAttribute(n, key, old, true)
}

// Contains reports whether n is attached to this document.
func (d *Document) Contains(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

// ParentElement returns the parent if it is an element.
func ParentElement(n *html.Node) *html.Node {
	if n == nil || n.Parent == nil || n.Parent.Type != html.ElementNode {
		return nil
	}
	return n.Parent
}

// ChildElementCount counts element children.
func ChildElementCount(n *html.Node) int {
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			count++
		}
	}
	return count
}

// TextContent concatenates the text of every descendant text node.
func TextContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(x *html.Node) {
		for c := x.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				sb.WriteString(c.Data)
			case html.ElementNode, html.DocumentNode:
				walk(c)
			}
		}
	}
	walk(n)
	return sb.String()
}

// ElementsByTag returns every element named tag under root, in document order.
func ElementsByTag(root *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(x *html.Node) {
		for c := x.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				if c.Data == tag {
					out = append(out, c)
				}
				walk(c)
			}
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

// Describe renders a short CSS-like label for logs and reports.
func Describe(n *html.Node) string {
	if n == nil {
		return "<nil>"
	}
	if n.Type != html.ElementNode {
		return "#" + nodeTypeName(n.Type)
	}
	var sb strings.Builder
	sb.WriteString(n.Data)
	if id, ok := Attr(n, "id"); ok && id != "" {
		sb.WriteString("#" + id)
	}
	if class, ok := Attr(n, "class"); ok {
		for _, c := range strings.Fields(class) {
			sb.WriteString("." + c)
		}
	}
	return sb.String()
}

func nodeTypeName(t html.NodeType) string {
	switch t {
	case html.TextNode:
		return "text"
	case html.DocumentNode:
		return "document"
	case html.CommentNode:
		return "comment"
	case html.DoctypeNode:
		return "doctype"
	default:
		return "node"
	}
}

package surface

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/GriffinCanCode/widgetkit/internal/providers/browser/morph"
)

// DefaultRemovalGrace is how long a node marked for removal waits for an
// exit transition to start before it is dropped.
const DefaultRemovalGrace = 100 * time.Millisecond

var ErrClosed = errors.New("surface is closed")

// Option configures a Surface
type Option func(*Surface)

// WithRemovalGrace overrides DefaultRemovalGrace
func WithRemovalGrace(d time.Duration) Option {
	return func(s *Surface) { s.grace = d }
}

// WithOnPatch receives ops applied outside Render, i.e. deferred removals
func WithOnPatch(fn func([]morph.Op)) Option {
	return func(s *Surface) { s.onPatch = fn }
}

// Surface is an isolated document a widget renders into: a style element
// in head and a single root div in body.
type Surface struct {
	mu     sync.Mutex
	doc    *html.Node
	style  *html.Node
	root   *html.Node
	closed bool

	grace   time.Duration
	onPatch func([]morph.Op)
	exits   map[*html.Node]*exit
}

type exit struct {
	timer   *time.Timer
	running bool
}

// New creates an empty surface
func New(opts ...Option) *Surface {
	doc := &html.Node{Type: html.DocumentNode}
	htmlEl := element(atom.Html)
	head := element(atom.Head)
	style := element(atom.Style)
	body := element(atom.Body)
	root := element(atom.Div)

	doc.AppendChild(htmlEl)
	htmlEl.AppendChild(head)
	htmlEl.AppendChild(body)
	head.AppendChild(style)
	body.AppendChild(root)

	s := &Surface{
		doc:   doc,
		style: style,
		root:  root,
		grace: DefaultRemovalGrace,
		exits: make(map[*html.Node]*exit),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}

// SetStyle replaces the stylesheet text
func (s *Surface) SetStyle(css string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := s.style.FirstChild; c != nil; c = s.style.FirstChild {
		s.style.RemoveChild(c)
	}
	if css != "" {
		s.style.AppendChild(&html.Node{Type: html.TextNode, Data: css})
	}
}

// Style returns the stylesheet text
func (s *Surface) Style() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	for c := s.style.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(c.Data)
	}
	return b.String()
}

// Render morphs the root to match markup and returns the applied ops
func (s *Surface) Render(markup string) ([]morph.Op, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return morph.Patch(s.root, markup, morph.Options{OnBeforeRemove: s.beforeRemove})
}

// HTML returns the outer markup of the root
func (s *Surface) HTML() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return goquery.OuterHtml(goquery.NewDocumentFromNode(s.root).Selection)
}

// Document returns the markup of the whole document
func (s *Surface) Document() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var buf bytes.Buffer
	if err := html.Render(&buf, s.doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Find runs a CSS selector against a snapshot of the document
func (s *Surface) Find(selector string) *goquery.Selection {
	s.mu.Lock()
	snapshot := morph.Clone(s.doc)
	s.mu.Unlock()
	return goquery.NewDocumentFromNode(snapshot).Find(selector)
}

// XPath returns the outer markup of every node matching expr
func (s *Surface) XPath(expr string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes, err := htmlquery.QueryAll(s.doc, expr)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, htmlquery.OutputHTML(n, true))
	}
	return out, nil
}

// Close cancels pending removals; later renders fail with ErrClosed
func (s *Surface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for n, e := range s.exits {
		e.timer.Stop()
		delete(s.exits, n)
	}
}

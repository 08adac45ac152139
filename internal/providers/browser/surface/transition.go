package surface

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/widgetkit/internal/providers/browser/morph"
)

// ============================================================================
// Exit transitions
// ============================================================================
//
// An element with an ekg-removed attribute is not dropped when a render no
// longer contains it. Instead it is marked data-is-removing, gains the
// classes listed in ekg-removed and waits. If no transition starts within
// the grace window it is removed; once one starts, removal waits for the
// transition to end or be cancelled.

// beforeRemove is the morph hook; called with mu held
func (s *Surface) beforeRemove(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return true
	}
	classes, ok := morph.Attr(n, morph.ExitAttr)
	if !ok {
		return true
	}
	if _, ok := morph.Attr(n, morph.RemovingAttr); ok {
		return false
	}

	morph.SetAttr(n, morph.RemovingAttr, "true")
	addClasses(n, strings.Fields(classes))

	e := &exit{}
	e.timer = time.AfterFunc(s.grace, func() { s.finish(n) })
	s.exits[n] = e
	return false
}

// TransitionRun reports that a transition started on the matching
// elements, cancelling their grace timers.
func (s *Surface) TransitionRun(selector string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, n := range s.match(selector) {
		if e, ok := s.exits[n]; ok {
			e.timer.Stop()
			e.running = true
			count++
		}
	}
	return count
}

// TransitionEnd reports that a transition finished on the matching
// elements; pending ones are removed.
func (s *Surface) TransitionEnd(selector string) int {
	return s.finishMatching(selector)
}

// TransitionCancel is treated like TransitionEnd
func (s *Surface) TransitionCancel(selector string) int {
	return s.finishMatching(selector)
}

// Pending returns how many elements are waiting to be removed
func (s *Surface) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.exits)
}

func (s *Surface) finishMatching(selector string) int {
	s.mu.Lock()
	var ops []morph.Op
	for _, n := range s.match(selector) {
		if op, ok := s.finishLocked(n); ok {
			ops = append(ops, op)
		}
	}
	s.mu.Unlock()

	s.report(ops)
	return len(ops)
}

func (s *Surface) finish(n *html.Node) {
	s.mu.Lock()
	op, ok := s.finishLocked(n)
	s.mu.Unlock()

	if ok {
		s.report([]morph.Op{op})
	}
}

func (s *Surface) finishLocked(n *html.Node) (morph.Op, bool) {
	e, ok := s.exits[n]
	if !ok {
		return morph.Op{}, false
	}
	e.timer.Stop()
	delete(s.exits, n)

	if n.Parent == nil {
		return morph.Op{}, false
	}
	op := morph.Op{Kind: morph.OpRemove, Path: morph.PathOf(s.root, n)}
	n.Parent.RemoveChild(n)
	return op, true
}

func (s *Surface) report(ops []morph.Op) {
	if len(ops) > 0 && s.onPatch != nil {
		s.onPatch(ops)
	}
}

// match must be called with mu held
func (s *Surface) match(selector string) []*html.Node {
	return goquery.NewDocumentFromNode(s.root).Find(selector).Nodes
}

func addClasses(n *html.Node, add []string) {
	current, _ := morph.Attr(n, "class")
	classes := strings.Fields(current)
	seen := make(map[string]bool, len(classes))
	for _, c := range classes {
		seen[c] = true
	}
	for _, c := range add {
		if !seen[c] {
			seen[c] = true
			classes = append(classes, c)
		}
	}
	morph.SetAttr(n, "class", strings.Join(classes, " "))
}

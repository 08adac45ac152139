/*
Package surface models the place a widget renders into.

A Container stands in for the host element: it has a content-box size and
data-* attributes, both observable. A Surface is the isolated document
attached to it, holding a single style element and a single root div that
renders are morphed into.

Elements carrying ekg-removed leave through an exit transition rather than
disappearing at once. The transition is driven from outside with
TransitionRun, TransitionEnd and TransitionCancel; without a TransitionRun
inside the grace window the element is removed anyway.
*/
package surface

/*
Package morph reconciles a live golang.org/x/net/html tree against freshly
rendered markup with as few mutations as possible.

Elements are matched by id first, then positionally by tag. Matched nodes
are updated in place so their identity survives a render; everything else
is inserted, replaced or removed. Every mutation is reported as an Op so a
remote view can replay it.

Removal can be deferred: Options.OnBeforeRemove may keep a node, after
which the caller is responsible for it. Nodes carrying RemovingAttr are
skipped by later patches until the caller removes them.
*/
package morph

// Package types holds the widget data model shared by the sandbox, the
// controller and the host API.
//
// Core Types:
//   - Size, Assets, Settings: per-mount inputs
//   - Event: bus payloads, including TICK and RESIZE
//   - Incoming / Outgoing: the host <-> guest message protocol
//   - ChatNode: structured chat message segments
//
// Both message unions and ChatNode are closed sets dispatched through
// visitor interfaces. A new variant adds a visitor method, which breaks
// the build for every handler that has not been taught about it.
package types

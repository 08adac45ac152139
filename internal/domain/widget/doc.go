// Package widget is the host side of a widget: the Controller that wires
// a sandbox worker, a rendering surface and the event bus together, the
// Mounter that keeps a container running what its attributes describe,
// and the Manager behind the HTTP API.
//
// Controller lifecycle: unmounted -> loading -> active -> stopped. Stop is
// idempotent and a stopped controller is never restarted; a Mount builds a
// fresh controller for every (re)start.
package widget

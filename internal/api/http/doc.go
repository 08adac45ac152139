// Package http exposes mounted widgets over a gin JSON API.
//
// Widgets are mounted from a bundle directory or URL, addressed by mount
// id, and driven by publishing events onto the shared bus. Rendered
// output is read back as HTML or queried with CSS selectors and XPath.
package http

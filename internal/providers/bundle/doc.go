// Package bundle loads widget bundles: a manifest (json, yaml or toml)
// naming a template, a script, a stylesheet, assets and settings.
//
// Local bundles are read from a directory, with binary assets inlined as
// data URIs and text decoded to UTF-8. Remote bundles are fetched as one
// JSON document through the resilient HTTP client. Watch reports edits to
// a local bundle for development reloads.
package bundle

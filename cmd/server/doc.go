// Package main is the entry point for the widget server.
//
// The server mounts widget bundles in sandboxed script runtimes, feeds
// them events from a shared bus and keeps a rendered document per widget
// up to date.
//
// Architecture:
//
//	HTTP / WebSocket → Manager → Mounter → Controller → Worker (goja)
//	                                           ↓
//	                                   Template → Reconciler → Surface
//
// The server provides:
//   - REST API for mounting, resizing and closing widgets
//   - Event publishing to every mounted widget
//   - WebSocket streaming of patches, state and logs
//   - Persisted widget state (memory or SQLite)
//   - Prometheus metrics and request tracing
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Serve bundles from ./widgets
//	./server -port 8000 -bundles ./widgets
//
//	# Development mode (colored logs, debug level, bundle reload)
//	./server -dev -watch
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main

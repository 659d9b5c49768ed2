// Package cache defines the on-disk cache used by the fetch orchestrator:
// URL → Key derivation (<CacheDir>/<slug>-<sha>/{body,headers.json}), the
// Storage primitives with safe semantics (temp file + rename), the entry
// snapshot loaded before every GET, and the pure freshness decision that picks
// between serving the cached copy, serving it while refreshing in the
// background, or going back to the origin (optionally with If-None-Match).
// Nothing here talks to the network; higher layers combine these pieces.
package cache

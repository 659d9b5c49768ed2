// Package transport issues the single upstream HTTP(S) request behind every
// cache miss or revalidation. It owns the shared, tuned http.Transport,
// chooses HTTP or HTTPS from the URL scheme, and leaves redirects to the
// caller. Tests and embedders can swap in any Transport implementation.
package transport

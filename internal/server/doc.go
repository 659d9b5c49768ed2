// Package server exposes the caching client over HTTP with Fiber.
// The router attaches recovery and request-ID middleware, serves the
// /fetch relay endpoint and a small set of /-/ diagnostics. Dependencies are
// passed in explicitly through AppOptions so tests can inject fakes.
package server

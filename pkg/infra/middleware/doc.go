// Package middleware provides the gin middleware chain used by the HTTP server.
//
// The server installs them in this order:
//
//	Recovery -> RequestID -> Tracing -> Logger -> BodyLimit -> Auth
package middleware

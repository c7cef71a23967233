// Package middleware provides the HTTP middleware stages that the
// pipeline composer assembles around business handlers: request
// logging with correlation ids, panic recovery, security headers,
// metrics, tracing, rate limiting, the authentication gate, and schema
// validation.
package middleware

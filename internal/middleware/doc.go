// Package middleware provides HTTP middleware for the media shelf server.
//
// It includes:
//   - Request logging in W3C Extended Log Format, including the
//     authenticated username recorded with [SetUsername]
//   - Prometheus request metrics labelled by route template
//   - Configurable filtering for static files and health checks
package middleware

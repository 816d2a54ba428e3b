// Package handlers implements the HTTP API of the media shelf server.
//
// Routes are built by [Handlers.Router]:
//
//	GET    /healthz /livez /readyz /version     no authentication
//	POST   /api/auth/login /api/auth/logout     no authentication
//	GET    /api/auth/check                      any user
//	GET    /api/id?path=                        any user
//	GET    /api/path/{id}                       any user
//	GET    /api/thumbnail/{id}                  any user
//	GET    /api/users  POST /api/users          administrators
//	PUT    /api/users/{username}                administrators
//	DELETE /api/users/{username}                administrators
//	POST   /api/maintenance/optimize            administrators
//	POST   /api/maintenance/reindex             administrators
//
// Clients authenticate with the token returned by login, either as an
// "Authorization: Bearer" header or through the session cookie set on
// login. Thumbnails are generated on first request and cached in the
// database.
package handlers

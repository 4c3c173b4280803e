// Package auth provides bearer-token authentication for spark-gateway.
//
// When auth.jwt_secret is configured, every /api route requires an HS256 JWT
// issued by "spark-gateway" whose "sub" claim names the caller (for example
// the phone companion or the CLI). Tokens are minted with:
//
//	spark-gateway token --subject phone
//
// The token travels in the Authorization header, or as ?token= for clients
// that cannot set headers on an event stream. HTTPAuthMiddleware verifies it
// and stores the subject in the request context. Health endpoints and the
// /config page are never authenticated.
package auth

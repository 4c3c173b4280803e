// Package gateway runs the spark-gateway HTTP server.
//
// # Overview
//
// The Gateway owns the store, the chat orchestrator, the readiness reporter,
// and the watch status hub, and exposes them over HTTP:
//
//   - POST /api/watch/chat - Answer one chat request (SSE)
//   - GET /api/watch/status - Current readiness message
//   - GET /api/watch/events - Readiness updates (SSE)
//   - GET /api/settings - Persisted settings
//   - POST /api/settings - Replace settings and re-report readiness
//   - GET /api/exchanges - Recent chat exchanges
//   - GET /api/stats - Exchange counts per outcome
//   - GET /config - Settings page (static, calls /api/settings)
//   - GET /health - Liveness check
//   - GET /health/ready - 200 once an API key is configured
//
// When auth.jwt_secret is set, every /api route requires a bearer token.
//
// # Reply Stream
//
// A chat request always yields exactly two events:
//
//	event: RESPONSE_TEXT
//	data: {"RESPONSE_TEXT":"It's sunny."}
//
//	event: RESPONSE_END
//	data: {"RESPONSE_END":1}
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	err = gw.Run(ctx) // returns after ctx is cancelled and shutdown completes
//
// With tailscale.enabled the server listens on the tailnet instead of
// server.http_addr, optionally over HTTPS or Funnel.
package gateway

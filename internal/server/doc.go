// Package server provides the optional HTTP inspection API.
//
// Endpoints:
//
//   - GET /api/sources: per-source freshness and poller state
//   - GET /api/snapshots/{source}: latest raw JSON document
//   - GET /api/sse: Server-Sent Events stream of snapshot updates
//
// The server only reads the snapshot store; it never triggers a fetch.
// It supports graceful shutdown via context cancellation, with a 5-second
// timeout for in-flight requests.
package server

// Package http provides the HTTP API for commitd.
//
// Endpoints:
//   - POST /webhooks/calls: accept a completed-call event and process it in
//     the background (202 on acceptance)
//   - GET /api/v1/tasks/:id: task status record with full history
//   - GET /api/v1/patterns/stats: underperforming pattern categories
//   - GET /health: liveness
package http

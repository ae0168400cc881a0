// Package api implements the HTTP REST API for the speedometer service.
//
// New(graph, clock, alerts) returns an http.Handler that serves:
//
//	GET /api/v1/health                        node counts by state, playhead frame
//	GET /api/v1/nodes                         node summaries ([]node.Info)
//	GET /api/v1/nodes/{id}?frame=             one node evaluated at frame (default playhead)
//	GET /api/v1/nodes/{id}/series?start=&end= per-frame results over a range
//	GET /api/v1/alerts                        firing and recently resolved alerts
//	GET /api/v1/snapshot                      every node at the playhead frame
//
// All endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for non-GET methods
//   - Return 404 for unknown nodes and 400 for malformed query parameters
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api

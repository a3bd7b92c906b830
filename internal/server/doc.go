// Package server provides the HTTP facade for the averager.
//
// This package is internal to the averager and handles all HTTP concerns:
//
//   - Query: "/random-numbers-average" answers {"average": n}
//   - Control: POST routes that start or stop the poller and clear samples
//   - REST API: JSON endpoint at "/api/status" for state and snapshot
//   - Server-Sent Events: snapshot stream at "/api/sse"
//   - Dashboard serving: the embedded HTML dashboard at "/"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// Users of the averager library should not need to interact with this
// package directly. The server is started by [averager.Averager.Start].
package server

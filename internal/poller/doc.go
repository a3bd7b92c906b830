// Package poller fetches numbers from a rate-limited random-number source
// on a fixed schedule.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with a failsafe-go timeout and size limits
//   - [HTTPFetcher]: performs one request and classifies it into an [Outcome]
//   - [Backoff]: the rate-limit policy (sentinel code and cooldown)
//   - [Poller]: the stopped/running/backing-off state machine that drives
//     fetches and feeds successful values to a [Sink]
//
// Users of the averager library should not need to interact with this
// package directly. Configuration is done through the main averager package.
package poller

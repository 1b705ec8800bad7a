// Package poller keeps every configured source fresh in the snapshot store.
//
// This package is internal to marquee. It runs one goroutine per source,
// each fetching its endpoint on its own cadence and writing successful
// results into the source's store slot.
//
// The main components are:
//
//   - [Client]: the fetcher; one GET, one JSON decode, typed errors, no retries
//   - [Poller]: the loop for a single source with staggered start and a [FailurePolicy]
//   - [Supervisor]: starts one Poller per source and owns their lifecycle
//   - [Attempt]: the outcome of a single fetch, reported to the supervisor
//
// Failures never clear a slot. Under [PolicyRetry] a poller keeps its cadence
// forever; under [PolicyStop] it exits after the first failed fetch and is not
// restarted.
//
// Users of the marquee library should not need to interact with this
// package directly. Configuration is done through the main marquee package.
package poller

// Package fleet manages the set of deployment controllers.
//
// The Manager owns one controller per deployment and drives all of them
// from a single ticker goroutine. External calls (Deploy, Delete, status
// reads) share a mutex with the tick, so every controller only ever runs
// single-threaded. Each tick also refreshes cluster membership, aggregates
// metrics, publishes status changes to the notify broker, and writes a
// throttled checkpoint so deployments survive a manager restart.
package fleet

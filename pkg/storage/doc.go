// Package storage persists the fleet checkpoint.
//
// The fleet manager writes its whole state as one opaque blob: every
// deployment's target spec plus the identities of its live replicas. The
// default backend is a single-file BoltDB database; tests use the
// in-memory store. Loading a checkpoint that was never written returns
// ErrNoCheckpoint, which callers treat as a cold start.
package storage

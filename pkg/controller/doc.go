// Package controller implements the per-deployment reconciliation loop.
//
// A Controller owns all replicas of one deployment and drives them toward
// the most recently deployed target spec. It is strictly passive: nothing
// happens between calls to Update, and every external interaction goes
// through non-blocking polls on replica handles. The fleet manager calls
// Update on every tick and serializes it against Deploy and Delete, so the
// controller itself holds no locks.
//
// Each Update pass runs in a fixed order: outdated-version replicas are
// stopped or reconfigured under the rolling-update budget, the replica set
// is scaled toward the target count, in-flight replicas are polled for
// startup, health and stop progress, and finally the aggregate deployment
// status is recomputed.
package controller

// Package notify fans out deployment status changes to subscribers.
//
// The fleet manager publishes one StatusUpdate per observed status change,
// deduplicated by the status's change version. Delivery is best effort: a
// subscriber that stops draining its channel loses updates rather than
// blocking the control loop.
package notify

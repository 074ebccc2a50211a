// Package sync implements both directions of the bridge: the full
// project pull and incremental event processing from the tracker into
// the hub, and the propagation of hub entity changes back to the
// tracker.
//
// The tracker-to-hub direction works through an in-memory hub tree
// (package hub): every phase mutates the tree and a single commit at
// the end submits the batched difference. Running the full pull twice
// over unchanged inputs therefore produces no operations the second
// time.
package sync

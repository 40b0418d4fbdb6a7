// Package rules implements the state reconciliation core of NetRules.
//
// It turns the heterogeneous rule collections fetched from the network
// controller into a uniform keyed snapshot, diffs consecutive snapshots
// to detect meaningful changes, classifies each change into a semantic
// action, and hands deduplicated change records to a dispatcher.
//
// # Pipeline
//
//	raw collections -> BuildSnapshot -> Detector.DetectAndDispatch
//	                                       |
//	                                  classifyChange (per entity)
//	                                       |
//	                                  Dispatcher (per change)
//
// # Snapshots
//
// A Snapshot maps kind -> entity id -> flattened field map. It is rebuilt
// from scratch on every cycle; nothing in this package persists state
// across process restarts. The first snapshot a Detector sees establishes
// a baseline and never produces change records (cold-start policy), so a
// restart does not report the entire rule set as "created".
//
// # Synthetic children
//
// Some parent kinds expose one boolean sub-feature that users toggle
// independently of the parent: the kill switch on traffic routes and the
// LED override on devices. The snapshot builder synthesises one child
// entity per parent for these (id = parent id + suffix), with the child's
// "enabled" mirrored from the parent's source field. The classifier
// evaluates children on that derived field and excludes the same field
// from the parent's own comparison, so one toggle yields exactly one
// change record, attributed to the child.
//
// # Concurrency
//
// The diff is a pure, synchronous pass over two in-memory snapshots.
// A Detector is owned by a single update cycle at a time; only the
// dispatcher may perform I/O.
package rules

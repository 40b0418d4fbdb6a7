// Package coordinator drives the fetch-detect-dispatch cycle and owns the
// cached controller data.
//
// One Coordinator runs one single-goroutine scheduler loop: fetch all rule
// collections, validate the shape, hand the data to the change detector,
// notify the lifecycle listener, and record the cycle outcome with the
// adaptive polling controller. The next timer is armed only after the
// current cycle fully completes, so cycles never overlap and the detector
// needs no locking.
//
// Failure policy favours stale data over no data: while a re-login is in
// flight, or when a fetch fails with a recoverable auth error, or when the
// response shape is invalid, the coordinator serves the last good data set
// untouched. Only a failure with no cache at all surfaces as an error.
package coordinator

// Package poll implements the adaptive polling controller.
//
// The controller decides how long the coordinator waits before the next
// fetch cycle, balancing rule-change freshness against controller load.
// It moves between three tiers:
//
//   - base: steady low-frequency polling after a quiet period
//   - active: recent activity observed, poll faster
//   - realtime: very recent change (or a pending optimistic update),
//     poll at the minimum interval
//
// Detected changes reset the idle tracking and promote the tier; quiet
// cycles let it decay back towards base once the activity timeout lapses.
//
// External subsystems (push notifiers, webhooks) can call
// RegisterExternalChange to force the next interval down to the realtime
// tier and wake the scheduler. Signals arriving within the debounce
// window collapse into a single accelerated poll. The hook is safe to
// call concurrently with a running cycle: it records intent for the next
// interval computation and never touches snapshot data.
package poll

// Package mainloop models the single script thread a page runs on: animation
// frames, timers and microtasks delivered one at a time, never in parallel.
package mainloop

import "time"

// Handle identifies a scheduled frame callback or timer.
type Handle uint64

// Scheduler is the cooperative event loop every engine component runs on.
// All methods except Post must be called from the loop itself.
type Scheduler interface {
	// RequestFrame runs fn on the next animation frame.
	RequestFrame(fn func()) Handle
	CancelFrame(h Handle)

	// SetTimeout runs fn once after d.
	SetTimeout(fn func(), d time.Duration) Handle
	ClearTimeout(h Handle)

	// QueueMicrotask runs fn after the current task, before the next frame or timer.
	QueueMicrotask(fn func())

	// Post enqueues fn as a new task. Safe to call from any goroutine.
	Post(fn func())

	Now() time.Time
}

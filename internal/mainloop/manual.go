package mainloop

import (
	"sort"
	"sync"
	"time"
)

// Manual is a deterministic Scheduler driven explicitly by the caller. Time
// only moves on Advance and frames only run on Frame.
type Manual struct {
	now    time.Time
	nextID Handle

	micro  []func()
	frames []manualFrame
	timers []manualTimer

	postMu sync.Mutex
	posted []func()
	wake   chan struct{}
}

type manualFrame struct {
	id Handle
	fn func()
}

type manualTimer struct {
	id  Handle
	due time.Time
	fn  func()
}

// NewManual creates a Manual scheduler starting at a fixed instant.
func NewManual() *Manual {
	return &Manual{
		now:  time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC),
		wake: make(chan struct{}, 1),
	}
}

func (m *Manual) next() Handle {
	m.nextID++
	return m.nextID
}

func (m *Manual) RequestFrame(fn func()) Handle {
	id := m.next()
	m.frames = append(m.frames, manualFrame{id: id, fn: fn})
	return id
}

func (m *Manual) CancelFrame(h Handle) {
	for i, f := range m.frames {
		if f.id == h {
			m.frames = append(m.frames[:i], m.frames[i+1:]...)
			return
		}
	}
}

func (m *Manual) SetTimeout(fn func(), d time.Duration) Handle {
	if d < 0 {
		d = 0
	}
	id := m.next()
	m.timers = append(m.timers, manualTimer{id: id, due: m.now.Add(d), fn: fn})
	return id
}

func (m *Manual) ClearTimeout(h Handle) {
	for i, t := range m.timers {
		if t.id == h {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}

func (m *Manual) QueueMicrotask(fn func()) {
	m.micro = append(m.micro, fn)
}

func (m *Manual) Post(fn func()) {
	m.postMu.Lock()
	m.posted = append(m.posted, fn)
	m.postMu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manual) Now() time.Time { return m.now }

// Flush runs posted tasks and microtasks until both queues are empty.
func (m *Manual) Flush() {
	for {
		m.runMicrotasks()
		m.postMu.Lock()
		posted := m.posted
		m.posted = nil
		m.postMu.Unlock()
		if len(posted) == 0 {
			return
		}
		for _, fn := range posted {
			fn()
			m.runMicrotasks()
		}
	}
}

func (m *Manual) runMicrotasks() {
	for len(m.micro) > 0 {
		fn := m.micro[0]
		m.micro = m.micro[1:]
		fn()
	}
}

// Frame flushes pending work, then runs every frame callback requested before
// this call. Callbacks requested while the frame runs wait for the next one.
func (m *Manual) Frame() {
	m.Flush()
	frames := m.frames
	m.frames = nil
	for _, f := range frames {
		f.fn()
		m.runMicrotasks()
	}
	m.Flush()
}

// Advance moves the clock forward by d, firing due timers in order.
func (m *Manual) Advance(d time.Duration) {
	m.Flush()
	target := m.now.Add(d)
	for {
		sort.SliceStable(m.timers, func(i, j int) bool {
			return m.timers[i].due.Before(m.timers[j].due)
		})
		if len(m.timers) == 0 || m.timers[0].due.After(target) {
			break
		}
		t := m.timers[0]
		m.timers = m.timers[1:]
		if t.due.After(m.now) {
			m.now = t.due
		}
		t.fn()
		m.Flush()
	}
	m.now = target
}

// WaitPosted blocks until a task is posted from another goroutine or the
// timeout elapses, then flushes. It reports whether anything was posted.
func (m *Manual) WaitPosted(timeout time.Duration) bool {
	m.postMu.Lock()
	ready := len(m.posted) > 0
	m.postMu.Unlock()
	if !ready {
		select {
		case <-m.wake:
		case <-time.After(timeout):
			return false
		}
	}
	m.Flush()
	return true
}

// PendingFrames returns the number of frame callbacks waiting to run.
func (m *Manual) PendingFrames() int { return len(m.frames) }

// PendingTimers returns the number of armed timers.
func (m *Manual) PendingTimers() int { return len(m.timers) }

var _ Scheduler = (*Manual)(nil)

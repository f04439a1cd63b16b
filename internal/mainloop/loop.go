package mainloop

import (
	"context"
	"sync"
	"time"

	"github.com/bnema/cosmetic/internal/logging"
)

// DefaultFrameInterval approximates a 60Hz display.
const DefaultFrameInterval = 16 * time.Millisecond

// Loop is a real-time Scheduler. Every callback runs on the goroutine that
// called Run. Once Run returns the loop is done: posted tasks are dropped.
type Loop struct {
	tasks         chan func()
	done          chan struct{}
	stopOnce      sync.Once
	frameInterval time.Duration
	nextID        Handle

	micro     []func()
	frames    []manualFrame
	cancelled map[Handle]bool
	timers    map[Handle]*time.Timer
}

// NewLoop creates a Loop. A non-positive frame interval selects the default.
func NewLoop(frameInterval time.Duration) *Loop {
	if frameInterval <= 0 {
		frameInterval = DefaultFrameInterval
	}
	return &Loop{
		tasks:         make(chan func(), 1024),
		done:          make(chan struct{}),
		frameInterval: frameInterval,
		cancelled:     make(map[Handle]bool),
		timers:        make(map[Handle]*time.Timer),
	}
}

func (l *Loop) next() Handle {
	l.nextID++
	return l.nextID
}

func (l *Loop) RequestFrame(fn func()) Handle {
	id := l.next()
	l.frames = append(l.frames, manualFrame{id: id, fn: fn})
	return id
}

func (l *Loop) CancelFrame(h Handle) {
	for i, f := range l.frames {
		if f.id == h {
			l.frames = append(l.frames[:i], l.frames[i+1:]...)
			return
		}
	}
}

func (l *Loop) SetTimeout(fn func(), d time.Duration) Handle {
	id := l.next()
	l.timers[id] = time.AfterFunc(d, func() {
		l.Post(func() {
			if l.cancelled[id] {
				delete(l.cancelled, id)
				return
			}
			delete(l.timers, id)
			fn()
		})
	})
	return id
}

func (l *Loop) ClearTimeout(h Handle) {
	t, ok := l.timers[h]
	if !ok {
		return
	}
	delete(l.timers, h)
	if !t.Stop() {
		// Already fired; its task is queued and must be discarded.
		l.cancelled[h] = true
	}
}

func (l *Loop) QueueMicrotask(fn func()) {
	l.micro = append(l.micro, fn)
}

func (l *Loop) Post(fn func()) {
	select {
	case <-l.done:
		return
	default:
	}
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) Now() time.Time { return time.Now() }

// Run processes tasks until ctx is cancelled. Pending timers are stopped on
// return.
func (l *Loop) Run(ctx context.Context) error {
	log := logging.FromContext(ctx).With().Str("component", "mainloop").Logger()
	ticker := time.NewTicker(l.frameInterval)
	defer ticker.Stop()
	defer l.stopTimers()
	defer l.stopOnce.Do(func() { close(l.done) })

	log.Debug().Dur("frame_interval", l.frameInterval).Msg("loop started")
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("loop stopped")
			return ctx.Err()
		case fn := <-l.tasks:
			l.run(fn)
		case <-ticker.C:
			frames := l.frames
			l.frames = nil
			for _, f := range frames {
				l.run(f.fn)
			}
		}
	}
}

func (l *Loop) run(fn func()) {
	fn()
	for len(l.micro) > 0 {
		m := l.micro[0]
		l.micro = l.micro[1:]
		m()
	}
}

func (l *Loop) stopTimers() {
	for id, t := range l.timers {
		t.Stop()
		delete(l.timers, id)
	}
}

var _ Scheduler = (*Loop)(nil)

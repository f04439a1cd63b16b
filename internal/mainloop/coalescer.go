package mainloop

import "time"

// Coalescer merges bursts of same-key tasks into a single callback that runs
// on the next animation frame. A fallback timer guarantees the callback runs
// even when the page never paints (background tabs get no frames).
type Coalescer struct {
	sched     Scheduler
	timeout   time.Duration
	pending   map[string]*coalesced
	destroyed bool
}

type coalesced struct {
	fn    func()
	frame Handle
	timer Handle
}

// DefaultFrameTimeout is the fallback delay used when no frame arrives.
const DefaultFrameTimeout = 1200000 * time.Millisecond

func NewCoalescer(sched Scheduler, timeout time.Duration) *Coalescer {
	if sched == nil {
		panic("mainloop.NewCoalescer: scheduler cannot be nil")
	}
	if timeout <= 0 {
		timeout = DefaultFrameTimeout
	}
	return &Coalescer{
		sched:   sched,
		timeout: timeout,
		pending: make(map[string]*coalesced),
	}
}

// Post schedules fn under key. If key is already pending the latest fn
// replaces the previous one and no new frame is requested.
func (c *Coalescer) Post(key string, fn func()) {
	if fn == nil || key == "" || c.destroyed {
		return
	}
	if p, ok := c.pending[key]; ok {
		p.fn = fn
		return
	}
	p := &coalesced{fn: fn}
	fire := func() { c.fire(key, p) }
	p.frame = c.sched.RequestFrame(fire)
	p.timer = c.sched.SetTimeout(fire, c.timeout)
	c.pending[key] = p
}

// PostAfter schedules fn under key on a plain timer, skipping the frame.
func (c *Coalescer) PostAfter(key string, d time.Duration, fn func()) {
	if fn == nil || key == "" || c.destroyed {
		return
	}
	if p, ok := c.pending[key]; ok {
		p.fn = fn
		return
	}
	p := &coalesced{fn: fn}
	p.timer = c.sched.SetTimeout(func() { c.fire(key, p) }, d)
	c.pending[key] = p
}

func (c *Coalescer) fire(key string, p *coalesced) {
	if c.pending[key] != p {
		return
	}
	c.clear(key, p)
	p.fn()
}

func (c *Coalescer) clear(key string, p *coalesced) {
	if p.frame != 0 {
		c.sched.CancelFrame(p.frame)
	}
	if p.timer != 0 {
		c.sched.ClearTimeout(p.timer)
	}
	delete(c.pending, key)
}

// Cancel drops the pending callback for key, if any.
func (c *Coalescer) Cancel(key string) {
	if p, ok := c.pending[key]; ok {
		c.clear(key, p)
	}
}

// Pending reports whether a callback is scheduled under key.
func (c *Coalescer) Pending(key string) bool {
	_, ok := c.pending[key]
	return ok
}

// Destroy cancels everything and ignores later posts.
func (c *Coalescer) Destroy() {
	for key, p := range c.pending {
		c.clear(key, p)
	}
	c.destroyed = true
}

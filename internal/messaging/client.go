package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/cosmetic/internal/logging"
	"github.com/bnema/cosmetic/internal/mainloop"
)

// DefaultTimeout bounds a single backend call.
const DefaultTimeout = 10 * time.Second

// Client issues backend calls on behalf of loop-bound components. Results
// are posted back to the loop; transport errors resolve to nil.
type Client struct {
	backend Backend
	sched   mainloop.Scheduler
	logger  zerolog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	inline  bool

	nextID uint64
	closed bool
	wg     sync.WaitGroup
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithInline calls the backend on the caller's goroutine instead of a new
// one. Results are still delivered as a separate loop task.
func WithInline() ClientOption {
	return func(c *Client) { c.inline = true }
}

// NewClient creates a client bound to sched.
func NewClient(ctx context.Context, backend Backend, sched mainloop.Scheduler, opts ...ClientOption) *Client {
	cctx, cancel := context.WithCancel(ctx)
	c := &Client{
		backend: backend,
		sched:   sched,
		logger:  logging.FromContext(ctx).With().Str("component", "messaging").Logger(),
		ctx:     cctx,
		cancel:  cancel,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newFuture[T any](c *Client) *Future[T] {
	c.nextID++
	return &Future[T]{id: c.nextID, post: c.sched.Post}
}

// call runs fn and resolves f on the loop. It must be called from the loop.
func call[T any](c *Client, what string, f *Future[T], fn func(ctx context.Context) (T, error)) {
	var zero T
	if c.closed || c.backend == nil {
		err := ErrClientClosed
		if c.backend == nil {
			err = ErrNoBackend
		}
		c.logger.Debug().Err(err).Str("what", what).Msg("dropping request")
		c.sched.Post(func() { f.resolve(zero) })
		return
	}

	run := func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
		defer cancel()
		start := time.Now()
		v, err := fn(ctx)
		if err != nil {
			c.logger.Debug().Err(err).Str("what", what).Uint64("id", f.id).Msg("backend call failed")
			v = zero
		} else {
			c.logger.Trace().Str("what", what).Uint64("id", f.id).Dur("took", time.Since(start)).Msg("backend call done")
		}
		c.sched.Post(func() {
			if c.closed {
				return
			}
			f.resolve(v)
		})
	}

	if c.inline {
		run()
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		run()
	}()
}

// RetrieveGenericSelectors looks up selectors for newly seen tokens.
func (c *Client) RetrieveGenericSelectors(req GenericSelectorsRequest) *Future[*GenericSelectorsResponse] {
	f := newFuture[*GenericSelectorsResponse](c)
	call(c, "retrieveGenericSelectors", f, func(ctx context.Context) (*GenericSelectorsResponse, error) {
		resp, err := c.backend.RetrieveGenericSelectors(ctx, req)
		if err != nil {
			return nil, err
		}
		return &resp, nil
	})
	return f
}

// RetrieveContentScriptParameters fetches the page configuration.
func (c *Client) RetrieveContentScriptParameters(req ContentScriptParametersRequest) *Future[*ContentScriptParameters] {
	f := newFuture[*ContentScriptParameters](c)
	call(c, "retrieveContentScriptParameters", f, func(ctx context.Context) (*ContentScriptParameters, error) {
		resp, err := c.backend.RetrieveContentScriptParameters(ctx, req)
		if err != nil {
			return nil, err
		}
		return &resp, nil
	})
	return f
}

// GetCollapsibleBlockedRequests asks which resources were blocked.
func (c *Client) GetCollapsibleBlockedRequests(req CollapsibleRequest) *Future[*CollapsibleResponse] {
	f := newFuture[*CollapsibleResponse](c)
	call(c, "getCollapsibleBlockedRequests", f, func(ctx context.Context) (*CollapsibleResponse, error) {
		return c.backend.GetCollapsibleBlockedRequests(ctx, req)
	})
	return f
}

// CosmeticFiltersInjected reports synthesized selectors. The backend's answer
// is ignored.
func (c *Client) CosmeticFiltersInjected(report InjectedReport) {
	f := newFuture[struct{}](c)
	call(c, "cosmeticFiltersInjected", f, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.backend.CosmeticFiltersInjected(ctx, report)
	})
}

// Close cancels in-flight calls. Results arriving afterwards are dropped.
func (c *Client) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
}

// Wait blocks until every background call has returned.
func (c *Client) Wait() {
	c.wg.Wait()
}

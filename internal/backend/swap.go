package backend

import (
	"context"
	"sync/atomic"

	"github.com/bnema/cosmetic/internal/messaging"
)

// Swappable forwards to a backend that can be replaced while serving, so a
// rule file can be reloaded without restarting the server.
type Swappable struct {
	current atomic.Pointer[messaging.Backend]
}

// NewSwappable starts with b.
func NewSwappable(b messaging.Backend) *Swappable {
	s := &Swappable{}
	s.Swap(b)
	return s
}

// Swap replaces the backend. In-flight calls finish on the old one.
func (s *Swappable) Swap(b messaging.Backend) {
	s.current.Store(&b)
}

// Current returns the active backend.
func (s *Swappable) Current() messaging.Backend {
	return *s.current.Load()
}

func (s *Swappable) RetrieveGenericSelectors(ctx context.Context, req messaging.GenericSelectorsRequest) (messaging.GenericSelectorsResponse, error) {
	return s.Current().RetrieveGenericSelectors(ctx, req)
}

func (s *Swappable) RetrieveContentScriptParameters(ctx context.Context, req messaging.ContentScriptParametersRequest) (messaging.ContentScriptParameters, error) {
	return s.Current().RetrieveContentScriptParameters(ctx, req)
}

func (s *Swappable) GetCollapsibleBlockedRequests(ctx context.Context, req messaging.CollapsibleRequest) (*messaging.CollapsibleResponse, error) {
	return s.Current().GetCollapsibleBlockedRequests(ctx, req)
}

func (s *Swappable) CosmeticFiltersInjected(ctx context.Context, report messaging.InjectedReport) error {
	return s.Current().CosmeticFiltersInjected(ctx, report)
}

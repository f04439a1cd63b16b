package logging

import (
	"context"
	"net/url"

	"github.com/rs/zerolog"
)

// Field names shared by engine log lines.
const (
	FieldComponent = "component"
	FieldPageID    = "page_id"
	FieldURL       = "url"
	FieldHost      = "host"
	FieldBackend   = "backend"
)

// Page identifies the document one engine instance filters.
type Page struct {
	ID   string
	URL  string
	Host string
}

// NewPage builds a Page, deriving the host from pageURL.
func NewPage(id, pageURL string) Page {
	p := Page{ID: id, URL: pageURL}
	if u, err := url.Parse(pageURL); err == nil {
		p.Host = u.Hostname()
	}
	return p
}

type pageKey struct{}

// FromContext extracts the logger from context
// If no logger is found, returns a disabled logger (no-op)
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// WithComponent creates a child logger with a component field
func WithComponent(ctx context.Context, component string) context.Context {
	logger := FromContext(ctx).With().Str(FieldComponent, component).Logger()
	return WithContext(ctx, logger)
}

// WithPage attaches p to ctx and tags every later log line with its id, URL
// and host. Components read it back with PageFromContext.
func WithPage(ctx context.Context, p Page) context.Context {
	lc := FromContext(ctx).With().Str(FieldPageID, p.ID).Str(FieldURL, p.URL)
	if p.Host != "" {
		lc = lc.Str(FieldHost, p.Host)
	}
	ctx = context.WithValue(ctx, pageKey{}, p)
	return WithContext(ctx, lc.Logger())
}

// PageFromContext returns the page attached by WithPage.
func PageFromContext(ctx context.Context) (Page, bool) {
	p, ok := ctx.Value(pageKey{}).(Page)
	return p, ok
}

// WithURL creates a child logger with a url field
func WithURL(ctx context.Context, rawURL string) context.Context {
	logger := FromContext(ctx).With().Str(FieldURL, rawURL).Logger()
	return WithContext(ctx, logger)
}

// WithBackend tags the logger with the backend kind serving the engine.
func WithBackend(ctx context.Context, kind string) context.Context {
	logger := FromContext(ctx).With().Str(FieldBackend, kind).Logger()
	return WithContext(ctx, logger)
}

package dom

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// selectorCache keeps compiled selector groups keyed by their source text.
// Aggregated partition strings are long and queried every commit, so parsing
// them once matters.
type selectorCache struct {
	groups map[string]cascadia.SelectorGroup
	errs   map[string]error
}

const selectorCacheMax = 4096

func newSelectorCache() *selectorCache {
	return &selectorCache{
		groups: make(map[string]cascadia.SelectorGroup),
		errs:   make(map[string]error),
	}
}

func (c *selectorCache) compile(sel string) (cascadia.SelectorGroup, error) {
	if g, ok := c.groups[sel]; ok {
		return g, nil
	}
	if err, ok := c.errs[sel]; ok {
		return nil, err
	}
	if len(c.groups)+len(c.errs) >= selectorCacheMax {
		c.groups = make(map[string]cascadia.SelectorGroup)
		c.errs = make(map[string]error)
	}
	g, err := cascadia.ParseGroup(sel)
	if err != nil {
		err = fmt.Errorf("%w: %q: %v", ErrInvalidSelector, sel, err)
		c.errs[sel] = err
		return nil, err
	}
	c.groups[sel] = g
	return g, nil
}

// ValidateSelector checks that sel parses as a selector list.
func (d *Document) ValidateSelector(sel string) error {
	if strings.TrimSpace(sel) == "" {
		return fmt.Errorf("%w: empty selector", ErrInvalidSelector)
	}
	_, err := d.selectors.compile(sel)
	return err
}

// QueryAll returns the descendants of scope matching sel, in document order.
// A nil scope queries the whole document.
func (d *Document) QueryAll(scope *html.Node, sel string) ([]*html.Node, error) {
	g, err := d.selectors.compile(sel)
	if err != nil {
		return nil, err
	}
	if scope == nil {
		scope = d.root
	}
	return cascadia.QueryAll(scope, g), nil
}

// QueryOne returns the first descendant of scope matching sel.
func (d *Document) QueryOne(scope *html.Node, sel string) (*html.Node, error) {
	g, err := d.selectors.compile(sel)
	if err != nil {
		return nil, err
	}
	if scope == nil {
		scope = d.root
	}
	return cascadia.Query(scope, g), nil
}

// Matches reports whether element n matches sel.
func (d *Document) Matches(n *html.Node, sel string) (bool, error) {
	g, err := d.selectors.compile(sel)
	if err != nil {
		return false, err
	}
	if n == nil || n.Type != html.ElementNode {
		return false, nil
	}
	return g.Match(n), nil
}

package cosmetic

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/aymerick/douceur/css"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/bnema/cosmetic/internal/dom"
	"github.com/bnema/cosmetic/internal/logging"
	"github.com/bnema/cosmetic/internal/mainloop"
	"github.com/bnema/cosmetic/internal/messaging"
)

const (
	collapseKey   = "collapse"
	blockedSetKey = "blocked-set"
)

var (
	primarySourceProp = map[string]string{
		"embed":  "src",
		"iframe": "src",
		"img":    "src",
		"object": "data",
	}
	secondarySourceProp = map[string]string{
		"img": "srcset",
	}
	tagToType = map[string]string{
		"embed":  "object",
		"iframe": "sub_frame",
		"img":    "image",
		"object": "object",
	}
)

// Collapser hides embedded resources whose network request was blocked.
// It is independent of cosmetic rules.
type Collapser struct {
	doc    *dom.Document
	client *messaging.Client
	sup    *Suppressor
	page   logging.Page
	logger zerolog.Logger

	debounce time.Duration
	ttl      time.Duration
	timers   *mainloop.Coalescer

	nextID     uint64
	toProcess  []*html.Node
	toFilter   []messaging.Resource
	toCollapse map[uint64][]*html.Node

	blockedSet  map[string]bool
	blockedHash string

	netSelectorCount int
	selectors        []string

	iframeObserver *dom.MutationObserver
	removeOnError  func()
	stopped        bool
}

// NewCollapser creates a collapser. It starts collecting candidates on the
// watcher's initial notification.
func NewCollapser(ctx context.Context, doc *dom.Document, client *messaging.Client, sup *Suppressor, opts Options) *Collapser {
	opts = opts.withDefaults()
	page, ok := logging.PageFromContext(ctx)
	if !ok {
		page = logging.NewPage("", doc.URL())
	}
	c := &Collapser{
		doc:        doc,
		client:     client,
		sup:        sup,
		page:       page,
		logger:     logging.FromContext(ctx).With().Str("component", "collapser").Logger(),
		debounce:   opts.CollapseDebounce,
		ttl:        opts.BlockedSetTTL,
		timers:     mainloop.NewCoalescer(doc.Scheduler(), opts.FrameTimeout),
		nextID:     1,
		toCollapse: make(map[uint64][]*html.Node),
	}
	obs, err := doc.NewMutationObserver(c.onIFrameSourceModified)
	if err != nil {
		c.logger.Debug().Err(err).Msg("iframe source watch unavailable")
	} else {
		c.iframeObserver = obs
	}
	return c
}

// Pending returns the number of requests awaiting a response.
func (c *Collapser) Pending() int { return len(c.toCollapse) }

// Selectors returns the attribute selectors synthesized so far.
func (c *Collapser) Selectors() []string {
	return append([]string(nil), c.selectors...)
}

// DOMChanged implements Listener.
func (c *Collapser) DOMChanged(added []*html.Node, removed bool) {
	if c.stopped {
		return
	}
	if len(added) == 0 && !removed {
		c.domCreated()
		return
	}
	for _, n := range added {
		c.addTree(n)
	}
	c.Process(c.debounce)
}

func (c *Collapser) domCreated() {
	for _, img := range dom.ElementsByTag(c.doc.Root(), "img") {
		c.Add(img)
	}
	for _, tag := range []string{"embed", "object"} {
		for _, n := range dom.ElementsByTag(c.doc.Root(), tag) {
			c.Add(n)
		}
	}
	for _, iframe := range dom.ElementsByTag(c.doc.Root(), "iframe") {
		c.AddIFrame(iframe, false)
	}
	c.Process(0)
	if c.removeOnError == nil {
		c.removeOnError = c.doc.OnResourceError(c.onResourceFailed)
	}
}

// addTree collects the candidates in a freshly inserted subtree.
func (c *Collapser) addTree(n *html.Node) {
	c.addCandidate(n)
	if dom.ChildElementCount(n) == 0 {
		return
	}
	for _, tag := range []string{"img", "embed", "object", "iframe"} {
		for _, e := range dom.ElementsByTag(n, tag) {
			c.addCandidate(e)
		}
	}
}

func (c *Collapser) addCandidate(n *html.Node) {
	switch n.Data {
	case "iframe":
		c.AddIFrame(n, false)
	case "img", "embed", "object":
		c.Add(n)
	}
}

// Add queues n for the next request.
func (c *Collapser) Add(n *html.Node) {
	res, ok := c.resource(n)
	if !ok {
		return
	}
	c.toProcess = append(c.toProcess, n)
	c.toFilter = append(c.toFilter, res)
}

// AddIFrame queues an iframe with an http(s) source and, unless
// dontObserve, watches its src attribute.
func (c *Collapser) AddIFrame(iframe *html.Node, dontObserve bool) {
	if !dontObserve && c.iframeObserver != nil {
		c.iframeObserver.Observe(iframe, dom.ObserveOptions{AttributeFilter: []string{"src"}})
	}
	res, ok := c.resource(iframe)
	if !ok || !strings.HasPrefix(res.URL, "http") {
		return
	}
	c.toProcess = append(c.toProcess, iframe)
	c.toFilter = append(c.toFilter, res)
}

func (c *Collapser) onIFrameSourceModified(records []dom.MutationRecord) {
	if c.stopped {
		return
	}
	for _, r := range records {
		c.AddIFrame(r.Target, true)
	}
	c.Process(c.debounce)
}

func (c *Collapser) onResourceFailed(n *html.Node) {
	if c.stopped || n == nil {
		return
	}
	if _, ok := tagToType[n.Data]; ok {
		c.Add(n)
		c.Process(c.debounce)
	}
}

// Process sends queued candidates after delay. A zero delay sends now and
// replaces any pending send.
func (c *Collapser) Process(delay time.Duration) {
	if len(c.toProcess) == 0 {
		return
	}
	if delay <= 0 {
		c.timers.Cancel(collapseKey)
		c.send()
		return
	}
	if !c.timers.Pending(collapseKey) {
		c.timers.PostAfter(collapseKey, delay, c.send)
	}
}

func (c *Collapser) send() {
	if len(c.toProcess) == 0 {
		return
	}
	id := c.nextID
	c.nextID++
	c.toCollapse[id] = c.toProcess
	req := messaging.CollapsibleRequest{
		ID:        id,
		FrameURL:  c.doc.URL(),
		Resources: c.toFilter,
		Hash:      c.blockedHash,
	}
	c.toProcess = nil
	c.toFilter = nil
	c.client.GetCollapsibleBlockedRequests(req).Then(c.onProcessed)
}

func (c *Collapser) onProcessed(resp *messaging.CollapsibleResponse) {
	if c.stopped {
		return
	}
	if resp == nil {
		clear(c.toCollapse)
		return
	}
	targets, ok := c.toCollapse[resp.ID]
	if !ok {
		return
	}
	delete(c.toCollapse, resp.ID)

	if resp.Hash != c.blockedHash || c.blockedSet == nil {
		c.blockedSet = make(map[string]bool, len(resp.BlockedResources))
		for _, key := range resp.BlockedResources {
			c.blockedSet[key] = true
		}
		c.blockedHash = resp.Hash
		c.timers.Cancel(blockedSetKey)
		c.timers.PostAfter(blockedSetKey, c.ttl, c.clearBlockedSet)
	}
	if len(c.blockedSet) == 0 {
		return
	}

	var selectors []string
	for _, n := range targets {
		res, ok := c.resource(n)
		if !ok || !c.blockedSet[res.Key()] {
			continue
		}
		c.collapse(n)
		prop, value := c.sourceAttr(n)
		if value != "" && c.netSelectorCount <= resp.NetSelectorCacheCountMax {
			selectors = append(selectors, n.Data+"["+prop+`="`+escapeAttrValue(value)+`"]`)
			c.netSelectorCount++
		}
	}
	if len(selectors) == 0 {
		return
	}
	c.selectors = append(c.selectors, selectors...)
	c.client.CosmeticFiltersInjected(messaging.InjectedReport{
		Type:      "net",
		Hostname:  c.page.Host,
		Selectors: selectors,
	})
}

func (c *Collapser) clearBlockedSet() {
	c.blockedSet = nil
	c.blockedHash = ""
}

// collapse hides n without removing it from the tree.
func (c *Collapser) collapse(n *html.Node) {
	c.sup.Suppress(n)
	style, _ := dom.Attr(n, "style")
	c.doc.SetAttribute(n, "style", setInlineProperty(style, "display", "none", true))
	c.doc.SetAttribute(n, "hidden", "")
}

// sourceAttr returns the attribute holding the resource URL of n and its raw
// value.
func (c *Collapser) sourceAttr(n *html.Node) (string, string) {
	prop, ok := primarySourceProp[n.Data]
	if !ok {
		return "", ""
	}
	if v, _ := dom.Attr(n, prop); strings.TrimSpace(v) != "" {
		return prop, v
	}
	prop, ok = secondarySourceProp[n.Data]
	if !ok {
		return "", ""
	}
	if v, _ := dom.Attr(n, prop); strings.TrimSpace(v) != "" {
		return prop, v
	}
	return "", ""
}

// resource returns the lookup key parts of n, with the URL resolved against
// the document URL.
func (c *Collapser) resource(n *html.Node) (messaging.Resource, bool) {
	if n == nil || n.Type != html.ElementNode {
		return messaging.Resource{}, false
	}
	typ, ok := tagToType[n.Data]
	if !ok {
		return messaging.Resource{}, false
	}
	prop, value := c.sourceAttr(n)
	if value == "" {
		return messaging.Resource{}, false
	}
	if prop == "srcset" {
		value = firstSrcsetURL(value)
	}
	return messaging.Resource{Type: typ, URL: resolveURL(c.doc.URL(), value)}, true
}

// Shutdown clears the debounce timer and detaches the observers.
func (c *Collapser) Shutdown() {
	if c.stopped {
		return
	}
	c.stopped = true
	c.timers.Destroy()
	if c.iframeObserver != nil {
		c.iframeObserver.Disconnect()
	}
	if c.removeOnError != nil {
		c.removeOnError()
		c.removeOnError = nil
	}
	clear(c.toCollapse)
	c.toProcess = nil
	c.toFilter = nil
}

func resolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return r.String()
	}
	return b.ResolveReference(r).String()
}

func firstSrcsetURL(srcset string) string {
	candidate, _, _ := strings.Cut(strings.TrimSpace(srcset), ",")
	fields := strings.Fields(candidate)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func escapeAttrValue(v string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v)
}

// setInlineProperty rewrites an inline style so that property is set to
// value, last in the declaration list. Unparsable input is discarded.
func setInlineProperty(style, property, value string, important bool) string {
	decls, err := dom.ParseInlineStyle(style)
	if err != nil {
		decls = nil
	}
	var b strings.Builder
	for _, d := range decls {
		if strings.EqualFold(d.Property, property) {
			continue
		}
		writeDeclaration(&b, d)
	}
	writeDeclaration(&b, &css.Declaration{Property: property, Value: value, Important: important})
	return b.String()
}

func writeDeclaration(b *strings.Builder, d *css.Declaration) {
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(d.Property)
	b.WriteString(": ")
	b.WriteString(d.Value)
	if d.Important {
		b.WriteString(" !important")
	}
	b.WriteByte(';')
}

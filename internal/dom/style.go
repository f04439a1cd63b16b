package dom

import (
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// userAgentCSS is the subset of the default stylesheet that matters for
// visibility decisions.
const userAgentCSS = `
[hidden], area, base, basefont, datalist, head, link, meta, noembed,
noframes, param, rp, script, style, template, title { display: none; }
address, blockquote, center, dialog, div, figure, figcaption, footer, form,
header, hr, legend, listing, main, p, plaintext, pre, xmp, article, aside,
h1, h2, h3, h4, h5, h6, hgroup, nav, section, dir, dd, dl, dt, menu, ol, ul,
fieldset, details, summary, html, body, frameset, frame, optgroup, iframe { display: block; }
li { display: list-item; }
table { display: table; }
tr { display: table-row; }
td, th { display: table-cell; }
img, input, select, button, textarea, video, audio, embed, object { display: inline-block; }
`

// ParseInlineStyle parses the declarations of a style attribute. The
// declaration parser drops the value of a final declaration that has no
// terminating semicolon, so one is supplied.
func ParseInlineStyle(style string) ([]*css.Declaration, error) {
	style = strings.TrimSpace(style)
	if style != "" && !strings.HasSuffix(style, ";") {
		style += ";"
	}
	return parser.ParseDeclarations(style)
}

// Style is a resolved set of property values.
type Style map[string]string

// Get returns a property value, or "" when unset.
func (s Style) Get(prop string) string {
	return s[strings.ToLower(prop)]
}

var inherited = map[string]bool{
	"visibility":  true,
	"color":       true,
	"cursor":      true,
	"font-family": true,
	"font-size":   true,
	"font-style":  true,
	"font-weight": true,
	"text-align":  true,
	"white-space": true,
}

var initialValues = map[string]string{
	"display":    "inline",
	"visibility": "visible",
	"position":   "static",
	"opacity":    "1",
	"float":      "none",
	"overflow":   "visible",
	"z-index":    "auto",
}

type styleRule struct {
	sel    cascadia.Sel
	pseudo string
	spec   cascadia.Specificity
	origin int
	order  int
	decls  []*css.Declaration
}

const (
	originUserAgent = iota
	originAuthor
	originInline
)

type sheetCache struct {
	version uint64
	valid   bool
	rules   []styleRule
	parsed  map[string][]styleRule
}

var (
	uaOnce  sync.Once
	uaRules []styleRule
)

func userAgentRules() []styleRule {
	uaOnce.Do(func() {
		uaRules = compileSheet(userAgentCSS, originUserAgent, 0)
	})
	return uaRules
}

func compileSheet(text string, origin, order int) []styleRule {
	sheet, err := parser.Parse(text)
	if err != nil {
		return nil
	}
	var out []styleRule
	for _, rule := range sheet.Rules {
		if rule.Kind != css.QualifiedRule {
			continue
		}
		for _, raw := range rule.Selectors {
			sel, err := cascadia.ParseWithPseudoElement(raw)
			if err != nil {
				continue
			}
			out = append(out, styleRule{
				sel:    sel,
				pseudo: sel.PseudoElement(),
				spec:   sel.Specificity(),
				origin: origin,
				order:  order,
				decls:  rule.Declarations,
			})
			order++
		}
	}
	return out
}

// authorRules returns the rules of every enabled <style> element, in
// document order. Parsed sheets are cached by their text.
func (d *Document) authorRules() []styleRule {
	c := d.sheets
	if c.valid && c.version == d.version {
		return c.rules
	}
	if c.parsed == nil {
		c.parsed = make(map[string][]styleRule)
	}
	seen := make(map[string]bool)
	var rules []styleRule
	order := len(userAgentRules())
	for _, el := range ElementsByTag(d.root, "style") {
		if media, ok := Attr(el, "media"); ok && strings.TrimSpace(media) == "not all" {
			continue
		}
		if typ, ok := Attr(el, "type"); ok && typ != "" && typ != "text/css" {
			continue
		}
		text := TextContent(el)
		seen[text] = true
		compiled, ok := c.parsed[text]
		if !ok {
			compiled = compileSheet(text, originAuthor, 0)
			c.parsed[text] = compiled
		}
		for _, r := range compiled {
			r.order = order
			order++
			rules = append(rules, r)
		}
	}
	for text := range c.parsed {
		if !seen[text] {
			delete(c.parsed, text)
		}
	}
	c.rules = rules
	c.version = d.version
	c.valid = true
	return rules
}

type candidate struct {
	value     string
	important bool
	origin    int
	spec      cascadia.Specificity
	order     int
}

func (c candidate) beats(o candidate) bool {
	if c.important != o.important {
		return c.important
	}
	if c.origin != o.origin {
		return c.origin > o.origin
	}
	if c.spec != o.spec {
		return o.spec.Less(c.spec)
	}
	return c.order > o.order
}

// ComputedStyle resolves the cascaded style of element n, or of its ::before
// or ::after pseudo-element. Detached nodes yield ErrDisconnected.
func (d *Document) ComputedStyle(n *html.Node, pseudo string) (Style, error) {
	if n == nil || n.Type != html.ElementNode || !d.Contains(n) {
		return nil, ErrDisconnected
	}
	pseudo = strings.ToLower(strings.TrimLeft(pseudo, ":"))
	return d.computeStyle(n, pseudo, make(map[*html.Node]Style)), nil
}

func (d *Document) computeStyle(n *html.Node, pseudo string, memo map[*html.Node]Style) Style {
	if pseudo == "" {
		if s, ok := memo[n]; ok {
			return s
		}
	}

	winners := make(map[string]candidate)
	apply := func(decls []*css.Declaration, origin int, spec cascadia.Specificity, order int) {
		for _, decl := range decls {
			prop := strings.ToLower(strings.TrimSpace(decl.Property))
			c := candidate{
				value:     strings.TrimSpace(decl.Value),
				important: decl.Important,
				origin:    origin,
				spec:      spec,
				order:     order,
			}
			if cur, ok := winners[prop]; !ok || c.beats(cur) {
				winners[prop] = c
			}
		}
	}

	for _, set := range [][]styleRule{userAgentRules(), d.authorRules()} {
		for _, r := range set {
			if r.pseudo != pseudo || !r.sel.Match(n) {
				continue
			}
			apply(r.decls, r.origin, r.spec, r.order)
		}
	}

	if pseudo == "" {
		if inline, ok := Attr(n, "style"); ok && strings.TrimSpace(inline) != "" {
			if decls, err := ParseInlineStyle(inline); err == nil {
				apply(decls, originInline, cascadia.Specificity{}, 1<<30)
			}
		}
	}

	style := make(Style, len(winners)+len(initialValues))
	for prop, c := range winners {
		style[prop] = c.value
	}

	var parentStyle Style
	if parent := ParentElement(n); parent != nil && pseudo == "" {
		parentStyle = d.computeStyle(parent, "", memo)
	} else if pseudo != "" {
		parentStyle = d.computeStyle(n, "", memo)
	}
	for prop := range inherited {
		v, ok := style[prop]
		if (!ok || v == "inherit") && parentStyle != nil {
			if pv, ok := parentStyle[prop]; ok {
				style[prop] = pv
			}
		}
	}
	for prop, v := range initialValues {
		if _, ok := style[prop]; !ok {
			style[prop] = v
		}
	}
	if pseudo != "" {
		if _, ok := style["content"]; !ok {
			style["content"] = "none"
		}
	}

	if pseudo == "" {
		memo[n] = style
	}
	return style
}

// IsRendered reports whether n and all its ancestors have a display other
// than none.
func (d *Document) IsRendered(n *html.Node) bool {
	if !d.Contains(n) {
		return false
	}
	memo := make(map[*html.Node]Style)
	for p := n; p != nil && p.Type == html.ElementNode; p = p.Parent {
		if p.DataAtom == atom.Html {
			break
		}
		if d.computeStyle(p, "", memo).Get("display") == "none" {
			return false
		}
	}
	return true
}

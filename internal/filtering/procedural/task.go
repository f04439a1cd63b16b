package procedural

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"github.com/dlclark/regexp2"
	"golang.org/x/net/html"

	"github.com/bnema/cosmetic/internal/dom"
)

// Kind identifies a task operator.
type Kind int

const (
	KindHas Kind = iota
	KindHasText
	KindIf
	KindIfNot
	KindMatchesCSS
	KindMatchesCSSAfter
	KindMatchesCSSBefore
	KindXPath
)

var kindNames = [...]string{
	KindHas:              "has",
	KindHasText:          "has-text",
	KindIf:               "if",
	KindIfNot:            "if-not",
	KindMatchesCSS:       "matches-css",
	KindMatchesCSSAfter:  "matches-css-after",
	KindMatchesCSSBefore: "matches-css-before",
	KindXPath:            "xpath",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Filters reports whether the task only ever keeps a subset of its input.
func (k Kind) Filters() bool {
	return k != KindXPath
}

// Task is one pipeline stage. Only the fields relevant to Kind are set.
type Task struct {
	Kind Kind

	selector string
	needle   *textPattern
	sub      *Selector
	property string
	pattern  *textPattern
	pseudo   string
	expr     *xpath.Expr
}

type constructor func(kind Kind, arg json.RawMessage) (Task, error)

type registration struct {
	kind Kind
	ctor constructor
}

// registry maps operator names to constructors. Operators are looked up
// with the leading colon stripped. It is filled in init because the if
// constructors compile nested selectors through newTask.
var registry map[string]registration

func init() {
	registry = map[string]registration{
		"has":                {KindHas, newHasTask},
		"has-text":           {KindHasText, newHasTextTask},
		"if":                 {KindIf, newIfTask},
		"if-not":             {KindIfNot, newIfTask},
		"matches-css":        {KindMatchesCSS, newMatchesCSSTask},
		"matches-css-after":  {KindMatchesCSSAfter, newMatchesCSSTask},
		"matches-css-before": {KindMatchesCSSBefore, newMatchesCSSTask},
		"xpath":              {KindXPath, newXPathTask},
	}
}

func newTask(operator string, arg json.RawMessage) (Task, error) {
	entry, ok := registry[strings.TrimPrefix(operator, ":")]
	if !ok {
		return Task{}, fmt.Errorf("%w: %q", ErrUnknownOperator, operator)
	}
	return entry.ctor(entry.kind, arg)
}

func stringArg(kind Kind, arg json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(arg, &s); err != nil {
		return "", fmt.Errorf("%w: %s expects a string: %v", ErrMalformedSelector, kind, err)
	}
	return s, nil
}

func newHasTask(kind Kind, arg json.RawMessage) (Task, error) {
	sel, err := stringArg(kind, arg)
	if err != nil {
		return Task{}, err
	}
	if _, err := cascadia.ParseGroup(sel); err != nil {
		return Task{}, fmt.Errorf("%w: %s %q: %v", ErrInvalidArgument, kind, sel, err)
	}
	return Task{Kind: kind, selector: sel}, nil
}

func newHasTextTask(kind Kind, arg json.RawMessage) (Task, error) {
	src, err := stringArg(kind, arg)
	if err != nil {
		return Task{}, err
	}
	re, err := compilePattern(src)
	if err != nil {
		return Task{}, fmt.Errorf("%w: %s %q: %v", ErrInvalidArgument, kind, src, err)
	}
	return Task{Kind: kind, needle: re}, nil
}

func newIfTask(kind Kind, arg json.RawMessage) (Task, error) {
	raw := arg
	// The sub-selector may arrive already serialized.
	var s string
	if err := json.Unmarshal(arg, &s); err == nil {
		raw = json.RawMessage(s)
	}
	sub, err := compile(raw)
	if err != nil {
		return Task{}, fmt.Errorf("%s: %w", kind, err)
	}
	return Task{Kind: kind, sub: sub}, nil
}

type cssArg struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func newMatchesCSSTask(kind Kind, arg json.RawMessage) (Task, error) {
	var a cssArg
	if err := json.Unmarshal(arg, &a); err != nil || a.Name == "" {
		return Task{}, fmt.Errorf("%w: %s expects {name, value}", ErrMalformedSelector, kind)
	}
	re, err := compilePattern(a.Value)
	if err != nil {
		return Task{}, fmt.Errorf("%w: %s %q: %v", ErrInvalidArgument, kind, a.Value, err)
	}
	t := Task{Kind: kind, property: cssPropertyName(a.Name), pattern: re}
	switch kind {
	case KindMatchesCSSAfter:
		t.pseudo = "after"
	case KindMatchesCSSBefore:
		t.pseudo = "before"
	}
	return t, nil
}

func newXPathTask(kind Kind, arg json.RawMessage) (Task, error) {
	src, err := stringArg(kind, arg)
	if err != nil {
		return Task{}, err
	}
	expr, err := xpath.Compile(src)
	if err != nil {
		return Task{}, fmt.Errorf("%w: %s %q: %v", ErrInvalidArgument, kind, src, err)
	}
	return Task{Kind: kind, expr: expr}, nil
}

// matchTimeout bounds a single backtracking match.
const matchTimeout = 100 * time.Millisecond

// textPattern is a text pattern evaluated with ECMAScript regular expression
// semantics, so lookarounds and backreferences behave as in page scripts.
type textPattern struct {
	re *regexp2.Regexp
}

// MatchString reports whether s matches. A match that times out or fails
// counts as no match.
func (p *textPattern) MatchString(s string) bool {
	ok, err := p.re.MatchString(s)
	return err == nil && ok
}

// compilePattern accepts a bare pattern or a /pattern/flags literal.
func compilePattern(src string) (*textPattern, error) {
	expr, flags := src, ""
	if end := strings.LastIndexByte(src, '/'); len(src) > 2 && src[0] == '/' && end > 1 {
		if f := src[end+1:]; strings.Trim(f, "imsu") == "" {
			expr, flags = src[1:end], f
		}
	}
	opts := regexp2.RegexOptions(regexp2.ECMAScript)
	for _, f := range flags {
		switch f {
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			// ECMAScript mode cannot be combined with Singleline.
			opts = opts&^regexp2.ECMAScript | regexp2.Singleline
		}
	}
	re, err := regexp2.Compile(expr, opts)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = matchTimeout
	return &textPattern{re: re}, nil
}

// cssPropertyName converts camelCase property names to their dashed form.
func cssPropertyName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			sb.WriteByte('-')
			sb.WriteRune(r + ('a' - 'A'))
			continue
		}
		sb.WriteRune(r)
	}
	return strings.ToLower(sb.String())
}

// exec runs the task over input. Every kind is dispatched here.
func (t Task) exec(doc *dom.Document, input []*html.Node) []*html.Node {
	var output []*html.Node
	switch t.Kind {
	case KindHas:
		for _, n := range input {
			if found, err := doc.QueryOne(n, t.selector); err == nil && found != nil {
				output = append(output, n)
			}
		}
	case KindHasText:
		for _, n := range input {
			if t.needle.MatchString(dom.TextContent(n)) {
				output = append(output, n)
			}
		}
	case KindIf, KindIfNot:
		want := t.Kind == KindIf
		for _, n := range input {
			if t.sub.Test(doc, n) == want {
				output = append(output, n)
			}
		}
	case KindMatchesCSS, KindMatchesCSSAfter, KindMatchesCSSBefore:
		for _, n := range input {
			style, err := doc.ComputedStyle(n, t.pseudo)
			if err != nil {
				continue
			}
			if t.pattern.MatchString(style.Get(t.property)) {
				output = append(output, n)
			}
		}
	case KindXPath:
		for _, n := range input {
			output = append(output, t.selectXPath(n)...)
		}
	}
	return output
}

func (t Task) selectXPath(n *html.Node) (out []*html.Node) {
	defer func() {
		// Expressions that evaluate to a scalar cannot be iterated.
		if recover() != nil {
			out = nil
		}
	}()
	iter := t.expr.Select(htmlquery.CreateXPathNavigator(n))
	for iter.MoveNext() {
		nav, ok := iter.Current().(*htmlquery.NodeNavigator)
		if !ok || nav.NodeType() != xpath.ElementNode {
			continue
		}
		out = append(out, nav.Current())
	}
	return out
}

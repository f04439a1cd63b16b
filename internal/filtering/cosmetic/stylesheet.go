package cosmetic

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/bnema/cosmetic/internal/dom"
)

const (
	hideDeclaration = "display: none !important;"
	hideBlock       = "\n{ " + hideDeclaration + " }"
)

// UserStylesheet is the <style> element the engine injects into the page.
// Rules are kept in insertion order; disabling it sets media="not all".
type UserStylesheet struct {
	doc      *dom.Document
	style    *html.Node
	rules    []string
	index    map[string]bool
	disabled bool
}

// NewUserStylesheet creates an empty sheet. The <style> element is only
// inserted with the first rule.
func NewUserStylesheet(doc *dom.Document) *UserStylesheet {
	return &UserStylesheet{doc: doc, index: make(map[string]bool)}
}

// Add appends a rule. Empty and duplicate rules are ignored.
func (s *UserStylesheet) Add(cssText string) bool {
	if cssText == "" || s.index[cssText] {
		return false
	}
	s.index[cssText] = true
	s.rules = append(s.rules, cssText)
	s.render()
	return true
}

// Remove deletes a rule. The element is removed once it holds no rule.
func (s *UserStylesheet) Remove(cssText string) {
	if !s.index[cssText] {
		return
	}
	delete(s.index, cssText)
	for i, r := range s.rules {
		if r == cssText {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			break
		}
	}
	if len(s.rules) == 0 && s.style != nil {
		s.doc.Remove(s.style)
		s.style = nil
		return
	}
	s.render()
}

// SetEnabled enables or disables the whole sheet.
func (s *UserStylesheet) SetEnabled(enabled bool) {
	if s.disabled == !enabled {
		return
	}
	s.disabled = !enabled
	if s.style == nil {
		return
	}
	if s.disabled {
		s.doc.SetAttribute(s.style, "media", "not all")
	} else {
		s.doc.RemoveAttribute(s.style, "media")
	}
}

// Disabled reports whether the sheet is disabled.
func (s *UserStylesheet) Disabled() bool { return s.disabled }

// Rules returns the rules in insertion order.
func (s *UserStylesheet) Rules() []string {
	return append([]string(nil), s.rules...)
}

// Selectors returns the selector list of each rule.
func (s *UserStylesheet) Selectors() []string {
	out := make([]string, 0, len(s.rules))
	for _, r := range s.rules {
		if i := strings.LastIndex(r, "\n{"); i >= 0 {
			out = append(out, r[:i])
		}
	}
	return out
}

// Element returns the injected <style>, or nil before the first rule.
func (s *UserStylesheet) Element() *html.Node { return s.style }

func (s *UserStylesheet) render() {
	if s.style == nil {
		s.style = s.doc.CreateElement("style")
		if s.disabled {
			s.style.Attr = append(s.style.Attr, html.Attribute{Key: "media", Val: "not all"})
		}
		parent := s.doc.Head()
		if parent == nil {
			parent = s.doc.DocumentElement()
		}
		if parent != nil {
			_ = s.doc.AppendChild(parent, s.style)
		}
	}
	for c := s.style.FirstChild; c != nil; c = s.style.FirstChild {
		s.doc.RemoveChild(s.style, c)
	}
	_ = s.doc.AppendChild(s.style, s.doc.CreateTextNode(strings.Join(s.rules, "\n")))
}

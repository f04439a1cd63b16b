// Package procedural compiles and evaluates procedural cosmetic selectors: a
// priming CSS selector followed by a pipeline of tasks no native selector
// language can express.
package procedural

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/bnema/cosmetic/internal/dom"
)

// Selector is a compiled procedural selector.
type Selector struct {
	Raw   string
	Prime string
	tasks []Task
}

type encoded struct {
	Raw      string            `json:"raw"`
	Selector string            `json:"selector"`
	Tasks    []json.RawMessage `json:"tasks"`
}

// Compile parses the JSON form {"selector": ..., "tasks": [[op, arg], ...]}.
// Unknown operators and arguments that fail to compile are reported here,
// never during evaluation.
func Compile(raw string) (*Selector, error) {
	s, err := compile(json.RawMessage(raw))
	if err != nil {
		return nil, err
	}
	if s.Raw == "" {
		s.Raw = raw
	}
	return s, nil
}

func compile(raw json.RawMessage) (*Selector, error) {
	var e encoded
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSelector, err)
	}
	s := &Selector{Raw: e.Raw, Prime: strings.TrimSpace(e.Selector)}
	if s.Prime != "" {
		if _, err := cascadia.ParseGroup(s.Prime); err != nil {
			return nil, fmt.Errorf("%w: selector %q: %v", ErrInvalidArgument, s.Prime, err)
		}
	}
	for i, rawTask := range e.Tasks {
		var pair []json.RawMessage
		if err := json.Unmarshal(rawTask, &pair); err != nil || len(pair) != 2 {
			return nil, fmt.Errorf("%w: task %d must be [operator, argument]", ErrMalformedSelector, i)
		}
		var op string
		if err := json.Unmarshal(pair[0], &op); err != nil {
			return nil, fmt.Errorf("%w: task %d operator must be a string", ErrMalformedSelector, i)
		}
		task, err := newTask(op, pair[1])
		if err != nil {
			return nil, err
		}
		s.tasks = append(s.tasks, task)
	}
	return s, nil
}

// Kinds lists the task kinds in pipeline order.
func (s *Selector) Kinds() []Kind {
	out := make([]Kind, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Kind
	}
	return out
}

func (s *Selector) prime(doc *dom.Document, root *html.Node) []*html.Node {
	if root == nil {
		root = doc.Root()
	}
	if s.Prime == "" {
		return []*html.Node{root}
	}
	nodes, err := doc.QueryAll(root, s.Prime)
	if err != nil {
		return nil
	}
	return nodes
}

// Exec runs the pipeline over the whole document.
func (s *Selector) Exec(doc *dom.Document) []*html.Node {
	return s.run(doc, s.prime(doc, nil))
}

// Stages runs the pipeline over the whole document and returns the node set
// before the first task and after each task.
func (s *Selector) Stages(doc *dom.Document) [][]*html.Node {
	nodes := s.prime(doc, nil)
	stages := [][]*html.Node{nodes}
	for _, t := range s.tasks {
		if len(nodes) == 0 {
			break
		}
		nodes = t.exec(doc, nodes)
		stages = append(stages, nodes)
	}
	return stages
}

func (s *Selector) run(doc *dom.Document, nodes []*html.Node) []*html.Node {
	for _, t := range s.tasks {
		if len(nodes) == 0 {
			break
		}
		nodes = t.exec(doc, nodes)
	}
	return nodes
}

// Test reports whether any node primed from root survives the pipeline on its
// own.
func (s *Selector) Test(doc *dom.Document, root *html.Node) bool {
	for _, n := range s.prime(doc, root) {
		if len(s.run(doc, []*html.Node{n})) != 0 {
			return true
		}
	}
	return false
}

func (s *Selector) String() string { return s.Raw }

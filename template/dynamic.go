package template

import (
	"fmt"

	"github.com/arloliu/sbs/errs"
)

// Chooser picks the schema of a Select node. While writing v is the value
// about to be written; while reading it is nil and the choice usually depends
// on fields decoded earlier, reachable through Scope.Lookup.
type Chooser func(s *Scope, v any) (Node, error)

type selectNode struct {
	choose Chooser
}

// Select evaluates whichever schema choose returns, at the current key path.
func Select(choose Chooser) Node {
	return &selectNode{choose: choose}
}

func (s *selectNode) String() string {
	return "select"
}

func (s *selectNode) check() error {
	if s.choose == nil {
		return fmt.Errorf("%w: select without chooser", errs.ErrInvalidTemplate)
	}

	return nil
}

func (s *selectNode) eval(ev *Evaluator, v any) (any, error) {
	node, err := s.choose(&Scope{ev: ev}, v)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, fmt.Errorf("%w: chooser returned no schema", errs.ErrInvalidTemplate)
	}
	if err := node.check(); err != nil {
		return nil, err
	}

	return ev.eval(node, v)
}

// CustomFunc implements a Custom node. It behaves like Evaluator.Value: write v
// and return nil, or read and return the decoded value.
type CustomFunc func(ev *Evaluator, v any) (any, error)

type customNode struct {
	name string
	fn   CustomFunc
}

// Custom wraps fn as a schema node named name.
//
// fn has full access to the evaluator: it may write or read raw bytes,
// evaluate other nodes with Value and query earlier fields with Lookup.
func Custom(name string, fn CustomFunc) Node {
	return &customNode{name: name, fn: fn}
}

func (c *customNode) String() string {
	return c.name
}

func (c *customNode) check() error {
	if c.name == "" {
		return fmt.Errorf("%w: custom node without name", errs.ErrInvalidTemplate)
	}
	if c.fn == nil {
		return fmt.Errorf("%w: custom node %q without function", errs.ErrInvalidTemplate, c.name)
	}

	return nil
}

func (c *customNode) eval(ev *Evaluator, v any) (any, error) {
	return c.fn(ev, v)
}

// Package selector narrows decoded messages with a JSONPath expression
// (e.g. "$.user.name", "$..items[0]").
package selector

import (
	"errors"
	"fmt"

	"github.com/theory/jsonpath"
)

var ErrInvalidExpression = errors.New("invalid JSONPath expression")

type Selector struct {
	expr string
	path *jsonpath.Path
}

// Compile parses expr once so it can be applied to every message.
func Compile(expr string) (*Selector, error) {
	if expr == "" {
		return nil, fmt.Errorf("%w: expression is empty", ErrInvalidExpression)
	}

	path, err := jsonpath.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrInvalidExpression, expr, err)
	}

	return &Selector{expr: expr, path: path}, nil
}

// Select returns every node of value matched by the expression. Value must
// be made of the types encoding/json decodes into.
func (s *Selector) Select(value any) []any {
	return s.path.Select(value)
}

func (s *Selector) String() string {
	return s.expr
}

package evaluator

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/babago/internal/ir"
)

// ErrCycle is returned when a node's branches reference the node itself.
var ErrCycle = errors.New("placeholder cycle")

// DirectiveError reports the directive whose evaluation failed.
type DirectiveError struct {
	NodeID int
	Kind   ir.Kind
	Code   string
	Err    error
}

func (e *DirectiveError) Error() string {
	return fmt.Sprintf("%s directive %d (%q): %v", e.Kind, e.NodeID, e.Code, e.Err)
}

func (e *DirectiveError) Unwrap() error {
	return e.Err
}

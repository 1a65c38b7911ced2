package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/specialistvlad/babago/internal/ctxlog"
	"github.com/specialistvlad/babago/internal/host"
	"github.com/specialistvlad/babago/internal/ir"
	"github.com/specialistvlad/babago/internal/scope"
)

// Evaluator renders templates against a Host.
type Evaluator struct {
	host host.Host
}

// New creates an Evaluator that runs directives on h.
func New(h host.Host) *Evaluator {
	return &Evaluator{host: h}
}

// Render produces the output of tpl for data. funcs are made callable from
// directive code for the duration of the call.
func (e *Evaluator) Render(ctx context.Context, tpl *ir.Template, data any, funcs map[string]host.Func) (string, error) {
	if tpl == nil {
		return "", errors.New("evaluator: nil template")
	}
	logger := ctxlog.FromContext(ctx)

	sess, err := e.host.Begin(ctx, host.Env{Data: data, Funcs: funcs})
	if err != nil {
		return "", fmt.Errorf("starting host session: %w", err)
	}
	defer sess.Close()

	r := &run{
		tpl:    tpl,
		sess:   sess,
		scope:  scope.New(),
		data:   data,
		logger: logger,
		active: make(map[int]bool),
	}

	logger.Debug("Rendering template.", "nodes", tpl.Len())
	var out strings.Builder
	if err := r.resolve(&out, tpl.Skeleton); err != nil {
		return "", err
	}
	return out.String(), nil
}

// run is the mutable state of one Render call.
type run struct {
	tpl    *ir.Template
	sess   host.Session
	scope  *scope.Scope
	data   any
	logger *slog.Logger
	active map[int]bool
}

// resolve writes text to w with every placeholder replaced by its node's
// output. Placeholders without a node are written as-is.
func (r *run) resolve(w *strings.Builder, text string) error {
	for pos := 0; pos < len(text); {
		start, end, id := ir.NextPlaceholder(text, pos)
		if start < 0 {
			w.WriteString(text[pos:])
			return nil
		}
		w.WriteString(text[pos:start])
		node, ok := r.tpl.Node(id)
		if !ok {
			w.WriteString(text[start:end])
		} else if err := r.evalNode(w, node); err != nil {
			return err
		}
		pos = end
	}
	return nil
}

func (r *run) evalNode(w *strings.Builder, n *ir.Node) error {
	if r.active[n.ID] {
		return r.fail(n, ErrCycle)
	}
	r.active[n.ID] = true
	defer delete(r.active, n.ID)

	call := r.call(n)
	var (
		res host.Result
		err error
	)
	switch n.Kind {
	case ir.Code:
		res, err = r.sess.Exec(call)
	case ir.Assign:
		res, err = r.sess.Eval(call)
	case ir.If:
		res, err = r.sess.Test(call)
	case ir.Loop:
		res, err = r.sess.Loop(call, r.body(n, call.Exports))
	default:
		err = fmt.Errorf("unknown directive kind %d", n.Kind)
	}
	r.scope.Merge(call.Exports, res.Exports)
	if err != nil {
		return r.fail(n, err)
	}

	switch n.Kind {
	case ir.If:
		branch := n.Branch2
		if res.Truth {
			branch = n.Branch1
		}
		return r.resolve(w, branch)
	default:
		w.WriteString(res.Text)
	}
	return nil
}

// call binds the whole scope and exports it back together with the node's
// own declarations.
func (r *run) call(n *ir.Node) *host.Call {
	names := r.scope.Names()
	bindings := make([]host.Binding, 0, len(names))
	for _, name := range names {
		v, _ := r.scope.Get(name)
		bindings = append(bindings, host.Binding{Name: name, Value: v})
	}
	exports := append(names, n.Vars...)
	return &host.Call{NodeID: n.ID, Code: n.Code, Bindings: bindings, Exports: exports}
}

// body renders the loop body once per iteration, after taking in the
// header's current values.
func (r *run) body(n *ir.Node, exports []string) host.Body {
	return func(values map[string]any) (host.Iteration, error) {
		r.scope.Merge(exports, values)

		var text strings.Builder
		if err := r.resolve(&text, n.Branch1); err != nil {
			return host.Iteration{}, err
		}

		current := make(map[string]any, len(exports))
		for _, name := range exports {
			if v, ok := r.scope.Get(name); ok {
				current[name] = v
			}
		}
		return host.Iteration{Text: text.String(), Values: current}, nil
	}
}

// fail wraps err for node n unless it already describes an inner directive,
// in which case it passes through unchanged.
func (r *run) fail(n *ir.Node, err error) error {
	var de *DirectiveError
	if errors.As(err, &de) {
		return err
	}
	r.logger.Error("Directive failed.",
		"node_id", n.ID,
		"kind", n.Kind.String(),
		"code", n.Code,
		"data", r.data,
		"error", err,
	)
	return &DirectiveError{NodeID: n.ID, Kind: n.Kind, Code: n.Code, Err: err}
}

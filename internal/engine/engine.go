package engine

import (
	"context"
	"maps"

	"github.com/specialistvlad/babago/internal/compiler"
	"github.com/specialistvlad/babago/internal/ctxlog"
	"github.com/specialistvlad/babago/internal/evaluator"
	"github.com/specialistvlad/babago/internal/host"
	"github.com/specialistvlad/babago/internal/ir"
)

// Engine compiles and renders templates.
type Engine struct {
	eval  *evaluator.Evaluator
	funcs map[string]host.Func
}

type settings struct {
	funcs map[string]host.Func
}

// Option configures an Engine or a single render call.
type Option func(*settings)

// WithFuncs makes funcs callable from directive code. Given to New they apply
// to every render; given to Render they add to, or replace, the engine's.
func WithFuncs(funcs map[string]host.Func) Option {
	return func(s *settings) {
		if s.funcs == nil {
			s.funcs = make(map[string]host.Func, len(funcs))
		}
		maps.Copy(s.funcs, funcs)
	}
}

// New creates an Engine that runs directives on h.
func New(h host.Host, opts ...Option) *Engine {
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	return &Engine{eval: evaluator.New(h), funcs: s.funcs}
}

// Compile compiles template source. It never fails; see compiler.Compile.
func (e *Engine) Compile(src string) *ir.Template {
	return compiler.Compile(src)
}

// Render compiles src and renders it with data.
func (e *Engine) Render(ctx context.Context, src string, data any, opts ...Option) (string, error) {
	tpl := e.Compile(src)
	ctxlog.FromContext(ctx).Debug("Compiled template source.", "bytes", len(src), "nodes", tpl.Len())
	return e.RenderTemplate(ctx, tpl, data, opts...)
}

// RenderTemplate renders an already compiled template with data.
func (e *Engine) RenderTemplate(ctx context.Context, tpl *ir.Template, data any, opts ...Option) (string, error) {
	funcs := e.funcs
	if len(opts) > 0 {
		s := settings{funcs: maps.Clone(e.funcs)}
		for _, opt := range opts {
			opt(&s)
		}
		funcs = s.funcs
	}
	return e.eval.Render(ctx, tpl, data, funcs)
}

package jshost

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"github.com/specialistvlad/babago/internal/ctxlog"
	"github.com/specialistvlad/babago/internal/host"
)

// Host runs directives as JavaScript. The zero value is ready to use and a
// Host may be shared by concurrent renders.
type Host struct {
	programs sync.Map // wrapper source -> *compiled
}

type compiled struct {
	prog *goja.Program
	err  error
}

var _ host.Host = (*Host)(nil)

// New returns a Host with an empty program cache.
func New() *Host {
	return &Host{}
}

// Begin creates a runtime for one render call.
func (h *Host) Begin(ctx context.Context, env host.Env) (host.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	s := &session{host: h, vm: vm, ctx: ctx}

	for name, fn := range env.Funcs {
		if !bindable(name) {
			return nil, fmt.Errorf("jshost: function name %q is not a valid identifier", name)
		}
		if err := vm.Set(name, s.native(fn)); err != nil {
			return nil, fmt.Errorf("jshost: registering function %q: %w", name, err)
		}
	}

	// Typed nils such as map[string]any(nil) convert to undefined.
	s.data = vm.ToValue(env.Data)
	if goja.IsUndefined(s.data) || goja.IsNull(s.data) {
		s.data = vm.NewObject()
	}

	s.stop = context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	return s, nil
}

func (h *Host) program(src string) (*goja.Program, error) {
	if c, ok := h.programs.Load(src); ok {
		return c.(*compiled).prog, c.(*compiled).err
	}
	prog, err := goja.Compile("directive", src, false)
	c, _ := h.programs.LoadOrStore(src, &compiled{prog: prog, err: err})
	return c.(*compiled).prog, c.(*compiled).err
}

type session struct {
	host *Host
	vm   *goja.Runtime
	ctx  context.Context
	data goja.Value
	stop func() bool
}

func (s *session) Exec(call *host.Call) (host.Result, error) {
	return s.run(modeExec, call, nil)
}

func (s *session) Eval(call *host.Call) (host.Result, error) {
	return s.run(modeEval, call, nil)
}

func (s *session) Test(call *host.Call) (host.Result, error) {
	return s.run(modeEval, call, nil)
}

func (s *session) Loop(call *host.Call, body host.Body) (host.Result, error) {
	return s.run(modeLoop, call, body)
}

func (s *session) Close() error {
	if s.stop != nil {
		s.stop()
	}
	return nil
}

func (s *session) run(m mode, call *host.Call, body host.Body) (host.Result, error) {
	if err := s.ctx.Err(); err != nil {
		return host.Result{}, err
	}

	bindings := make([]string, 0, len(call.Bindings))
	in := s.vm.NewObject()
	for _, b := range call.Bindings {
		if !bindable(b.Name) {
			continue
		}
		bindings = append(bindings, b.Name)
		if err := in.Set(b.Name, b.Value); err != nil {
			return host.Result{}, fmt.Errorf("binding %q: %w", b.Name, err)
		}
	}
	bindings = filter(bindings)
	exports := filter(call.Exports)

	src := wrapper(m, call.Code, bindings, exports)
	prog, err := s.host.program(src)
	if err != nil {
		return host.Result{}, err
	}
	fnValue, err := s.vm.RunProgram(prog)
	if err != nil {
		return host.Result{}, err
	}
	fn, ok := goja.AssertFunction(fnValue)
	if !ok {
		return host.Result{}, errors.New("jshost: wrapper is not a function")
	}

	out := s.vm.NewObject()
	var bodyErr error
	bodyFn := goja.Undefined()
	if body != nil {
		bodyFn = s.vm.ToValue(s.iterate(body, exports, &bodyErr))
	}

	ret, err := fn(goja.Undefined(), s.data, in, out, bodyFn)

	res := host.Result{Exports: collect(out, exports)}
	if bodyErr != nil {
		return res, bodyErr
	}
	if err != nil {
		return res, err
	}
	res.Text = stringify(ret)
	res.Truth = ret != nil && ret.ToBoolean()

	ctxlog.FromContext(s.ctx).Debug("Directive executed.", "node_id", call.NodeID, "exports", len(res.Exports))
	return res, nil
}

// iterate adapts a loop body to the __body callback. The first error stops
// the loop; it is also kept in errp so it reaches the caller unchanged even
// if the script catches the exception.
func (s *session) iterate(body host.Body, exports []string, errp *error) func(goja.FunctionCall) goja.Value {
	return func(fc goja.FunctionCall) goja.Value {
		if *errp != nil {
			panic(s.vm.NewGoError(*errp))
		}
		values := collect(fc.Argument(0).ToObject(s.vm), exports)
		it, err := body(values)
		if err != nil {
			*errp = err
			panic(s.vm.NewGoError(err))
		}
		if it.Values == nil {
			it.Values = map[string]any{}
		}
		res := s.vm.NewObject()
		_ = res.Set("text", it.Text)
		_ = res.Set("values", it.Values)
		return res
	}
}

// native exposes a Go function to scripts. Arguments are exported to plain
// Go values; a returned error is thrown as a JavaScript exception.
func (s *session) native(fn host.Func) func(goja.FunctionCall) goja.Value {
	return func(fc goja.FunctionCall) goja.Value {
		args := make([]any, len(fc.Arguments))
		for i, a := range fc.Arguments {
			args[i] = a.Export()
		}
		v, err := fn(s.ctx, args...)
		if err != nil {
			panic(s.vm.NewGoError(err))
		}
		return s.vm.ToValue(v)
	}
}

func collect(obj *goja.Object, names []string) map[string]any {
	out := make(map[string]any, len(names))
	if obj == nil {
		return out
	}
	for _, name := range names {
		if v := obj.Get(name); v != nil {
			out[name] = v
		}
	}
	return out
}

func stringify(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return ""
	}
	return v.String()
}

package host

import "context"

// Func is a Go function callable from directive code by name.
type Func func(ctx context.Context, args ...any) (any, error)

// Env is the per-render environment a Session is created with.
type Env struct {
	// Data is exposed to directive code as `data`.
	Data any
	// Funcs are exposed as global functions.
	Funcs map[string]Func
}

// Binding is one scope variable bound before a directive runs.
type Binding struct {
	Name  string
	Value any
}

// Call describes one directive execution.
type Call struct {
	NodeID   int
	Code     string
	Bindings []Binding
	Exports  []string
}

// Result is what a directive produced. It is meaningful even when the call
// returned an error: Exports then holds whatever values were reached.
type Result struct {
	Text    string
	Truth   bool
	Exports map[string]any
}

// Iteration is the outcome of rendering one loop body.
type Iteration struct {
	Text string
	// Values holds the current scope values of the loop's exported names
	// after the body ran, so the loop header continues with them.
	Values map[string]any
}

// Body renders one loop iteration given the loop's exported values.
type Body func(exports map[string]any) (Iteration, error)

// Host starts sessions.
type Host interface {
	Begin(ctx context.Context, env Env) (Session, error)
}

// Session runs directives for a single render call.
type Session interface {
	// Exec runs a statement sequence. Text is the body's return value, if any.
	Exec(call *Call) (Result, error)
	// Eval evaluates an expression and reports its string form.
	Eval(call *Call) (Result, error)
	// Test evaluates a condition and reports its truthiness.
	Test(call *Call) (Result, error)
	// Loop runs a loop header, calling body once per iteration. Text is the
	// concatenation of every iteration's text.
	Loop(call *Call, body Body) (Result, error)
	Close() error
}

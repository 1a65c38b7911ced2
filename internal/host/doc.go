// Package host defines the contract between the evaluator and whatever
// actually runs directive bodies.
//
// The template core never interprets directive code itself. Code, expressions,
// conditions and loop headers are opaque text handed to a Host, which runs
// them against the render data and the bindings of the current scope. The
// evaluator depends only on this package; internal/jshost provides the
// JavaScript implementation used by the CLI and the HTTP server.
//
// # Lifecycle
//
// A render call begins exactly one Session and closes it when the render
// finishes. Everything a session creates (runtime state, values stored in the
// scope) belongs to that render only, so a Host may be shared by concurrent
// renders while a Session may not.
//
// # Exports
//
// Every Call names the variables whose values must be reported back after
// the body runs. Implementations report them even when the body fails, so
// the evaluator can keep the scope consistent with what actually executed.
package host

// Package evaluator renders compiled templates.
//
// Rendering walks the skeleton once, front to back. Literal text is copied to
// the output; each placeholder is replaced by the output of its node, and a
// node's branches are rendered the same way, recursively. Directive bodies are
// handed to a host.Session, and the variables they declare are carried from
// one directive to the next through a per-render scope.Scope.
//
// # Errors
//
// A failing directive aborts the whole render. The failure is reported once,
// at the innermost node, as a *DirectiveError and returned unchanged through
// every enclosing node.
//
// # Concurrency
//
// An Evaluator holds no render state and can be shared. Each Render call gets
// its own scope and host session.
package evaluator

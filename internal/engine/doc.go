// Package engine is the public face of the template core. It ties the
// compiler, the evaluator and a directive host together behind two calls:
// Compile turns source into a reusable *ir.Template, and Render or
// RenderTemplate produce output for a given data value.
//
// An Engine is safe for concurrent use. Templates compiled by one Engine can
// be rendered by any other.
package engine

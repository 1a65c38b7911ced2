// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Template and Node structures produced by the compiler.
package ir

import "fmt"

// Kind identifies what a directive node does when evaluated.
type Kind uint8

const (
	// Code runs a statement sequence and normally renders nothing.
	Code Kind = iota
	// Assign evaluates an expression and renders its text.
	Assign
	// If renders Branch1 or Branch2 depending on a condition.
	If
	// Loop renders Branch1 once per iteration of a loop header.
	Loop
)

// String returns the lower-case name of the kind, as used in logs.
func (k Kind) String() string {
	switch k {
	case Code:
		return "code"
	case Assign:
		return "assign"
	case If:
		return "if"
	case Loop:
		return "loop"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Node is a single directive of a compiled template.
type Node struct {
	ID   int  `msgpack:"id"`
	Kind Kind `msgpack:"kind"`

	// Code is the raw directive body: statements for Code, an expression for
	// Assign, a condition for If and a loop header for Loop.
	Code string `msgpack:"code"`

	// Branch1 is the text rendered when an If condition holds, or the loop
	// body of a Loop. Branch2 is the else text of an If. Both may contain
	// placeholders of other nodes of the same template.
	Branch1 string `msgpack:"branch1,omitempty"`
	Branch2 string `msgpack:"branch2,omitempty"`

	// Vars lists the variables Code declares, in declaration order.
	Vars []string `msgpack:"vars,omitempty"`
}

// Template is the compiled form of a template source.
type Template struct {
	Skeleton string `msgpack:"skeleton"`

	// Nodes holds every directive; Nodes[i].ID == i.
	Nodes []*Node `msgpack:"nodes"`
}

// Node returns the node with the given id.
func (t *Template) Node(id int) (*Node, bool) {
	if t == nil || id < 0 || id >= len(t.Nodes) {
		return nil, false
	}
	n := t.Nodes[id]
	return n, n != nil
}

// Len returns the number of directive nodes.
func (t *Template) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Nodes)
}

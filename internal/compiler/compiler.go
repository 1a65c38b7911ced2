// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file implements the single-pass directive compiler.
//
// The scan is a small state machine over the source text. Directives open with
// "<%" and close with "%>"; the characters right after the opening marker
// decide the directive kind. If and Loop directives own a body that runs until
// the matching endif/endloop, so the compiler keeps a stack of open nodes and
// always appends text to whatever the top of that stack is currently
// collecting: its code, its first branch or its second branch. With nothing
// open, text goes to the skeleton.
package compiler

import (
	"strings"

	"github.com/specialistvlad/babago/internal/ir"
)

const (
	openMarker  = "<%"
	closeMarker = "%>"
)

// state says which part of the active target incoming text belongs to.
type state uint8

const (
	stateHTML   state = iota // skeleton text, nothing open
	stateTag                 // inside a directive's marker word; text is dropped
	stateCode                // directive body
	stateBranch1             // if-true text or loop body
	stateBranch2             // else text
)

// tagKind extends ir.Kind with the sentinels that never become nodes.
type tagKind uint8

const (
	tagCode tagKind = iota
	tagAssign
	tagIf
	tagLoop
	tagElse
	tagEndIf
	tagEndLoop
)

func (k tagKind) materializes() bool {
	return k <= tagLoop
}

func (k tagKind) irKind() ir.Kind {
	switch k {
	case tagAssign:
		return ir.Assign
	case tagIf:
		return ir.If
	case tagLoop:
		return ir.Loop
	default:
		return ir.Code
	}
}

// frame is an open node on the compiler stack.
type frame struct {
	id   int
	kind tagKind
	// saved is the state the node was in when a child directive opened, and
	// the state it returns to when that child closes.
	saved state
}

// nodeText collects the three texts of a node while compiling.
type nodeText struct {
	code    strings.Builder
	branch1 strings.Builder
	branch2 strings.Builder
}

type compilation struct {
	src      string
	skeleton strings.Builder
	nodes    []*ir.Node
	texts    []*nodeText
	stack    []frame
	state    state
	tag      tagKind
}

// Compile turns template source into its compiled form. It never fails:
// unbalanced or unknown directives produce a best-effort template.
func Compile(src string) *ir.Template {
	c := &compilation{src: src, state: stateHTML}
	c.run()

	tpl := &ir.Template{
		Skeleton: c.skeleton.String(),
		Nodes:    c.nodes,
	}
	for i, n := range tpl.Nodes {
		t := c.texts[i]
		n.Code = t.code.String()
		n.Branch1 = t.branch1.String()
		n.Branch2 = t.branch2.String()
		n.Vars = ExtractVars(n.Code)
	}
	return tpl
}

func (c *compilation) run() {
	src := c.src
	for i := 0; i < len(src); i++ {
		switch {
		case strings.HasPrefix(src[i:], openMarker):
			i = c.open(i) - 1
		case c.inDirective() && strings.HasPrefix(src[i:], closeMarker):
			c.close()
			i += len(closeMarker) - 1
		case c.state == stateTag:
			c.scanTag(src[i])
		default:
			c.write(src[i : i+1])
		}
	}
}

// inDirective reports whether a closing marker is meaningful right now.
func (c *compilation) inDirective() bool {
	return c.state == stateTag || c.state == stateCode
}

// open handles an opening marker at i and returns the index scanning resumes at.
func (c *compilation) open(i int) int {
	body := i + len(openMarker)
	kind := classify(c.src, body)

	if kind.materializes() {
		if len(c.stack) > 0 {
			c.stack[len(c.stack)-1].saved = c.state
		}
		id := len(c.nodes)
		c.write(ir.Placeholder(id))
		c.nodes = append(c.nodes, &ir.Node{ID: id, Kind: kind.irKind()})
		c.texts = append(c.texts, &nodeText{})
		c.stack = append(c.stack, frame{id: id, kind: kind})
	}

	c.tag = kind
	if kind == tagCode {
		// Code has no marker word; its body starts right after "<%".
		c.state = stateCode
	} else {
		c.state = stateTag
	}
	return body
}

// scanTag consumes one byte of a marker word.
func (c *compilation) scanTag(ch byte) {
	switch c.tag {
	case tagAssign:
		if ch == '=' {
			c.state = stateCode
		}
	case tagIf, tagLoop:
		if isSpace(ch) {
			c.state = stateCode
		}
	}
}

// close handles a closing marker.
func (c *compilation) close() {
	switch c.tag {
	case tagCode, tagAssign:
		c.pop()
	case tagIf, tagLoop:
		c.state = stateBranch1
	case tagElse:
		top, ok := c.top()
		switch {
		case ok && top.kind == tagIf:
			c.tag = tagIf
			c.state = stateBranch2
		case ok && top.kind == tagLoop:
			// A loop has no else branch; keep collecting its body.
			c.tag = tagLoop
			c.state = stateBranch1
		default:
			c.restore()
		}
	case tagEndIf, tagEndLoop:
		c.pop()
	}
}

func (c *compilation) top() (frame, bool) {
	if len(c.stack) == 0 {
		return frame{}, false
	}
	return c.stack[len(c.stack)-1], true
}

// pop closes the top node, if any, and restores its parent.
func (c *compilation) pop() {
	if len(c.stack) > 0 {
		c.stack = c.stack[:len(c.stack)-1]
	}
	c.restore()
}

// restore makes the top of the stack (or the skeleton) the active target again.
func (c *compilation) restore() {
	top, ok := c.top()
	if !ok {
		c.tag = tagCode
		c.state = stateHTML
		return
	}
	c.tag = top.kind
	c.state = top.saved
}

// write appends text to the active target.
func (c *compilation) write(s string) {
	top, ok := c.top()
	if !ok || c.state == stateHTML {
		c.skeleton.WriteString(s)
		return
	}
	t := c.texts[top.id]
	switch c.state {
	case stateCode:
		t.code.WriteString(s)
	case stateBranch1:
		t.branch1.WriteString(s)
	case stateBranch2:
		t.branch2.WriteString(s)
	}
}

// classify decides the directive kind from the text starting at i, the first
// byte after the opening marker.
func classify(src string, i int) tagKind {
	at := func(j int) byte {
		if j < len(src) {
			return lower(src[j])
		}
		return 0
	}

	switch at(i) {
	case '=':
		return tagAssign
	case 'i':
		return tagIf
	case 'l':
		return tagLoop
	case 'e':
		switch at(i + 1) {
		case 'l':
			return tagElse
		case 'n':
			switch at(i + 3) {
			case 'i':
				return tagEndIf
			case 'l':
				return tagEndLoop
			}
		}
	}
	return tagCode
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

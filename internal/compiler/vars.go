// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file implements the declared-variable scan run over every directive
// body after compilation.
//
// The scan is a heuristic over JavaScript-like text, not a parser. It knows
// just enough to skip string contents, function literals and call argument
// lists, to look inside for(...) and while(...) headers, and to pick up the
// names of `var` declarations. Escaped quotes and template literals are not
// understood; the tests pin that behaviour down.
package compiler

// varScanner holds the state of a single ExtractVars pass.
type varScanner struct {
	code string
	out  []string
	name []byte

	parens int
	braces int

	inDouble bool
	inSingle bool

	// Function literal tracking. fnParens/fnBraces are the depths at which the
	// literal started; fnBody is set once its parameter list has closed and a
	// body brace has been seen.
	inFn     bool
	fnParens int
	fnBraces int
	fnBody   bool

	inLoop   bool
	inDecl   bool
	inAssign bool
}

// ExtractVars returns the names declared with `var` in code, in the order they
// appear. Declarations inside string literals, function literals and call
// argument lists are ignored; declarations inside for(...) and while(...)
// headers are kept. Duplicates are preserved.
func ExtractVars(code string) []string {
	s := &varScanner{code: code}
	for i := 0; i < len(code); i++ {
		i = s.step(i)
	}
	return s.out
}

// flush appends the pending name, if any.
func (s *varScanner) flush() {
	if len(s.name) > 0 {
		s.out = append(s.out, string(s.name))
		s.name = s.name[:0]
	}
}

func (s *varScanner) inString() bool {
	return s.inDouble != s.inSingle
}

// precededBy reports whether code[:i] ends with word.
func (s *varScanner) precededBy(i int, word string) bool {
	return i >= len(word) && s.code[i-len(word):i] == word
}

// step consumes the byte at i and returns the index of the last byte consumed.
func (s *varScanner) step(i int) int {
	ch := s.code[i]

	switch ch {
	case '(':
		s.parens++
		if !s.inFn && !s.inString() && s.precededBy(i, "function") {
			s.inFn = true
			s.fnParens = s.parens - 1
			s.fnBraces = s.braces
			s.fnBody = false
		}
		if !s.inLoop && !s.inFn && !s.inAssign && !s.inString() &&
			(s.precededBy(i, "for") || s.precededBy(i, "while")) {
			s.inLoop = true
		}
	case ')':
		s.parens--
		if s.parens == 0 && !s.inFn && !s.inString() && s.inLoop {
			s.inLoop = false
		}
		if s.inFn && !s.fnBody && s.parens == s.fnParens && s.braces == s.fnBraces {
			// Parameter list closed: the literal continues only if a body follows.
			if !s.bodyFollows(i + 1) {
				s.inFn = false
			}
		}
	case '{':
		s.braces++
		if s.inFn && s.parens == s.fnParens && s.braces == s.fnBraces+1 {
			s.fnBody = true
		}
	case '}':
		s.braces--
		if s.inFn && s.fnBody && s.parens == s.fnParens && s.braces == s.fnBraces {
			s.inFn = false
			s.fnBody = false
		}
	case '"':
		s.inDouble = !s.inDouble
	case '\'':
		s.inSingle = !s.inSingle
	case '=':
		if !s.inFn && s.inDecl && !s.inString() {
			s.inAssign = true
			s.flush()
			return i
		}
	}

	if s.inFn || s.inString() {
		return i
	}
	if !s.inLoop && s.parens > 0 {
		return i
	}

	if !s.inDecl {
		if ch == 'v' && s.isVarKeyword(i) {
			s.inDecl = true
			return i + 3
		}
		return i
	}

	switch {
	case ch == ',':
		s.flush()
		s.inAssign = false
	case ch == ';':
		s.flush()
		s.inDecl = false
		s.inAssign = false
	case isSpace(ch) && s.inLoop:
		s.flush()
		if s.keywordAt(i+1, "in") {
			s.inDecl = false
			s.inAssign = false
		}
	case ch == 'i' && i > 0 && isSpace(s.code[i-1]) && s.keywordAt(i, "in"):
		s.flush()
		s.inDecl = false
	case !isSpace(ch) && !s.inAssign:
		s.name = append(s.name, ch)
	}
	return i
}

// isVarKeyword reports whether `var` followed by whitespace starts at i on a
// token boundary, with at least one more byte after the whitespace.
func (s *varScanner) isVarKeyword(i int) bool {
	if i+4 >= len(s.code) || s.code[i+1] != 'a' || s.code[i+2] != 'r' || !isSpace(s.code[i+3]) {
		return false
	}
	if i == 0 {
		return true
	}
	prev := s.code[i-1]
	return isSpace(prev) || prev == '{' || prev == '('
}

// keywordAt reports whether word starts at i and is followed by whitespace.
func (s *varScanner) keywordAt(i int, word string) bool {
	end := i + len(word)
	return end < len(s.code) && s.code[i:end] == word && isSpace(s.code[end])
}

// bodyFollows reports whether the next non-space byte at or after i is '{'.
func (s *varScanner) bodyFollows(i int) bool {
	for ; i < len(s.code); i++ {
		if !isSpace(s.code[i]) {
			return s.code[i] == '{'
		}
	}
	return false
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

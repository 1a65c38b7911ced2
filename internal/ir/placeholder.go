// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file holds the placeholder token format shared by the compiler, which
// writes tokens, and the evaluator, which reads them back.
//
// A token is "_{" followed by one or more decimal digits followed by "}_".
// Literal template text that happens to match this shape is indistinguishable
// from a real token; that is a documented limitation of the format.
package ir

import "strconv"

const (
	placeholderOpen  = "_{"
	placeholderClose = "}_"
)

// Placeholder returns the token standing in for node id.
func Placeholder(id int) string {
	return placeholderOpen + strconv.Itoa(id) + placeholderClose
}

// NextPlaceholder finds the first well-formed token in text at or after from.
// It returns the token's start and end offsets and the id it carries, or
// start == -1 when no token remains. Ids too large for an int are skipped
// as literal text.
func NextPlaceholder(text string, from int) (start, end, id int) {
	for i := from; i+len(placeholderOpen) <= len(text); i++ {
		if text[i] != '_' || text[i+1] != '{' {
			continue
		}
		j := i + len(placeholderOpen)
		k := j
		for k < len(text) && text[k] >= '0' && text[k] <= '9' {
			k++
		}
		if k == j || k+len(placeholderClose) > len(text) || text[k:k+len(placeholderClose)] != placeholderClose {
			continue
		}
		n, err := strconv.Atoi(text[j:k])
		if err != nil {
			continue
		}
		return i, k + len(placeholderClose), n
	}
	return -1, -1, -1
}

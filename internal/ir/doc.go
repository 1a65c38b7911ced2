// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package ir defines the compiled form of a template: a skeleton text in which
// every directive span has been replaced by a placeholder token, plus a flat
// table of directive nodes addressed by the placeholder number.
//
// Why a flat table instead of a tree?
//
// Directives nest (an if inside a loop inside an if), but the nesting is
// already encoded in the texts: a node's branch text contains the placeholders
// of its children. Keeping the nodes in one table indexed by id makes lookups
// during evaluation O(1) and keeps the structure trivially serialisable, which
// is what the bundle format relies on.
//
// A Template is written once by the compiler and read-only afterwards, so a
// single instance can be rendered by any number of goroutines at the same time.
package ir

package jshost

import (
	"regexp"
	"strconv"
	"strings"
)

type mode uint8

const (
	modeExec mode = iota
	modeEval
	modeLoop
)

var identRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

var reserved = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true,
	"do": true, "else": true, "enum": true, "export": true, "extends": true,
	"false": true, "finally": true, "for": true, "function": true, "if": true,
	"implements": true, "import": true, "in": true, "instanceof": true,
	"interface": true, "let": true, "new": true, "null": true, "package": true,
	"private": true, "protected": true, "public": true, "return": true,
	"static": true, "super": true, "switch": true, "this": true, "throw": true,
	"true": true, "try": true, "typeof": true, "var": true, "void": true,
	"while": true, "with": true, "yield": true,
	// wrapper parameters
	"data": true, "__in": true, "__out": true, "__body": true,
	"__acc": true, "__it": true,
}

// bindable reports whether name can be declared as a wrapper variable.
func bindable(name string) bool {
	return identRe.MatchString(name) && !reserved[name]
}

// wrapper builds the function source for one directive.
func wrapper(m mode, code string, bindings, exports []string) string {
	var b strings.Builder
	b.WriteString("(function(data, __in, __out, __body) {\n")
	for _, name := range bindings {
		b.WriteString("var ")
		b.WriteString(name)
		b.WriteString(" = __in[")
		b.WriteString(strconv.Quote(name))
		b.WriteString("];\n")
	}
	b.WriteString("try {\n")
	switch m {
	case modeExec:
		b.WriteString(code)
		b.WriteString("\n")
	case modeEval:
		b.WriteString("return (")
		b.WriteString(expression(code))
		b.WriteString("\n);\n")
	case modeLoop:
		b.WriteString("var __acc = \"\";\n")
		b.WriteString(strings.TrimSpace(code))
		b.WriteString(" {\n")
		writeExports(&b, exports)
		b.WriteString("var __it = __body(__out);\n__acc += __it.text;\n")
		for _, name := range exports {
			b.WriteString("if (")
			b.WriteString(strconv.Quote(name))
			b.WriteString(" in __it.values) ")
			b.WriteString(name)
			b.WriteString(" = __it.values[")
			b.WriteString(strconv.Quote(name))
			b.WriteString("];\n")
		}
		b.WriteString("}\nreturn __acc;\n")
	}
	b.WriteString("} finally {\n")
	writeExports(&b, exports)
	b.WriteString("}\n})")
	return b.String()
}

func writeExports(b *strings.Builder, exports []string) {
	for _, name := range exports {
		b.WriteString("__out[")
		b.WriteString(strconv.Quote(name))
		b.WriteString("] = typeof ")
		b.WriteString(name)
		b.WriteString(" === \"undefined\" ? undefined : ")
		b.WriteString(name)
		b.WriteString(";\n")
	}
}

// expression strips the surrounding whitespace and a trailing semicolon so
// the code can sit inside parentheses.
func expression(code string) string {
	code = strings.TrimSpace(code)
	for strings.HasSuffix(code, ";") {
		code = strings.TrimSpace(strings.TrimSuffix(code, ";"))
	}
	return code
}

// filter keeps the bindable names of names, dropping duplicates.
func filter(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] || !bindable(name) {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

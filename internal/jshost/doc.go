// Package jshost runs directive bodies as JavaScript on the goja engine.
//
// Each session owns one goja.Runtime. A directive is wrapped in a function
// that receives the render data and the current scope bindings, runs the
// directive body inside a try block, and copies every exported variable into
// an out-object from the finally block:
//
//	(function(data, __in, __out, __body) {
//	var total = __in["total"];
//	try {
//	<directive body>
//	} finally {
//	__out["total"] = typeof total === "undefined" ? undefined : total;
//	}
//	})
//
// Wrappers are compiled once into goja Programs and cached on the Host, since
// a Program is not tied to a runtime. Variables whose names are not plain
// JavaScript identifiers are neither bound nor exported.
//
// Cancelling the session context interrupts whatever script is running.
package jshost

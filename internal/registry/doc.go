// Package registry is the template manager: it stores named templates,
// renders them by name, and knows what each template depends on.
//
// Templates can be added as source, in which case they are compiled the
// first time they are needed, or already compiled (from a bundle). Rendering
// by name exposes an include(name, data) function to directive code so one
// template can render another; every include gets its own scope.
//
// Dependencies describe, per template, which other templates, scripts and
// styles it needs. Generate resolves them recursively, fetches whatever is
// missing through the configured fetch.Fetcher, and then renders. Scripts and
// styles are only stored; the registry never injects them anywhere.
package registry

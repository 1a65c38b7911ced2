// Package fetch retrieves templates, scripts and styles that are not
// available locally, either from a directory or from an HTTP server.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/babago/internal/ctxlog"
)

// ErrNotFound is returned when the resource does not exist at the source.
var ErrNotFound = errors.New("resource not found")

// Kind is the type of a fetched resource.
type Kind uint8

const (
	Template Kind = iota
	Script
	Style
)

func (k Kind) String() string {
	switch k {
	case Template:
		return "template"
	case Script:
		return "script"
	case Style:
		return "style"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Resource identifies one thing to fetch. Template names are bare names;
// script and style names are paths relative to the source.
type Resource struct {
	Kind Kind
	Name string
}

// Fetcher retrieves resources.
type Fetcher interface {
	Fetch(ctx context.Context, r Resource) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, r Resource) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, r Resource) ([]byte, error) {
	return f(ctx, r)
}

// Location returns the relative location of r: the name plus ext for
// templates, the name itself for everything else.
func Location(r Resource, ext string) string {
	if r.Kind == Template {
		return r.Name + ext
	}
	return r.Name
}

// FileFetcher reads resources from a directory tree.
type FileFetcher struct {
	Root string
	// Ext is appended to template names.
	Ext string
}

// Fetch reads r from disk. Locations escaping Root are rejected.
func (f *FileFetcher) Fetch(ctx context.Context, r Resource) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel := filepath.Clean(filepath.FromSlash(Location(r, f.Ext)))
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%s %q: location escapes the fetch root", r.Kind, r.Name)
	}

	p := filepath.Join(f.Root, rel)
	ctxlog.FromContext(ctx).Debug("Fetching from disk.", "kind", r.Kind.String(), "name", r.Name, "path", p)
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s %q: %w", r.Kind, r.Name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", r.Kind, r.Name, err)
	}
	return b, nil
}

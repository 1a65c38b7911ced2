// Package bundle stores sets of compiled templates in a single file so they
// can be loaded without compiling again. A bundle is a zstd stream holding a
// msgpack-encoded document with a format version.
package bundle

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/zstd"
	"github.com/specialistvlad/babago/internal/ir"
	"github.com/vmihailenco/msgpack/v5"
)

// Version is the bundle format written by Write.
const Version = 1

// ErrVersion is returned by Read for bundles of an unknown format.
var ErrVersion = errors.New("unsupported bundle version")

type document struct {
	Version   int          `msgpack:"version"`
	Templates []namedEntry `msgpack:"templates"`
}

type namedEntry struct {
	Name     string       `msgpack:"name"`
	Template *ir.Template `msgpack:"template"`
}

// Write encodes templates to w. Entries are written in name order so the
// same set always produces the same bytes.
func Write(w io.Writer, templates map[string]*ir.Template) error {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)

	doc := document{Version: Version, Templates: make([]namedEntry, 0, len(names))}
	for _, name := range names {
		doc.Templates = append(doc.Templates, namedEntry{Name: name, Template: templates[name]})
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if err := msgpack.NewEncoder(zw).Encode(&doc); err != nil {
		zw.Close()
		return fmt.Errorf("encoding bundle: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flushing bundle: %w", err)
	}
	return nil
}

// Read decodes a bundle written by Write.
func Read(r io.Reader) (map[string]*ir.Template, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer zr.Close()

	var doc document
	if err := msgpack.NewDecoder(zr).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding bundle: %w", err)
	}
	if doc.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, doc.Version)
	}

	out := make(map[string]*ir.Template, len(doc.Templates))
	for _, e := range doc.Templates {
		if e.Template == nil {
			return nil, fmt.Errorf("decoding bundle: template %q is empty", e.Name)
		}
		for i, n := range e.Template.Nodes {
			if n == nil || n.ID != i {
				return nil, fmt.Errorf("decoding bundle: template %q has a broken node table at %d", e.Name, i)
			}
		}
		out[e.Name] = e.Template
	}
	return out, nil
}

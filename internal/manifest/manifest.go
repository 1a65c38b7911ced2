package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/babago/internal/ctxlog"
	"github.com/specialistvlad/babago/internal/fsutil"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// DefaultExtension is appended to template names when fetching them.
const DefaultExtension = ".html"

// Manifest is the merged content of one or more manifest files.
type Manifest struct {
	Templates []*Template
	Fetch     *Fetch
}

// Template is one declared template.
type Template struct {
	Name string
	// Source is the template text, read from the source file or given inline.
	Source string
	// Path is the file Source was read from; empty for inline text.
	Path     string
	Requires []string
	Scripts  []string
	Styles   []string

	DeclRange hcl.Range
}

// Fetch says where templates, scripts and styles that are not declared
// locally come from. BaseURL and Dir are mutually exclusive.
type Fetch struct {
	BaseURL   string
	Dir       string
	Extension string
}

// Lookup returns the template called name.
func (m *Manifest) Lookup(name string) (*Template, bool) {
	for _, t := range m.Templates {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

type rawFile struct {
	Templates []*rawBlock `hcl:"template,block"`
	Fetch     []*rawFetch `hcl:"fetch,block"`
}

type rawBlock struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

type rawFetch struct {
	Body hcl.Body `hcl:",remain"`
}

type templateBody struct {
	Source   *string  `hcl:"source,optional"`
	Text     *string  `hcl:"text,optional"`
	Requires []string `hcl:"requires,optional"`
	Scripts  []string `hcl:"scripts,optional"`
	Styles   []string `hcl:"styles,optional"`
}

type fetchBody struct {
	BaseURL   *string `hcl:"base_url,optional"`
	Dir       *string `hcl:"dir,optional"`
	Extension *string `hcl:"extension,optional"`
}

type parsedFile struct {
	path string
	raw  rawFile
}

// Load reads every .hcl manifest at path, a file or a directory searched
// recursively, and merges them.
func Load(ctx context.Context, path string) (*Manifest, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading manifests.", "path", path)

	files, err := fsutil.ResolvePath(path, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest path '%s': %w", path, err)
	}
	if len(files) == 0 {
		logger.Warn("No .hcl manifest files found.", "path", path)
		return &Manifest{}, nil
	}

	parser := hclparse.NewParser()
	parsed := make([]parsedFile, 0, len(files))
	var diags hcl.Diagnostics
	declared := map[string]*rawBlock{}
	names := map[string]cty.Value{}

	for _, file := range files {
		f, d := parser.ParseHCLFile(file)
		if d.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, d)
		}
		pf := parsedFile{path: file}
		if d := gohcl.DecodeBody(f.Body, nil, &pf.raw); d.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, d)
		}
		for _, b := range pf.raw.Templates {
			if prev, ok := declared[b.Name]; ok {
				prevRange := prev.Body.MissingItemRange()
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate template",
					Detail:   fmt.Sprintf("Template %q was already declared at %s.", b.Name, prevRange.String()),
					Subject:  b.Body.MissingItemRange().Ptr(),
				})
				continue
			}
			declared[b.Name] = b
			names[b.Name] = cty.StringVal(b.Name)
		}
		parsed = append(parsed, pf)
	}
	if diags.HasErrors() {
		return nil, diags
	}

	templateObj := cty.EmptyObjectVal
	if len(names) > 0 {
		templateObj = cty.ObjectVal(names)
	}

	m := &Manifest{}
	for _, pf := range parsed {
		dir := filepath.Dir(pf.path)
		evalCtx := &hcl.EvalContext{
			Variables: map[string]cty.Value{"template": templateObj},
			Functions: map[string]function.Function{"file": FileFunc(dir)},
		}

		for _, b := range pf.raw.Templates {
			if declared[b.Name] != b {
				continue
			}
			t, d := decodeTemplate(b, dir, evalCtx)
			diags = append(diags, d...)
			if t != nil {
				m.Templates = append(m.Templates, t)
				logger.Debug("Declared template.", "template", t.Name, "path", pf.path)
			}
		}

		for _, fb := range pf.raw.Fetch {
			if m.Fetch != nil {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate fetch block",
					Detail:   "Only one fetch block may be declared across all manifests.",
					Subject:  fb.Body.MissingItemRange().Ptr(),
				})
				continue
			}
			f, d := decodeFetch(fb, dir, evalCtx)
			diags = append(diags, d...)
			m.Fetch = f
		}
	}
	if diags.HasErrors() {
		return nil, diags
	}

	logger.Info("Manifests loaded.", "files", len(files), "templates", len(m.Templates))
	return m, nil
}

func decodeTemplate(b *rawBlock, dir string, evalCtx *hcl.EvalContext) (*Template, hcl.Diagnostics) {
	var body templateBody
	if diags := gohcl.DecodeBody(b.Body, evalCtx, &body); diags.HasErrors() {
		return nil, diags
	}

	rng := b.Body.MissingItemRange()
	t := &Template{
		Name:      b.Name,
		Requires:  body.Requires,
		Scripts:   body.Scripts,
		Styles:    body.Styles,
		DeclRange: rng,
	}

	switch {
	case body.Source != nil && body.Text != nil:
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Conflicting template source",
			Detail:   fmt.Sprintf("Template %q sets both source and text; use one.", b.Name),
			Subject:  rng.Ptr(),
		}}
	case body.Text != nil:
		t.Source = *body.Text
	case body.Source != nil:
		p := *body.Source
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		src, err := os.ReadFile(p)
		if err != nil {
			return nil, hcl.Diagnostics{{
				Severity: hcl.DiagError,
				Summary:  "Unreadable template source",
				Detail:   fmt.Sprintf("Template %q: %s.", b.Name, err),
				Subject:  rng.Ptr(),
			}}
		}
		t.Source = string(src)
		t.Path = p
	default:
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Missing template source",
			Detail:   fmt.Sprintf("Template %q needs a source or a text attribute.", b.Name),
			Subject:  rng.Ptr(),
		}}
	}
	return t, nil
}

func decodeFetch(b *rawFetch, dir string, evalCtx *hcl.EvalContext) (*Fetch, hcl.Diagnostics) {
	var body fetchBody
	if diags := gohcl.DecodeBody(b.Body, evalCtx, &body); diags.HasErrors() {
		return nil, diags
	}

	f := &Fetch{Extension: DefaultExtension}
	if body.Extension != nil {
		f.Extension = *body.Extension
	}
	if body.BaseURL != nil {
		f.BaseURL = *body.BaseURL
	}
	if body.Dir != nil {
		f.Dir = *body.Dir
		if !filepath.IsAbs(f.Dir) {
			f.Dir = filepath.Join(dir, f.Dir)
		}
	}
	if (f.BaseURL == "") == (f.Dir == "") {
		rng := b.Body.MissingItemRange()
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid fetch block",
			Detail:   "Exactly one of base_url or dir must be set.",
			Subject:  rng.Ptr(),
		}}
	}
	return f, nil
}

// FileFunc returns the file(path) function, resolving relative paths
// against dir.
func FileFunc(dir string) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "path", Type: cty.String}},
		Type:   function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			p := args[0].AsString()
			if !filepath.IsAbs(p) {
				p = filepath.Join(dir, p)
			}
			b, err := os.ReadFile(p)
			if err != nil {
				return cty.NilVal, err
			}
			return cty.StringVal(string(b)), nil
		},
	})
}

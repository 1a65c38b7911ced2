package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/specialistvlad/babago/internal/ctxlog"
	"github.com/specialistvlad/babago/internal/engine"
	"github.com/specialistvlad/babago/internal/fetch"
	"github.com/specialistvlad/babago/internal/host"
	"github.com/specialistvlad/babago/internal/ir"
)

// maxIncludeDepth bounds nested include() calls.
const maxIncludeDepth = 32

// Registry holds the templates, dependencies and fetched assets of one
// application instance. It is safe for concurrent use.
type Registry struct {
	engine      *engine.Engine
	fetcher     fetch.Fetcher
	concurrency int

	mu        sync.RWMutex
	templates map[string]*entry
	deps      map[string]Requirements
	assets    map[assetKey][]byte
}

type entry struct {
	src  string
	once sync.Once
	tpl  *ir.Template
}

type assetKey struct {
	kind fetch.Kind
	name string
}

// Option configures a Registry.
type Option func(*Registry)

// WithFetcher sets where missing resources are fetched from.
func WithFetcher(f fetch.Fetcher) Option {
	return func(r *Registry) { r.fetcher = f }
}

// WithConcurrency limits how many resources are fetched at once.
func WithConcurrency(n int) Option {
	return func(r *Registry) { r.concurrency = n }
}

// New creates an empty registry that renders with e.
func New(e *engine.Engine, opts ...Option) *Registry {
	r := &Registry{
		engine:      e,
		concurrency: 8,
		templates:   make(map[string]*entry),
		deps:        make(map[string]Requirements),
		assets:      make(map[assetKey][]byte),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetFetcher replaces the fetcher.
func (r *Registry) SetFetcher(f fetch.Fetcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetcher = f
}

// Add registers template source under name. An existing template of the same
// name is kept, and Add reports whether src was stored.
func (r *Registry) Add(name, src string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.templates[name]; ok {
		return false
	}
	r.templates[name] = &entry{src: src}
	return true
}

// AddAll registers every template in templates, replacing existing ones.
func (r *Registry) AddAll(templates map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, src := range templates {
		r.templates[name] = &entry{src: src}
	}
}

// AddCompiled registers an already compiled template, replacing any
// existing one.
func (r *Registry) AddCompiled(name string, tpl *ir.Template) {
	e := &entry{tpl: tpl}
	e.once.Do(func() {})
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[name] = e
}

// Remove deletes the template called name.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.templates, name)
}

// Has reports whether a template called name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.templates[name]
	return ok
}

// Names returns the registered template names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Template returns the compiled template called name, compiling its source
// on first use.
func (r *Registry) Template(name string) (*ir.Template, error) {
	r.mu.RLock()
	e, ok := r.templates[name]
	var names []string
	if !ok {
		names = r.namesLocked()
	}
	r.mu.RUnlock()

	if !ok {
		return nil, &NotFoundError{Name: name, Suggestion: suggest(name, names)}
	}
	e.once.Do(func() {
		e.tpl = r.engine.Compile(e.src)
		e.src = ""
	})
	return e.tpl, nil
}

// Templates returns every registered template compiled.
func (r *Registry) Templates() map[string]*ir.Template {
	out := make(map[string]*ir.Template)
	for _, name := range r.Names() {
		tpl, err := r.Template(name)
		if err != nil {
			// removed concurrently
			continue
		}
		out[name] = tpl
	}
	return out
}

// Render renders the template called name with data.
func (r *Registry) Render(ctx context.Context, name string, data any, opts ...engine.Option) (string, error) {
	tpl, err := r.Template(name)
	if err != nil {
		return "", err
	}
	ctx = ctxlog.WithLogger(ctx, ctxlog.FromContext(ctx).With("template", name))

	opts = append([]engine.Option{engine.WithFuncs(map[string]host.Func{"include": r.include})}, opts...)
	out, err := r.engine.RenderTemplate(ctx, tpl, data, opts...)
	if err != nil {
		return "", fmt.Errorf("rendering %q: %w", name, err)
	}
	return out, nil
}

type depthKey struct{}

// include is exposed to directive code as include(name, data).
func (r *Registry) include(ctx context.Context, args ...any) (any, error) {
	if len(args) == 0 {
		return nil, errors.New("include: template name is required")
	}
	name, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("include: template name must be a string, got %T", args[0])
	}
	var data any
	if len(args) > 1 {
		data = args[1]
	}

	depth, _ := ctx.Value(depthKey{}).(int)
	if depth >= maxIncludeDepth {
		return nil, fmt.Errorf("include %q: nesting deeper than %d", name, maxIncludeDepth)
	}
	return r.Render(context.WithValue(ctx, depthKey{}, depth+1), name, data)
}

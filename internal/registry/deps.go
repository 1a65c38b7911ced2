package registry

import (
	"context"
	"fmt"

	"github.com/specialistvlad/babago/internal/ctxlog"
	"github.com/specialistvlad/babago/internal/fetch"
	"golang.org/x/sync/errgroup"
)

// Requirements lists what a template needs besides itself.
type Requirements struct {
	Templates []string
	Scripts   []string
	Styles    []string
}

// Request asks Generate to render Name with Data once Name, everything in
// Requires and all their declared dependencies are available.
type Request struct {
	Name     string
	Requires Requirements
	Data     any
}

// SetDependencies records the declared requirements of templates, replacing
// earlier declarations for the same names.
func (r *Registry) SetDependencies(deps map[string]Requirements) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, req := range deps {
		r.deps[name] = req
	}
}

// Dependencies returns everything name requires, directly or through the
// templates it requires. The template itself is not included.
func (r *Registry) Dependencies(name string) Requirements {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res Requirements
	r.collect(name, &res, map[string]bool{})
	return res
}

func (r *Registry) collect(name string, res *Requirements, visited map[string]bool) {
	if visited[name] {
		return
	}
	dep, ok := r.deps[name]
	if !ok {
		return
	}
	visited[name] = true

	res.Templates = uniqueAdd(res.Templates, dep.Templates)
	for _, t := range dep.Templates {
		r.collect(t, res, visited)
	}
	res.Scripts = uniqueAdd(res.Scripts, dep.Scripts)
	res.Styles = uniqueAdd(res.Styles, dep.Styles)
}

// uniqueAdd appends the items of b missing from a, keeping order.
func uniqueAdd(a, b []string) []string {
	if len(a)+len(b) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		seen[s] = true
		out = append(out, s)
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Asset returns a fetched script or style.
func (r *Registry) Asset(kind fetch.Kind, name string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.assets[assetKey{kind, name}]
	return b, ok
}

// EnsureLocal fetches, concurrently, every template in req that is not
// registered and every script or style not fetched before. Fetched templates
// are registered under their name.
func (r *Registry) EnsureLocal(ctx context.Context, req Requirements) error {
	logger := ctxlog.FromContext(ctx)

	r.mu.RLock()
	var missing []fetch.Resource
	for _, name := range uniqueAdd(nil, req.Templates) {
		if _, ok := r.templates[name]; !ok {
			missing = append(missing, fetch.Resource{Kind: fetch.Template, Name: name})
		}
	}
	for _, name := range uniqueAdd(nil, req.Scripts) {
		if _, ok := r.assets[assetKey{fetch.Script, name}]; !ok {
			missing = append(missing, fetch.Resource{Kind: fetch.Script, Name: name})
		}
	}
	for _, name := range uniqueAdd(nil, req.Styles) {
		if _, ok := r.assets[assetKey{fetch.Style, name}]; !ok {
			missing = append(missing, fetch.Resource{Kind: fetch.Style, Name: name})
		}
	}
	fetcher := r.fetcher
	r.mu.RUnlock()

	if len(missing) == 0 {
		return nil
	}
	if fetcher == nil {
		return fmt.Errorf("%w: %d resources missing, first is %s %q", ErrNoFetcher, len(missing), missing[0].Kind, missing[0].Name)
	}

	logger.Debug("Fetching missing resources.", "count", len(missing))
	g, gctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for _, res := range missing {
		g.Go(func() error {
			b, err := fetcher.Fetch(gctx, res)
			if err != nil {
				return fmt.Errorf("fetching %s %q: %w", res.Kind, res.Name, err)
			}
			if res.Kind == fetch.Template {
				r.Add(res.Name, string(b))
			} else {
				r.mu.Lock()
				r.assets[assetKey{res.Kind, res.Name}] = b
				r.mu.Unlock()
			}
			logger.Debug("Fetched resource.", "kind", res.Kind.String(), "name", res.Name, "bytes", len(b))
			return nil
		})
	}
	return g.Wait()
}

// Generate makes sure req.Name and everything it needs is available, then
// renders it.
func (r *Registry) Generate(ctx context.Context, req Request) (string, error) {
	templates := uniqueAdd([]string{req.Name}, req.Requires.Templates)

	r.mu.RLock()
	var dep Requirements
	visited := map[string]bool{}
	r.collect(req.Name, &dep, visited)
	for _, name := range templates {
		r.collect(name, &dep, visited)
	}
	r.mu.RUnlock()

	need := Requirements{
		Templates: uniqueAdd(templates, dep.Templates),
		Scripts:   uniqueAdd(req.Requires.Scripts, dep.Scripts),
		Styles:    uniqueAdd(req.Requires.Styles, dep.Styles),
	}
	if err := r.EnsureLocal(ctx, need); err != nil {
		return "", err
	}
	return r.Render(ctx, req.Name, req.Data)
}

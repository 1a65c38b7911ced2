package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/specialistvlad/babago/internal/compiler"
	"github.com/specialistvlad/babago/internal/engine"
	"github.com/specialistvlad/babago/internal/evaluator"
	"github.com/specialistvlad/babago/internal/fetch"
	"github.com/specialistvlad/babago/internal/jshost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(opts ...Option) *Registry {
	return New(engine.New(jshost.New()), opts...)
}

func TestRegistry_AddKeepsFirst(t *testing.T) {
	r := newRegistry()
	assert.True(t, r.Add("a", "first"))
	assert.False(t, r.Add("a", "second"))

	out, err := r.Render(context.Background(), "a", nil)
	require.NoError(t, err)
	assert.Equal(t, "first", out)
}

func TestRegistry_AddAllOverwrites(t *testing.T) {
	r := newRegistry()
	r.Add("a", "old")
	r.AddAll(map[string]string{"a": "new", "b": "bee"})

	out, err := r.Render(context.Background(), "a", nil)
	require.NoError(t, err)
	assert.Equal(t, "new", out)
	assert.Equal(t, []string{"a", "b"}, r.Names())
}

func TestRegistry_AddCompiledAndRemove(t *testing.T) {
	r := newRegistry()
	r.AddCompiled("c", compiler.Compile("<%=data.v%>"))
	require.True(t, r.Has("c"))

	out, err := r.Render(context.Background(), "c", map[string]any{"v": "ok"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	r.Remove("c")
	assert.False(t, r.Has("c"))
	_, err = r.Render(context.Background(), "c", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_TemplateCompilesOnce(t *testing.T) {
	r := newRegistry()
	r.Add("p", "<%=1%>")

	var wg sync.WaitGroup
	got := make(chan any, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tpl, err := r.Template("p")
			assert.NoError(t, err)
			got <- tpl
		}()
	}
	wg.Wait()
	close(got)

	first := <-got
	for tpl := range got {
		assert.Same(t, first, tpl)
	}
}

func TestRegistry_NotFoundSuggestion(t *testing.T) {
	r := newRegistry()
	r.AddAll(map[string]string{"header": "", "footer": "", "sidebar": ""})

	_, err := r.Template("haeder")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "haeder", nf.Name)
	assert.Equal(t, "header", nf.Suggestion)
	assert.Contains(t, err.Error(), `did you mean "header"?`)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Template("completely-different")
	require.ErrorAs(t, err, &nf)
	assert.Empty(t, nf.Suggestion)
}

func TestRegistry_Include(t *testing.T) {
	r := newRegistry()
	r.AddAll(map[string]string{
		"page": "<%var x = 'outer';%>[<%=include('item', {name: data.name})%>]<%=x%>",
		"item": "<%var x = 'inner';%><%=data.name%>:<%=x%>",
	})

	out, err := r.Render(context.Background(), "page", map[string]any{"name": "Ann"})
	require.NoError(t, err)
	assert.Equal(t, "[Ann:inner]outer", out)
}

func TestRegistry_IncludeErrors(t *testing.T) {
	r := newRegistry()
	r.AddAll(map[string]string{
		"missing": "<%=include('nope')%>",
		"self":    "<%=include('self')%>",
	})

	_, err := r.Render(context.Background(), "missing", nil)
	require.Error(t, err)
	var de *evaluator.DirectiveError
	assert.ErrorAs(t, err, &de)
	assert.Contains(t, err.Error(), `template "nope" not found`)

	_, err = r.Render(context.Background(), "self", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nesting deeper than")
}

func TestRegistry_Dependencies(t *testing.T) {
	r := newRegistry()
	r.SetDependencies(map[string]Requirements{
		"page":   {Templates: []string{"header", "footer"}, Scripts: []string{"app.js"}},
		"header": {Templates: []string{"logo", "page"}, Styles: []string{"header.css"}, Scripts: []string{"app.js", "menu.js"}},
		"logo":   {Styles: []string{"logo.css"}},
	})

	got := r.Dependencies("page")
	assert.Equal(t, []string{"header", "footer", "logo", "page"}, got.Templates)
	assert.Equal(t, []string{"app.js", "menu.js"}, got.Scripts)
	assert.Equal(t, []string{"logo.css", "header.css"}, got.Styles)

	assert.Empty(t, r.Dependencies("unknown").Templates)
}

func TestUniqueAdd(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, uniqueAdd([]string{"a", "b"}, []string{"b", "c", "a"}))
	assert.Equal(t, []string{"x"}, uniqueAdd(nil, []string{"x", "x"}))
	assert.Empty(t, uniqueAdd(nil, nil))
}

func countingFetcher(files map[string]string, calls *atomic.Int32) fetch.Fetcher {
	return fetch.FetcherFunc(func(_ context.Context, res fetch.Resource) ([]byte, error) {
		calls.Add(1)
		if s, ok := files[res.Name]; ok {
			return []byte(s), nil
		}
		return nil, fetch.ErrNotFound
	})
}

func TestRegistry_EnsureLocal(t *testing.T) {
	var calls atomic.Int32
	r := newRegistry(WithFetcher(countingFetcher(map[string]string{
		"remote":  "<%=data.x%>",
		"app.js":  "run()",
		"app.css": "p{}",
	}, &calls)))
	r.Add("local", "here")

	req := Requirements{Templates: []string{"local", "remote"}, Scripts: []string{"app.js"}, Styles: []string{"app.css"}}
	require.NoError(t, r.EnsureLocal(context.Background(), req))
	assert.Equal(t, int32(3), calls.Load())
	assert.True(t, r.Has("remote"))

	js, ok := r.Asset(fetch.Script, "app.js")
	require.True(t, ok)
	assert.Equal(t, "run()", string(js))
	_, ok = r.Asset(fetch.Style, "app.js")
	assert.False(t, ok)

	// Everything is local now.
	require.NoError(t, r.EnsureLocal(context.Background(), req))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRegistry_EnsureLocalErrors(t *testing.T) {
	t.Run("no fetcher", func(t *testing.T) {
		err := newRegistry().EnsureLocal(context.Background(), Requirements{Templates: []string{"x"}})
		assert.ErrorIs(t, err, ErrNoFetcher)
	})

	t.Run("nothing missing needs no fetcher", func(t *testing.T) {
		assert.NoError(t, newRegistry().EnsureLocal(context.Background(), Requirements{}))
	})

	t.Run("fetch failure", func(t *testing.T) {
		var calls atomic.Int32
		r := newRegistry(WithFetcher(countingFetcher(nil, &calls)))
		err := r.EnsureLocal(context.Background(), Requirements{Styles: []string{"gone.css"}})
		assert.ErrorIs(t, err, fetch.ErrNotFound)
	})
}

func TestRegistry_Generate(t *testing.T) {
	var calls atomic.Int32
	r := newRegistry(WithFetcher(countingFetcher(map[string]string{
		"card":   "<div><%=include('title', data)%></div>",
		"title":  "<h2><%=data.title%></h2>",
		"ui.css": "div{}",
	}, &calls)))
	r.SetDependencies(map[string]Requirements{"card": {Templates: []string{"title"}, Styles: []string{"ui.css"}}})

	out, err := r.Generate(context.Background(), Request{Name: "card", Data: map[string]any{"title": "Hi"}})
	require.NoError(t, err)
	assert.Equal(t, "<div><h2>Hi</h2></div>", out)
	assert.Equal(t, int32(3), calls.Load())
	_, ok := r.Asset(fetch.Style, "ui.css")
	assert.True(t, ok)
}

func TestRegistry_GenerateMissingTemplate(t *testing.T) {
	var calls atomic.Int32
	r := newRegistry(WithFetcher(countingFetcher(nil, &calls)))
	_, err := r.Generate(context.Background(), Request{Name: "ghost"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fetch.ErrNotFound))
}

func TestRegistry_LoadManifests(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "site.hcl"), []byte(`
template "page" {
  text     = "<main><%=include('nav', data)%></main>"
  requires = [template.nav]
  styles   = ["site.css"]
}
template "nav" {
  text = "<nav><%=data.user%></nav>"
}
`), 0o644))

	r := newRegistry()
	r.Add("nav", "<nav>kept</nav>")
	m, err := r.LoadManifests(context.Background(), root)
	require.NoError(t, err)
	assert.Len(t, m.Templates, 2)

	assert.Equal(t, []string{"nav", "page"}, r.Names())
	assert.Equal(t, Requirements{Templates: []string{"nav"}, Styles: []string{"site.css"}}, r.Dependencies("page"))

	out, err := r.Render(context.Background(), "page", map[string]any{"user": "x"})
	require.NoError(t, err)
	assert.Equal(t, "<main><nav>kept</nav></main>", out)
}

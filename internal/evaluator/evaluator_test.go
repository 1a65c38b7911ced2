package evaluator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/specialistvlad/babago/internal/compiler"
	"github.com/specialistvlad/babago/internal/ctxlog"
	"github.com/specialistvlad/babago/internal/host"
	"github.com/specialistvlad/babago/internal/ir"
	"github.com/specialistvlad/babago/internal/jshost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, src string, data any) (string, error) {
	t.Helper()
	return New(jshost.New()).Render(context.Background(), compiler.Compile(src), data, nil)
}

func TestRender(t *testing.T) {
	testCases := []struct {
		name string
		src  string
		data map[string]any
		want string
	}{
		{
			name: "literal text is returned unchanged",
			src:  "<ul><li>50% off</li></ul> %> _{x}_",
			want: "<ul><li>50% off</li></ul> %> _{x}_",
		},
		{
			name: "assignments",
			src:  "Hello <%=data.name%>, you are <%= data.age %>.",
			data: map[string]any{"name": "Bob", "age": 30},
			want: "Hello Bob, you are 30.",
		},
		{
			name: "if containing a loop, true",
			src:  "[<%I data.show%>A<%L for(var i=0;i<data.n;i++)%>X<%EN L%>B<%EN I%>]",
			data: map[string]any{"show": true, "n": 3},
			want: "[AXXXB]",
		},
		{
			name: "if containing a loop, false",
			src:  "[<%I data.show%>A<%L for(var i=0;i<data.n;i++)%>X<%EN L%>B<%EN I%>]",
			data: map[string]any{"show": false, "n": 3},
			want: "[]",
		},
		{
			name: "missing else renders nothing",
			src:  "a<%I data.x%>b<%EN I%>c",
			want: "ac",
		},
		{
			name: "else branch",
			src:  "<%IF data.x%>yes<%ELSE%>no<%ENDIF%>",
			data: map[string]any{"x": 0},
			want: "no",
		},
		{
			name: "declared variable reaches a later sibling",
			src:  "<%var x = 5;%><%=x+1%>",
			want: "6",
		},
		{
			name: "loop variable is visible in the body",
			src:  "<%L for(var i=0;i<3;i++)%><%=i%>,<%EN L%>",
			want: "0,1,2,",
		},
		{
			name: "body updates flow back into the loop",
			src:  "<%var total=0;%><%L for(var i=1;i<=3;i++)%><%total+=i;%><%EN L%><%=total%>",
			want: "6",
		},
		{
			name: "loop over data items",
			src:  "<%L for(var k=0;k<data.items.length;k++)%><%var item = data.items[k];%><li><%=item%></li><%EN L%>",
			data: map[string]any{"items": []any{"a", "b"}},
			want: "<li>a</li><li>b</li>",
		},
		{
			name: "code that returns text",
			src:  "<%return 'hi';%>!",
			want: "hi!",
		},
		{
			name: "undefined renders as empty",
			src:  "(<%=data.nothing%>)",
			want: "()",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := render(t, tc.src, tc.data)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRender_PlaceholderWithoutNodeIsLiteral(t *testing.T) {
	tpl := &ir.Template{Skeleton: "x_{7}_y"}
	got, err := New(jshost.New()).Render(context.Background(), tpl, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "x_{7}_y", got)
}

func TestRender_Cycle(t *testing.T) {
	tpl := &ir.Template{
		Skeleton: "_{0}_",
		Nodes:    []*ir.Node{{ID: 0, Kind: ir.If, Code: "true", Branch1: "_{0}_"}},
	}
	_, err := New(jshost.New()).Render(context.Background(), tpl, nil, nil)
	require.ErrorIs(t, err, ErrCycle)
}

func TestRender_NilTemplate(t *testing.T) {
	_, err := New(jshost.New()).Render(context.Background(), nil, nil, nil)
	require.Error(t, err)
}

func TestRender_Funcs(t *testing.T) {
	funcs := map[string]host.Func{
		"shout": func(_ context.Context, args ...any) (any, error) {
			return strings.ToUpper(fmt.Sprint(args...)) + "!", nil
		},
	}
	got, err := New(jshost.New()).Render(context.Background(), compiler.Compile("<%=shout(data.w)%>"), map[string]any{"w": "hey"}, funcs)
	require.NoError(t, err)
	assert.Equal(t, "HEY!", got)
}

func TestRender_DirectiveErrorAbortsRender(t *testing.T) {
	var logs bytes.Buffer
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&logs, nil)))

	got, err := New(jshost.New()).Render(ctx, compiler.Compile("a<%=nope()%>b"), map[string]any{"id": 1}, nil)
	assert.Empty(t, got)

	var de *DirectiveError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 0, de.NodeID)
	assert.Equal(t, ir.Assign, de.Kind)
	assert.Equal(t, "nope()", de.Code)
	assert.Contains(t, logs.String(), "Directive failed.")
	assert.Contains(t, logs.String(), "node_id=0")
	assert.Contains(t, logs.String(), "kind=assign")
}

func TestRender_InnermostFailureIsReportedOnce(t *testing.T) {
	var logs bytes.Buffer
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&logs, nil)))

	src := "<%I true%><%L for(var i=0;i<2;i++)%><%=boom()%><%EN L%><%EN I%>"
	_, err := New(jshost.New()).Render(ctx, compiler.Compile(src), nil, nil)

	var de *DirectiveError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 2, de.NodeID)
	assert.Equal(t, ir.Assign, de.Kind)
	assert.Equal(t, 1, strings.Count(logs.String(), "Directive failed."))
}

func TestRender_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(jshost.New()).Render(ctx, compiler.Compile("<%=1%>"), nil, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRender_IsolatedAcrossCalls(t *testing.T) {
	tpl := compiler.Compile("<%=typeof x%>:<%var x = data.v;%><%=x%>")
	ev := New(jshost.New())

	first, err := ev.Render(context.Background(), tpl, map[string]any{"v": 1}, nil)
	require.NoError(t, err)
	second, err := ev.Render(context.Background(), tpl, map[string]any{"v": 2}, nil)
	require.NoError(t, err)

	assert.Equal(t, "undefined:1", first)
	assert.Equal(t, "undefined:2", second)
}

func TestRender_Concurrent(t *testing.T) {
	tpl := compiler.Compile("<%var me = data.id;%><%L for(var i=0;i<20;i++)%><%=me%><%EN L%>")
	ev := New(jshost.New())

	var wg sync.WaitGroup
	results := make([]string, 16)
	errs := make([]error, 16)
	for n := range results {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results[n], errs[n] = ev.Render(context.Background(), tpl, map[string]any{"id": n}, nil)
		}(n)
	}
	wg.Wait()

	for n := range results {
		require.NoError(t, errs[n])
		assert.Equal(t, strings.Repeat(fmt.Sprint(n), 20), results[n])
	}
}

// stubHost lets tests observe the calls the evaluator makes.
type stubHost struct {
	sess *stubSession
	err  error
}

func (h *stubHost) Begin(context.Context, host.Env) (host.Session, error) {
	if h.err != nil {
		return nil, h.err
	}
	return h.sess, nil
}

type stubSession struct {
	calls  []host.Call
	closed bool
}

func (s *stubSession) record(c *host.Call) (host.Result, error) {
	s.calls = append(s.calls, *c)
	if c.Code == "fail" {
		return host.Result{Exports: map[string]any{"partial": 1}}, errors.New("failed")
	}
	return host.Result{Text: c.Code, Truth: true, Exports: map[string]any{"seen": c.NodeID}}, nil
}

func (s *stubSession) Exec(c *host.Call) (host.Result, error) { return s.record(c) }
func (s *stubSession) Eval(c *host.Call) (host.Result, error) { return s.record(c) }
func (s *stubSession) Test(c *host.Call) (host.Result, error) { return s.record(c) }
func (s *stubSession) Loop(c *host.Call, _ host.Body) (host.Result, error) {
	return s.record(c)
}
func (s *stubSession) Close() error { s.closed = true; return nil }

func TestRender_BindsScopeAndExportsVars(t *testing.T) {
	sess := &stubSession{}
	tpl := &ir.Template{
		Skeleton: "_{0}__{1}_",
		Nodes: []*ir.Node{
			{ID: 0, Kind: ir.Code, Code: "a", Vars: []string{"seen"}},
			{ID: 1, Kind: ir.Assign, Code: "b"},
		},
	}
	out, err := New(&stubHost{sess: sess}).Render(context.Background(), tpl, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ab", out)
	assert.True(t, sess.closed)

	require.Len(t, sess.calls, 2)
	assert.Empty(t, sess.calls[0].Bindings)
	assert.Equal(t, []string{"seen"}, sess.calls[0].Exports)
	assert.Equal(t, []host.Binding{{Name: "seen", Value: 0}}, sess.calls[1].Bindings)
	assert.Equal(t, []string{"seen"}, sess.calls[1].Exports)
}

func TestRender_BeginError(t *testing.T) {
	_, err := New(&stubHost{err: errors.New("no runtime")}).Render(context.Background(), &ir.Template{}, nil, nil)
	require.ErrorContains(t, err, "no runtime")
}

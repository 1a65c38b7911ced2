package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func TestLoad(t *testing.T) {
	root := writeTree(t, map[string]string{
		"site.hcl": `
template "page" {
  source   = "html/page.html"
  requires = [template.header, "remote_footer"]
  scripts  = ["js/app.js"]
  styles   = ["css/site.css"]
}

fetch {
  base_url = "https://cdn.example.com/tpl/"
}
`,
		"parts/header.hcl": `
template "header" {
  text = "<h1><%=data.title%></h1>"
}

template "footer" {
  text = file("footer.html")
}
`,
		"html/page.html":    "<%=include('header', data)%>body",
		"parts/footer.html": "<footer/>",
	})

	m, err := Load(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, m.Templates, 3)

	header, ok := m.Lookup("header")
	require.True(t, ok)
	assert.Equal(t, "<h1><%=data.title%></h1>", header.Source)
	assert.Empty(t, header.Path)

	footer, ok := m.Lookup("footer")
	require.True(t, ok)
	assert.Equal(t, "<footer/>", footer.Source)

	page, ok := m.Lookup("page")
	require.True(t, ok)
	assert.Equal(t, "<%=include('header', data)%>body", page.Source)
	assert.Equal(t, filepath.Join(root, "html", "page.html"), page.Path)
	assert.Equal(t, []string{"header", "remote_footer"}, page.Requires)
	assert.Equal(t, []string{"js/app.js"}, page.Scripts)
	assert.Equal(t, []string{"css/site.css"}, page.Styles)

	require.NotNil(t, m.Fetch)
	assert.Equal(t, "https://cdn.example.com/tpl/", m.Fetch.BaseURL)
	assert.Equal(t, DefaultExtension, m.Fetch.Extension)

	_, ok = m.Lookup("nope")
	assert.False(t, ok)
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		files   map[string]string
		wantErr string
	}{
		{
			name:    "unknown template reference",
			files:   map[string]string{"a.hcl": "template \"a\" {\n text = \"x\"\n requires = [template.missing]\n}\n"},
			wantErr: "Unsupported attribute",
		},
		{
			name: "duplicate template across files",
			files: map[string]string{
				"a.hcl": "template \"x\" {\n text = \"1\"\n}\n",
				"b.hcl": "template \"x\" {\n text = \"2\"\n}\n",
			},
			wantErr: "Duplicate template",
		},
		{
			name:    "no source",
			files:   map[string]string{"a.hcl": "template \"a\" {\n requires = []\n}\n"},
			wantErr: "Missing template source",
		},
		{
			name:    "source and text",
			files:   map[string]string{"a.hcl": "template \"a\" {\n text = \"x\"\n source = \"a.html\"\n}\n"},
			wantErr: "Conflicting template source",
		},
		{
			name:    "missing source file",
			files:   map[string]string{"a.hcl": "template \"a\" {\n source = \"gone.html\"\n}\n"},
			wantErr: "Unreadable template source",
		},
		{
			name: "two fetch blocks",
			files: map[string]string{
				"a.hcl": "fetch {\n dir = \"x\"\n}\n",
				"b.hcl": "fetch {\n dir = \"y\"\n}\n",
			},
			wantErr: "Duplicate fetch block",
		},
		{
			name:    "fetch with both targets",
			files:   map[string]string{"a.hcl": "fetch {\n dir = \"x\"\n base_url = \"http://h/\"\n}\n"},
			wantErr: "Exactly one of base_url or dir",
		},
		{
			name:    "syntax error",
			files:   map[string]string{"a.hcl": "template \"a\" {\n"},
			wantErr: "failed to parse HCL file",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			root := writeTree(t, tc.files)
			_, err := Load(context.Background(), root)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoad_FetchDirIsRelativeToManifest(t *testing.T) {
	root := writeTree(t, map[string]string{
		"conf/site.hcl": "fetch {\n dir = \"../remote\"\n extension = \".tpl\"\n}\n",
	})
	m, err := Load(context.Background(), filepath.Join(root, "conf", "site.hcl"))
	require.NoError(t, err)
	require.NotNil(t, m.Fetch)
	assert.Equal(t, filepath.Join(root, "remote"), m.Fetch.Dir)
	assert.Equal(t, ".tpl", m.Fetch.Extension)
}

func TestLoad_EmptyDirectory(t *testing.T) {
	m, err := Load(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, m.Templates)
	assert.Nil(t, m.Fetch)
}

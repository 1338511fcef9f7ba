package pct

import (
	"errors"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populatedUnit(t *testing.T, name, src string, opts ...Option) *CompiledOutput {
	t.Helper()
	tmpl := mustParse(t, name, src)
	unit := newTestUnit(t, name, opts...)
	unit.SetBlockNodes(collectBlocks(tmpl))
	return unit
}

func TestCompiledOutput_Initial(t *testing.T) {
	unit := newTestUnit(t, "blog/post.html")

	assert.Equal(t, "blog/post.html", unit.TemplateName())
	assert.Equal(t, "PCT_blog__post___html", unit.Name())
	assert.Equal(t, DefaultBaseName, unit.BaseName())
	assert.Equal(t, StateInitialized, unit.State())
	assert.Equal(t, []string{DefaultRuntimeImport}, unit.Registry().Imports())
	assert.Equal(t, "PCT_blog__post___html.go", filepath.Base(unit.Path()))
}

func TestCompiledOutput_Source(t *testing.T) {
	unit := populatedUnit(t, "blog/post.html", `{{define "content"}}<p>{{.Body}}</p>{{end}}`)
	assert.Equal(t, StatePopulated, unit.State())

	src, err := unit.Source()
	require.NoError(t, err)
	out := string(src)

	assert.True(t, strings.HasPrefix(out, `// Code generated by pct from "blog/post.html". DO NOT EDIT.`))
	assert.Contains(t, out, "package precompiled")
	assert.Contains(t, out, `"github.com/livefir/pct/pctrt"`)
	assert.Contains(t, out, `"text/template/parse"`)
	assert.Contains(t, out, "var _ = pctrt.Decode[any]")
	assert.Contains(t, out, "type PCT_blog__post___html struct {\n\tpctrt.PreCompiledTemplate\n}")
	assert.Contains(t, out, "func (t PCT_blog__post___html) RenderBlock_content(renderList []any) []any {")
	assert.Contains(t, out, `case "content":`)
	assert.Contains(t, out, "return t.PreCompiledTemplate.RenderBlock(name, renderList)")
	assert.Contains(t, out, `pctrt.Register("blog/post.html", PCT_blog__post___html{})`)

	// Imports come before constructors, constructors before block methods
	assert.Less(t, strings.Index(out, "import ("), strings.Index(out, "PCT_OBJ_ActionNode(n parse.ActionNode)"))
	assert.Less(t, strings.Index(out, "PCT_OBJ_ActionNode(n parse.ActionNode)"), strings.Index(out, "RenderBlock_content("))

	_, err = parser.ParseFile(token.NewFileSet(), unit.Path(), src, parser.AllErrors)
	require.NoError(t, err)

	assert.Equal(t, []string{"<p>", "</p>"}, blockStrings(t, src, "RenderBlock_content"))
}

func TestCompiledOutput_OneConstructorPerType(t *testing.T) {
	unit := populatedUnit(t, "list.html", `{{define "items"}}{{.A}}{{.B}}{{.C}} and {{.D}} text{{end}}`)

	src, err := unit.Source()
	require.NoError(t, err)
	out := string(src)

	assert.Equal(t, 1, strings.Count(out, ") PCT_OBJ_ActionNode("))
	assert.Equal(t, 1, strings.Count(out, ") PCT_OBJ_TextNode("))
	assert.Equal(t, 1, strings.Count(out, ") PCT_OBJ_FieldNode("))

	stats := unit.Stats()
	assert.Equal(t, 1, stats.Blocks)
	assert.Equal(t, 6, stats.Expressions)
	assert.Equal(t, unit.Registry().Len(), stats.Constructors)
}

func TestCompiledOutput_Deterministic(t *testing.T) {
	const src = `{{define "a"}}{{range $i, $v := .Items}}{{$i}}={{$v}}{{end}}{{end}}{{define "b"}}{{with .X}}{{.}}{{end}}{{end}}`

	first, err := populatedUnit(t, "det.html", src).Source()
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := populatedUnit(t, "det.html", src).Source()
		require.NoError(t, err)
		require.Equal(t, string(first), string(again))
	}
}

func TestCompiledOutput_RenderIdempotent(t *testing.T) {
	unit := populatedUnit(t, "blog/post.html", `{{define "content"}}hello "world"{{end}}`)

	require.NoError(t, unit.Render())
	first, err := os.ReadFile(unit.Path())
	require.NoError(t, err)

	require.NoError(t, unit.Render())
	second, err := os.ReadFile(unit.Path())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, StateRendered, unit.State())
	assert.Equal(t, len(first), unit.Stats().Bytes)
	assert.Equal(t, []string{`hello "world"`}, blockStrings(t, first, "RenderBlock_content"))
}

func TestCompiledOutput_Parent(t *testing.T) {
	unit := populatedUnit(t, "blog/post.html", `{{define "content"}}x{{end}}`)
	unit.SetParentTemplate("layouts/base.html")
	assert.Equal(t, "PCT_layouts__base___html", unit.BaseName())

	src, err := unit.Source()
	require.NoError(t, err)
	out := string(src)
	assert.Contains(t, out, "type PCT_blog__post___html struct {\n\tPCT_layouts__base___html\n}")
	assert.Contains(t, out, "return t.PCT_layouts__base___html.RenderBlock(name, renderList)")

	require.NoError(t, unit.Render())
	unit.SetParentTemplate("other.html")
	assert.Equal(t, "PCT_layouts__base___html", unit.BaseName(), "parent changes after render are ignored")
}

func TestCompiledOutput_EmptyBlock(t *testing.T) {
	unit := populatedUnit(t, "empty.html", `{{define "nothing"}}{{end}}`)

	src, err := unit.Source()
	require.NoError(t, err)
	assert.Contains(t, string(src), "func (t PCT_empty___html) RenderBlock_nothing(renderList []any) []any {\n\treturn renderList\n}")
}

func TestCompiledOutput_BlockMethodCollision(t *testing.T) {
	unit := newTestUnit(t, "clash.html")
	unit.SetBlockNodes([]Block{{Name: "a-b"}, {Name: "a_2d_b"}})

	src, err := unit.Source()
	require.NoError(t, err)
	out := string(src)
	assert.Contains(t, out, ") RenderBlock_a_2d_b(renderList []any)")
	assert.Contains(t, out, ") RenderBlock_a_2d_b_2(renderList []any)")
	assert.Contains(t, out, "case \"a_2d_b\":\n\t\treturn t.RenderBlock_a_2d_b_2(renderList), true")
}

func TestCompiledOutput_RuntimeImportAlias(t *testing.T) {
	unit := populatedUnit(t, "page.html", `{{define "b"}}x{{end}}`,
		WithRuntimeImport("example.com/support/runtime"), WithPackage("views"))

	src, err := unit.Source()
	require.NoError(t, err)
	out := string(src)
	assert.Contains(t, out, "package views")
	assert.Contains(t, out, `pctrt "example.com/support/runtime"`)

	_, err = parser.ParseFile(token.NewFileSet(), "", src, 0)
	require.NoError(t, err)
}

func TestCompiledOutput_RenderWriteFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing", "deeper")
	unit := populatedUnit(t, "page.html", `{{define "b"}}x{{end}}`, WithOutDir(dir))

	err := unit.Render()
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist), "got %v", err)
	assert.Equal(t, StatePopulated, unit.State())
}

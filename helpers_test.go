package pct

import (
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"testing/fstest"
	"text/template/parse"

	"github.com/stretchr/testify/require"

	"github.com/livefir/pct/pctrt"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestUnit(t *testing.T, templateName string, opts ...Option) *CompiledOutput {
	t.Helper()
	opts = append([]Option{WithLogger(discardLogger()), WithOutDir(t.TempDir())}, opts...)
	return NewCompiledOutput(templateName, opts...)
}

func mustParse(t *testing.T, name, src string) *Template {
	t.Helper()
	tmpl, err := ParseTemplate(name, []byte(src), "", "")
	require.NoError(t, err)
	return tmpl
}

// firstNode returns the first node of the named tree
func firstNode(t *testing.T, tmpl *Template, tree string) parse.Node {
	t.Helper()
	tr, ok := tmpl.Trees[tree]
	require.True(t, ok, "tree %q not declared", tree)
	require.NotEmpty(t, tr.Root.Nodes)
	return tr.Root.Nodes[0]
}

func testFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, src := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(src)}
	}
	return fsys
}

// literalOf extracts and unquotes the literal argument of a
// pctrt.Decode[T]("...") expression
func literalOf(t *testing.T, expr string) string {
	t.Helper()
	i := strings.Index(expr, "](")
	require.GreaterOrEqual(t, i, 0, "not a Decode expression: %s", expr)
	lit, err := strconv.Unquote(strings.TrimSuffix(expr[i+2:], ")"))
	require.NoError(t, err)
	return lit
}

// blockStrings parses generated source and returns the string literals
// appended by the named block method, in order
func blockStrings(t *testing.T, src []byte, method string) []string {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "unit.go", src, parser.ParseComments)
	require.NoError(t, err)

	var out []string
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Name.Name != method {
			continue
		}
		ast.Inspect(fn.Body, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			if ident, ok := call.Fun.(*ast.Ident); !ok || ident.Name != "append" {
				return true
			}
			for _, arg := range call.Args[1:] {
				lit, ok := arg.(*ast.BasicLit)
				if !ok || lit.Kind != token.STRING {
					continue
				}
				s, err := strconv.Unquote(lit.Value)
				require.NoError(t, err)
				out = append(out, s)
			}
			return false
		})
		return out
	}
	t.Fatalf("method %s not found in generated source", method)
	return nil
}

// decodedBytes returns every []uint8 value generated source rebuilds with
// pctrt.Decode, decoded, in source order
func decodedBytes(t *testing.T, src []byte) []string {
	t.Helper()
	file, err := parser.ParseFile(token.NewFileSet(), "unit.go", src, 0)
	require.NoError(t, err)

	var out []string
	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok || len(call.Args) != 1 {
			return true
		}
		index, ok := call.Fun.(*ast.IndexExpr)
		if !ok {
			return true
		}
		sel, ok := index.X.(*ast.SelectorExpr)
		if !ok || sel.Sel.Name != "Decode" {
			return true
		}
		elem, ok := index.Index.(*ast.ArrayType)
		if !ok || types.ExprString(elem.Elt) != "uint8" {
			return true
		}
		lit, ok := call.Args[0].(*ast.BasicLit)
		require.True(t, ok, "Decode argument is not a literal")
		s, err := strconv.Unquote(lit.Value)
		require.NoError(t, err)
		out = append(out, string(pctrt.Decode[[]byte](s)))
		return true
	})
	return out
}

package macro

import (
	"go/parser"
	"go/token"
	"strconv"
	"testing"

	"github.com/jhump/gopoet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	logger := gopoet.PointerType(gopoet.NamedType(gopoet.Package{ImportPath: "example.com/log", Name: "logpkg"}.Symbol("Logger")))
	db := gopoet.PointerType(gopoet.NamedType(gopoet.Package{ImportPath: "example.com/store", Name: "store"}.Symbol("DB")))
	node := gopoet.NamedType(gopoet.Package{ImportPath: "gopkg.in/yaml.v3", Name: "yaml"}.Symbol("Node"))

	render := func(t *testing.T, elements ...Element) map[string]string {
		t.Helper()
		src, err := Render("app_macros.go", "example.com/app", "app", &GeneratedFragment{
			Macro:  "Fake",
			Target: "UserService",
			Pieces: []Piece{{Template: "t", Elements: elements}},
		})
		require.NoError(t, err)
		f, err := parser.ParseFile(token.NewFileSet(), "app_macros.go", src, parser.ImportsOnly)
		require.NoError(t, err, string(src))
		imports := map[string]string{}
		for _, imp := range f.Imports {
			p, err := strconv.Unquote(imp.Path.Value)
			require.NoError(t, err)
			imports[p] = ""
			if imp.Name != nil {
				imports[p] = imp.Name.Name
			}
		}
		return imports
	}

	t.Run("Should name imports that are qualified by an alias", func(t *testing.T) {
		m := &Method{
			Recv:    "u",
			Type:    "UserService",
			Pointer: true,
			Name:    "Use",
			Signature: Signature{
				Params: []Var{{Name: "l", Type: logger}, {Name: "db", Type: db}, {Name: "n", Type: node}},
			},
		}
		assert.Equal(t, map[string]string{
			"example.com/log":   "logpkg",
			"example.com/store": "",
			"gopkg.in/yaml.v3":  "yaml",
		}, render(t, m))
	})

	t.Run("Should render declarations of every element kind", func(t *testing.T) {
		imports := render(t,
			&StructDecl{Name: "holder", Fields: []Var{{Name: "l", Type: logger}}},
			&InterfaceDecl{Name: "Holder", Methods: []InterfaceMethod{{Name: "Get", Signature: Signature{Results: []Var{{Type: db}}}}}},
			&Conformance{Interface: gopoet.Package{ImportPath: "example.com/store", Name: "store"}.Symbol("Closer"), Type: "holder", Pointer: true},
		)
		assert.Equal(t, map[string]string{"example.com/log": "logpkg", "example.com/store": ""}, imports)
	})
}

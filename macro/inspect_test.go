package macro

import (
	"go/ast"
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inspectSrc = `package app

import (
	"context"
	st "example.com/store"
	"example.com/log/v2"
)

type UserService struct {
	DB   *st.DB
	Log  *log.Logger ` + "`dimacros:\"logger\"`" + `
	st.Embedded
	name string
}

func NewUserService(db *st.DB, l *log.Logger, opts ...Option) (*UserService, error) {
	return nil, nil
}

func NewUserServiceForTest() UserService { return UserService{} }

func NewOther() *Other { return nil }

func (s *UserService) Find(ctx context.Context, id string) (*User, error) { return nil, nil }

func (UserService) String() string { return "" }

var _ fmt.Stringer = (*UserService)(nil)

var _ Finder = UserService{}

type Finder interface {
	fmt.Stringer
	Find(ctx context.Context, id string) (*User, error)
}

type Level int

type Alias = UserService

type Box[T any] struct{ v T }

func (b *Box[T]) Get() T { return b.v }

func Handle(_ context.Context, fn func()) {}
`

func inspectTarget(t *testing.T, src string, find func(*ast.File) ast.Node) Target {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "app.go", src, parser.ParseComments)
	require.NoError(t, err)
	return Target{Fset: fset, PkgPath: "example.com/app", Files: []*ast.File{file}, File: file, Decl: find(file)}
}

func typeSpec(name string) func(*ast.File) ast.Node {
	return func(f *ast.File) ast.Node {
		for _, d := range f.Decls {
			if gd, ok := d.(*ast.GenDecl); ok {
				for _, s := range gd.Specs {
					if ts, ok := s.(*ast.TypeSpec); ok && ts.Name.Name == name {
						return ts
					}
				}
			}
		}
		return nil
	}
}

func funcDecl(name string) func(*ast.File) ast.Node {
	return func(f *ast.File) ast.Node {
		for _, d := range f.Decls {
			if fd, ok := d.(*ast.FuncDecl); ok && fd.Name.Name == name {
				return fd
			}
		}
		return nil
	}
}

var allKinds = []DeclKind{KindStruct, KindInterface, KindNamed, KindAlias, KindFunc, KindMethod}

func TestInspect(t *testing.T) {
	pos := token.Position{Filename: "app.go", Line: 8, Column: 4}

	t.Run("Should describe a struct", func(t *testing.T) {
		shape, d := Inspect(inspectTarget(t, inspectSrc, typeSpec("UserService")), pos, allKinds...)
		require.Nil(t, d)
		assert.Equal(t, KindStruct, shape.Kind)
		assert.Equal(t, "UserService", shape.Name)
		assert.Equal(t, "app", shape.PkgName)
		assert.Equal(t, "example.com/app", shape.PkgPath)
		assert.Equal(t, 9, shape.Pos.Line)

		require.Len(t, shape.Fields, 4)
		assert.Equal(t, "DB", shape.Fields[0].Name)
		assert.Equal(t, "*example.com/store.DB", shape.Fields[0].Key)
		assert.Equal(t, "*st.DB", shape.Fields[0].TypeText)
		assert.Equal(t, "*example.com/log/v2.Logger", shape.Fields[1].Key)
		assert.Equal(t, `dimacros:"logger"`, shape.Fields[1].Tag)
		assert.Equal(t, "Embedded", shape.Fields[2].Name)
		assert.True(t, shape.Fields[3].Basic)

		assert.Equal(t, []string{"DB", "Embedded", "Find", "Log", "String", "name"}, shape.Members)
		assert.True(t, shape.HasMember("Find"))
		assert.False(t, shape.HasMember("Register"))
		assert.Equal(t, []string{"Finder", "fmt.Stringer"}, shape.Conformances)
		assert.True(t, shape.ConformsTo("Finder"))
	})

	t.Run("Should find initializers", func(t *testing.T) {
		shape, d := Inspect(inspectTarget(t, inspectSrc, typeSpec("UserService")), pos, KindStruct)
		require.Nil(t, d)
		require.Len(t, shape.Initializers, 2)

		in := shape.Initializers[0]
		assert.Equal(t, "NewUserService", in.Name)
		assert.True(t, in.ReturnsPointer)
		assert.True(t, in.ReturnsError)
		require.Len(t, in.Params, 3)
		assert.Equal(t, "db", in.Params[0].Name)
		assert.Equal(t, "*example.com/store.DB", in.Params[0].Key)
		assert.False(t, in.Params[0].HasDefault)
		assert.Equal(t, "[]example.com/app.Option", in.Params[2].Key)
		assert.True(t, in.Params[2].HasDefault)

		in = shape.Initializers[1]
		assert.Equal(t, "NewUserServiceForTest", in.Name)
		assert.False(t, in.ReturnsPointer)
		assert.False(t, in.ReturnsError)
		assert.Empty(t, in.Params)
	})

	t.Run("Should describe a method", func(t *testing.T) {
		shape, d := Inspect(inspectTarget(t, inspectSrc, funcDecl("Find")), pos, KindMethod)
		require.Nil(t, d)
		assert.Equal(t, KindMethod, shape.Kind)
		require.NotNil(t, shape.Receiver)
		assert.Equal(t, Receiver{Name: "s", Local: "s", TypeName: "UserService", Pointer: true}, *shape.Receiver)
		assert.Equal(t, "UserService", shape.TypeName())
		require.Len(t, shape.Params, 2)
		assert.Equal(t, "context.Context", shape.Params[0].Key)
		assert.True(t, shape.Params[1].Basic)
		require.Len(t, shape.Results, 2)
		assert.Equal(t, "r0", shape.Results[0].Name)
		assert.Equal(t, "*example.com/app.User", shape.Results[0].Key)
		assert.Equal(t, "error", shape.Results[1].Key)
		assert.True(t, shape.HasMember("String"))
	})

	t.Run("Should name blank params and mark unsupported types", func(t *testing.T) {
		shape, d := Inspect(inspectTarget(t, inspectSrc, funcDecl("Handle")), pos, KindFunc)
		require.Nil(t, d)
		require.Len(t, shape.Params, 2)
		assert.Equal(t, "p0", shape.Params[0].Name)
		assert.Nil(t, shape.Params[1].GoType)
		assert.Equal(t, "func()", shape.Params[1].TypeText)
	})

	t.Run("Should give params locals that shadow nothing", func(t *testing.T) {
		src := `package app

import "time"

type Service struct{}

func Helper() {}

func (Service) Run(p1 int, _ string, time time.Duration, Helper int, s string) {}

func NewService(Service int, _ string, len int) *Service { return nil }
`
		shape, d := Inspect(inspectTarget(t, src, funcDecl("Run")), pos, KindMethod)
		require.Nil(t, d)
		assert.Equal(t, "s_", shape.Receiver.Local)
		var names, locals []string
		for _, p := range shape.Params {
			names = append(names, p.Name)
			locals = append(locals, p.Local)
		}
		assert.Equal(t, []string{"p1", "p1", "time", "Helper", "s"}, names)
		assert.Equal(t, []string{"p1", "p1_", "time_", "Helper_", "s"}, locals)
		assert.True(t, shape.IsReserved("time"))
		assert.True(t, shape.IsReserved("Helper"))
		assert.True(t, shape.IsReserved("string"))
		assert.False(t, shape.IsReserved("s"))

		shape, d = Inspect(inspectTarget(t, src, typeSpec("Service")), pos, KindStruct)
		require.Nil(t, d)
		require.Len(t, shape.Initializers, 1)
		locals = nil
		for _, p := range shape.Initializers[0].Params {
			locals = append(locals, p.Local)
		}
		assert.Equal(t, []string{"Service_", "p1", "len_"}, locals)
	})

	t.Run("Should describe interfaces, named types and aliases", func(t *testing.T) {
		shape, d := Inspect(inspectTarget(t, inspectSrc, typeSpec("Finder")), pos, allKinds...)
		require.Nil(t, d)
		assert.Equal(t, KindInterface, shape.Kind)
		assert.Equal(t, []string{"fmt.Stringer"}, shape.Conformances)
		assert.Equal(t, []string{"Find"}, shape.Members)

		shape, d = Inspect(inspectTarget(t, inspectSrc, typeSpec("Level")), pos, allKinds...)
		require.Nil(t, d)
		assert.Equal(t, KindNamed, shape.Kind)

		shape, d = Inspect(inspectTarget(t, inspectSrc, typeSpec("Alias")), pos, allKinds...)
		require.Nil(t, d)
		assert.Equal(t, KindAlias, shape.Kind)
	})

	t.Run("Should record type parameters", func(t *testing.T) {
		shape, d := Inspect(inspectTarget(t, inspectSrc, typeSpec("Box")), pos, allKinds...)
		require.Nil(t, d)
		assert.Equal(t, []string{"T"}, shape.TypeParams)
		require.Len(t, shape.Fields, 1)
		assert.Nil(t, shape.Fields[0].GoType)

		shape, d = Inspect(inspectTarget(t, inspectSrc, funcDecl("Get")), pos, allKinds...)
		require.Nil(t, d)
		assert.Equal(t, []string{"T"}, shape.TypeParams)
		assert.Equal(t, "Box", shape.Receiver.TypeName)
	})

	t.Run("Should reject unsupported kinds at the annotation position", func(t *testing.T) {
		shape, d := Inspect(inspectTarget(t, inspectSrc, typeSpec("Finder")), pos, KindStruct)
		assert.Nil(t, shape)
		require.NotNil(t, d)
		assert.Equal(t, UnsupportedDeclarationKind, d.Kind)
		assert.Equal(t, SeverityError, d.Severity)
		assert.Equal(t, pos, d.Pos)
		assert.Equal(t, "interface Finder is not supported; expecting struct", d.Message)

		_, d = Inspect(inspectTarget(t, inspectSrc, funcDecl("Handle")), pos, KindMethod, KindStruct)
		require.NotNil(t, d)
		assert.Equal(t, "func Handle is not supported; expecting method or struct", d.Message)
	})

	t.Run("Should reject declarations that are not types or funcs", func(t *testing.T) {
		tgt := inspectTarget(t, inspectSrc, func(f *ast.File) ast.Node { return f.Decls[0] })
		_, d := Inspect(tgt, pos, allKinds...)
		require.NotNil(t, d)
		assert.Equal(t, UnsupportedDeclarationKind, d.Kind)
	})
}

func TestDefaultImportName(t *testing.T) {
	testCases := map[string]string{
		"context":                         "context",
		"example.com/log/v2":              "log",
		"github.com/mattn/go-sqlite3":     "sqlite3",
		"gopkg.in/yaml.v3":                "yaml_v3",
		"github.com/jackc/pgx/v5/pgxpool": "pgxpool",
	}
	for path, want := range testCases {
		assert.Equal(t, want, defaultImportName(path), path)
	}
}

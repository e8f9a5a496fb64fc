package macros

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/jhump/dimacros/macro"
)

// TestContainer implements @TestContainer. It generates a
// SetupTestContainer method on a test fixture struct that registers every
// mock field with a container, under the key of the service it stands in
// for:
//
//	// @TestContainer
//	type fixture struct {
//		Repo *UserRepositoryMock // registered as example.com/app.UserRepository
//		Clock ClockMock `dimacros:"example.com/clock.Clock"`
//	}
//
// The key is taken from the field's dimacros struct tag or, without one, is
// the field type's key with any pointer and the mock suffix removed.
type TestContainer struct{}

var _ macro.Macro = TestContainer{}

const setupTestContainer = "SetupTestContainer"

func (TestContainer) Name() string { return "TestContainer" }

func (TestContainer) Doc() string {
	return "registers a test fixture's mock fields with a dimacros.Container"
}

func (TestContainer) Schema() macro.Schema {
	return macro.Schema{
		{Name: "mockSuffix", Kind: macro.OptString, Default: "Mock", Doc: "type-name suffix that marks mock fields"},
		scopeOption("container"),
	}
}

func (TestContainer) Supports() []macro.DeclKind {
	return []macro.DeclKind{macro.KindStruct}
}

func (TestContainer) Validate(args *macro.ParsedArguments, shape *macro.DeclarationShape) macro.Diagnostics {
	diags := macro.CheckNotGeneric(shape, args.Pos())
	diags = append(diags, macro.CheckConflicts(shape, args.Pos(), setupTestContainer)...)
	suffix := args.String("mockSuffix")
	if suffix == "" {
		return append(diags, macro.Errorf(macro.ValidationFailed, args.At("mockSuffix"), "option \"mockSuffix\" must not be empty"))
	}
	if len(mockFields(shape, suffix)) == 0 {
		diags = append(diags, macro.Warnf(macro.ValidationFailed, args.Pos(),
			"%s has no fields whose type name ends with %q; %s will register nothing", shape.Name, suffix, setupTestContainer))
	}
	return diags
}

func (TestContainer) Templates() []macro.Template {
	return []macro.Template{{
		Name:     "setup",
		Emission: macro.EmitMember,
		Build:    buildSetupTestContainer,
	}}
}

type mockField struct {
	name string
	key  string
}

func mockFields(shape *macro.DeclarationShape, suffix string) []mockField {
	var res []mockField
	for _, f := range shape.Fields {
		if f.GoType == nil || f.Name == "_" {
			continue
		}
		key := strings.TrimPrefix(f.Key, "*")
		base := key[strings.LastIndex(key, ".")+1:]
		if !strings.HasSuffix(base, suffix) || base == suffix {
			continue
		}
		if tag := reflect.StructTag(f.Tag).Get("dimacros"); tag != "" {
			key = tag
		} else {
			key = strings.TrimSuffix(key, suffix)
		}
		res = append(res, mockField{name: f.Name, key: key})
	}
	return res
}

func buildSetupTestContainer(args *macro.ParsedArguments, shape *macro.DeclarationShape) (macro.Piece, bool, error) {
	names := newShapeNamer(shape)
	c := names.fresh("c")
	recv := names.fresh(receiverName(shape.Name))
	m := &macro.Method{
		Doc:     fmt.Sprintf("%s registers the mocks of %s with %s.", setupTestContainer, shape.Name, c),
		Recv:    recv,
		Type:    shape.Name,
		Pointer: true,
		Name:    setupTestContainer,
		Signature: macro.Signature{
			Params: []macro.Var{{Name: c, Type: containerType}},
		},
	}
	for _, f := range mockFields(shape, args.String("mockSuffix")) {
		m.Body.Printlnf("%s.Register(%q, %s, func(%s) (any, error) {", c, f.key, scopeSymbol(args), resolverType)
		m.Body.Printlnf("return %s.%s, nil", recv, f.name)
		m.Body.Println("})")
	}
	return macro.Piece{
		Emission: macro.EmitMember,
		Contract: "adds method " + setupTestContainer,
		Elements: []macro.Element{m},
	}, true, nil
}

package macros

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhump/dimacros/internal/macrotest"
	"github.com/jhump/dimacros/macro"
)

const fixtureSrc = `package app

type UserRepositoryMock struct{}

type ClockMock struct{}

type Mock struct{}

type fixture struct {
	Repo  *UserRepositoryMock
	Clock ClockMock ` + "`dimacros:\"example.com/clock.Clock\"`" + `
	Name  string
	Base  *Mock
	_     ClockMock
}

type empty struct {
	Name string
}

type cache struct {
	Store *UserRepositoryMock
}
`

func TestTestContainer(t *testing.T) {
	t.Run("Should register mock fields under the mocked service key", func(t *testing.T) {
		res := macrotest.Expand(t, "TestContainer", fixtureSrc, "fixture", "@TestContainer")
		require.Equal(t, macro.StateDone, res.State)
		assert.Empty(t, res.Diagnostics)
		assert.Equal(t, []string{"fixture.SetupTestContainer"}, res.Fragment.DeclNames())

		out := macrotest.Squash(macrotest.Render(t, res))
		assert.Contains(t, out, `func (f *fixture) SetupTestContainer(c dimacros.Container)`)
		assert.Contains(t, out, `c.Register("example.com/app.UserRepository", dimacros.ScopeContainer,`)
		assert.Contains(t, out, `return f.Repo, nil`)
		assert.Contains(t, out, `c.Register("example.com/clock.Clock", dimacros.ScopeContainer,`)
		assert.Contains(t, out, `return f.Clock, nil`)
		assert.NotContains(t, out, `f.Name`)
		assert.NotContains(t, out, `f.Base`)
	})

	t.Run("Should use the given suffix and scope", func(t *testing.T) {
		res := macrotest.Expand(t, "TestContainer", fixtureSrc, "fixture",
			`@TestContainer(mockSuffix: "RepositoryMock", scope: .transient)`)
		out := macrotest.Squash(macrotest.Render(t, res))
		assert.Contains(t, out, `c.Register("example.com/app.User", dimacros.ScopeTransient,`)
		assert.NotContains(t, out, `f.Clock`)
	})

	t.Run("Should rename receivers that shadow the container", func(t *testing.T) {
		res := macrotest.Expand(t, "TestContainer", fixtureSrc, "cache", "@TestContainer")
		out := macrotest.Squash(macrotest.Render(t, res))
		assert.Contains(t, out, `func (c_ *cache) SetupTestContainer(c dimacros.Container)`)
		assert.Contains(t, out, `return c_.Store, nil`)
	})

	t.Run("Should quote keys from struct tags", func(t *testing.T) {
		src := "package app\n\ntype ClockMock struct{}\n\ntype fx struct {\n\tC ClockMock `dimacros:\"a\\\") + (\\\"b\"`\n}\n"
		res := macrotest.Expand(t, "TestContainer", src, "fx", "@TestContainer")
		out := macrotest.Squash(macrotest.Render(t, res))
		assert.Contains(t, out, `c.Register("a\") + (\"b", `)
	})

	t.Run("Should warn when nothing qualifies", func(t *testing.T) {
		res := macrotest.Expand(t, "TestContainer", fixtureSrc, "empty", "@TestContainer")
		require.Equal(t, macro.StateDone, res.State)
		require.Len(t, res.Diagnostics, 1)
		assert.Equal(t, macro.SeverityWarning, res.Diagnostics[0].Severity)
		assert.Contains(t, res.Diagnostics[0].Message, "empty has no fields whose type name ends with \"Mock\"")
	})

	t.Run("Should reject an empty suffix", func(t *testing.T) {
		res := macrotest.Expand(t, "TestContainer", fixtureSrc, "fixture", `@TestContainer(mockSuffix: "")`)
		assert.True(t, res.Failed())
		require.Len(t, res.Diagnostics, 1)
		assert.Equal(t, macro.ValidationFailed, res.Diagnostics[0].Kind)
	})
}

package macros

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhump/dimacros/internal/macrotest"
	"github.com/jhump/dimacros/macro"
)

const sessionSrc = `package app

import "example.com/store"

type Session struct{}

func NewSession(db *store.DB, tenant string) (*Session, error) { return nil, nil }

type Clock struct{}

func NewClock() Clock { return Clock{} }
`

func TestAutoFactory(t *testing.T) {
	t.Run("Should take basic params at runtime", func(t *testing.T) {
		res := macrotest.Expand(t, "AutoFactory", sessionSrc, "Session", "@AutoFactory")
		require.Equal(t, macro.StateDone, res.State)
		assert.Empty(t, res.Diagnostics)
		assert.Equal(t, []string{"SessionFactory", "sessionFactory", "NewSessionFactory", "sessionFactory.MakeSession"},
			res.Fragment.DeclNames())
		assert.Len(t, res.Fragment.Peers(), 1)
		assert.Empty(t, res.Fragment.Extensions())

		src := macrotest.Squash(macrotest.Render(t, res))
		assert.Contains(t, src, `type SessionFactory interface { MakeSession(tenant string) (*Session, error) }`)
		assert.Contains(t, src, `type sessionFactory struct { r dimacros.Resolver }`)
		assert.Contains(t, src, `func NewSessionFactory(r dimacros.Resolver) SessionFactory { return &sessionFactory{r: r} }`)
		assert.Contains(t, src, `func (f *sessionFactory) MakeSession(tenant string) (*Session, error)`)
		assert.Contains(t, src, `(f.r, "*example.com/store.DB")`)
		assert.Contains(t, src, `return nil, err`)
		assert.Contains(t, src, `return NewSession(dbDep, tenant)`)
	})

	t.Run("Should use explicit runtime params and factory name", func(t *testing.T) {
		res := macrotest.Expand(t, "AutoFactory", sessionSrc, "Session",
			`@AutoFactory(name: "SessionMaker", runtimeParams: ["tenant"])`)
		src := macrotest.Squash(macrotest.Render(t, res))
		assert.Contains(t, src, `type SessionMaker interface`)
		assert.Contains(t, src, `func NewSessionMaker(r dimacros.Resolver) SessionMaker`)
	})

	t.Run("Should also make a service factory without runtime params", func(t *testing.T) {
		res := macrotest.Expand(t, "AutoFactory", sessionSrc, "Clock", "@AutoFactory")
		require.Equal(t, macro.StateDone, res.State)
		assert.Equal(t, []string{
			"ClockFactory", "clockFactory", "NewClockFactory", "clockFactory.MakeClock",
			"_ ServiceFactory", "clockFactory.MakeService",
		}, res.Fragment.DeclNames())

		src := macrotest.Squash(macrotest.Render(t, res))
		assert.Contains(t, src, `ServiceFactory[Clock]((*clockFactory)(nil))`)
		assert.Contains(t, src, `func (f *clockFactory) MakeService() (Clock, error) { return f.MakeClock() }`)
		assert.Contains(t, src, `return NewClock(), nil`)
	})

	t.Run("Should fail validation", func(t *testing.T) {
		testCases := []struct {
			decl, anno, message string
		}{
			{"Session", `@AutoFactory(runtimeParams: ["tenant", "region"])`, `"region" is not a parameter of the initializer`},
			{"Session", `@AutoFactory(runtimeParams: [])`, "list it in runtimeParams"},
			{"Session", `@AutoFactory(name: "not valid")`, `"not valid" is not a valid Go identifier`},
			{"Session", `@AutoFactory(name: "Session")`, "is the name of the annotated type"},
		}
		for _, tc := range testCases {
			res := macrotest.Expand(t, "AutoFactory", sessionSrc, tc.decl, tc.anno)
			assert.True(t, res.Failed(), tc.anno)
			require.NotEmpty(t, res.Diagnostics, tc.anno)
			assert.Contains(t, res.Diagnostics[0].Message, tc.message, tc.anno)
			assert.True(t, res.Fragment.IsEmpty())
		}
	})
}

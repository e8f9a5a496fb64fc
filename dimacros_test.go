package dimacros

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapContainer is a minimal Container used to exercise the helpers.
type mapContainer struct {
	factories map[string]Factory
	stack     ResolutionStack
}

func newMapContainer() *mapContainer {
	return &mapContainer{factories: map[string]Factory{}}
}

func (c *mapContainer) Register(key string, _ Scope, factory Factory) {
	c.factories[key] = factory
}

func (c *mapContainer) Resolve(key string) (any, error) {
	f, ok := c.factories[key]
	if !ok {
		return nil, &DependencyNotFoundError{Key: key}
	}
	if err := c.stack.Enter(key); err != nil {
		return nil, err
	}
	defer c.stack.Exit()
	return f(c)
}

func TestResolve(t *testing.T) {
	t.Run("Should convert resolved service to requested type", func(t *testing.T) {
		c := newMapContainer()
		c.Register("greeting", ScopeTransient, func(Resolver) (any, error) { return "hello", nil })

		s, err := Resolve[string](c, "greeting")
		require.NoError(t, err)
		assert.Equal(t, "hello", s)
	})

	t.Run("Should report missing dependency", func(t *testing.T) {
		_, err := Resolve[string](newMapContainer(), "nope")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDependencyNotFound))
		assert.Equal(t, "dependency not found: nope", err.Error())
	})

	t.Run("Should report wrong service type", func(t *testing.T) {
		c := newMapContainer()
		c.Register("n", ScopeGraph, func(Resolver) (any, error) { return 42, nil })

		_, err := Resolve[string](c, "n")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidConfiguration))
		assert.Contains(t, err.Error(), `service "n" is a int, not string`)
	})

	t.Run("Should detect circular resolution", func(t *testing.T) {
		c := newMapContainer()
		c.Register("a", ScopeGraph, func(r Resolver) (any, error) { return r.Resolve("b") })
		c.Register("b", ScopeGraph, func(r Resolver) (any, error) { return r.Resolve("a") })

		_, err := c.Resolve("a")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrCircularDependency))
		assert.Equal(t, "circular dependency detected: a -> b -> a", err.Error())
		assert.Zero(t, c.stack.Depth())
	})
}

func TestScopeString(t *testing.T) {
	assert.Equal(t, "graph", ScopeGraph.String())
	assert.Equal(t, "transient", ScopeTransient.String())
	assert.Equal(t, "container", ScopeContainer.String())
	assert.Equal(t, "weak", ScopeWeak.String())
	assert.Equal(t, "?9?", Scope(9).String())
}

func TestIntercept(t *testing.T) {
	var calls []string
	RegisterInterceptor("test.record", InterceptorFuncs{
		BeforeFunc: func(inv *Invocation) error {
			calls = append(calls, "before:"+inv.Operation())
			return nil
		},
		AfterFunc: func(inv *Invocation, result any) {
			calls = append(calls, "after:"+result.(string))
		},
		OnErrorFunc: func(inv *Invocation, err error) {
			calls = append(calls, "error:"+err.Error())
		},
	})
	defer UnregisterInterceptor("test.record")

	hooks := Hooks{Before: []string{"test.record"}, After: []string{"test.record"}, OnError: []string{"test.record"}}
	inv := &Invocation{Type: "Svc", Method: "Fetch"}

	t.Run("Should run before and after hooks around a successful call", func(t *testing.T) {
		calls = nil
		res, err := Intercept(inv, hooks, func() (string, error) { return "ok", nil })
		require.NoError(t, err)
		assert.Equal(t, "ok", res)
		assert.Equal(t, []string{"before:Svc.Fetch", "after:ok"}, calls)
	})

	t.Run("Should propagate the call's error to onError hooks and caller", func(t *testing.T) {
		calls = nil
		boom := errors.New("boom")
		_, err := Intercept(inv, hooks, func() (string, error) { return "", boom })
		assert.Same(t, boom, err)
		assert.Equal(t, []string{"before:Svc.Fetch", "error:boom"}, calls)
	})

	t.Run("Should abort when a before hook fails", func(t *testing.T) {
		calls = nil
		RegisterInterceptor("test.deny", InterceptorFuncs{
			BeforeFunc: func(*Invocation) error { return errors.New("denied") },
		})
		defer UnregisterInterceptor("test.deny")

		ran := false
		_, err := Intercept(inv, Hooks{Before: []string{"test.deny"}, OnError: []string{"test.record"}}, func() (string, error) {
			ran = true
			return "", nil
		})
		require.EqualError(t, err, "denied")
		assert.False(t, ran)
		assert.Equal(t, []string{"error:denied"}, calls)
	})

	t.Run("Should fail for unknown interceptors", func(t *testing.T) {
		_, err := Intercept(inv, Hooks{Before: []string{"test.missing"}}, func() (int, error) { return 1, nil })
		assert.True(t, errors.Is(err, ErrDependencyNotFound))
	})

	t.Run("Should list registered interceptors", func(t *testing.T) {
		assert.Contains(t, RegisteredInterceptors(), "test.record")
	})
}

func TestTrack(t *testing.T) {
	m := NewMetrics()
	prev := SetPerformanceTracker(m)
	defer SetPerformanceTracker(prev)

	res, err := Track("Svc.Fetch", 0, func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, res)

	_, err = Track("Svc.Fetch", time.Nanosecond, func() (int, error) {
		time.Sleep(time.Millisecond)
		return 0, errors.New("failed")
	})
	require.EqualError(t, err, "failed")

	st, ok := m.Stats("Svc.Fetch")
	require.True(t, ok)
	assert.Equal(t, 2, st.Count)
	assert.Equal(t, 1, st.Errors)
	assert.Equal(t, 1, st.Slow)
	assert.GreaterOrEqual(t, st.Max, time.Millisecond)
	assert.Greater(t, st.Average(), time.Duration(0))
	assert.Equal(t, []string{"Svc.Fetch"}, m.Operations())

	m.Reset()
	assert.Empty(t, m.Operations())
}

func TestDebugMode(t *testing.T) {
	_, enabled := DebugModeEnabled("AppContainer")
	assert.False(t, enabled)

	EnableDebugMode("AppContainer", "verbose")
	level, enabled := DebugModeEnabled("AppContainer")
	assert.True(t, enabled)
	assert.Equal(t, "verbose", level)

	DisableDebugMode("AppContainer")
	_, enabled = DebugModeEnabled("AppContainer")
	assert.False(t, enabled)
}

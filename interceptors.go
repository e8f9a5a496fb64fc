package dimacros

import (
	"sort"
	"sync"
)

var (
	interceptorLock sync.RWMutex
	interceptors    = map[string]Interceptor{}
)

// Invocation describes one call of an intercepted method.
type Invocation struct {
	// Type is the name of the receiver type, or empty for functions.
	Type string
	// Method is the name of the intercepted method or function.
	Method string
	// Args holds the call's arguments, in order.
	Args []any
}

// Operation returns "Type.Method", or just the method name for functions.
func (inv *Invocation) Operation() string {
	if inv.Type == "" {
		return inv.Method
	}
	return inv.Type + "." + inv.Method
}

// Interceptor hooks into calls of methods annotated with @Interceptor. Each
// interceptor is registered under a name and referenced by that name in the
// annotation's before, after, and onError lists.
type Interceptor interface {
	// Before runs ahead of the call. Returning an error aborts the call; the
	// error is passed to the onError hooks and returned to the caller.
	Before(inv *Invocation) error
	// After runs once the call has returned without error.
	After(inv *Invocation, result any)
	// OnError runs when the call, or a Before hook, fails.
	OnError(inv *Invocation, err error)
}

// InterceptorFuncs adapts plain functions to the Interceptor interface. Nil
// functions are skipped.
type InterceptorFuncs struct {
	BeforeFunc  func(inv *Invocation) error
	AfterFunc   func(inv *Invocation, result any)
	OnErrorFunc func(inv *Invocation, err error)
}

// Before implements Interceptor.
func (f InterceptorFuncs) Before(inv *Invocation) error {
	if f.BeforeFunc == nil {
		return nil
	}
	return f.BeforeFunc(inv)
}

// After implements Interceptor.
func (f InterceptorFuncs) After(inv *Invocation, result any) {
	if f.AfterFunc != nil {
		f.AfterFunc(inv, result)
	}
}

// OnError implements Interceptor.
func (f InterceptorFuncs) OnError(inv *Invocation, err error) {
	if f.OnErrorFunc != nil {
		f.OnErrorFunc(inv, err)
	}
}

// RegisterInterceptor registers an interceptor under the given name,
// replacing any interceptor previously registered with that name.
func RegisterInterceptor(name string, ic Interceptor) {
	interceptorLock.Lock()
	defer interceptorLock.Unlock()
	interceptors[name] = ic
}

// UnregisterInterceptor removes the interceptor with the given name.
func UnregisterInterceptor(name string) {
	interceptorLock.Lock()
	defer interceptorLock.Unlock()
	delete(interceptors, name)
}

// LookupInterceptor returns the interceptor registered under name or a
// *DependencyNotFoundError.
func LookupInterceptor(name string) (Interceptor, error) {
	interceptorLock.RLock()
	defer interceptorLock.RUnlock()
	ic, ok := interceptors[name]
	if !ok {
		return nil, &DependencyNotFoundError{Key: "interceptor " + name}
	}
	return ic, nil
}

// RegisteredInterceptors returns the sorted names of all registered
// interceptors.
func RegisteredInterceptors() []string {
	interceptorLock.RLock()
	defer interceptorLock.RUnlock()
	names := make([]string, 0, len(interceptors))
	for n := range interceptors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Hooks names the interceptors that run around one intercepted call.
type Hooks struct {
	Before  []string
	After   []string
	OnError []string
}

// Intercept runs fn wrapped by the named hooks. Hooks are looked up when the
// call is made, so interceptors may be registered after the generated code
// is compiled. The result of fn, or its error, is returned unchanged.
func Intercept[T any](inv *Invocation, hooks Hooks, fn func() (T, error)) (T, error) {
	var zero T
	for _, name := range hooks.Before {
		ic, err := LookupInterceptor(name)
		if err != nil {
			return zero, err
		}
		if err := ic.Before(inv); err != nil {
			notifyError(inv, hooks.OnError, err)
			return zero, err
		}
	}
	res, err := fn()
	if err != nil {
		notifyError(inv, hooks.OnError, err)
		return res, err
	}
	for _, name := range hooks.After {
		ic, lookupErr := LookupInterceptor(name)
		if lookupErr != nil {
			return res, lookupErr
		}
		ic.After(inv, res)
	}
	return res, nil
}

func notifyError(inv *Invocation, names []string, err error) {
	for _, name := range names {
		// an unregistered error hook must not mask the original error
		if ic, lookupErr := LookupInterceptor(name); lookupErr == nil {
			ic.OnError(inv, err)
		}
	}
}

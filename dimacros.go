// Package dimacros is the runtime library used by code that the macrogo tool
// generates. Generated code registers services into, and resolves services
// from, a dependency-injection container through the interfaces defined here.
//
// The container itself is not provided by this package. Any implementation of
// Container can be used; generated code only ever calls Register and Resolve.
//
// Annotations are written in the doc comments of top-level declarations:
//
//    // UserService talks to the user store.
//    //
//    // @Injectable(scope: .container)
//    type UserService struct {
//        repo UserRepository
//    }
//
//    func NewUserService(repo UserRepository) *UserService {
//        return &UserService{repo: repo}
//    }
//
// Running macrogo on the package produces a companion file that contains a
// Register method, so the service can be added to a container with:
//
//    (*UserService)(nil).Register(container)
//
// The remaining types in this package are the capability interfaces that
// generated code conforms to (Injectable, ServiceFactory, DebuggableContainer)
// or calls into (Interceptor, PerformanceTracker).
package dimacros

import (
	"fmt"
	"reflect"
)

// Version is the version of the runtime library. Generated code is
// compatible with any runtime that has the same major version.
const Version = "1.0.0"

// Scope controls how long a resolved service instance is retained by a
// container. The names mirror the object scopes of common container
// implementations.
type Scope int

const (
	// ScopeGraph shares one instance for the duration of a single top-level
	// resolution. It is the default.
	ScopeGraph Scope = iota
	// ScopeTransient creates a new instance on every resolution.
	ScopeTransient
	// ScopeContainer retains one instance for the life of the container.
	ScopeContainer
	// ScopeWeak retains an instance only while something else references it.
	ScopeWeak
)

func (s Scope) String() string {
	switch s {
	case ScopeGraph:
		return "graph"
	case ScopeTransient:
		return "transient"
	case ScopeContainer:
		return "container"
	case ScopeWeak:
		return "weak"
	default:
		return fmt.Sprintf("?%d?", int(s))
	}
}

// Factory produces a service instance, resolving its own dependencies from
// the given resolver.
type Factory func(r Resolver) (any, error)

// Resolver resolves services by key. Generated code uses the Go type
// expression of a dependency (for example "*UserService" or "store.Repo") as
// its key, unless the service was registered under an explicit name.
type Resolver interface {
	Resolve(key string) (any, error)
}

// Container is a dependency-injection container. Implementations are
// expected to return a *DependencyNotFoundError from Resolve when nothing is
// registered for a key.
type Container interface {
	Resolver
	Register(key string, scope Scope, factory Factory)
}

// Resolve resolves the service registered under key and converts it to T.
// It is the helper that generated factories use to fetch each dependency.
func Resolve[T any](r Resolver, key string) (T, error) {
	var zero T
	v, err := r.Resolve(key)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, &InvalidConfigurationError{
			Message: fmt.Sprintf("service %q is a %T, not %v", key, v, reflect.TypeOf((*T)(nil)).Elem()),
		}
	}
	return t, nil
}

// Injectable is implemented by types annotated with @Injectable. The
// generated Register method adds a factory for the type to the container.
// It may be called on a nil receiver.
type Injectable interface {
	Register(c Container)
}

// ServiceFactory is implemented by generated factories (see @AutoFactory)
// whose services need no runtime arguments.
type ServiceFactory[T any] interface {
	MakeService() (T, error)
}

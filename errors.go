package dimacros

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. The concrete error types in this package match these with
// errors.Is.
var (
	ErrDependencyNotFound   = errors.New("dependency not found")
	ErrCircularDependency   = errors.New("circular dependency detected")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMacroExpansionFailed = errors.New("macro expansion failed")
)

// DependencyNotFoundError indicates that nothing is registered under Key.
type DependencyNotFoundError struct {
	Key string
}

func (e *DependencyNotFoundError) Error() string {
	return "dependency not found: " + e.Key
}

// Is reports whether target is ErrDependencyNotFound.
func (e *DependencyNotFoundError) Is(target error) bool {
	return target == ErrDependencyNotFound
}

// CircularDependencyError indicates that resolving a service requires the
// service itself. Chain lists the keys in resolution order, ending with the
// repeated key.
type CircularDependencyError struct {
	Chain []string
}

func (e *CircularDependencyError) Error() string {
	return "circular dependency detected: " + strings.Join(e.Chain, " -> ")
}

// Is reports whether target is ErrCircularDependency.
func (e *CircularDependencyError) Is(target error) bool {
	return target == ErrCircularDependency
}

// InvalidConfigurationError indicates a service or hook that is registered
// but unusable, such as a service of the wrong type.
type InvalidConfigurationError struct {
	Message string
}

func (e *InvalidConfigurationError) Error() string {
	return "invalid configuration: " + e.Message
}

// Is reports whether target is ErrInvalidConfiguration.
func (e *InvalidConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

// MacroExpansionError reports that macro expansion produced errors. The
// diagnostics themselves are reported as they are found; this only counts
// them.
type MacroExpansionError struct {
	Errors int
	Files  int
}

func (e *MacroExpansionError) Error() string {
	return fmt.Sprintf("macro expansion failed: %d error(s) in %d file(s)", e.Errors, e.Files)
}

// Is reports whether target is ErrMacroExpansionFailed.
func (e *MacroExpansionError) Is(target error) bool {
	return target == ErrMacroExpansionFailed
}

// ResolutionStack tracks the keys currently being resolved so that container
// implementations can report cycles instead of recursing forever. The zero
// value is ready to use. It is not safe for concurrent use; containers keep
// one per top-level resolution.
type ResolutionStack struct {
	keys []string
}

// Enter records that key is being resolved. It returns a
// *CircularDependencyError if key is already being resolved.
func (s *ResolutionStack) Enter(key string) error {
	for i, k := range s.keys {
		if k == key {
			chain := make([]string, 0, len(s.keys)-i+1)
			chain = append(chain, s.keys[i:]...)
			chain = append(chain, key)
			return &CircularDependencyError{Chain: chain}
		}
	}
	s.keys = append(s.keys, key)
	return nil
}

// Exit pops the most recently entered key.
func (s *ResolutionStack) Exit() {
	if len(s.keys) > 0 {
		s.keys = s.keys[:len(s.keys)-1]
	}
}

// Depth returns the number of keys currently being resolved.
func (s *ResolutionStack) Depth() int {
	return len(s.keys)
}

package macro

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registryLock sync.RWMutex
	registered   = map[string]Macro{}
)

// reservedPackages are the names of packages that generated code refers to,
// in addition to the imports of the annotated file. Guarded by registryLock.
var reservedPackages = map[string]bool{}

// Register makes a macro available by name. It panics if a macro with the
// same name is already registered.
func Register(m Macro) {
	registryLock.Lock()
	defer registryLock.Unlock()
	if _, ok := registered[m.Name()]; ok {
		panic(fmt.Sprintf("macro @%s registered twice", m.Name()))
	}
	registered[m.Name()] = m
}

// Lookup returns the macro registered under name.
func Lookup(name string) (Macro, bool) {
	registryLock.RLock()
	defer registryLock.RUnlock()
	m, ok := registered[name]
	return m, ok
}

// All returns all registered macros, sorted by name.
func All() []Macro {
	registryLock.RLock()
	defer registryLock.RUnlock()
	res := make([]Macro, 0, len(registered))
	for _, m := range registered {
		res = append(res, m)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Name() < res[j].Name()
	})
	return res
}

// ReserveNames records the names of packages that generated code refers to.
// Inspect renames params and receivers that would shadow them.
func ReserveNames(names ...string) {
	registryLock.Lock()
	defer registryLock.Unlock()
	for _, n := range names {
		reservedPackages[n] = true
	}
}

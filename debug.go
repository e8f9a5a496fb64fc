package dimacros

import (
	"sync"

	"github.com/charmbracelet/log"
)

// ContainerHealth is the result of a container health check.
type ContainerHealth struct {
	IsHealthy bool
	Issues    []string
}

// DebuggableContainer is implemented by container types annotated with
// @DebugContainer.
type DebuggableContainer interface {
	PerformHealthCheck() ContainerHealth
}

var (
	debugLock  sync.RWMutex
	debugModes = map[string]string{}
)

// EnableDebugMode turns on debug mode for the named container type at the
// given log level ("verbose", "info", "warning" or "error").
func EnableDebugMode(container, level string) {
	debugLock.Lock()
	debugModes[container] = level
	debugLock.Unlock()
	log.Info("debug mode enabled", "container", container, "level", level)
}

// DisableDebugMode turns off debug mode for the named container type.
func DisableDebugMode(container string) {
	debugLock.Lock()
	defer debugLock.Unlock()
	delete(debugModes, container)
}

// DebugModeEnabled reports whether debug mode is on for the named container
// type and, if so, at which level.
func DebugModeEnabled(container string) (level string, enabled bool) {
	debugLock.RLock()
	defer debugLock.RUnlock()
	level, enabled = debugModes[container]
	return level, enabled
}

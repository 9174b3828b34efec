package memrep

import (
	"fmt"
	"sync"

	"github.com/simon-rock/memrep/arena"
)

// Factory constructs MemTableRep instances. One factory serves the lifetime
// of an engine; a fresh representation is created per write-buffer epoch.
type Factory interface {
	// Create builds a representation over the given arena. prefix may be nil
	// for factories that do not bucket by prefix. Creation fails only on
	// arena exhaustion.
	Create(cmp KeyComparator, a *arena.Arena, prefix PrefixExtractor) (MemTableRep, error)

	// Name identifies the factory for configuration and diagnostics.
	Name() string
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func() Factory{}
)

// Register makes a factory constructor selectable by name through NewFactory.
// Representation packages call this from an init function; the constructor
// yields a factory with default parameters.
func Register(name string, constructor func() Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = constructor
}

// NewFactory returns a default-parameter factory registered under name. It is
// the hook for configuration-driven selection of a representation.
func NewFactory(name string) (Factory, error) {
	registryMu.RLock()
	constructor, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("memrep: unknown factory %q", name)
	}
	return constructor(), nil
}

// Factories lists the registered factory names.
func Factories() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

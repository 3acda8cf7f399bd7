package executor

import (
	"fmt"
	"sort"
)

// Registry holds registered executor kinds and their factories.
var Registry = map[Kind]Factory{}

// Register registers an executor kind with its factory. This allows
// external code to register new executor kinds (e.g. browser, code).
func Register(kind Kind, factory Factory) {
	Registry[kind] = factory
}

// init registers the built-in executor kinds.
func init() {
	Register(KindSearch, func(cfg Config) (Executor, error) {
		return NewSearchExecutor(cfg)
	})
	Register(KindEcho, func(cfg Config) (Executor, error) {
		return NewEchoExecutor(cfg), nil
	})
}

// IsRegistered returns true if the executor kind is registered.
func IsRegistered(kind string) bool {
	_, ok := Registry[Kind(kind)]
	return ok
}

// RegisteredKinds returns a sorted list of all registered executor kinds.
func RegisteredKinds() []string {
	kinds := make([]string, 0, len(Registry))
	for k := range Registry {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	return kinds
}

// New creates an executor of the given kind using its registered factory.
func New(kind Kind, cfg Config) (Executor, error) {
	factory, ok := Registry[kind]
	if !ok {
		return nil, fmt.Errorf("unknown executor kind: %s (registered: %v)", kind, RegisteredKinds())
	}
	return factory(cfg)
}

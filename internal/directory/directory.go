// Package directory defines the resource directory interface for carta.
package directory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/yairfalse/carta/internal/config"
	"github.com/yairfalse/carta/pkg/metadata"
	"github.com/yairfalse/carta/pkg/resource"
)

// Directory is a cloud resource directory.
// Every call may be slow, paginated internally, or fail. The empty scope
// means the provider's default scope.
type Directory interface {
	// Name returns the directory identifier (e.g. "azure", "snapshot").
	Name() string

	// ListByTag returns resources whose tags contain tag.
	ListByTag(ctx context.Context, scope string, tag resource.Tag) ([]resource.Resource, error)

	// ListGroupsByTag returns resource groups whose tags contain tag.
	ListGroupsByTag(ctx context.Context, scope string, tag resource.Tag) ([]resource.Group, error)

	// ListByGroup returns every resource in the group, whatever its tags.
	ListByGroup(ctx context.Context, scope, group string) ([]resource.Resource, error)

	// SchemaVersions returns supported schema versions per kind for a namespace.
	SchemaVersions(ctx context.Context, scope, namespace string) (map[string][]string, error)

	// GetByID fetches the full metadata record of a resource at a schema version.
	GetByID(ctx context.Context, id, version string) (metadata.Node, error)
}

// Factory builds a directory from configuration.
type Factory func(ctx context.Context, cfg *config.Config) (Directory, error)

var (
	registry = make(map[string]Factory)
	mu       sync.RWMutex
)

// Register adds a directory factory under name.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = f
}

// Open builds the directory named by the configuration.
func Open(ctx context.Context, cfg *config.Config) (Directory, error) {
	mu.RLock()
	f, ok := registry[cfg.Directory.Provider]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("directory %q not registered (have %v)", cfg.Directory.Provider, Names())
	}
	return f(ctx, cfg)
}

// Names returns registered directory names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear removes all factories. Used for testing.
func Clear() {
	mu.Lock()
	defer mu.Unlock()
	registry = make(map[string]Factory)
}

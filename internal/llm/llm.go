// Package llm defines the text generation interface and backend registry.
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/yairfalse/carta/internal/config"
)

// Request is one generation call.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Generator produces text. Implementations do not retry.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Observe wraps g so that fn sees the outcome of every call.
func Observe(g Generator, fn func(req Request, err error)) Generator {
	return GeneratorFunc(func(ctx context.Context, req Request) (string, error) {
		out, err := g.Generate(ctx, req)
		fn(req, err)
		return out, err
	})
}

// Factory builds a generator from configuration.
type Factory func(cfg config.LLMConfig) (Generator, error)

var (
	registry = make(map[string]Factory)
	mu       sync.RWMutex
)

// Register adds a backend factory. One factory may serve several names.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = f
}

// Open builds the backend named by cfg.Provider.
func Open(cfg config.LLMConfig) (Generator, error) {
	mu.RLock()
	f, ok := registry[cfg.Provider]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("llm provider %q not registered (have %v)", cfg.Provider, Names())
	}
	return f(cfg)
}

// Names returns registered backend names, sorted.
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

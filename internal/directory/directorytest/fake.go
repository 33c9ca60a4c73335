// Package directorytest provides an in-memory directory for tests.
package directorytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/yairfalse/carta/pkg/metadata"
	"github.com/yairfalse/carta/pkg/resource"
)

// Fake is a programmable directory.Directory. Keys of the maps are scopes
// unless noted. Every call is counted.
type Fake struct {
	Tagged  map[string][]resource.Resource // scope -> resources returned by ListByTag
	Groups  map[string][]resource.Group    // scope -> groups returned by ListGroupsByTag
	Members map[string][]resource.Resource // group name -> members
	Schemas map[string]map[string][]string // namespace -> kind -> versions
	Records map[string]metadata.Node       // id -> record

	// Errors keyed by method name ("ListByTag", "SchemaVersions", ...).
	Errors map[string]error
	// FetchErrors keyed by resource id.
	FetchErrors map[string]error

	mu      sync.Mutex
	calls   map[string]int
	fetched []string
}

// Name returns "fake".
func (f *Fake) Name() string { return "fake" }

func (f *Fake) record(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[method]++
	return f.Errors[method]
}

// Calls returns how often method was invoked.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// TotalCalls returns the number of calls across all methods.
func (f *Fake) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// Fetched returns the "id@version" pairs passed to GetByID, in call order.
func (f *Fake) Fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

func (f *Fake) ListByTag(_ context.Context, scope string, tag resource.Tag) ([]resource.Resource, error) {
	if err := f.record("ListByTag"); err != nil {
		return nil, err
	}
	var out []resource.Resource
	for _, r := range f.Tagged[scope] {
		if r.HasTag(tag) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *Fake) ListGroupsByTag(_ context.Context, scope string, tag resource.Tag) ([]resource.Group, error) {
	if err := f.record("ListGroupsByTag"); err != nil {
		return nil, err
	}
	var out []resource.Group
	for _, g := range f.Groups[scope] {
		if g.HasTag(tag) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *Fake) ListByGroup(_ context.Context, _ string, group string) ([]resource.Resource, error) {
	if err := f.record("ListByGroup"); err != nil {
		return nil, err
	}
	return f.Members[group], nil
}

func (f *Fake) SchemaVersions(_ context.Context, _ string, namespace string) (map[string][]string, error) {
	if err := f.record("SchemaVersions"); err != nil {
		return nil, err
	}
	return f.Schemas[namespace], nil
}

func (f *Fake) GetByID(_ context.Context, id, version string) (metadata.Node, error) {
	if err := f.record("GetByID"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.fetched = append(f.fetched, id+"@"+version)
	f.mu.Unlock()

	if err := f.FetchErrors[id]; err != nil {
		return nil, err
	}
	rec, ok := f.Records[id]
	if !ok {
		return nil, fmt.Errorf("resource %s not found", id)
	}
	return rec, nil
}

// Package snapshot implements a resource directory backed by a YAML file.
// It serves recorded directory contents for offline runs and tests.
package snapshot

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yairfalse/carta/internal/config"
	"github.com/yairfalse/carta/internal/directory"
	"github.com/yairfalse/carta/pkg/metadata"
	"github.com/yairfalse/carta/pkg/resource"
)

func init() {
	directory.Register("snapshot", func(_ context.Context, cfg *config.Config) (directory.Directory, error) {
		return Load(cfg.Directory.Snapshot)
	})
}

// File is the on-disk layout.
//
//	scopes:
//	  "":                 # default scope
//	    resources: [...]
//	    groups:
//	      - name: rg-web
//	        tags: {Workload: Production}
//	        resources: [...]
//	schemas:
//	  Microsoft.Web: {sites: ["2022-03-01", "2023-01-01"]}
//	records:
//	  "<id>": {...}
type File struct {
	Scopes  map[string]Scope               `yaml:"scopes"`
	Schemas map[string]map[string][]string `yaml:"schemas"`
	Records map[string]any                 `yaml:"records"`
}

// Scope holds one account scope's resources and groups.
type Scope struct {
	Resources []resource.Resource `yaml:"resources"`
	Groups    []GroupEntry        `yaml:"groups"`
}

// GroupEntry is a resource group and its members.
type GroupEntry struct {
	resource.Group `yaml:",inline"`
	Resources      []resource.Resource `yaml:"resources"`
}

// Directory serves a loaded snapshot.
type Directory struct {
	file File
}

// Load reads a snapshot file.
func Load(path string) (*Directory, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Parse(data)
}

// Parse decodes a snapshot document.
func Parse(data []byte) (*Directory, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return New(f), nil
}

// New wraps an in-memory snapshot.
func New(f File) *Directory {
	return &Directory{file: f}
}

// Name returns the directory identifier.
func (d *Directory) Name() string {
	return "snapshot"
}

func (d *Directory) scope(name string) (Scope, error) {
	s, ok := d.file.Scopes[name]
	if !ok {
		return Scope{}, fmt.Errorf("scope %q not in snapshot", name)
	}
	return s, nil
}

// ListByTag returns resources in scope carrying tag, including group members.
func (d *Directory) ListByTag(_ context.Context, scope string, tag resource.Tag) ([]resource.Resource, error) {
	s, err := d.scope(scope)
	if err != nil {
		return nil, err
	}

	var out []resource.Resource
	for _, r := range s.Resources {
		if r.HasTag(tag) {
			out = append(out, withScope(r, scope))
		}
	}
	for _, g := range s.Groups {
		for _, r := range g.Resources {
			if r.HasTag(tag) {
				out = append(out, withScope(r, scope))
			}
		}
	}
	return out, nil
}

// ListGroupsByTag returns groups in scope carrying tag.
func (d *Directory) ListGroupsByTag(_ context.Context, scope string, tag resource.Tag) ([]resource.Group, error) {
	s, err := d.scope(scope)
	if err != nil {
		return nil, err
	}

	var out []resource.Group
	for _, g := range s.Groups {
		if g.HasTag(tag) {
			grp := g.Group
			grp.Scope = scope
			out = append(out, grp)
		}
	}
	return out, nil
}

// ListByGroup returns the members of a group.
func (d *Directory) ListByGroup(_ context.Context, scope, group string) ([]resource.Resource, error) {
	s, err := d.scope(scope)
	if err != nil {
		return nil, err
	}

	for _, g := range s.Groups {
		if g.Name != group {
			continue
		}
		out := make([]resource.Resource, 0, len(g.Resources))
		for _, r := range g.Resources {
			out = append(out, withScope(r, scope))
		}
		return out, nil
	}
	return nil, fmt.Errorf("resource group %q not found in scope %q", group, scope)
}

// SchemaVersions returns the recorded versions for a namespace.
// An unknown namespace yields an empty map, as a provider with no types would.
func (d *Directory) SchemaVersions(_ context.Context, _ string, namespace string) (map[string][]string, error) {
	kinds := d.file.Schemas[namespace]
	out := make(map[string][]string, len(kinds))
	for kind, versions := range kinds {
		out[kind] = append([]string(nil), versions...)
	}
	return out, nil
}

// GetByID returns the recorded metadata for id. The version is not checked.
func (d *Directory) GetByID(_ context.Context, id, _ string) (metadata.Node, error) {
	raw, ok := d.file.Records[id]
	if !ok {
		return nil, fmt.Errorf("no record for %q", id)
	}
	n, err := metadata.FromValue(raw)
	if err != nil {
		return nil, fmt.Errorf("convert record %q: %w", id, err)
	}
	return n, nil
}

func withScope(r resource.Resource, scope string) resource.Resource {
	r.Scope = scope
	return r
}

// Package collector discovers workload resources across discovery paths and
// account scopes, keeping one snapshot per resource id.
package collector

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/carta/internal/config"
	"github.com/yairfalse/carta/internal/directory"
	"github.com/yairfalse/carta/internal/failure"
	"github.com/yairfalse/carta/internal/filter"
	"github.com/yairfalse/carta/pkg/resource"
)

// Options configures a collection.
type Options struct {
	Tag    resource.Tag
	Paths  []string // config.PathDirect, config.PathGroup; both when empty
	Scopes []string // empty means the directory's default scope

	// Filter drops candidates after dedup. Optional.
	Filter *filter.Filter

	// OnAdmit is called for each newly admitted resource. Optional.
	OnAdmit func(r resource.Resource, path string)
}

// Collector gathers tagged resources from a directory.
type Collector struct {
	dir  directory.Directory
	opts Options
}

// New creates a collector.
func New(dir directory.Directory, opts Options) *Collector {
	if len(opts.Paths) == 0 {
		opts.Paths = []string{config.PathDirect, config.PathGroup}
	}
	return &Collector{dir: dir, opts: opts}
}

// Collect walks every scope in order and, per scope, every path in order.
// The first snapshot seen for an id wins; later ones are dropped.
// Any directory failure aborts with a Discovery failure and no results.
func (c *Collector) Collect(ctx context.Context) ([]resource.Resource, error) {
	scopes := c.opts.Scopes
	if len(scopes) == 0 {
		scopes = []string{""}
	}

	seen := make(map[string]struct{})
	var out []resource.Resource

	for _, scope := range scopes {
		for _, path := range c.opts.Paths {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			found, err := c.discover(ctx, scope, path)
			if err != nil {
				return nil, failure.New(failure.Discovery,
					fmt.Sprintf("%s path in scope %q", path, scope), err)
			}

			for _, r := range found {
				if _, dup := seen[r.ID]; dup {
					continue
				}
				seen[r.ID] = struct{}{}
				if c.opts.Filter != nil && !c.opts.Filter.Keep(r) {
					log.Debug().Str("name", r.Name).Str("type", r.Type).Msg("Filtered resource")
					continue
				}
				if r.Scope == "" {
					r.Scope = scope
				}
				out = append(out, r)

				log.Info().
					Str("name", r.Name).
					Str("type", r.Type).
					Str("path", path).
					Str("scope", scope).
					Msg("Found resource")
				if c.opts.OnAdmit != nil {
					c.opts.OnAdmit(r, path)
				}
			}
		}
	}

	log.Info().Int("count", len(out)).Int("scopes", len(scopes)).Msg("Discovery complete")
	return out, nil
}

func (c *Collector) discover(ctx context.Context, scope, path string) ([]resource.Resource, error) {
	switch path {
	case config.PathDirect:
		return c.dir.ListByTag(ctx, scope, c.opts.Tag)
	case config.PathGroup:
		return c.viaGroups(ctx, scope)
	default:
		return nil, fmt.Errorf("unknown discovery path %q", path)
	}
}

// viaGroups lists tagged groups and then every member of each, whatever the
// member's own tags.
func (c *Collector) viaGroups(ctx context.Context, scope string) ([]resource.Resource, error) {
	groups, err := c.dir.ListGroupsByTag(ctx, scope, c.opts.Tag)
	if err != nil {
		return nil, err
	}

	var out []resource.Resource
	for _, g := range groups {
		members, err := c.dir.ListByGroup(ctx, scope, g.Name)
		if err != nil {
			return nil, fmt.Errorf("list group %s: %w", g.Name, err)
		}
		log.Debug().Str("group", g.Name).Int("members", len(members)).Msg("Expanded resource group")
		out = append(out, members...)
	}
	return out, nil
}

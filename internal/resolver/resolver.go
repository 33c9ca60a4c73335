// Package resolver picks the newest schema version for each resource and
// fetches its metadata record.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/yairfalse/carta/internal/directory"
	"github.com/yairfalse/carta/internal/failure"
	"github.com/yairfalse/carta/pkg/metadata"
	"github.com/yairfalse/carta/pkg/resource"
)

// ErrNoVersion is returned when a resource kind has no schema versions.
var ErrNoVersion = errors.New("no schema version available")

// Resolution is the outcome for one resource. Record is nil when Gap is set.
type Resolution struct {
	Resource resource.Resource
	Record   metadata.Node
	Version  string
	Gap      error
}

// Resolved reports whether a record was fetched.
func (r Resolution) Resolved() bool {
	return r.Gap == nil && r.Record != nil
}

// LatestVersion returns the first version under descending string order.
// Versions are compared as plain strings, so "2023-05-01-preview" sorts
// after "2023-05-01".
func LatestVersion(versions []string) (string, bool) {
	if len(versions) == 0 {
		return "", false
	}
	sorted := append([]string(nil), versions...)
	sort.Sort(sort.Reverse(sort.StringSlice(sorted)))
	return sorted[0], true
}

// Resolver fetches metadata records from a directory.
type Resolver struct {
	dir         directory.Directory
	concurrency int

	// OnGap is called for each gap. Optional.
	OnGap func(r resource.Resource, err error)
}

// New creates a resolver. concurrency below 1 means sequential.
func New(dir directory.Directory, concurrency int) *Resolver {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Resolver{dir: dir, concurrency: concurrency}
}

// Resolve resolves one resource. Failures become a gap on the result; only
// context cancellation is returned as an error.
func (rv *Resolver) Resolve(ctx context.Context, r resource.Resource) (Resolution, error) {
	res := Resolution{Resource: r}

	version, err := rv.version(ctx, r)
	if err == nil {
		res.Version = version
		res.Record, err = rv.dir.GetByID(ctx, r.ID, version)
		if err != nil {
			err = fmt.Errorf("fetch %s@%s: %w", r.ID, version, err)
		}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		res.Record = nil
		res.Gap = failure.New(failure.ResolutionGap, r.Name, err)
		log.Warn().Err(err).Str("resource", r.Name).Str("id", r.ID).Msg("Metadata unavailable")
		if rv.OnGap != nil {
			rv.OnGap(r, res.Gap)
		}
		return res, nil
	}

	log.Debug().Str("resource", r.Name).Str("version", version).Msg("Resolved metadata")
	return res, nil
}

// version queries the kind's schema versions and picks the latest.
// Kinds match case-insensitively.
func (rv *Resolver) version(ctx context.Context, r resource.Resource) (string, error) {
	namespace, kind, ok := r.SplitType()
	if !ok {
		return "", fmt.Errorf("type %q has no namespace: %w", r.Type, ErrNoVersion)
	}

	kinds, err := rv.dir.SchemaVersions(ctx, r.Scope, namespace)
	if err != nil {
		return "", fmt.Errorf("query versions for %s: %w", namespace, err)
	}

	versions, found := kinds[kind]
	if !found {
		for k, v := range kinds {
			if strings.EqualFold(k, kind) {
				versions = v
				break
			}
		}
	}

	latest, ok := LatestVersion(versions)
	if !ok {
		return "", fmt.Errorf("%s: %w", r.Type, ErrNoVersion)
	}
	return latest, nil
}

// ResolveAll resolves every resource with bounded concurrency. The result is
// index-aligned with resources.
func (rv *Resolver) ResolveAll(ctx context.Context, resources []resource.Resource) ([]Resolution, error) {
	out := make([]Resolution, len(resources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rv.concurrency)
	for i, r := range resources {
		g.Go(func() error {
			res, err := rv.Resolve(gctx, r)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolve metadata: %w", err)
	}
	return out, nil
}

// Records returns the record of each resolution, nil for gaps.
func Records(resolutions []Resolution) []metadata.Node {
	out := make([]metadata.Node, len(resolutions))
	for i, r := range resolutions {
		out[i] = r.Record
	}
	return out
}

// Gaps counts unresolved entries.
func Gaps(resolutions []Resolution) int {
	n := 0
	for _, r := range resolutions {
		if !r.Resolved() {
			n++
		}
	}
	return n
}

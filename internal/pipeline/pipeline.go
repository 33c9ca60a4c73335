// Package pipeline runs one documentation pass: discover, resolve, export,
// narrate, refine and assemble.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yairfalse/carta/internal/collector"
	"github.com/yairfalse/carta/internal/config"
	"github.com/yairfalse/carta/internal/directory"
	"github.com/yairfalse/carta/internal/export"
	"github.com/yairfalse/carta/internal/failure"
	"github.com/yairfalse/carta/internal/filter"
	"github.com/yairfalse/carta/internal/llm"
	"github.com/yairfalse/carta/internal/narrative"
	"github.com/yairfalse/carta/internal/refine"
	"github.com/yairfalse/carta/internal/report"
	"github.com/yairfalse/carta/internal/resolver"
	"github.com/yairfalse/carta/internal/telemetry"
	"github.com/yairfalse/carta/pkg/resource"
)

// Deps are the collaborators of a run.
type Deps struct {
	Directory directory.Directory
	Generator llm.Generator

	// Optional.
	Publisher report.Publisher
	Telemetry *telemetry.Provider
}

// Result summarizes a run.
type Result struct {
	RunID        string
	Skipped      bool
	Existing     []string
	Resources    int
	Gaps         int
	Documented   int
	TablePath    string
	DocumentPath string
}

// Run holds the state of one run. It is not reused.
type Run struct {
	ID  string
	cfg *config.Config
	dep Deps

	collector *collector.Collector
	resolver  *resolver.Resolver
	author    *narrative.Author
	loop      *refine.Loop

	Resources   []resource.Resource
	Resolutions []resolver.Resolution
	Table       *export.Table
	Overview    string
}

// New prepares a run.
func New(cfg *config.Config, deps Deps) *Run {
	r := &Run{
		ID:  uuid.NewString(),
		cfg: cfg,
		dep: deps,
	}

	gen := deps.Generator
	if tel := deps.Telemetry; tel != nil {
		gen = llm.Observe(gen, func(_ llm.Request, err error) {
			tel.RecordGeneration(context.Background(), err)
		})
	}

	r.collector = collector.New(deps.Directory, r.collectorOptions())
	r.resolver = resolver.New(deps.Directory, cfg.Resolver.Concurrency)
	if tel := deps.Telemetry; tel != nil {
		r.resolver.OnGap = func(res resource.Resource, _ error) {
			tel.RecordGap(context.Background(), res.Type)
		}
	}
	r.author = &narrative.Author{
		Gen:         gen,
		Temperature: cfg.LLM.SamplingTemperature(),
		MaxTokens:   cfg.LLM.MaxTokens,
	}
	r.loop = &refine.Loop{
		Gen:         gen,
		Rounds:      cfg.Refine.RoundCount(),
		Temperature: cfg.LLM.SamplingTemperature(),
		MaxTokens:   cfg.LLM.MaxTokens,
	}
	return r
}

func (r *Run) collectorOptions() collector.Options {
	opts := collector.Options{
		Tag:    resource.Tag{Key: r.cfg.Workload.TagKey, Value: r.cfg.Workload.TagValue},
		Paths:  r.cfg.Workload.Paths,
		Scopes: r.cfg.Azure.Subscriptions,
	}
	w := r.cfg.Workload
	if f := filter.New(w.ExcludeTypes, w.RequireTags, w.ExcludeTags); !f.IsEmpty() {
		opts.Filter = f
	}
	if tel := r.dep.Telemetry; tel != nil {
		opts.OnAdmit = func(res resource.Resource, path string) {
			tel.RecordDiscovered(context.Background(), path, res.Scope)
		}
	}
	return opts
}

// Discover runs only the collector.
func Discover(ctx context.Context, cfg *config.Config, dir directory.Directory) ([]resource.Resource, error) {
	r := &Run{cfg: cfg, dep: Deps{Directory: dir}}
	return collector.New(dir, r.collectorOptions()).Collect(ctx)
}

// Execute performs the run. If any artifact already exists nothing is done
// and the result is marked Skipped.
func (r *Run) Execute(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{
		RunID:        r.ID,
		TablePath:    r.cfg.Output.TablePath(),
		DocumentPath: r.cfg.Output.DocumentPath(),
	}

	existing, err := report.Existing(res.TablePath, res.DocumentPath)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		log.Warn().Strs("artifacts", existing).Msg("Artifacts already exist, nothing to do")
		res.Skipped = true
		res.Existing = existing
		return res, nil
	}

	if tel := r.dep.Telemetry; tel != nil {
		var span trace.Span
		ctx, span = tel.StartSpan(ctx, "carta.run")
		defer span.End()
	}

	log.Info().Str("run_id", r.ID).Str("tag", r.cfg.Workload.TagKey+"="+r.cfg.Workload.TagValue).
		Str("directory", r.dep.Directory.Name()).Msg("Starting run")

	err = r.execute(ctx, res)
	r.finish(ctx, start, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Run) execute(ctx context.Context, res *Result) error {
	var err error

	r.Resources, err = r.collector.Collect(ctx)
	if err != nil {
		return err
	}
	res.Resources = len(r.Resources)

	r.Resolutions, err = r.resolver.ResolveAll(ctx, r.Resources)
	if err != nil {
		return err
	}
	res.Gaps = resolver.Gaps(r.Resolutions)

	if err := r.writeTable(res.TablePath); err != nil {
		return err
	}

	r.Overview, err = r.author.Overview(ctx, r.Resources)
	if err != nil {
		return err
	}

	spool, err := report.OpenSpool(r.cfg.Output.Dir, r.ID)
	if err != nil {
		return failure.New(failure.Serialization, "open spool", err)
	}
	defer func() { _ = spool.Close() }()

	if err := r.document(ctx, spool); err != nil {
		return err
	}
	if err := spool.Close(); err != nil {
		return failure.New(failure.Serialization, "close spool", err)
	}

	documented, err := r.writeDocument(spool.Path(), res.DocumentPath)
	if err != nil {
		return err
	}
	res.Documented = documented

	if err := spool.Remove(); err != nil {
		log.Warn().Err(err).Msg("Failed to remove spool")
	}

	if p := r.dep.Publisher; p != nil {
		for _, path := range []string{res.TablePath, res.DocumentPath} {
			if err := p.Publish(ctx, path); err != nil {
				return failure.New(failure.Serialization, "publish "+path, err)
			}
		}
	}

	log.Info().
		Int("resources", res.Resources).
		Int("gaps", res.Gaps).
		Int("documented", res.Documented).
		Str("table", res.TablePath).
		Str("document", res.DocumentPath).
		Msg("Run complete")
	return nil
}

func (r *Run) writeTable(path string) error {
	t, err := export.Build(r.Resources, resolver.Records(r.Resolutions))
	if err != nil {
		return failure.New(failure.Serialization, "build table", err)
	}
	r.Table = t
	if err := report.WriteTable(path, t); err != nil {
		return failure.New(failure.Serialization, "write table", err)
	}
	log.Info().Str("path", path).Int("rows", len(t.Rows)).Int("columns", len(t.Header)).Msg("Wrote table")
	return nil
}

// document writes and refines one narrative per resolved resource. Drafts
// land in the spool in completion order, tagged with the resource index.
func (r *Run) document(ctx context.Context, spool *report.Spool) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.cfg.Refine.Concurrency, 1))

	for i, res := range r.Resolutions {
		if !res.Resolved() {
			continue
		}
		g.Go(func() error {
			log.Info().Str("resource", res.Resource.Name).Msg("Documenting resource")

			draft, err := r.author.Document(gctx, res.Resource, res.Record)
			if err != nil {
				return err
			}
			final, err := r.loop.Refine(gctx, draft)
			if err != nil {
				return fmt.Errorf("refine %s: %w", res.Resource.Name, err)
			}
			if err := spool.Append(i, res.Resource.ID, res.Resource.Name, final); err != nil {
				return failure.New(failure.Serialization, "spool "+res.Resource.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Run) writeDocument(spoolPath, path string) (int, error) {
	entries, err := report.ReadSpool(spoolPath)
	if err != nil {
		return 0, failure.New(failure.Serialization, "read spool", err)
	}

	doc := report.Document{
		Title:    r.cfg.Workload.TagValue,
		Overview: r.Overview,
		Details:  report.FromSpool(entries),
	}
	data, err := doc.Render(r.cfg.Output.Format)
	if err != nil {
		return 0, failure.New(failure.Serialization, "render document", err)
	}
	if err := report.WriteFile(path, data); err != nil {
		return 0, failure.New(failure.Serialization, "write document", err)
	}
	log.Info().Str("path", path).Int("sections", len(entries)).Msg("Wrote document")
	return len(entries), nil
}

func (r *Run) finish(ctx context.Context, start time.Time, runErr error) {
	tel := r.dep.Telemetry
	if tel == nil {
		return
	}

	status := "ok"
	if runErr != nil {
		status = "error"
		if k, ok := failure.KindOf(runErr); ok {
			status = string(k)
		}
	}
	tel.RecordRunDuration(ctx, status, time.Since(start))

	if gw := r.cfg.Metrics.Pushgateway; gw != "" {
		// push even when the run context is cancelled
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := tel.Push(pushCtx, gw, r.cfg.Metrics.Job, r.ID); err != nil {
			log.Warn().Err(err).Str("pushgateway", gw).Msg("Failed to push metrics")
		}
	}
}

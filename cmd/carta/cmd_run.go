package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/carta/internal/config"
	"github.com/yairfalse/carta/internal/directory"
	"github.com/yairfalse/carta/internal/llm"
	"github.com/yairfalse/carta/internal/pipeline"
	"github.com/yairfalse/carta/internal/report"
	"github.com/yairfalse/carta/internal/report/s3"
	"github.com/yairfalse/carta/internal/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Discover the workload and write the table and document",
	Long: `Run discovers every resource of the workload, resolves its metadata,
writes the CSV table, then writes and refines one documentation section
per resolved resource and assembles the final document.

If either artifact already exists the run does nothing.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Checked before any backend is opened so a finished run needs no credentials.
	existing, err := report.Existing(cfg.Output.TablePath(), cfg.Output.DocumentPath())
	if err != nil {
		return fmt.Errorf("check artifacts: %w", err)
	}
	if len(existing) > 0 {
		log.Info().Strs("existing", existing).Msg("Artifacts already exist, skipping run")
		printResult(cmd, &pipeline.Result{Skipped: true, Existing: existing})
		return nil
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	deps, cleanup, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var result *pipeline.Result
	var g run.Group
	{
		r := pipeline.New(cfg, deps)
		g.Add(func() error {
			var err error
			result, err = r.Execute(ctx)
			return err
		}, func(error) {
			cancel()
		})
	}
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	if err := g.Run(); err != nil {
		var sig run.SignalError
		if errors.As(err, &sig) {
			log.Warn().Str("signal", sig.Signal.String()).Msg("Interrupted")
		}
		return err
	}

	printResult(cmd, result)
	return nil
}

// buildDeps opens the directory, the generator and the optional publisher and
// telemetry. cleanup flushes telemetry and closes the publisher.
func buildDeps(ctx context.Context, cfg *config.Config) (pipeline.Deps, func(), error) {
	var deps pipeline.Deps
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	dir, err := directory.Open(ctx, cfg)
	if err != nil {
		return deps, cleanup, fmt.Errorf("open directory: %w", err)
	}
	deps.Directory = dir

	gen, err := llm.Open(cfg.LLM)
	if err != nil {
		return deps, cleanup, fmt.Errorf("open llm: %w", err)
	}
	deps.Generator = gen

	tel, err := telemetry.NewProvider(ctx, cfg.OTEL)
	if err != nil {
		return deps, cleanup, fmt.Errorf("init telemetry: %w", err)
	}
	deps.Telemetry = tel
	closers = append(closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Telemetry shutdown failed")
		}
	})

	if cfg.Publish.S3.Bucket != "" {
		pub, err := s3.New(ctx, cfg.Publish.S3)
		if err != nil {
			return deps, cleanup, fmt.Errorf("init s3 publisher: %w", err)
		}
		multi := report.NewMultiPublisher(pub)
		deps.Publisher = multi
		closers = append(closers, func() { _ = multi.Close() })
	}

	return deps, cleanup, nil
}

func printResult(cmd *cobra.Command, res *pipeline.Result) {
	out := cmd.OutOrStdout()
	if res.Skipped {
		fmt.Fprintf(out, "Artifacts already exist, nothing done: %v\n", res.Existing)
		return
	}
	fmt.Fprintf(out, "Run %s\n", res.RunID)
	fmt.Fprintf(out, "  resources:  %d\n", res.Resources)
	fmt.Fprintf(out, "  gaps:       %d\n", res.Gaps)
	fmt.Fprintf(out, "  documented: %d\n", res.Documented)
	fmt.Fprintf(out, "  table:      %s\n", res.TablePath)
	fmt.Fprintf(out, "  document:   %s\n", res.DocumentPath)
}

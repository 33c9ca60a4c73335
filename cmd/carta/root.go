package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/carta/internal/config"
	"github.com/yairfalse/carta/internal/telemetry"

	// Directory and generation backends register themselves.
	_ "github.com/yairfalse/carta/internal/directory/azure"
	_ "github.com/yairfalse/carta/internal/directory/snapshot"
	_ "github.com/yairfalse/carta/internal/llm/gemini"
	_ "github.com/yairfalse/carta/internal/llm/openai"
)

// defaultConfigFile is read when --config is not given and the file exists.
const defaultConfigFile = "carta.toml"

var (
	version = "0.1.0"

	flags struct {
		config    string
		debug     bool
		tag       string
		outputDir string
		rounds    int
	}

	rootCmd = &cobra.Command{
		Use:   "carta",
		Short: "Workload documentation from tagged cloud resources",
		Long: `carta - workload documentation from tagged cloud resources

carta finds every resource tagged as part of a workload, directly or
through a tagged resource group, fetches its full metadata at the newest
schema version, and writes two artifacts: a CSV with one column per
metadata field, and a narrative document reviewed and rewritten by a
language model.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`carta {{.Version}}
`)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "config file (default ./carta.toml if present)")
	pf.BoolVar(&flags.debug, "debug", false, "enable debug logging")
	pf.StringVar(&flags.tag, "tag", "", "workload tag as Key=Value (overrides config)")
	pf.StringVarP(&flags.outputDir, "output-dir", "o", "", "directory for artifacts (overrides config)")
	pf.IntVar(&flags.rounds, "rounds", -1, "refinement rounds (overrides config)")
}

// loadConfig reads the config file, applies flag overrides and validates.
func loadConfig() (*config.Config, error) {
	cfg, err := readConfig(flags.config)
	if err != nil {
		return nil, err
	}

	if flags.tag != "" {
		key, value, err := parseTag(flags.tag)
		if err != nil {
			return nil, err
		}
		cfg.Workload.TagKey, cfg.Workload.TagValue = key, value
	}
	if flags.outputDir != "" {
		cfg.Output.Dir = flags.outputDir
	}
	if flags.rounds != -1 {
		rounds := flags.rounds
		cfg.Refine.Rounds = &rounds
	}
	if flags.debug {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	setupLogging(cfg)
	return cfg, nil
}

func readConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return config.Load(defaultConfigFile)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", defaultConfigFile, err)
	}
	return config.Default(), nil
}

// parseTag splits Key=Value. The value may contain '='.
func parseTag(s string) (string, string, error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok || key == "" || value == "" {
		return "", "", fmt.Errorf("invalid tag %q: want Key=Value", s)
	}
	return key, value, nil
}

func setupLogging(cfg *config.Config) {
	log.Logger = telemetry.NewLogger(telemetry.LogOptions{
		Service: cfg.OTEL.ServiceName,
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
	})
}

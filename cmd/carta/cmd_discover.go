package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yairfalse/carta/internal/directory"
	"github.com/yairfalse/carta/internal/pipeline"
)

var discoverJSON bool

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List the workload's resources without fetching metadata",
	RunE:  runDiscover,
}

func init() {
	discoverCmd.Flags().BoolVar(&discoverJSON, "json", false, "print resources as JSON")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dir, err := directory.Open(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("open directory: %w", err)
	}

	resources, err := pipeline.Discover(cmd.Context(), cfg, dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if discoverJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resources)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tLOCATION\tRESOURCE GROUP")
	for _, r := range resources {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, r.Type, r.Location, r.ResourceGroup())
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d resources\n", len(resources))
	return nil
}

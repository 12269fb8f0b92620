package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/perotf-lab/expadvisor/internal/export"
	"github.com/perotf-lab/expadvisor/internal/history"
	"github.com/perotf-lab/expadvisor/internal/nomad"
	"github.com/perotf-lab/expadvisor/pkg/logger"
)

func newFetchCmd(g *globalOptions) *cobra.Command {
	var (
		idsPath  string
		idColumn string
		outPath  string
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Join process parameters and JV measurements from the NOMAD archive onto a sample table",
		Long: "Reads the sample table, resolves each lab ID to its NOMAD entry, reads the process step\n" +
			"parameters and the per-pixel measurements referencing it, and writes one CSV row per pixel\n" +
			"with the sample table's own columns kept.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Nomad == nil {
				return fmt.Errorf("configuration has no nomad section")
			}

			table, err := history.ReadFile(idsPath, "")
			if err != nil {
				return err
			}
			ids, err := sampleIDs(table, idColumn)
			if err != nil {
				return fmt.Errorf("%s: %w", idsPath, err)
			}
			creds, err := cfg.Nomad.Credentials()
			if err != nil {
				return err
			}
			client, err := nomad.NewClient(cfg.Nomad)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			session, err := client.Authenticate(ctx, creds)
			if err != nil {
				return err
			}
			samples, err := client.FetchSamples(ctx, session, ids, nomad.RetrievalFromConfig(cfg.Nomad))
			if err != nil {
				return err
			}
			header, records, err := samples.Join(table.Header, table.Rows, idColumn, cfg.Nomad.SampleColumn)
			if err != nil {
				return fmt.Errorf("%s: %w", idsPath, err)
			}
			logger.Info("records fetched",
				"ids", len(ids),
				"unresolved", samples.Unresolved,
				"skipped_entries", samples.Skipped,
				"rows", len(records))

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", outPath, err)
				}
				defer f.Close()
				w = f
			}
			return export.WriteRecordsCSV(w, header, records)
		},
	}

	f := cmd.Flags()
	f.StringVar(&idsPath, "ids", "", "table listing the sample IDs (.csv or .xlsx)")
	f.StringVar(&idColumn, "id-column", "Nomad ID", "column holding the sample IDs")
	f.StringVarP(&outPath, "out", "o", "-", "output CSV file")
	_ = cmd.MarkFlagRequired("ids")
	return cmd
}

// sampleIDs returns the non-empty values of column, in file order
func sampleIDs(t *history.Table, column string) ([]string, error) {
	idx := t.Column(column)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found", column)
	}
	var ids []string
	for _, row := range t.Rows {
		if idx < len(row) {
			if id := strings.TrimSpace(row[idx]); id != "" {
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no sample IDs in column %q", column)
	}
	return ids, nil
}

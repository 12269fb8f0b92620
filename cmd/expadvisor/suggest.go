package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/perotf-lab/expadvisor/internal/advisor"
	"github.com/perotf-lab/expadvisor/internal/export"
	"github.com/perotf-lab/expadvisor/internal/history"
	"github.com/perotf-lab/expadvisor/internal/space"
	"github.com/perotf-lab/expadvisor/internal/store"
	"github.com/perotf-lab/expadvisor/pkg/logger"
)

func newSuggestCmd(g *globalOptions) *cobra.Command {
	var (
		dataPath    string
		xlsxPath    string
		dbPath      string
		format      string
		perStrategy int
	)
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Propose the next batch of experiments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Data != nil {
				if dataPath == "" {
					dataPath = cfg.Data.Path
				}
			}
			if cfg.Output != nil {
				if format == "" {
					format = cfg.Output.Format
				}
				if xlsxPath == "" {
					xlsxPath = cfg.Output.XLSX
				}
				if dbPath == "" {
					dbPath = cfg.Output.DB
				}
			}
			if dataPath == "" {
				return fmt.Errorf("no history file: set --data or data.path")
			}

			loader, err := history.NewLoader(space.FromConfig(cfg.Parameters), cfg.Data)
			if err != nil {
				return err
			}
			hist, err := loader.LoadFile(dataPath)
			if err != nil {
				return err
			}
			logger.Info("history read", "path", dataPath, "observations", len(hist.Observations), "dropped", hist.Dropped)

			var opts []advisor.Option
			if dbPath != "" {
				ledger, err := store.OpenSQLite(dbPath)
				if err != nil {
					return err
				}
				defer ledger.Close()
				opts = append(opts, advisor.WithStore(ledger))
			}
			a, err := advisor.Build(cfg, opts...)
			if err != nil {
				return err
			}

			res, err := a.RunRequest(cmd.Context(), advisor.Request{
				Observations: hist.Observations,
				PerStrategy:  perStrategy,
			})
			if err != nil {
				return err
			}
			if err := export.Write(cmd.OutOrStdout(), format, res.Table); err != nil {
				return err
			}
			if xlsxPath != "" {
				if err := export.WriteXLSX(xlsxPath, res.Table); err != nil {
					return err
				}
				logger.Info("workbook written", "path", xlsxPath)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&dataPath, "data", "d", "", "history table (.csv or .xlsx)")
	f.StringVar(&xlsxPath, "xlsx", "", "also write the table to this workbook")
	f.StringVar(&dbPath, "db", "", "record the batch in this SQLite ledger")
	f.StringVarP(&format, "format", "f", "", "output format (text, csv, json)")
	f.IntVarP(&perStrategy, "per-strategy", "n", 0, "suggestions per strategy (configured value when 0)")
	return cmd
}

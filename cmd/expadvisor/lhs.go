package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/perotf-lab/expadvisor/internal/constraint"
	"github.com/perotf-lab/expadvisor/internal/export"
	"github.com/perotf-lab/expadvisor/internal/plan"
	"github.com/perotf-lab/expadvisor/internal/space"
)

func newLHSCmd(g *globalOptions) *cobra.Command {
	var (
		samples      int
		scramble     bool
		seed         int64
		steps        []string
		feasibleOnly bool
	)
	cmd := &cobra.Command{
		Use:   "lhs",
		Short: "Generate an initial Latin hypercube plan over the parameter bounds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			overrides, err := parseSteps(steps)
			if err != nil {
				return err
			}

			configured := make(map[string]float64, len(cfg.Parameters))
			for _, p := range cfg.Parameters {
				configured[p.Name] = p.Step
			}
			bounds := space.FromConfig(cfg.Parameters)
			for name := range overrides {
				if _, ok := bounds.Lookup(name); !ok {
					return fmt.Errorf("--step: unknown parameter %s", name)
				}
			}

			var feasible constraint.Feasibility
			if feasibleOnly {
				rules, err := constraint.FromConfig(cfg)
				if err != nil {
					return err
				}
				feasible = rules
			}

			p, err := plan.Generate(cmd.Context(), plan.ParametersFromBounds(bounds, configured), plan.Options{
				Samples:  samples,
				Scramble: scramble,
				Seed:     seed,
				Steps:    overrides,
			}, feasible)
			if err != nil {
				return err
			}
			return export.WriteRowsCSV(cmd.OutOrStdout(), p.Columns, p.Rows)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&samples, "samples", "n", 9, "number of experiments")
	f.BoolVar(&scramble, "scramble", false, "randomize positions within strata")
	f.Int64Var(&seed, "seed", 0, "random seed (time based when 0)")
	f.StringArrayVar(&steps, "step", nil, "rounding step as name=value; repeatable")
	f.BoolVar(&feasibleOnly, "feasible-only", false, "drop samples that break a constraint")
	return cmd
}

func parseSteps(raw []string) (map[string]float64, error) {
	out := make(map[string]float64, len(raw))
	for _, s := range raw {
		name, value, ok := strings.Cut(s, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("--step %q: expected name=value", s)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("--step %q: value must be a non-negative number", s)
		}
		out[strings.TrimSpace(name)] = v
	}
	return out, nil
}

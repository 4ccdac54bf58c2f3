// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/specgraph/services/specgraph/config"
	"github.com/AleutianAI/specgraph/services/specgraph/correlate"
	"github.com/AleutianAI/specgraph/services/specgraph/graph"
	"github.com/AleutianAI/specgraph/services/specgraph/workspace"
)

// cli holds flag values and the state built before a command runs.
type cli struct {
	configPath  string
	root        string
	jsonOutput  bool
	logLevel    string
	metricsAddr string

	logger *slog.Logger
	ws     *workspace.Workspace
	start  time.Time
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "specgraph",
		Short: "Index a requirements workspace and inspect its dependency graph",
		Long: `specgraph loads the JSON syntax trees and ticket files of a requirements
workspace, builds a cross-file symbol index and dependency graph, and
reports on references, cycles and ticket coverage.

Configuration is read from specgraph.yaml in the workspace root or any
parent directory; flags override it.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to specgraph.yaml (default: discovered from the root)")
	flags.StringVar(&c.root, "root", "", "workspace root directory (default: current directory)")
	flags.BoolVar(&c.jsonOutput, "json", false, "output as JSON")
	flags.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Report unresolved references, conflicts, cycles and orphaned tickets",
		Args:  cobra.NoArgs,
		RunE:  c.runCheck,
	}

	orderCmd := &cobra.Command{
		Use:   "order",
		Short: "Print every declaration with dependencies before dependents",
		Args:  cobra.NoArgs,
		RunE:  c.runOrder,
	}

	depsCmd := &cobra.Command{
		Use:   "deps PATH",
		Short: "Show what a path depends on and what depends on it",
		Long: `Show the direct and transitive dependencies and dependents of a
declaration path.

Examples:
  specgraph deps auth.login
  specgraph deps billing --json`,
		Args: cobra.ExactArgs(1),
		RunE: c.runDeps,
	}

	statusCmd := &cobra.Command{
		Use:   "status [PREFIX]",
		Short: "Show requirement status computed from ticket files",
		Args:  cobra.MaximumNArgs(1),
		RunE:  c.runStatus,
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the index in sync with the file system and log health changes",
		Args:  cobra.NoArgs,
		RunE:  c.runWatch,
	}
	watchCmd.Flags().StringVar(&c.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9464")

	rootCmd.AddCommand(checkCmd, orderCmd, depsCmd, statusCmd, watchCmd)
	return rootCmd
}

// setup loads configuration, builds the logger and loads the workspace.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	c.start = time.Now()

	dir := c.root
	if dir == "" {
		dir = "."
	}
	cfg, err := config.NewLoader(nil).Load(c.configPath, dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if c.root != "" {
		abs, err := filepath.Abs(c.root)
		if err != nil {
			return err
		}
		cfg.Workspace.Root = abs
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}

	c.logger, err = cfg.Log.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(c.logger)

	c.ws = workspace.New(cfg, workspace.WithLogger(c.logger))
	if _, err := c.ws.LoadDir(cmd.Context()); err != nil {
		var batch *workspace.BatchError
		if !errors.As(err, &batch) {
			return err
		}
		c.logger.Warn("some files could not be loaded",
			slog.Int("errors", len(batch.Errors)),
		)
	}
	return nil
}

// output writes data as a JSON envelope or via the text printer.
func (c *cli) output(cmd *cobra.Command, data interface{}, findings bool, text func(w io.Writer)) error {
	var err error
	if findings {
		err = errFindings
	}
	if c.jsonOutput {
		if werr := writeResult(cmd.OutOrStdout(), cmd.Name(), c.start, data, err); werr != nil {
			return werr
		}
		return err
	}
	text(cmd.OutOrStdout())
	return err
}

func (c *cli) runCheck(cmd *cobra.Command, _ []string) error {
	report, err := c.ws.Report(cmd.Context())
	if err != nil {
		return err
	}
	return c.output(cmd, report, report.HasProblems(), func(w io.Writer) {
		printReport(w, report)
	})
}

func printReport(w io.Writer, r *workspace.Report) {
	fmt.Fprintf(w, "%d files, %d symbols (%d paths), %d references\n",
		r.Stats.FileCount, r.Stats.TotalSymbols, r.Stats.UniquePaths, r.Stats.ReferenceCount)

	fmt.Fprintf(w, "\nUnresolved references: %d\n", len(r.Unresolved))
	for _, ref := range r.Unresolved {
		fmt.Fprintf(w, "  %s: %q in %s\n", ref.Location, ref.Path, ref.ContainingPath)
	}

	fmt.Fprintf(w, "\nConflicting paths: %d\n", len(r.Conflicts))
	for _, conflict := range r.Conflicts {
		fmt.Fprintf(w, "  %s\n", conflict.Path)
		for _, loc := range conflict.Locations {
			fmt.Fprintf(w, "    %s\n", loc)
		}
	}

	fmt.Fprintf(w, "\nCycles: %d\n", len(r.Cycles))
	for _, cycle := range r.Cycles {
		fmt.Fprintf(w, "  %s\n", formatCycle(cycle))
	}

	fmt.Fprintf(w, "\nOrphaned tickets: %d\n", len(r.OrphanedTickets))
	for _, o := range r.OrphanedTickets {
		fmt.Fprintf(w, "  %s -> %s (%s)\n", o.Ticket.ID, o.Ticket.Ref, o.Source)
	}

	fmt.Fprintf(w, "\nCompletion: %d%% of %d requirements\n",
		r.Completion.PercentComplete, r.Completion.Total)
}

func formatCycle(c graph.Cycle) string {
	out := ""
	for i, n := range c.Nodes {
		if i > 0 {
			out += " -> "
		}
		out += n
	}
	return out
}

// orderResult is the JSON payload of the order command.
type orderResult struct {
	Order  []string      `json:"order"`
	Cycles []graph.Cycle `json:"cycles"`
}

func (c *cli) runOrder(cmd *cobra.Command, _ []string) error {
	g, err := c.ws.Cache().DependencyGraph(cmd.Context())
	if err != nil {
		return err
	}
	result := orderResult{Order: g.TopologicalOrder(), Cycles: g.Cycles()}
	return c.output(cmd, result, !g.IsAcyclic(), func(w io.Writer) {
		if !g.IsAcyclic() {
			fmt.Fprintln(w, "No topological order: the graph has cycles")
			for _, cycle := range result.Cycles {
				fmt.Fprintf(w, "  %s\n", formatCycle(cycle))
			}
			return
		}
		for _, p := range result.Order {
			fmt.Fprintln(w, p)
		}
	})
}

// depsResult is the JSON payload of the deps command.
type depsResult struct {
	Path                   string   `json:"path"`
	Declared               bool     `json:"declared"`
	PartialMatch           bool     `json:"partial_match"`
	Matches                []string `json:"matches"`
	Dependencies           []string `json:"dependencies"`
	Dependents             []string `json:"dependents"`
	TransitiveDependencies []string `json:"transitive_dependencies"`
	TransitiveDependents   []string `json:"transitive_dependents"`
	InCycle                bool     `json:"in_cycle"`
}

func (c *cli) runDeps(cmd *cobra.Command, args []string) error {
	path := args[0]
	g, err := c.ws.Cache().DependencyGraph(cmd.Context())
	if err != nil {
		return err
	}

	res := c.ws.Index().Resolve(path)
	result := depsResult{
		Path:                   path,
		Declared:               res.Resolved() && !res.IsPartialMatch,
		PartialMatch:           res.IsPartialMatch,
		Matches:                []string{},
		Dependencies:           g.GetDependencies(path),
		Dependents:             g.GetDependents(path),
		TransitiveDependencies: g.GetTransitiveDependencies(path),
		TransitiveDependents:   g.GetTransitiveDependents(path),
		InCycle:                g.IsInCycle(path),
	}
	for _, sym := range res.MatchingSymbols {
		result.Matches = append(result.Matches, sym.Path)
	}

	if !res.Resolved() {
		return fmt.Errorf("no declaration matches %q", path)
	}

	return c.output(cmd, result, false, func(w io.Writer) {
		if result.PartialMatch {
			fmt.Fprintf(w, "%s is not declared; it names %d nested declarations\n\n", path, len(result.Matches))
		}
		printList(w, "Depends on", result.Dependencies)
		printList(w, "Depended on by", result.Dependents)
		printList(w, "Transitive dependencies", result.TransitiveDependencies)
		printList(w, "Transitive dependents", result.TransitiveDependents)
		if result.InCycle {
			fmt.Fprintf(w, "\n%s is part of a dependency cycle\n", path)
		}
	})
}

// statusResult is the JSON payload of the status command.
type statusResult struct {
	Prefix       string                                `json:"prefix,omitempty"`
	Summary      correlate.CompletionSummary           `json:"summary"`
	Requirements map[string]*correlate.RequirementInfo `json:"requirements"`
}

func (c *cli) runStatus(cmd *cobra.Command, args []string) error {
	m, err := c.ws.Cache().TicketMap(cmd.Context())
	if err != nil {
		return err
	}

	requirements := m.Map
	prefix := ""
	if len(args) == 1 {
		prefix = args[0]
		requirements = correlate.FilterByPathPrefix(m.Map, prefix)
	}
	result := statusResult{
		Prefix:       prefix,
		Summary:      correlate.Summarize(requirements),
		Requirements: requirements,
	}

	filtered := &correlate.Result{Map: requirements}
	return c.output(cmd, result, false, func(w io.Writer) {
		for _, p := range filtered.Paths() {
			info := requirements[p]
			fmt.Fprintf(w, "%-12s %s", info.Status, p)
			if info.ConstraintsTotal > 0 {
				fmt.Fprintf(w, "  [%d/%d constraints]", info.ConstraintsSatisfied, info.ConstraintsTotal)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "\n%d%% complete (%d requirements", result.Summary.PercentComplete, result.Summary.Total)
		for _, s := range correlate.AllStatuses {
			if n := result.Summary.ByStatus[s]; n > 0 {
				fmt.Fprintf(w, ", %d %s", n, s)
			}
		}
		fmt.Fprintln(w, ")")
	})
}

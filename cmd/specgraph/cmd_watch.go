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
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/specgraph/services/specgraph/workspace"
)

// runWatch keeps the workspace in sync until interrupted, logging a
// health summary after every applied batch.
func (c *cli) runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.metricsAddr != "" {
		srv := &http.Server{Addr: c.metricsAddr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				c.logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		c.logger.Info("serving metrics", slog.String("addr", c.metricsAddr))
	}

	watcher, err := c.ws.NewWatcher(workspace.WithOnApplied(func(applied []workspace.AppliedChange) {
		c.logHealth(ctx, len(applied))
	}))
	if err != nil {
		return err
	}
	defer watcher.Stop()

	if err := watcher.Start(ctx); err != nil {
		return err
	}
	c.logHealth(ctx, 0)

	<-ctx.Done()
	c.logger.Info("stopping watcher")
	return nil
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (c *cli) logHealth(ctx context.Context, changes int) {
	report, err := c.ws.Report(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("health report failed", slog.String("error", err.Error()))
		}
		return
	}
	c.logger.Info("workspace health",
		slog.Int("changes", changes),
		slog.Int("files", report.Stats.FileCount),
		slog.Int("symbols", report.Stats.TotalSymbols),
		slog.Int("unresolved", len(report.Unresolved)),
		slog.Int("conflicts", len(report.Conflicts)),
		slog.Int("cycles", len(report.Cycles)),
		slog.Int("orphaned_tickets", len(report.OrphanedTickets)),
		slog.Int("percent_complete", report.Completion.PercentComplete),
	)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package workspace wires the index, ticket store and computed cache
// into one host.
//
// Every mutation goes through Workspace, which applies the matching
// cache invalidation before returning, so queries issued after a
// mutation never observe stale derived data.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/AleutianAI/specgraph/services/specgraph/ast"
	"github.com/AleutianAI/specgraph/services/specgraph/cache"
	"github.com/AleutianAI/specgraph/services/specgraph/config"
	"github.com/AleutianAI/specgraph/services/specgraph/index"
	"github.com/AleutianAI/specgraph/services/specgraph/tickets"
)

// Option is a functional option for configuring a Workspace.
type Option func(*Workspace)

// WithLogger sets the logger used by the workspace and its components.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workspace) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Workspace is the host of one requirements workspace.
//
// Thread Safety:
//
//	Mutations are serialized together with their cache invalidation.
//	Queries may run concurrently with each other and between mutations.
type Workspace struct {
	cfg    *config.Config
	logger *slog.Logger

	// mu serializes mutation + invalidation pairs.
	mu sync.Mutex

	index  *index.WorkspaceIndex
	store  *tickets.Store
	cache  *cache.ComputedCache
	loader *tickets.Loader
}

// New creates an empty workspace for cfg. A nil cfg uses the defaults.
func New(cfg *config.Config, opts ...Option) *Workspace {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	w := &Workspace{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}

	w.index = index.NewWorkspaceIndex(index.WithLogger(w.logger))
	w.store = tickets.NewStore()
	w.cache = cache.NewComputedCache(w.index, w.store, cache.WithLogger(w.logger))
	w.loader = tickets.NewLoader(tickets.WithLogger(w.logger))
	return w
}

// Config returns the workspace configuration.
func (w *Workspace) Config() *config.Config { return w.cfg }

// Index returns the symbol index. Callers must not mutate it directly.
func (w *Workspace) Index() *index.WorkspaceIndex { return w.index }

// Cache returns the computed data cache.
func (w *Workspace) Cache() *cache.ComputedCache { return w.cache }

// Tickets returns the ticket store. Callers must not mutate it directly.
func (w *Workspace) Tickets() *tickets.Store { return w.store }

// Update indexes (or re-indexes) a document and invalidates what it changed.
func (w *Workspace) Update(uri string, root ast.Node) index.UpdateResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	result := w.index.AddFile(uri, root)
	scope := w.cache.ApplyUpdate(result)
	w.logger.Debug("document updated",
		slog.String("uri", uri),
		slog.String("invalidated", string(scope)),
	)
	return result
}

// Close removes a document and invalidates what it contributed.
func (w *Workspace) Close(uri string) index.UpdateResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	result := w.index.RemoveFile(uri)
	w.cache.ApplyUpdate(result)
	return result
}

// SetTicketFile replaces the tickets of one source and invalidates the
// ticket map.
func (w *Workspace) SetTicketFile(source string, ts []tickets.Ticket) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.store.Set(source, ts)
	w.cache.InvalidateTicketMap()
}

// RemoveTicketFile drops the tickets of one source. It reports whether
// the source was known; unknown sources invalidate nothing.
func (w *Workspace) RemoveTicketFile(source string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.store.Remove(source) {
		return false
	}
	w.cache.InvalidateTicketMap()
	return true
}

// LoadASTFile reads a JSON syntax tree from disk and indexes it under
// the file's URI.
func (w *Workspace) LoadASTFile(path string) (index.UpdateResult, error) {
	root, err := ast.ReadFile(path)
	if err != nil {
		return index.UpdateResult{}, err
	}
	return w.Update(URIForPath(path), root), nil
}

// CloseASTFile removes the document loaded from path.
func (w *Workspace) CloseASTFile(path string) index.UpdateResult {
	return w.Close(URIForPath(path))
}

// LoadTicketFile reads a ticket file and replaces that source's tickets.
//
// A file that cannot be decoded leaves the previous tickets in place and
// returns the error. Rejected records are dropped; the valid ones are
// stored and the *tickets.LoadError is returned.
func (w *Workspace) LoadTicketFile(path string) error {
	ts, err := w.loader.LoadFile(path)
	var loadErr *tickets.LoadError
	if err != nil && !errors.As(err, &loadErr) {
		return err
	}
	w.SetTicketFile(path, ts)
	return err
}

// LoadSummary describes a directory load.
type LoadSummary struct {
	ASTFiles    int `json:"ast_files"`
	TicketFiles int `json:"ticket_files"`
	Failed      int `json:"failed"`
}

// LoadDir loads every AST and ticket file under the configured root.
//
// Description:
//
//	Files are discovered with the configured doublestar patterns, minus
//	the watch ignore patterns. A file that fails to load is skipped and
//	reported in a *BatchError; the others still load.
//
// Outputs:
//
//	LoadSummary - Counts of loaded and failed files.
//	error - Discovery failure, ctx cancellation, or *BatchError.
func (w *Workspace) LoadDir(ctx context.Context) (LoadSummary, error) {
	var summary LoadSummary
	root, err := filepath.Abs(w.cfg.Workspace.Root)
	if err != nil {
		return summary, fmt.Errorf("resolve workspace root: %w", err)
	}

	astFiles, err := Discover(root, w.cfg.Workspace.ASTPatterns, w.cfg.Watch.Ignore)
	if err != nil {
		return summary, err
	}
	ticketFiles, err := Discover(root, w.cfg.Workspace.TicketPatterns, w.cfg.Watch.Ignore)
	if err != nil {
		return summary, err
	}

	var errs []error
	for _, path := range astFiles {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if _, err := w.LoadASTFile(path); err != nil {
			summary.Failed++
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			w.logger.Warn("failed to load syntax tree",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		summary.ASTFiles++
	}

	for _, path := range ticketFiles {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := w.LoadTicketFile(path); err != nil {
			var loadErr *tickets.LoadError
			if !errors.As(err, &loadErr) {
				summary.Failed++
				w.logger.Warn("failed to load ticket file",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
				errs = append(errs, err)
				continue
			}
			errs = append(errs, err)
		}
		summary.TicketFiles++
	}

	w.logger.Info("workspace loaded",
		slog.String("root", root),
		slog.Int("ast_files", summary.ASTFiles),
		slog.Int("ticket_files", summary.TicketFiles),
		slog.Int("failed", summary.Failed),
	)

	if len(errs) > 0 {
		return summary, &BatchError{Errors: errs}
	}
	return summary, nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileOp represents the type of file operation.
type FileOp int

const (
	// FileOpCreate indicates a file was created.
	FileOpCreate FileOp = iota

	// FileOpWrite indicates a file was modified.
	FileOpWrite

	// FileOpRemove indicates a file was deleted.
	FileOpRemove

	// FileOpRename indicates a file was renamed away.
	FileOpRename
)

// String returns the string representation of the operation.
func (op FileOp) String() string {
	switch op {
	case FileOpCreate:
		return "create"
	case FileOpWrite:
		return "write"
	case FileOpRemove:
		return "remove"
	case FileOpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// FileKind classifies a workspace file.
type FileKind int

const (
	// FileKindNone is a file matching no workspace pattern.
	FileKindNone FileKind = iota

	// FileKindAST is a serialized syntax tree.
	FileKindAST

	// FileKindTickets is a ticket file.
	FileKindTickets
)

// FileChange is one debounced file system change.
type FileChange struct {
	// Path is the absolute path to the changed file.
	Path string

	// Op is the type of change.
	Op FileOp

	// Kind is the classification of Path.
	Kind FileKind

	// Time is when the change was detected.
	Time time.Time
}

// AppliedChange is the outcome of applying one FileChange to the workspace.
type AppliedChange struct {
	Change FileChange

	// Err is non-nil when the file could not be loaded.
	Err error
}

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Debounce is how long to wait for more changes before applying.
	// Default: the workspace's watch.debounce setting.
	Debounce time.Duration

	// BufferSize is the size of the change channel.
	// Default: 1000
	BufferSize int

	// OnApplied is called from the debounce goroutine after each batch.
	OnApplied func([]AppliedChange)
}

// WatcherOption is a functional option for configuring a Watcher.
type WatcherOption func(*WatcherOptions)

// WithDebounce overrides the debounce window.
func WithDebounce(d time.Duration) WatcherOption {
	return func(o *WatcherOptions) {
		o.Debounce = d
	}
}

// WithOnApplied sets the callback invoked after each applied batch.
func WithOnApplied(fn func([]AppliedChange)) WatcherOption {
	return func(o *WatcherOptions) {
		o.OnApplied = fn
	}
}

// Watcher keeps a Workspace in sync with the files under its root.
//
// # Description
//
// Watches the root directory recursively. Changes are collected and
// deduplicated per path; when the debounce window expires without new
// changes, the batch is applied in arrival order. AST files are
// re-indexed or closed, ticket files are reloaded or dropped, and each
// mutation carries its own cache invalidation.
//
// # Thread Safety
//
// Safe for concurrent use. Batches are applied from a single goroutine.
type Watcher struct {
	ws      *Workspace
	root    string
	fsw     *fsnotify.Watcher
	opts    WatcherOptions
	logger  *slog.Logger
	changes chan FileChange
	done    chan struct{}

	stopOnce sync.Once
	mu       sync.RWMutex
	watching bool
	stopped  bool
}

// NewWatcher creates a watcher for the workspace's configured root.
//
// # Outputs
//
//   - *Watcher: Ready-to-use watcher (call Start to begin watching).
//   - error: Non-nil if the root cannot be resolved or fsnotify fails.
func (w *Workspace) NewWatcher(opts ...WatcherOption) (*Watcher, error) {
	options := WatcherOptions{
		Debounce:   w.cfg.Watch.Debounce,
		BufferSize: 1000,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.BufferSize <= 0 {
		options.BufferSize = 1000
	}

	root, err := filepath.Abs(w.cfg.Workspace.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &Watcher{
		ws:      w,
		root:    root,
		fsw:     fsw,
		opts:    options,
		logger:  w.logger.With(slog.String("component", "watcher")),
		changes: make(chan FileChange, options.BufferSize),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching for file changes.
//
// Spawns an event processor and a debouncer; both exit when Stop is
// called or ctx is cancelled. Starting a running watcher is a no-op;
// starting a stopped one returns ErrWatcherStopped.
func (wt *Watcher) Start(ctx context.Context) error {
	wt.mu.Lock()
	if wt.stopped {
		wt.mu.Unlock()
		return ErrWatcherStopped
	}
	if wt.watching {
		wt.mu.Unlock()
		return nil
	}
	wt.watching = true
	wt.mu.Unlock()

	if err := wt.addRecursive(wt.root); err != nil {
		return fmt.Errorf("watch %s: %w", wt.root, err)
	}

	go wt.processEvents(ctx)
	go wt.debounceLoop(ctx)

	wt.logger.Info("watching workspace",
		slog.String("root", wt.root),
		slog.Duration("debounce", wt.opts.Debounce),
	)
	return nil
}

// Stop stops the watcher. Pending changes are applied before the
// debouncer exits.
func (wt *Watcher) Stop() {
	wt.stopOnce.Do(func() {
		close(wt.done)
		wt.fsw.Close()

		wt.mu.Lock()
		wt.watching = false
		wt.stopped = true
		wt.mu.Unlock()
	})
}

// IsWatching returns true if the watcher is currently active.
func (wt *Watcher) IsWatching() bool {
	wt.mu.RLock()
	defer wt.mu.RUnlock()
	return wt.watching
}

// Classify reports what kind of workspace file path is.
func (wt *Watcher) Classify(path string) FileKind {
	rel, ok := relativeTo(wt.root, path)
	if !ok || matchesAny(rel, wt.ws.cfg.Watch.Ignore) {
		return FileKindNone
	}
	switch {
	case matchesAny(rel, wt.ws.cfg.Workspace.ASTPatterns):
		return FileKindAST
	case matchesAny(rel, wt.ws.cfg.Workspace.TicketPatterns):
		return FileKindTickets
	}
	return FileKindNone
}

// addRecursive adds a directory and all subdirectories to the watch list.
func (wt *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != wt.root && wt.ignoredDir(path) {
			return filepath.SkipDir
		}
		return wt.fsw.Add(path)
	})
}

// ignoredDir reports whether a directory matches an ignore pattern.
func (wt *Watcher) ignoredDir(path string) bool {
	rel, ok := relativeTo(wt.root, path)
	if !ok {
		return true
	}
	return matchesAny(rel, wt.ws.cfg.Watch.Ignore) || matchesAny(rel+"/", wt.ws.cfg.Watch.Ignore)
}

// processEvents converts fsnotify events to FileChange and queues them.
func (wt *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-wt.done:
			return
		case event, ok := <-wt.fsw.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !wt.ignoredDir(event.Name) {
						if err := wt.addRecursive(event.Name); err != nil {
							wt.logger.Warn("failed to watch directory",
								slog.String("path", event.Name),
								slog.String("error", err.Error()),
							)
						}
						wt.queueExisting(event.Name)
					}
					continue
				}
			}

			kind := wt.Classify(event.Name)
			if kind == FileKindNone {
				continue
			}
			wt.queue(FileChange{
				Path: event.Name,
				Op:   convertOp(event.Op),
				Kind: kind,
				Time: time.Now(),
			})

		case err, ok := <-wt.fsw.Errors:
			if !ok {
				return
			}
			wt.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

// queueExisting queues files already present in a newly created
// directory, whose create events were emitted before it was watched.
func (wt *Watcher) queueExisting(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if kind := wt.Classify(path); kind != FileKindNone {
			wt.queue(FileChange{Path: path, Op: FileOpCreate, Kind: kind, Time: time.Now()})
		}
		return nil
	})
}

func (wt *Watcher) queue(change FileChange) {
	select {
	case wt.changes <- change:
	default:
		wt.logger.Warn("change buffer full, dropping event",
			slog.String("path", change.Path),
			slog.String("op", change.Op.String()),
		)
	}
}

// convertOp converts fsnotify.Op to FileOp.
func convertOp(op fsnotify.Op) FileOp {
	switch {
	case op.Has(fsnotify.Remove):
		return FileOpRemove
	case op.Has(fsnotify.Rename):
		return FileOpRename
	case op.Has(fsnotify.Create):
		return FileOpCreate
	default:
		return FileOpWrite
	}
}

// debounceLoop batches changes and applies them after the debounce window.
func (wt *Watcher) debounceLoop(ctx context.Context) {
	var batch []FileChange
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 {
			applied := wt.apply(deduplicateChanges(batch))
			if wt.opts.OnApplied != nil {
				wt.opts.OnApplied(applied)
			}
			batch = batch[:0]
		}
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-wt.done:
			flush()
			return
		case change := <-wt.changes:
			batch = append(batch, change)
			if timer == nil {
				timer = time.NewTimer(wt.opts.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(wt.opts.Debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

// apply applies each change to the workspace.
func (wt *Watcher) apply(changes []FileChange) []AppliedChange {
	applied := make([]AppliedChange, 0, len(changes))
	for _, change := range changes {
		err := wt.applyOne(change)
		if err != nil {
			wt.logger.Warn("failed to apply change",
				slog.String("path", change.Path),
				slog.String("op", change.Op.String()),
				slog.String("error", err.Error()),
			)
		} else {
			wt.logger.Debug("applied change",
				slog.String("path", change.Path),
				slog.String("op", change.Op.String()),
			)
		}
		applied = append(applied, AppliedChange{Change: change, Err: err})
	}
	return applied
}

func (wt *Watcher) applyOne(change FileChange) error {
	gone := change.Op == FileOpRemove || change.Op == FileOpRename
	if !gone {
		if _, err := os.Stat(change.Path); errors.Is(err, fs.ErrNotExist) {
			gone = true
		}
	}

	switch change.Kind {
	case FileKindAST:
		if gone {
			wt.ws.CloseASTFile(change.Path)
			return nil
		}
		_, err := wt.ws.LoadASTFile(change.Path)
		return err
	case FileKindTickets:
		if gone {
			wt.ws.RemoveTicketFile(change.Path)
			return nil
		}
		return wt.ws.LoadTicketFile(change.Path)
	}
	return fmt.Errorf("%s: %w", change.Path, ErrUnknownFile)
}

// deduplicateChanges keeps the most recent change per path, at the
// position of its first occurrence.
func deduplicateChanges(changes []FileChange) []FileChange {
	seen := make(map[string]int)
	result := make([]FileChange, 0, len(changes))

	for _, change := range changes {
		if idx, exists := seen[change.Path]; exists {
			result[idx] = change
		} else {
			seen[change.Path] = len(result)
			result = append(result, change)
		}
	}
	return result
}

// Package watch re-analyzes a contract whenever its file changes on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/sprite-ai/lexisafe/internal/logging"
	"github.com/sprite-ai/lexisafe/internal/review"
	"github.com/sprite-ai/lexisafe/internal/session"
)

// DefaultDebounce batches the burst of events an editor save produces.
const DefaultDebounce = 500 * time.Millisecond

// Result is the outcome of one review pass.
type Result struct {
	Path     string
	Changed  bool // false when the file content matched the analyzed document
	Analysis review.Analysis
	Err      error
}

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	OnResult func(Result)
}

// Watcher feeds a contract file into an orchestrator on every change.
type Watcher struct {
	path     string
	orch     *review.Orchestrator
	debounce time.Duration
	onResult func(Result)
	log      *zap.Logger
}

// New creates a Watcher for path.
func New(path string, orch *review.Orchestrator, opts Options, log *zap.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.OnResult == nil {
		opts.OnResult = func(Result) {}
	}
	return &Watcher{
		path:     abs,
		orch:     orch,
		debounce: opts.Debounce,
		onResult: opts.OnResult,
		log:      logging.OrNop(log),
	}, nil
}

// Run reviews the file once, then again after each change, until ctx is
// cancelled. The parent directory is watched so editors that replace the
// file on save are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}
	w.log.Info("watching contract", zap.String("path", w.path))

	w.onResult(w.review(ctx))

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.log.Debug("contract changed", zap.String("op", event.Op.String()))
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))

		case <-timer.C:
			w.onResult(w.review(ctx))
		}
	}
}

// review uploads the current file content and analyzes it when it differs
// from the analyzed document.
func (w *Watcher) review(ctx context.Context) Result {
	res := Result{Path: w.path}

	content, err := os.ReadFile(w.path)
	if err != nil {
		res.Err = fmt.Errorf("reading contract: %w", err)
		return res
	}

	name := filepath.Base(w.path)
	changed, err := w.orch.Upload(name, content)
	if err != nil {
		res.Err = err
		return res
	}
	res.Changed = changed

	sess := w.orch.Session()
	if !changed && sess.State() == session.StateAnalyzed {
		res.Analysis = review.Analysis{Risks: sess.Risks()}
		return res
	}

	res.Analysis, res.Err = w.orch.RunAnalysis(ctx)
	if res.Err != nil && !errors.Is(res.Err, context.Canceled) {
		w.log.Warn("review failed", zap.String("document", name), zap.Error(res.Err))
	}
	return res
}

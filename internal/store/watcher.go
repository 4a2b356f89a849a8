package store

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReindexCallback is called after the watcher rebuilt the index; n is the
// number of links indexed.
type ReindexCallback func(n int)

const settleDelay = 200 * time.Millisecond

// Watch observes the database file (and its -wal/-journal siblings) until ctx
// is cancelled. When a burst of file events settles and data_version shows
// that another process committed, the index is rebuilt so records written
// outside this process become searchable. cb may be nil.
func Watch(ctx context.Context, db *DB, logger *slog.Logger, cb ReindexCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(db.path)
	base := filepath.Base(db.path)
	if err := w.Add(dir); err != nil {
		return err
	}

	last, err := db.DataVersion(ctx)
	if err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("path", db.path))

	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	scheduleCheck := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(settleDelay)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settleDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-settleCh:
			v, err := db.DataVersion(ctx)
			if err != nil {
				logger.Warn("watcher: data version failed", slog.String("error", err.Error()))
				continue
			}
			if v == last {
				continue
			}
			last = v
			n, err := db.Reindex(ctx)
			if err != nil {
				logger.Warn("watcher: reindex failed", slog.String("error", err.Error()))
				continue
			}
			logger.Info("watcher: external change reindexed", slog.Int("links", n))
			if cb != nil {
				cb(n)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), base) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			scheduleCheck()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

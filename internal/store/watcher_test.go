package store

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/blitlinks/internal/models"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatcher_ExternalInsertIndexed(t *testing.T) {
	db := testDB(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go Watch(ctx, db, logger, func(int) { calls.Add(1) })
	time.Sleep(100 * time.Millisecond)

	// A second process writes straight into the links table.
	ext, err := sql.Open("sqlite3", db.Path()+"?_busy_timeout=5000")
	if err != nil {
		t.Fatal(err)
	}
	defer ext.Close()
	if _, err := ext.Exec(`INSERT INTO links (text, shortcut) VALUES ('external zebra', 'zz')`); err != nil {
		t.Fatalf("external insert: %v", err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		p, _ := db.Postings(context.Background(), "zebra")
		return len(p) == 1
	}, "external insert was not indexed by watcher")

	if calls.Load() == 0 {
		t.Error("expected reindex callback")
	}
}

func TestWatcher_OwnWritesDoNotReindex(t *testing.T) {
	db := testDB(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go Watch(ctx, db, logger, func(int) { calls.Add(1) })
	time.Sleep(100 * time.Millisecond)

	if _, err := db.Insert(context.Background(), models.Fields{Text: "local"}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(600 * time.Millisecond)

	if n := calls.Load(); n != 0 {
		t.Errorf("reindex ran %d times for a local write", n)
	}
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	db := testDB(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, db, logger, nil) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

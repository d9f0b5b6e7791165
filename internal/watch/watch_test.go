package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
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

type recorder struct {
	mu     sync.Mutex
	bursts [][]string
}

func (r *recorder) record(paths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bursts = append(r.bursts, paths)
}

func (r *recorder) seen(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bursts {
		for _, p := range b {
			if p == path {
				return true
			}
		}
	}
	return false
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestWatch_BurstDelivered(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	go Watch(ctx, []string{root}, 50*time.Millisecond, quietLogger(), rec.record)
	time.Sleep(100 * time.Millisecond)

	a := filepath.Join(root, "a.md")
	b := filepath.Join(root, "b.md")
	_ = os.WriteFile(a, []byte("# A"), 0o644)
	_ = os.WriteFile(b, []byte("# B"), 0o644)

	eventually(t, 5*time.Second, 25*time.Millisecond, func() bool {
		return rec.seen(a) && rec.seen(b)
	}, "changes not delivered")
}

func TestWatch_NewDirWatched(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	go Watch(ctx, []string{root}, 50*time.Millisecond, quietLogger(), rec.record)
	time.Sleep(100 * time.Millisecond)

	sub := filepath.Join(root, "references", "guides")
	_ = os.MkdirAll(sub, 0o755)
	time.Sleep(200 * time.Millisecond)

	deep := filepath.Join(sub, "deep.md")
	_ = os.WriteFile(deep, []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 25*time.Millisecond, func() bool {
		return rec.seen(deep)
	}, "file in new subdir not reported")
}

func TestWatch_IgnoresTempFiles(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	go Watch(ctx, []string{root}, 50*time.Millisecond, quietLogger(), rec.record)
	time.Sleep(100 * time.Millisecond)

	tmp := filepath.Join(root, tmpPrefix+"123")
	_ = os.WriteFile(tmp, []byte("x"), 0o644)
	marker := filepath.Join(root, "after.md")
	_ = os.WriteFile(marker, []byte("x"), 0o644)

	eventually(t, 5*time.Second, 25*time.Millisecond, func() bool {
		return rec.seen(marker)
	}, "change not delivered")
	if rec.seen(tmp) {
		t.Error("temp file reported")
	}
}

func TestWatch_StopsOnCancel(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, []string{root}, 0, quietLogger(), func([]string) {}) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("watcher did not stop")
	}
}

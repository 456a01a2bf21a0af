package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
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

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func startWatch(t *testing.T, path string) *atomic.Int32 {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.Cleanup(func() {
		cancel()
		<-done
	})

	var builds atomic.Int32
	go func() {
		defer close(done)
		_ = Watch(ctx, path, 50*time.Millisecond, testLogger(), func(context.Context) error {
			builds.Add(1)
			return nil
		})
	}()
	time.Sleep(100 * time.Millisecond)
	return &builds
}

func TestWatch_RebuildsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.jsonl")
	_ = os.WriteFile(path, []byte(`{"name":"A"}`+"\n"), 0o644)

	builds := startWatch(t, path)

	_ = os.WriteFile(path, []byte(`{"name":"B"}`+"\n"), 0o644)
	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return builds.Load() == 1
	}, "expected one rebuild after content change")
}

func TestWatch_IgnoresUnchangedContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.jsonl")
	content := []byte(`{"name":"A"}` + "\n")
	_ = os.WriteFile(path, content, 0o644)

	builds := startWatch(t, path)

	_ = os.WriteFile(path, content, 0o644)
	time.Sleep(300 * time.Millisecond)
	if n := builds.Load(); n != 0 {
		t.Errorf("builds = %d, want 0 for identical content", n)
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.jsonl")
	_ = os.WriteFile(path, []byte(`{"name":"A"}`+"\n"), 0o644)

	builds := startWatch(t, path)

	_ = os.WriteFile(filepath.Join(dir, "other.jsonl"), []byte("x"), 0o644)
	time.Sleep(300 * time.Millisecond)
	if n := builds.Load(); n != 0 {
		t.Errorf("builds = %d, want 0", n)
	}
}

func TestWatch_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.jsonl")
	_ = os.WriteFile(path, []byte("{}\n"), 0o644)

	builds := startWatch(t, path)

	for i := range 5 {
		_ = os.WriteFile(path, []byte(`{"i":`+string(rune('0'+i))+"}\n"), 0o644)
		time.Sleep(10 * time.Millisecond)
	}
	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return builds.Load() >= 1
	}, "expected a rebuild after burst")
	time.Sleep(200 * time.Millisecond)
	if n := builds.Load(); n != 1 {
		t.Errorf("builds = %d, want 1 for one burst", n)
	}
}

func TestWatch_RecreatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.jsonl")
	_ = os.WriteFile(path, []byte(`{"name":"A"}`+"\n"), 0o644)

	builds := startWatch(t, path)

	tmp := filepath.Join(dir, "records.jsonl.tmp")
	_ = os.WriteFile(tmp, []byte(`{"name":"C"}`+"\n"), 0o644)
	_ = os.Rename(tmp, path)

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return builds.Load() == 1
	}, "expected rebuild after atomic replace")
}

package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_MarkChanged(t *testing.T) {
	w := NewWatcher("/tmp/capman.yaml", slog.New(slog.NewTextHandler(io.Discard, nil)))

	if w.Changed() {
		t.Fatal("fresh watcher should not report change")
	}
	w.MarkChanged()
	if !w.Changed() {
		t.Fatal("MarkChanged should set the flag")
	}
	// Флаг не сбрасывается по ходу запуска
	if !w.Changed() {
		t.Fatal("flag must stay set once raised")
	}
}

func TestWatcher_FileWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capman.yaml")
	if err := os.WriteFile(path, []byte("ManagerName: Proto-7_CTM\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewWatcher(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	// Даём watcher'у время подписаться на директорию
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("ManagerName: Proto-7_CTM\nDebugLevel: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for !w.Changed() {
		select {
		case <-deadline:
			t.Fatal("watcher did not observe settings file write")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capman.yaml")
	if err := os.WriteFile(path, []byte("ManagerName: Proto-7_CTM\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewWatcher(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	time.Sleep(100 * time.Millisecond)
	// Соседний файл в той же директории (снапшот статуса) не должен
	// считаться изменением настроек
	if err := os.WriteFile(filepath.Join(dir, "status.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(300 * time.Millisecond)
	if w.Changed() {
		t.Fatal("sibling file write must not raise the config-changed flag")
	}
}

package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Watcher следит за файлом настроек и выставляет флаг configChanged.
//
// Флаг только взводится (никогда не сбрасывается по ходу запуска):
// главный цикл читает его в начале каждой итерации и завершает запуск
// с кодом "config changed", после чего внешняя обёртка перечитывает
// настройки. Listener-поток fsnotify пишет флаг атомарно, цикл не
// блокируется при чтении.
type Watcher struct {
	changed atomic.Bool
	logger  *slog.Logger
	path    string
}

// NewWatcher создаёт Watcher для файла настроек.
func NewWatcher(path string, logger *slog.Logger) *Watcher {
	return &Watcher{logger: logger, path: path}
}

// Changed возвращает true, если файл настроек менялся.
func (w *Watcher) Changed() bool {
	return w.changed.Load()
}

// MarkChanged взводит флаг извне (broadcast-команда readconfig).
func (w *Watcher) MarkChanged() {
	w.changed.Store(true)
}

// Start запускает наблюдение. Блокирует до отмены контекста.
//
// Наблюдается директория файла: редакторы и деплой часто заменяют файл
// через rename, и watch на сам файл при этом теряется.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return err
	}

	target := filepath.Clean(w.path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Info("settings file changed", "path", w.path, "op", event.Op.String())
			w.changed.Store(true)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("settings watcher error", "error", err)
		}
	}
}

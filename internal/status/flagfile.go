package status

import (
	"fmt"
	"os"
	"time"
)

// Flag-файл — маркер существования "менеджер в середине task".
//
// Это не снапшот: содержимое не несёт семантики. Файл создаётся перед
// запуском tool и удаляется при чистом переходе в idle. Его присутствие
// после нештатного выхода процесса — сигнал внешнему error-cleanup
// инструменту вычистить рабочую директорию.

// CreateTaskFlag создаёт flag-файл.
func (r *Reporter) CreateTaskFlag() {
	if r.flagPath == "" {
		return
	}
	body := fmt.Sprintf("task started %s\n", time.Now().UTC().Format(timestampLayout))
	if err := os.WriteFile(r.flagPath, []byte(body), 0o644); err != nil {
		r.logger.Warn("failed to create task flag file", "error", err)
	}
}

// ClearTaskFlag удаляет flag-файл.
func (r *Reporter) ClearTaskFlag() {
	if r.flagPath == "" {
		return
	}
	if err := os.Remove(r.flagPath); err != nil && !os.IsNotExist(err) {
		r.logger.Warn("failed to remove task flag file", "error", err)
	}
}

// TaskFlagExists проверяет наличие flag-файла
// (признак нештатного выхода предыдущего запуска).
func (r *Reporter) TaskFlagExists() bool {
	if r.flagPath == "" {
		return false
	}
	_, err := os.Stat(r.flagPath)
	return err == nil
}

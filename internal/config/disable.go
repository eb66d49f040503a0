package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Имя flag-файла локального выключения рядом с файлом настроек.
const localDisableFile = "manager_inactive"

// localDisablePath возвращает путь flag-файла локального выключения.
func (s *Settings) localDisablePath() string {
	return filepath.Join(filepath.Dir(s.path), localDisableFile)
}

// PersistLocalDisable durable выключает менеджер на этой машине.
//
// Вызывается при исчерпании error budget и при невалидной рабочей
// директории, чтобы процесс не крутился бесконечно в сломанном окружении.
// Флаг переживает рестарт процесса; снимается оператором вручную.
func (s *Settings) PersistLocalDisable(reason string) error {
	body := fmt.Sprintf("disabled at %s\nreason: %s\n",
		time.Now().UTC().Format(time.RFC3339), reason)
	if err := os.WriteFile(s.localDisablePath(), []byte(body), 0o644); err != nil {
		return fmt.Errorf("persist local disable: %w", err)
	}
	return nil
}

// LocallyDisabled возвращает true, если менеджер выключен локально:
// либо flag-файлом, либо MgrActive=false в настройках.
func (s *Settings) LocallyDisabled() bool {
	if !s.ManagerActive() {
		return true
	}
	_, err := os.Stat(s.localDisablePath())
	return err == nil
}

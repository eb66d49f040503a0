package mq

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Command — распознанная control-команда.
type Command string

const (
	// CommandShutdown — немедленное завершение главного цикла.
	CommandShutdown Command = "shutdown"

	// CommandReadConfig — перечитать конфигурацию (выход с рестартом).
	CommandReadConfig Command = "readconfig"
)

// BroadcastPayload — документ broadcast-команды.
//
// Managers — список целевых менеджеров; команда игнорируется, если имени
// этого менеджера в списке нет.
type BroadcastPayload struct {
	Managers []string `json:"managers"`
	Command  string   `json:"command"`
}

// ParseBroadcast разбирает payload broadcast-команды.
func ParseBroadcast(body []byte) (BroadcastPayload, error) {
	var payload BroadcastPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return BroadcastPayload{}, fmt.Errorf("unmarshal broadcast payload: %w", err)
	}
	return payload, nil
}

// Targets проверяет, адресована ли команда менеджеру с данным именем.
// Имена сравниваются регистронезависимо.
func (p BroadcastPayload) Targets(managerName string) bool {
	for _, name := range p.Managers {
		if strings.EqualFold(name, managerName) {
			return true
		}
	}
	return false
}

// Recognize возвращает распознанную команду.
// Неизвестная команда — ok=false; она логируется и игнорируется,
// listener при этом не падает и не зависает.
func (p BroadcastPayload) Recognize() (Command, bool) {
	switch strings.ToLower(strings.TrimSpace(p.Command)) {
	case string(CommandShutdown):
		return CommandShutdown, true
	case string(CommandReadConfig):
		return CommandReadConfig, true
	default:
		return "", false
	}
}

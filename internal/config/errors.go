package config

import "errors"

// Ошибки пакета config.
var (
	// ErrUsingDefaults — локальная конфигурация не была развёрнута
	// (sentinel UsingDefaults=true); старт менеджера запрещён.
	ErrUsingDefaults = errors.New("local settings were never provisioned (UsingDefaults=true)")

	// ErrManagerNameMissing — в локальном слое нет имени менеджера.
	ErrManagerNameMissing = errors.New("manager name missing from local settings")
)

package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Capman/internal/domain"
)

// Имена общеупотребимых настроек.
const (
	SettingManagerName     = "ManagerName"
	SettingSettingsGroup   = "SettingsGroup"
	SettingUsingDefaults   = "UsingDefaults"
	SettingManagerActive   = "MgrActive"
	SettingWorkDir         = "WorkDir"
	SettingMaxRepetitions  = "MaxRepetitions"
	SettingDebugLevel      = "DebugLevel"
	SettingMQLogging       = "LogStatusToMessageQueue"
	SettingManagerVersion  = "ManagerVersion"
	SettingPerspective     = "DatasetPathPerspective" // client | server
	SettingUploadIdentity  = "UploadServiceAccount"
)

// SettingsFetcher получает строки настроек из удалённого store.
// Реализуется queue.Client.
type SettingsFetcher interface {
	FetchSettings(ctx context.Context, name string) ([]domain.ParamRow, error)
}

// Settings — слой настроек менеджера.
//
// Значения из локального YAML загружаются первыми; WidenFromStore
// добавляет строки по имени менеджера (перекрывая предыдущие) и по
// settings-group (только заполняя пробелы). Горячее обновление отдельных
// настроек (debug level) допускается длинными tool-запусками, поэтому
// доступ защищён RWMutex.
type Settings struct {
	mu     sync.RWMutex
	values map[string]string

	path string
}

// Load читает локальный YAML-файл настроек.
//
// Возвращает ErrUsingDefaults, если файл содержит сентинел
// UsingDefaults=true, и ErrManagerNameMissing при отсутствии имени.
func Load(path string) (*Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}

	var doc map[string]string
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse settings file: %w", err)
	}

	s := &Settings{
		values: make(map[string]string, len(doc)),
		path:   path,
	}
	for k, v := range doc {
		s.values[strings.ToLower(k)] = v
	}

	if s.GetBool(SettingUsingDefaults, false) {
		return nil, ErrUsingDefaults
	}
	if s.ManagerName() == "" {
		return nil, ErrManagerNameMissing
	}

	return s, nil
}

// Path возвращает путь к локальному файлу настроек.
func (s *Settings) Path() string { return s.path }

// WidenFromStore расширяет настройки строками из удалённого store.
//
// Сначала применяются строки по имени менеджера (перекрывают предыдущие
// значения), затем строки settings-group — только в пробелы.
func (s *Settings) WidenFromStore(ctx context.Context, fetcher SettingsFetcher) error {
	name := s.ManagerName()

	rows, err := fetcher.FetchSettings(ctx, name)
	if err != nil {
		return fmt.Errorf("fetch settings for %s: %w", name, err)
	}
	s.mu.Lock()
	for _, row := range rows {
		s.values[strings.ToLower(row.Name)] = row.Value
	}
	s.mu.Unlock()

	group := s.Get(SettingSettingsGroup)
	if group == "" {
		return nil
	}

	groupRows, err := fetcher.FetchSettings(ctx, group)
	if err != nil {
		return fmt.Errorf("fetch settings group %s: %w", group, err)
	}
	s.mu.Lock()
	for _, row := range groupRows {
		key := strings.ToLower(row.Name)
		if _, exists := s.values[key]; !exists {
			s.values[key] = row.Value
		}
	}
	s.mu.Unlock()

	return nil
}

// Get возвращает значение настройки или пустую строку.
func (s *Settings) Get(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[strings.ToLower(name)]
}

// GetOr возвращает значение настройки или fallback.
func (s *Settings) GetOr(name, fallback string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[strings.ToLower(name)]; ok {
		return v
	}
	return fallback
}

// GetInt возвращает значение настройки как int.
func (s *Settings) GetInt(name string, fallback int) int {
	v := s.Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

// GetBool возвращает значение настройки как bool.
func (s *Settings) GetBool(name string, fallback bool) bool {
	v := s.Get(name)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}

// Set обновляет настройку. Используется для горячего обновления
// (debug level) длинными tool-запусками.
func (s *Settings) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[strings.ToLower(name)] = value
}

// ManagerName возвращает имя менеджера.
func (s *Settings) ManagerName() string { return s.Get(SettingManagerName) }

// WorkDir возвращает рабочую директорию менеджера.
func (s *Settings) WorkDir() string { return s.Get(SettingWorkDir) }

// MaxRepetitions возвращает максимум tasks за один запуск цикла.
func (s *Settings) MaxRepetitions() int { return s.GetInt(SettingMaxRepetitions, 1) }

// DebugLevel возвращает текущий debug level.
func (s *Settings) DebugLevel() int { return s.GetInt(SettingDebugLevel, 1) }

// SetDebugLevel горячо обновляет debug level.
func (s *Settings) SetDebugLevel(level int) {
	s.Set(SettingDebugLevel, strconv.Itoa(level))
}

// ManagerActive возвращает локальный флаг активности менеджера.
func (s *Settings) ManagerActive() bool { return s.GetBool(SettingManagerActive, true) }

// MQLoggingEnabled возвращает true, если статус публикуется в message queue.
func (s *Settings) MQLoggingEnabled() bool { return s.GetBool(SettingMQLogging, false) }

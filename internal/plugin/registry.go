package plugin

import (
	"fmt"
	"strings"
)

// Registry — реестр tool'ов: имя (lowercase) → ключ фабрики → фабрика.
type Registry struct {
	factories map[string]Factory
	manifest  map[string]string
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		manifest:  make(map[string]string),
	}
}

// RegisterFactory регистрирует фабрику по ключу.
func (r *Registry) RegisterFactory(key string, f Factory) {
	r.factories[strings.ToLower(key)] = f
}

// Bind привязывает имя tool к ключу фабрики (минуя манифест; тесты).
func (r *Registry) Bind(toolName, factoryKey string) {
	r.manifest[strings.ToLower(toolName)] = strings.ToLower(factoryKey)
}

// Resolve возвращает свежий экземпляр tool'а по имени.
//
// Резолв выполняется на каждый lease заново: кэша экземпляров нет,
// обновлённая привязка подхватывается между запусками.
func (r *Registry) Resolve(toolName string) (ToolRunner, error) {
	key, ok := r.manifest[strings.ToLower(toolName)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, toolName)
	}

	factory, ok := r.factories[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s (tool %s)", ErrFactoryMissing, key, toolName)
	}

	return factory(), nil
}

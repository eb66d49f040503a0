package plugin

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest — документ привязки tool'ов.
//
// Пример:
//
//	tools:
//	  - name: DatasetArchive
//	    factory: archive
//	  - name: DatasetArchiveUpdate
//	    factory: archive-update
type Manifest struct {
	Tools []ManifestEntry `yaml:"tools"`
}

// ManifestEntry — одна привязка имени tool к ключу фабрики.
type ManifestEntry struct {
	Name    string `yaml:"name"`
	Factory string `yaml:"factory"`
}

// LoadManifest читает манифест и заполняет привязки реестра.
//
// Имена сравниваются lowercase; ровно одна запись на имя — дубликат
// даёт ошибку, а не молчаливый выбор последней записи.
func (r *Registry) LoadManifest(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read tool manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("parse tool manifest: %w", err)
	}

	if len(m.Tools) == 0 {
		return ErrEmptyManifest
	}

	seen := make(map[string]bool, len(m.Tools))
	for _, entry := range m.Tools {
		name := strings.ToLower(strings.TrimSpace(entry.Name))
		key := strings.ToLower(strings.TrimSpace(entry.Factory))
		if name == "" || key == "" {
			return fmt.Errorf("manifest entry with empty name or factory")
		}
		if seen[name] {
			return fmt.Errorf("%w: %s", ErrDuplicateTool, entry.Name)
		}
		if _, ok := r.factories[key]; !ok {
			return fmt.Errorf("%w: %s (tool %s)", ErrFactoryMissing, entry.Factory, entry.Name)
		}
		seen[name] = true
		r.manifest[name] = key
	}

	return nil
}

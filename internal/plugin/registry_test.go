package plugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shaiso/Capman/internal/config"
	"github.com/shaiso/Capman/internal/domain"
	"github.com/shaiso/Capman/internal/status"
)

// noopTool — минимальный ToolRunner для проверки реестра.
// Ненулевой размер: указатели на zero-size значения могут совпадать,
// что ломает проверку «свежий экземпляр на каждый Resolve».
type noopTool struct{ _ int }

func (noopTool) Setup(*config.Settings, *domain.TaskRecord, *status.Reporter) error {
	return nil
}

func (noopTool) RunTool(context.Context) domain.CloseoutResult {
	return domain.CloseoutResult{Completion: domain.CompletionSuccess}
}

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tools.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	r.RegisterFactory("archive", func() ToolRunner { return &noopTool{} })
	r.Bind("DatasetArchive", "archive")

	// Имена регистронезависимы
	runner, err := r.Resolve("datasetarchive")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner == nil {
		t.Fatal("runner is nil")
	}
}

func TestRegistry_FreshInstancePerResolve(t *testing.T) {
	r := NewRegistry()
	r.RegisterFactory("archive", func() ToolRunner { return &noopTool{} })
	r.Bind("DatasetArchive", "archive")

	a, _ := r.Resolve("DatasetArchive")
	b, _ := r.Resolve("DatasetArchive")
	// Кэша экземпляров нет: каждый lease получает свежий tool
	if a == b {
		t.Error("Resolve must return a fresh instance per call")
	}
}

func TestRegistry_UnknownTool(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Resolve("NoSuchTool"); !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("err = %v, want ErrToolNotFound", err)
	}
}

func TestLoadManifest(t *testing.T) {
	r := NewRegistry()
	r.RegisterFactory("archive", func() ToolRunner { return &noopTool{} })
	r.RegisterFactory("archive-update", func() ToolRunner { return &noopTool{} })

	path := writeManifest(t, `
tools:
  - name: DatasetArchive
    factory: archive
  - name: DatasetArchiveUpdate
    factory: archive-update
`)
	if err := r.LoadManifest(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Resolve("DatasetArchiveUpdate"); err != nil {
		t.Errorf("manifest binding not applied: %v", err)
	}
}

func TestLoadManifest_DuplicateTool(t *testing.T) {
	r := NewRegistry()
	r.RegisterFactory("archive", func() ToolRunner { return &noopTool{} })

	path := writeManifest(t, `
tools:
  - name: DatasetArchive
    factory: archive
  - name: datasetarchive
    factory: archive
`)
	// Дубликат имени — ошибка, а не молчаливый выбор последней записи
	if err := r.LoadManifest(path); !errors.Is(err, ErrDuplicateTool) {
		t.Fatalf("err = %v, want ErrDuplicateTool", err)
	}
}

func TestLoadManifest_UnknownFactory(t *testing.T) {
	r := NewRegistry()
	path := writeManifest(t, `
tools:
  - name: DatasetArchive
    factory: no-such-factory
`)
	if err := r.LoadManifest(path); !errors.Is(err, ErrFactoryMissing) {
		t.Fatalf("err = %v, want ErrFactoryMissing", err)
	}
}

func TestLoadManifest_Empty(t *testing.T) {
	r := NewRegistry()
	path := writeManifest(t, `tools: []`)
	if err := r.LoadManifest(path); !errors.Is(err, ErrEmptyManifest) {
		t.Fatalf("err = %v, want ErrEmptyManifest", err)
	}
}

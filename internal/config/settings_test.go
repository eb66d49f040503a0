package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shaiso/Capman/internal/domain"
)

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capman.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeSettings(t, `
ManagerName: Proto-7_CTM
SettingsGroup: CTM_Group
WorkDir: /data/capman
MaxRepetitions: "25"
`)

	s, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ManagerName() != "Proto-7_CTM" {
		t.Errorf("ManagerName = %q", s.ManagerName())
	}
	if s.WorkDir() != "/data/capman" {
		t.Errorf("WorkDir = %q", s.WorkDir())
	}
	if s.MaxRepetitions() != 25 {
		t.Errorf("MaxRepetitions = %d, want 25", s.MaxRepetitions())
	}
	// Имена настроек регистронезависимы
	if s.Get("managername") != "Proto-7_CTM" {
		t.Error("setting names must be case-insensitive")
	}
}

func TestLoad_UsingDefaultsRefused(t *testing.T) {
	// Шаблонный файл с сентинелом — менеджер обязан отказаться стартовать
	path := writeSettings(t, `
ManagerName: Template_CTM
UsingDefaults: "true"
`)

	if _, err := Load(path); !errors.Is(err, ErrUsingDefaults) {
		t.Fatalf("err = %v, want ErrUsingDefaults", err)
	}
}

func TestLoad_ManagerNameRequired(t *testing.T) {
	path := writeSettings(t, `WorkDir: /data/capman`)

	if _, err := Load(path); !errors.Is(err, ErrManagerNameMissing) {
		t.Fatalf("err = %v, want ErrManagerNameMissing", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "no-such.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// fakeFetcher — заскриптованный удалённый store настроек.
type fakeFetcher struct {
	rows map[string][]domain.ParamRow
	errs map[string]error
}

func (f *fakeFetcher) FetchSettings(_ context.Context, name string) ([]domain.ParamRow, error) {
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	return f.rows[name], nil
}

func TestWidenFromStore(t *testing.T) {
	path := writeSettings(t, `
ManagerName: Proto-7_CTM
SettingsGroup: CTM_Group
WorkDir: /local/workdir
`)
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	fetcher := &fakeFetcher{rows: map[string][]domain.ParamRow{
		"Proto-7_CTM": {
			{Name: "WorkDir", Value: "/store/workdir"},
			{Name: "MaxRepetitions", Value: "50"},
		},
		"CTM_Group": {
			{Name: "MaxRepetitions", Value: "10"},
			{Name: "DebugLevel", Value: "3"},
		},
	}}

	if err := s.WidenFromStore(context.Background(), fetcher); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Строки по имени менеджера перекрывают
	if got := s.WorkDir(); got != "/store/workdir" {
		t.Errorf("WorkDir = %q, want manager-specific override", got)
	}
	if got := s.MaxRepetitions(); got != 50 {
		t.Errorf("MaxRepetitions = %d, want 50 (manager row wins over group row)", got)
	}
	// Group-строки заполняют только пробелы
	if got := s.DebugLevel(); got != 3 {
		t.Errorf("DebugLevel = %d, want 3 from group rows", got)
	}
}

func TestWidenFromStore_FetchError(t *testing.T) {
	path := writeSettings(t, `ManagerName: Proto-7_CTM`)
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	fetcher := &fakeFetcher{errs: map[string]error{
		"Proto-7_CTM": errors.New("store down"),
	}}
	if err := s.WidenFromStore(context.Background(), fetcher); err == nil {
		t.Fatal("expected error when store fetch fails")
	}
}

func TestSettings_TypedGetters(t *testing.T) {
	path := writeSettings(t, `
ManagerName: Proto-7_CTM
MaxRepetitions: not-a-number
LogStatusToMessageQueue: "true"
`)
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	// Неразбираемое значение — fallback
	if got := s.MaxRepetitions(); got != 1 {
		t.Errorf("MaxRepetitions = %d, want fallback 1", got)
	}
	if !s.MQLoggingEnabled() {
		t.Error("MQLoggingEnabled should be true")
	}
	if got := s.GetOr("NoSuchSetting", "fallback"); got != "fallback" {
		t.Errorf("GetOr = %q", got)
	}
}

func TestSettings_HotDebugLevel(t *testing.T) {
	path := writeSettings(t, `ManagerName: Proto-7_CTM`)
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if got := s.DebugLevel(); got != 1 {
		t.Errorf("default DebugLevel = %d, want 1", got)
	}
	s.SetDebugLevel(4)
	if got := s.DebugLevel(); got != 4 {
		t.Errorf("DebugLevel after SetDebugLevel = %d, want 4", got)
	}
}

func TestLocalDisable(t *testing.T) {
	path := writeSettings(t, `ManagerName: Proto-7_CTM`)
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if s.LocallyDisabled() {
		t.Fatal("fresh manager should not be disabled")
	}

	if err := s.PersistLocalDisable("excessive errors"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Флаг durable: новый Settings с того же файла видит его
	if !s.LocallyDisabled() {
		t.Error("manager should be disabled after PersistLocalDisable")
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reloaded.LocallyDisabled() {
		t.Error("local disable must survive settings reload")
	}
}

func TestLocalDisable_MgrActiveFalse(t *testing.T) {
	path := writeSettings(t, `
ManagerName: Proto-7_CTM
MgrActive: "false"
`)
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !s.LocallyDisabled() {
		t.Error("MgrActive=false should disable the manager locally")
	}
}

package domain

import (
	"strconv"
	"strings"
)

// ParamRow — одна строка (имя, значение) из ответа очереди на lease-запрос.
type ParamRow struct {
	Name  string
	Value string
}

// TaskRecord — параметры одного арендованного task.
//
// Имена параметров регистронезависимы. Record мутабелен: плагин может
// добавлять параметры по ходу выполнения, но имена, присутствующие на
// момент lease, никогда не удаляются в течение жизни task.
//
// Record создаётся пустым при конструировании менеджера и перезаполняется
// целиком через Reset при каждом успешном lease. Durability — на стороне
// внешнего store.
type TaskRecord struct {
	params map[string]string

	wasAssigned bool

	// Кэш числовой идентичности job/step, разбирается один раз в Reset.
	job  int
	step int
}

// NewTaskRecord создаёт пустой TaskRecord.
func NewTaskRecord() *TaskRecord {
	return &TaskRecord{params: make(map[string]string)}
}

// Reset перезаполняет record строками из ответа очереди.
// Предыдущее содержимое отбрасывается целиком.
func (t *TaskRecord) Reset(rows []ParamRow) {
	t.params = make(map[string]string, len(rows))
	for _, row := range rows {
		t.params[strings.ToLower(row.Name)] = row.Value
	}
	t.wasAssigned = true
	t.job = t.GetParamInt("Job", 0)
	t.step = t.GetParamInt("Step", 0)
}

// Clear сбрасывает record в пустое состояние (lease не назначен).
func (t *TaskRecord) Clear() {
	t.params = make(map[string]string)
	t.wasAssigned = false
	t.job = 0
	t.step = 0
}

// WasAssigned возвращает true, если record заполнен успешным lease.
func (t *TaskRecord) WasAssigned() bool {
	return t.wasAssigned
}

// AddParam добавляет или обновляет параметр.
func (t *TaskRecord) AddParam(name, value string) {
	t.params[strings.ToLower(name)] = value
}

// HasParam проверяет наличие параметра.
func (t *TaskRecord) HasParam(name string) bool {
	_, ok := t.params[strings.ToLower(name)]
	return ok
}

// GetParam возвращает значение параметра или пустую строку.
func (t *TaskRecord) GetParam(name string) string {
	return t.params[strings.ToLower(name)]
}

// GetParamOr возвращает значение параметра или fallback, если параметра нет.
func (t *TaskRecord) GetParamOr(name, fallback string) string {
	if v, ok := t.params[strings.ToLower(name)]; ok {
		return v
	}
	return fallback
}

// GetParamInt возвращает значение параметра как int.
// Отсутствующее или неразбираемое значение даёт fallback.
func (t *TaskRecord) GetParamInt(name string, fallback int) int {
	v, ok := t.params[strings.ToLower(name)]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

// GetParamBool возвращает значение параметра как bool.
func (t *TaskRecord) GetParamBool(name string, fallback bool) bool {
	v, ok := t.params[strings.ToLower(name)]
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}

// GetParamFloat возвращает значение параметра как float64.
func (t *TaskRecord) GetParamFloat(name string, fallback float64) float64 {
	v, ok := t.params[strings.ToLower(name)]
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fallback
	}
	return f
}

// Job возвращает номер job текущего lease.
func (t *TaskRecord) Job() int { return t.job }

// Step возвращает номер шага текущего lease.
func (t *TaskRecord) Step() int { return t.step }

// Dataset возвращает имя dataset текущего lease.
func (t *TaskRecord) Dataset() string { return t.GetParam("Dataset") }

// Tool возвращает имя step-tool текущего lease.
func (t *TaskRecord) Tool() string { return t.GetParam("StepTool") }

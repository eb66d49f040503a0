// Package plugin — диспетчеризация step-tool'ов.
//
// Структура:
//   - runner.go   — capability-интерфейс ToolRunner
//   - registry.go — реестр фабрик tool'ов
//   - manifest.go — YAML-манифест привязки имени tool к фабрике
//
// Вместо динамической загрузки бинарей — реестр зарегистрированных
// фабрик, заполняемый из манифеста при старте процесса. Resolve
// выполняется заново на каждый lease и всегда отдаёт свежий экземпляр:
// состояние tool'а не переживает lease.
//
// Ошибка резолва — task-уровневая: она закрывает конкретный task как
// Failed, цикл продолжается, error budget менеджера не тратится.
package plugin

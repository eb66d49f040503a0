// Package domain содержит типы предметной области capture task manager.
//
// Структура:
//   - taskrecord.go — параметры одного арендованного task (lease)
//   - status.go     — enum'ы статуса менеджера и task
//   - closeout.go   — результат выполнения task для отчёта в очередь
//   - stats.go      — статистика одной загрузки bundle
//
// Типы пакета — чистые значения без инфраструктурных зависимостей.
// Durability живёт во внешнем store: TaskRecord никогда не сохраняется
// локально и перезаполняется целиком при каждом успешном lease.
package domain

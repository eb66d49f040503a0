// Package upload — tool runner архивирования dataset'а в удалённый
// content-репозиторий.
//
// Структура:
//   - tool.go       — ArchiveTool: state machine одной попытки PerformTask
//   - bundle.go     — упаковка директории dataset в tar.gz bundle
//   - repository.go — клиент репозитория поверх MinIO (prod/test routing)
//   - identity.go   — проверка сервисной учётной записи
//   - throttle.go   — дросселирование progress и log-строк
//
// State machine: Validate dataset present → Bundle+Upload (retryable) →
// Report stats → Done. Максимум 2 попытки загрузки с паузой 5 секунд.
//
// Таксономия ошибок:
//   - source-missing       — фатально, retry бесполезен
//   - wrong-identity       — фатально, retry под чужой учёткой только
//     мис-атрибутирует данные
//   - transient-network    — retry в пределах лимита попыток
//   - protocol-mismatch    — успешный возврат без completion-подтверждения;
//     warning в лог, попытка считается неудачной
//   - прочие исключения    — retry в пределах лимита, код ошибки —
//     ненулевой hash сообщения
package upload

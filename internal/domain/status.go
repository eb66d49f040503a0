package domain

// ManagerStatus — статус процесса менеджера.
//
// Жизненный цикл:
//
//	STOPPED → RUNNING → STOPPED
//	                  ↘ STOPPED_ERROR
//	                  ↘ DISABLED_LOCAL / DISABLED_REMOTE
type ManagerStatus string

const (
	// ManagerStatusStopped — менеджер остановлен штатно.
	ManagerStatusStopped ManagerStatus = "STOPPED"

	// ManagerStatusStoppedError — менеджер остановлен из-за ошибки.
	ManagerStatusStoppedError ManagerStatus = "STOPPED_ERROR"

	// ManagerStatusRunning — менеджер работает.
	ManagerStatusRunning ManagerStatus = "RUNNING"

	// ManagerStatusDisabledLocal — менеджер выключен локальной конфигурацией.
	ManagerStatusDisabledLocal ManagerStatus = "DISABLED_LOCAL"

	// ManagerStatusDisabledRemote — менеджер выключен удалённым control store.
	ManagerStatusDisabledRemote ManagerStatus = "DISABLED_REMOTE"
)

// GaugeValue возвращает числовое значение статуса для метрики.
func (s ManagerStatus) GaugeValue() float64 {
	switch s {
	case ManagerStatusStopped:
		return 0
	case ManagerStatusStoppedError:
		return 1
	case ManagerStatusRunning:
		return 2
	case ManagerStatusDisabledLocal:
		return 3
	case ManagerStatusDisabledRemote:
		return 4
	default:
		return 0
	}
}

// TaskStatus — статус текущего task.
//
// Жизненный цикл:
//
//	NO_TASK → REQUESTING → RUNNING → CLOSING → NO_TASK
//	                               ↘ FAILED
type TaskStatus string

const (
	// TaskStatusStopped — работа над task остановлена.
	TaskStatusStopped TaskStatus = "STOPPED"

	// TaskStatusRequesting — менеджер запрашивает lease.
	TaskStatusRequesting TaskStatus = "REQUESTING"

	// TaskStatusRunning — tool выполняется.
	TaskStatusRunning TaskStatus = "RUNNING"

	// TaskStatusClosing — идёт closeout.
	TaskStatusClosing TaskStatus = "CLOSING"

	// TaskStatusFailed — task завершился ошибкой.
	TaskStatusFailed TaskStatus = "FAILED"

	// TaskStatusNoTask — lease не назначен.
	TaskStatusNoTask TaskStatus = "NO_TASK"
)

// TaskStatusDetail — деталь текущей фазы выполнения task.
type TaskStatusDetail string

const (
	// TaskDetailRetrievingResources — сбор ресурсов перед запуском tool.
	TaskDetailRetrievingResources TaskStatusDetail = "RETRIEVING_RESOURCES"

	// TaskDetailRunningTool — tool выполняется.
	TaskDetailRunningTool TaskStatusDetail = "RUNNING_TOOL"

	// TaskDetailPackagingResults — упаковка результатов (bundle).
	TaskDetailPackagingResults TaskStatusDetail = "PACKAGING_RESULTS"

	// TaskDetailDeliveringResults — передача результатов в репозиторий.
	TaskDetailDeliveringResults TaskStatusDetail = "DELIVERING_RESULTS"

	// TaskDetailNoTask — lease не назначен.
	TaskDetailNoTask TaskStatusDetail = "NO_TASK"
)

package status

import (
	"github.com/shaiso/Capman/internal/domain"
)

// Формат временных меток снапшота: UTC ISO-8601 с миллисекундами.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Максимум сообщений в кольце последних ошибок.
const recentErrorLimit = 5

// Snapshot — структурированный снапшот состояния менеджера.
// Переписывается целиком при каждом переходе, никогда не патчится.
type Snapshot struct {
	Manager ManagerSection `json:"manager"`
	Task    TaskSection    `json:"task"`
}

// ManagerSection — секция состояния процесса менеджера.
type ManagerSection struct {
	Name         string               `json:"name"`
	Status       domain.ManagerStatus `json:"status"`
	LastUpdate   string               `json:"last_update"`
	StartTime    string               `json:"start_time"`
	ProcessID    int                  `json:"process_id"`
	RecentErrors []string             `json:"recent_errors"`
}

// TaskSection — секция состояния текущего task.
type TaskSection struct {
	Tool             string            `json:"tool"`
	Status           domain.TaskStatus `json:"status"`
	DurationSeconds  float64           `json:"duration_sec"`
	DurationMinutes  float64           `json:"duration_min"`
	Progress         float64           `json:"progress"`
	CurrentOperation string            `json:"current_operation"`
	Details          TaskDetails       `json:"details"`
}

// TaskDetails — вложенные детали task.
type TaskDetails struct {
	StatusDetail      domain.TaskStatusDetail `json:"status_detail"`
	Job               int                     `json:"job"`
	Step              int                     `json:"step"`
	Dataset           string                  `json:"dataset"`
	MostRecentLogLine string                  `json:"most_recent_log_message"`
	MostRecentJobInfo string                  `json:"most_recent_job_info"`
}

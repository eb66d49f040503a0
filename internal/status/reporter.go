package status

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shaiso/Capman/internal/domain"
	"github.com/shaiso/Capman/internal/telemetry"
)

// StatusSender — публикация снапшота в control-канал.
// Реализуется mq.ControlChannel; в тестах подменяется фейком.
type StatusSender interface {
	SendStatus(snapshot any)
}

// Reporter — владелец текущего состояния менеджера и task.
//
// Все мутаторы пишут снапшот после изменения. Доступ сериализован
// мьютексом: состояние мутируют главный цикл, progress-callback
// загрузки и таймер Duration.
type Reporter struct {
	mu sync.Mutex

	managerName  string
	snapshotPath string
	flagPath     string
	startTime    time.Time

	sender    StatusSender
	mqEnabled bool

	logger *slog.Logger

	// Текущее состояние.
	mgrStatus  domain.ManagerStatus
	taskStatus domain.TaskStatus
	detail     domain.TaskStatusDetail

	job       int
	step      int
	dataset   string
	tool      string
	progress  float64
	operation string

	taskStarted time.Time

	recentErrors []string
	lastLogLine  string
	lastJobInfo  string
}

// Config — конфигурация Reporter.
type Config struct {
	// ManagerName — имя менеджера в секции Manager.
	ManagerName string

	// SnapshotPath — путь файла снапшота.
	SnapshotPath string

	// FlagPath — путь flag-файла "в середине task".
	FlagPath string

	// Sender — канал публикации статуса (может быть nil).
	Sender StatusSender

	// MQEnabled — публиковать ли снапшот в control-канал.
	MQEnabled bool

	Logger *slog.Logger
}

// NewReporter создаёт Reporter в состоянии Stopped/NoTask.
func NewReporter(cfg Config) *Reporter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		managerName:  cfg.ManagerName,
		snapshotPath: cfg.SnapshotPath,
		flagPath:     cfg.FlagPath,
		startTime:    time.Now().UTC(),
		sender:       cfg.Sender,
		mqEnabled:    cfg.MQEnabled,
		logger:       logger,
		mgrStatus:    domain.ManagerStatusStopped,
		taskStatus:   domain.TaskStatusNoTask,
		detail:       domain.TaskDetailNoTask,
	}
}

// SetManagerStatus переводит менеджер в новый статус.
func (r *Reporter) SetManagerStatus(s domain.ManagerStatus) {
	r.mu.Lock()
	r.mgrStatus = s
	r.writeLocked()
	r.mu.Unlock()
	telemetry.ManagerStatus.Set(s.GaugeValue())
}

// SetTaskRequesting отмечает начало lease-запроса.
func (r *Reporter) SetTaskRequesting() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.taskStatus = domain.TaskStatusRequesting
	r.detail = domain.TaskDetailNoTask
	r.writeLocked()
}

// SetTaskRunning отмечает запуск tool для полученного lease.
func (r *Reporter) SetTaskRunning(job, step int, dataset, tool string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.taskStatus = domain.TaskStatusRunning
	r.detail = domain.TaskDetailRunningTool
	r.job = job
	r.step = step
	r.dataset = dataset
	r.tool = tool
	r.progress = 0
	r.taskStarted = time.Now().UTC()
	r.writeLocked()
}

// SetTaskClosing отмечает начало closeout.
func (r *Reporter) SetTaskClosing() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.taskStatus = domain.TaskStatusClosing
	r.writeLocked()
}

// SetDetail обновляет деталь фазы выполнения.
func (r *Reporter) SetDetail(d domain.TaskStatusDetail) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detail = d
	r.writeLocked()
}

// SetProgress обновляет прогресс текущей операции. Значение зажимается
// в [0, 100].
func (r *Reporter) SetProgress(pct float64, operation string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	r.progress = pct
	if operation != "" {
		r.operation = operation
	}
	r.writeLocked()
}

// ResetTask переводит task в NoTask.
//
// Job, step, dataset, tool, progress и duration сбрасываются вместе,
// одним переходом: наблюдатель не должен увидеть NoTask с ненулевым
// номером job.
func (r *Reporter) ResetTask() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.taskStatus = domain.TaskStatusNoTask
	r.detail = domain.TaskDetailNoTask
	r.job = 0
	r.step = 0
	r.dataset = ""
	r.tool = ""
	r.progress = 0
	r.operation = ""
	r.taskStarted = time.Time{}
	r.writeLocked()
}

// RefreshDuration переписывает снапшот с актуальной Duration.
// Вызывается таймером, пока tool выполняется.
func (r *Reporter) RefreshDuration() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeLocked()
}

// ReportError добавляет сообщение в кольцо последних ошибок.
func (r *Reporter) ReportError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recentErrors = append([]string{msg}, r.recentErrors...)
	if len(r.recentErrors) > recentErrorLimit {
		r.recentErrors = r.recentErrors[:recentErrorLimit]
	}
	r.lastLogLine = msg
	r.writeLocked()
}

// SetLastLogLine обновляет последнюю log-строку task.
func (r *Reporter) SetLastLogLine(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastLogLine = msg
	r.writeLocked()
}

// SetJobInfo обновляет сводку текущего job.
func (r *Reporter) SetJobInfo(info string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastJobInfo = info
	r.writeLocked()
}

// WriteSnapshot пишет снапшот принудительно (без мутации состояния).
func (r *Reporter) WriteSnapshot() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeLocked()
}

// Snapshot возвращает копию текущего снапшота.
func (r *Reporter) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buildLocked()
}

// buildLocked собирает снапшот. Вызывается под мьютексом.
func (r *Reporter) buildLocked() Snapshot {
	now := time.Now().UTC()

	var durationSec float64
	if !r.taskStarted.IsZero() {
		durationSec = now.Sub(r.taskStarted).Seconds()
	}

	errs := make([]string, len(r.recentErrors))
	copy(errs, r.recentErrors)

	return Snapshot{
		Manager: ManagerSection{
			Name:         r.managerName,
			Status:       r.mgrStatus,
			LastUpdate:   now.Format(timestampLayout),
			StartTime:    r.startTime.Format(timestampLayout),
			ProcessID:    os.Getpid(),
			RecentErrors: errs,
		},
		Task: TaskSection{
			Tool:             r.tool,
			Status:           r.taskStatus,
			DurationSeconds:  durationSec,
			DurationMinutes:  durationSec / 60,
			Progress:         r.progress,
			CurrentOperation: r.operation,
			Details: TaskDetails{
				StatusDetail:      r.detail,
				Job:               r.job,
				Step:              r.step,
				Dataset:           r.dataset,
				MostRecentLogLine: r.lastLogLine,
				MostRecentJobInfo: r.lastJobInfo,
			},
		},
	}
}

// writeLocked сериализует снапшот в файл и форвардит в control-канал.
// Вызывается под мьютексом. Сбои логируются, никогда не пробрасываются.
func (r *Reporter) writeLocked() {
	snap := r.buildLocked()

	if err := r.writeFile(snap); err != nil {
		r.logger.Warn("failed to write status snapshot", "error", err)
	}

	if r.mqEnabled && r.sender != nil {
		r.sender.SendStatus(snap)
	}
}

// writeFile атомарно заменяет файл снапшота (tmp + rename).
func (r *Reporter) writeFile(snap Snapshot) error {
	if r.snapshotPath == "" {
		return nil
	}

	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := r.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return fmt.Errorf("write snapshot tmp: %w", err)
	}
	if err := os.Rename(tmp, r.snapshotPath); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

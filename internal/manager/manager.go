package manager

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/shaiso/Capman/internal/config"
	"github.com/shaiso/Capman/internal/domain"
	"github.com/shaiso/Capman/internal/mq"
	"github.com/shaiso/Capman/internal/plugin"
	"github.com/shaiso/Capman/internal/queue"
	"github.com/shaiso/Capman/internal/status"
	"github.com/shaiso/Capman/internal/telemetry"
)

// Потолок подряд идущих ошибок lease-запроса: строго больше — менеджер
// durable выключает себя.
const errorCeiling = 4

// Интервал таймера обновления Duration во время работы tool.
const defaultStatusInterval = 30 * time.Second

// TaskQueue — операции job-очереди, нужные циклу.
// Реализуется queue.Client; в тестах подменяется фейком.
type TaskQueue interface {
	RequestTask(ctx context.Context) (queue.TaskRequestResult, *domain.TaskRecord)
	CloseTask(ctx context.Context, job, step int, result domain.CloseoutResult) error
	RemoteActive(ctx context.Context) bool
	AckManagerUpdateRequired(ctx context.Context) error
}

// ToolResolver — резолв tool по имени. Реализуется plugin.Registry.
type ToolResolver interface {
	Resolve(toolName string) (plugin.ToolRunner, error)
}

// Manager — главный цикл выполнения.
type Manager struct {
	queue    TaskQueue
	registry ToolResolver
	settings *config.Settings
	reporter *status.Reporter
	watcher  *config.Watcher
	logger   *slog.Logger

	statusInterval time.Duration

	// Флаги, взводимые listener-потоком control-канала.
	// Цикл только читает, listener только взводит — блокировок не нужно.
	shutdownRequested atomic.Bool

	// Счётчики одного запуска цикла.
	taskCount  int
	errorCount int
}

// Config — конфигурация Manager.
type Config struct {
	Queue    TaskQueue
	Registry ToolResolver
	Settings *config.Settings
	Reporter *status.Reporter

	// Watcher — источник флага configChanged (file watch + readconfig).
	Watcher *config.Watcher

	// StatusInterval — период обновления Duration (default: 30s).
	StatusInterval time.Duration

	Logger *slog.Logger
}

// New создаёт Manager.
func New(cfg Config) *Manager {
	statusInterval := cfg.StatusInterval
	if statusInterval <= 0 {
		statusInterval = defaultStatusInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		queue:          cfg.Queue,
		registry:       cfg.Registry,
		settings:       cfg.Settings,
		reporter:       cfg.Reporter,
		watcher:        cfg.Watcher,
		logger:         logger,
		statusInterval: statusInterval,
	}
}

// HandleCommand обрабатывает control-команду.
//
// Вызывается из delivery-потока брокера: только взводит флаги, эффект —
// в начале следующей итерации цикла. Начатый lease дорабатывается и
// закрывается до выхода.
func (m *Manager) HandleCommand(cmd mq.Command) {
	switch cmd {
	case mq.CommandShutdown:
		m.logger.Info("shutdown command accepted")
		m.shutdownRequested.Store(true)
	case mq.CommandReadConfig:
		m.logger.Info("readconfig command accepted")
		m.watcher.MarkChanged()
	}
}

// Run выполняет цикл до терминальной причины выхода.
func (m *Manager) Run(ctx context.Context) LoopExitCode {
	m.logger.Info("===== manager task loop starting =====",
		"manager", m.settings.ManagerName(),
		"max_repetitions", m.settings.MaxRepetitions(),
	)
	m.reporter.SetManagerStatus(domain.ManagerStatusRunning)

	code := m.loop(ctx)

	m.dispatchExit(ctx, code)
	m.logger.Info("===== manager task loop finished =====",
		"exit_cause", code.String(),
		"tasks_completed", m.taskCount,
	)
	return code
}

// loop — итерации до первого условия выхода.
func (m *Manager) loop(ctx context.Context) LoopExitCode {
	for {
		// Кооперативный shutdown: сигнал процесса или broadcast-команда
		// берут эффект только здесь, между итерациями.
		if ctx.Err() != nil || m.shutdownRequested.Load() {
			return ExitShutdown
		}

		if code, exit := m.preflight(ctx); exit {
			return code
		}

		if code, exit := m.iterate(ctx); exit {
			return code
		}
	}
}

// preflight — упорядоченные проверки начала итерации; первая
// сработавшая выигрывает.
func (m *Manager) preflight(ctx context.Context) (LoopExitCode, bool) {
	if m.watcher.Changed() {
		return ExitConfigChanged, true
	}

	if !m.queue.RemoteActive(ctx) {
		return ExitDisabledRemote, true
	}

	if m.settings.LocallyDisabled() {
		return ExitDisabledLocal, true
	}

	if m.errorCount > errorCeiling {
		return ExitExcessiveErrors, true
	}

	if !m.workDirValid() {
		return ExitInvalidWorkDir, true
	}

	return 0, false
}

// iterate — один цикл lease → tool → closeout.
func (m *Manager) iterate(ctx context.Context) (LoopExitCode, bool) {
	m.reporter.SetTaskRequesting()

	result, record := m.queue.RequestTask(ctx)
	telemetry.LeaseRequests.WithLabelValues(result.String()).Inc()

	switch result {
	case queue.RequestNotFound:
		return ExitNoTask, true

	case queue.RequestError, queue.RequestExcessiveRetries, queue.RequestDeadlock:
		m.errorCount++
		telemetry.ConsecutiveErrors.Set(float64(m.errorCount))
		m.reporter.ReportError(fmt.Sprintf("task request failed: %s", result))
		m.logger.Warn("task request failed",
			"result", result.String(), "consecutive_errors", m.errorCount)
		return 0, false

	case queue.RequestFound:
		m.errorCount = 0
		telemetry.ConsecutiveErrors.Set(0)
		m.runTask(ctx, record)

		m.taskCount++
		if m.taskCount >= m.settings.MaxRepetitions() {
			return ExitMaxTasksReached, true
		}
		return 0, false

	default:
		m.errorCount++
		return 0, false
	}
}

// runTask выполняет один полученный lease: resolve → Setup → RunTool →
// closeout → idle. Lease всегда закрывается closeout'ом.
func (m *Manager) runTask(ctx context.Context, record *domain.TaskRecord) {
	job, step := record.Job(), record.Step()
	logger := telemetry.WithTool(telemetry.WithJob(m.logger, job, step), record.Tool())

	m.reporter.SetTaskRunning(job, step, record.Dataset(), record.Tool())
	m.reporter.SetJobInfo(fmt.Sprintf("job %d step %d, dataset %s, tool %s",
		job, step, record.Dataset(), record.Tool()))
	logger.Info("task leased", "dataset", record.Dataset())

	runner, err := m.registry.Resolve(record.Tool())
	if err == nil {
		err = runner.Setup(m.settings, record, m.reporter)
	}
	if err != nil {
		// Плохая привязка tool — сбой уровня task, не здоровья менеджера:
		// error budget не тратится.
		logger.Error("tool resolution failed", "error", err)
		m.closeTask(ctx, job, step, domain.CloseoutResult{
			Completion:        domain.CompletionFailed,
			CompletionMessage: fmt.Sprintf("tool resolution failed: %v", err),
			Evaluation:        domain.EvalNotEvaluated,
		})
		return
	}

	m.reporter.CreateTaskFlag()

	// Таймер Duration живёт только на время RunTool.
	timerCtx, stopTimer := context.WithCancel(ctx)
	go m.durationTimer(timerCtx)

	result := runner.RunTool(ctx)
	stopTimer()

	logger.Info("tool finished",
		"completion", result.Completion.String(),
		"evaluation", int(result.Evaluation),
		"message", result.CompletionMessage,
	)
	if !result.Succeeded() {
		m.reporter.ReportError(result.CompletionMessage)
	}

	m.closeTask(ctx, job, step, result)
	m.reporter.ClearTaskFlag()
}

// closeTask отчитывается о завершении и возвращает статус в idle.
func (m *Manager) closeTask(ctx context.Context, job, step int, result domain.CloseoutResult) {
	m.reporter.SetTaskClosing()

	if err := m.queue.CloseTask(ctx, job, step, result); err != nil {
		// Повторных closeout главный цикл не делает.
		m.logger.Error("closeout failed", "job", job, "step", step, "error", err)
	}
	telemetry.TasksCompleted.WithLabelValues(result.Completion.String()).Inc()

	m.reporter.ResetTask()
}

// durationTimer периодически переписывает снапшот с актуальной Duration,
// пока tool выполняется.
func (m *Manager) durationTimer(ctx context.Context) {
	ticker := time.NewTicker(m.statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reporter.RefreshDuration()
		}
	}
}

// workDirValid проверяет рабочую директорию менеджера.
func (m *Manager) workDirValid() bool {
	dir := m.settings.WorkDir()
	if dir == "" {
		return false
	}
	fi, err := os.Stat(dir)
	return err == nil && fi.IsDir()
}

// dispatchExit — единственное место, где цикл пишет терминальный статус.
func (m *Manager) dispatchExit(ctx context.Context, code LoopExitCode) {
	switch code {
	case ExitConfigChanged:
		// Статус не трогаем: обёртка сейчас же перезапустит цикл.
		if err := m.queue.AckManagerUpdateRequired(ctx); err != nil {
			m.logger.Warn("failed to ack manager update", "error", err)
		}

	case ExitDisabledRemote:
		m.reporter.SetManagerStatus(domain.ManagerStatusDisabledRemote)

	case ExitDisabledLocal:
		m.reporter.SetManagerStatus(domain.ManagerStatusDisabledLocal)

	case ExitExcessiveErrors:
		if err := m.settings.PersistLocalDisable(code.String()); err != nil {
			m.logger.Error("failed to persist local disable", "error", err)
		}
		m.reporter.SetManagerStatus(domain.ManagerStatusStoppedError)

	case ExitInvalidWorkDir:
		if err := m.settings.PersistLocalDisable(code.String()); err != nil {
			m.logger.Error("failed to persist local disable", "error", err)
		}
		m.reporter.SetManagerStatus(domain.ManagerStatusStoppedError)

	default:
		m.reporter.SetManagerStatus(domain.ManagerStatusStopped)
	}
}

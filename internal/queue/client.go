package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/Capman/internal/dbproc"
	"github.com/shaiso/Capman/internal/domain"
)

// Имена процедур job-очереди.
const (
	procRequestStepTask        = "request_step_task"
	procSetStepTaskComplete    = "set_step_task_complete"
	procReportManagerIdle      = "report_manager_idle"
	procAckManagerUpdate       = "ack_manager_update_required"
	procReportErrorCleanup     = "report_manager_error_cleanup"
	procGetManagerParameters   = "get_manager_parameters"
	procStoreMyEMSLUploadStats = "store_myemsl_upload_stats"
)

// Бюджет retry для вызовов процедур.
const defaultProcRetries = 3

// TaskRequestResult — исход lease-запроса.
type TaskRequestResult int

const (
	// RequestFound — lease получен, TaskRecord заполнен.
	RequestFound TaskRequestResult = iota

	// RequestNotFound — работы нет.
	RequestNotFound

	// RequestError — прикладная ошибка или неразбираемый ответ.
	RequestError

	// RequestExcessiveRetries — бюджет retry соединения исчерпан.
	RequestExcessiveRetries

	// RequestDeadlock — вызов стал жертвой deadlock.
	RequestDeadlock
)

// String возвращает строковое представление результата.
func (r TaskRequestResult) String() string {
	switch r {
	case RequestFound:
		return "found"
	case RequestNotFound:
		return "not_found"
	case RequestError:
		return "error"
	case RequestExcessiveRetries:
		return "excessive_retries"
	case RequestDeadlock:
		return "deadlock"
	default:
		return "unknown"
	}
}

// ProcCaller — вызов хранимой процедуры. Реализуется dbproc.Executor;
// в тестах подменяется фейком.
type ProcCaller interface {
	Execute(ctx context.Context, proc string, args []dbproc.Arg, maxRetries int) (int, []dbproc.Row)
}

// Client — клиент job-очереди одного менеджера.
type Client struct {
	caller ProcCaller
	logger *slog.Logger

	managerName    string
	managerVersion string
	maxRetries     int
}

// Config — конфигурация Client.
type Config struct {
	Caller ProcCaller

	// ManagerName — имя этого менеджера в очереди.
	ManagerName string

	// ManagerVersion — версия, передаваемая в lease-запросе.
	ManagerVersion string

	// MaxRetries — бюджет retry вызовов (default: 3).
	MaxRetries int

	Logger *slog.Logger
}

// New создаёт Client.
func New(cfg Config) *Client {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultProcRetries
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		caller:         cfg.Caller,
		logger:         logger,
		managerName:    cfg.ManagerName,
		managerVersion: cfg.ManagerVersion,
		maxRetries:     maxRetries,
	}
}

// RequestTask запрашивает lease у очереди.
//
// На Found возвращает заполненный TaskRecord. Отсутствующий или
// неразбираемый набор строк понижает Found до Error.
//
// На ExcessiveRetries и Deadlock перед возвратом ровно один раз вызывается
// ReportManagerIdle: store мог закоммитить lease до разрыва соединения.
// Сбой самого idle-отчёта логируется и не меняет результат.
func (c *Client) RequestTask(ctx context.Context) (TaskRequestResult, *domain.TaskRecord) {
	code, rows := c.caller.Execute(ctx, procRequestStepTask, []dbproc.Arg{
		{Name: "processorName", Value: c.managerName},
		{Name: "managerVersion", Value: c.managerVersion},
		{Name: "jobCountToPreview", Value: 10},
	}, c.maxRetries)

	switch code {
	case dbproc.RetSuccess:
		record, ok := parseTaskRows(rows)
		if !ok {
			c.logger.Error("lease response rows missing or unparsable")
			return RequestError, nil
		}
		return RequestFound, record

	case dbproc.RetNoTask:
		return RequestNotFound, nil

	case dbproc.RetExcessiveRetries:
		c.revertAmbiguousLease("excessive retries")
		return RequestExcessiveRetries, nil

	case dbproc.RetDeadlock:
		c.revertAmbiguousLease("deadlock")
		return RequestDeadlock, nil

	default:
		c.logger.Error("lease request returned error code", "return_code", code)
		return RequestError, nil
	}
}

// revertAmbiguousLease сообщает очереди, что менеджер свободен.
// Контекст намеренно не наследуется от вызова lease: отчёт обязан уйти
// даже если исходный контекст уже отменён.
func (c *Client) revertAmbiguousLease(cause string) {
	c.logger.Warn("lease request failed ambiguously, reporting manager idle", "cause", cause)
	if err := c.ReportManagerIdle(context.Background()); err != nil {
		c.logger.Error("failed to report manager idle", "error", err)
	}
}

// parseTaskRows собирает TaskRecord из строк параметров.
func parseTaskRows(rows []dbproc.Row) (*domain.TaskRecord, bool) {
	if len(rows) == 0 {
		return nil, false
	}
	params := make([]domain.ParamRow, 0, len(rows))
	for _, row := range rows {
		name := row.Get("parameter_name")
		if name == "" {
			return nil, false
		}
		params = append(params, domain.ParamRow{
			Name:  name,
			Value: row.Get("parameter_value"),
		})
	}

	record := domain.NewTaskRecord()
	record.Reset(params)
	return record, true
}

// CloseTask отчитывается о завершении task.
//
// Сбой самого вызова логируется и не повторяется на этом уровне:
// главный цикл не делает повторных closeout.
func (c *Client) CloseTask(ctx context.Context, job, step int, result domain.CloseoutResult) error {
	code, _ := c.caller.Execute(ctx, procSetStepTaskComplete, []dbproc.Arg{
		{Name: "job", Value: job},
		{Name: "step", Value: step},
		{Name: "completionCode", Value: int(result.Completion)},
		{Name: "completionMessage", Value: result.CompletionMessage},
		{Name: "evaluationCode", Value: int(result.Evaluation)},
		{Name: "evaluationMessage", Value: result.EvaluationMessage},
	}, c.maxRetries)

	if code != dbproc.RetSuccess {
		err := fmt.Errorf("set_step_task_complete returned %d", code)
		c.logger.Error("closeout failed", "job", job, "step", step, "error", err)
		return err
	}
	return nil
}

// ReportManagerIdle сообщает очереди, что менеджер не держит lease.
func (c *Client) ReportManagerIdle(ctx context.Context) error {
	code, _ := c.caller.Execute(ctx, procReportManagerIdle, []dbproc.Arg{
		{Name: "managerName", Value: c.managerName},
	}, c.maxRetries)
	if code != dbproc.RetSuccess {
		return fmt.Errorf("report_manager_idle returned %d", code)
	}
	return nil
}

// AckManagerUpdateRequired подтверждает store получение запроса на
// обновление конфигурации (broadcast readconfig).
func (c *Client) AckManagerUpdateRequired(ctx context.Context) error {
	code, _ := c.caller.Execute(ctx, procAckManagerUpdate, []dbproc.Arg{
		{Name: "managerName", Value: c.managerName},
	}, c.maxRetries)
	if code != dbproc.RetSuccess {
		return fmt.Errorf("ack_manager_update_required returned %d", code)
	}
	return nil
}

// ReportManagerErrorCleanup отчитывается о cleanup после нештатного выхода.
func (c *Client) ReportManagerErrorCleanup(ctx context.Context, state int, failureMsg string) error {
	code, _ := c.caller.Execute(ctx, procReportErrorCleanup, []dbproc.Arg{
		{Name: "managerName", Value: c.managerName},
		{Name: "state", Value: state},
		{Name: "failureMsg", Value: failureMsg},
	}, c.maxRetries)
	if code != dbproc.RetSuccess {
		return fmt.Errorf("report_manager_error_cleanup returned %d", code)
	}
	return nil
}

// FetchSettings возвращает строки настроек для менеджера или settings-group.
// Реализует config.SettingsFetcher.
func (c *Client) FetchSettings(ctx context.Context, name string) ([]domain.ParamRow, error) {
	code, rows := c.caller.Execute(ctx, procGetManagerParameters, []dbproc.Arg{
		{Name: "managerName", Value: name},
	}, c.maxRetries)
	if code != dbproc.RetSuccess {
		return nil, fmt.Errorf("get_manager_parameters returned %d", code)
	}

	params := make([]domain.ParamRow, 0, len(rows))
	for _, row := range rows {
		name := row.Get("parameter_name")
		if name == "" {
			continue
		}
		params = append(params, domain.ParamRow{
			Name:  name,
			Value: row.Get("parameter_value"),
		})
	}
	return params, nil
}

// RemoteActive проверяет флаг активности менеджера в control store.
//
// Сбой проверки трактуется как "активен": временная недоступность store
// не повод выключать менеджер (на это есть error budget lease-запросов).
func (c *Client) RemoteActive(ctx context.Context) bool {
	rows, err := c.FetchSettings(ctx, c.managerName)
	if err != nil {
		c.logger.Warn("remote active check failed, assuming active", "error", err)
		return true
	}
	for _, row := range rows {
		if row.Name == "MgrActive" || row.Name == "mgractive" {
			return row.Value != "false" && row.Value != "False" && row.Value != "0"
		}
	}
	return true
}

// StoreUploadStats записывает статистику загрузки bundle.
func (c *Client) StoreUploadStats(ctx context.Context, job, datasetID int, subfolder string, stats domain.UploadStats) error {
	code, _ := c.caller.Execute(ctx, procStoreMyEMSLUploadStats, []dbproc.Arg{
		{Name: "job", Value: job},
		{Name: "datasetID", Value: datasetID},
		{Name: "subfolder", Value: subfolder},
		{Name: "fileCountNew", Value: stats.NewFileCount},
		{Name: "fileCountUpdated", Value: stats.UpdatedFileCount},
		{Name: "bytes", Value: stats.TotalBytes},
		{Name: "uploadTimeSeconds", Value: stats.ElapsedSeconds},
		{Name: "statusURI", Value: stats.StatusURI},
		{Name: "errorCode", Value: stats.ErrorCode},
		{Name: "usedTestInstance", Value: stats.UsedTestInstance},
		{Name: "eusInstrumentID", Value: stats.InstrumentID},
		{Name: "eusProjectID", Value: stats.ProjectID},
		{Name: "eusUploaderID", Value: stats.UploaderID},
	}, c.maxRetries)
	if code != dbproc.RetSuccess {
		return fmt.Errorf("store_myemsl_upload_stats returned %d", code)
	}
	return nil
}

package queue

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shaiso/Capman/internal/dbproc"
	"github.com/shaiso/Capman/internal/domain"
)

// fakeCaller подменяет Executor: возвращает заскриптованные ответы
// по имени процедуры и считает вызовы.
type fakeCaller struct {
	codes map[string]int
	rows  map[string][]dbproc.Row
	calls map[string]int
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{
		codes: make(map[string]int),
		rows:  make(map[string][]dbproc.Row),
		calls: make(map[string]int),
	}
}

func (f *fakeCaller) Execute(_ context.Context, proc string, _ []dbproc.Arg, _ int) (int, []dbproc.Row) {
	f.calls[proc]++
	return f.codes[proc], f.rows[proc]
}

func newTestClient(caller *fakeCaller) *Client {
	return New(Config{
		Caller:         caller,
		ManagerName:    "Proto-7_CTM",
		ManagerVersion: "1.4.0",
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func leaseRows() []dbproc.Row {
	return []dbproc.Row{
		{"parameter_name": "Job", "parameter_value": "1001"},
		{"parameter_name": "Step", "parameter_value": "3"},
		{"parameter_name": "Dataset", "parameter_value": "QC_Mam_23_01"},
		{"parameter_name": "StepTool", "parameter_value": "DatasetArchive"},
	}
}

func TestRequestTask_Found(t *testing.T) {
	caller := newFakeCaller()
	caller.codes[procRequestStepTask] = dbproc.RetSuccess
	caller.rows[procRequestStepTask] = leaseRows()

	client := newTestClient(caller)
	result, record := client.RequestTask(context.Background())

	if result != RequestFound {
		t.Fatalf("result = %v, want RequestFound", result)
	}
	if record == nil || record.Job() != 1001 || record.Step() != 3 {
		t.Fatalf("record not filled from lease rows: %+v", record)
	}
	if record.Tool() != "DatasetArchive" {
		t.Errorf("Tool = %q", record.Tool())
	}
	// Успешный lease не трогает idle-отчёт
	if caller.calls[procReportManagerIdle] != 0 {
		t.Errorf("report_manager_idle called %d times, want 0", caller.calls[procReportManagerIdle])
	}
}

func TestRequestTask_NoTask(t *testing.T) {
	caller := newFakeCaller()
	caller.codes[procRequestStepTask] = dbproc.RetNoTask

	client := newTestClient(caller)
	result, record := client.RequestTask(context.Background())

	if result != RequestNotFound {
		t.Fatalf("result = %v, want RequestNotFound", result)
	}
	if record != nil {
		t.Errorf("record should be nil when no task is available")
	}
	if caller.calls[procReportManagerIdle] != 0 {
		t.Errorf("report_manager_idle called %d times, want 0", caller.calls[procReportManagerIdle])
	}
}

func TestRequestTask_ExcessiveRetriesRevertsLease(t *testing.T) {
	// Store мог закоммитить lease до разрыва соединения: на исчерпание
	// retry клиент обязан ровно один раз отчитаться idle.
	caller := newFakeCaller()
	caller.codes[procRequestStepTask] = dbproc.RetExcessiveRetries
	caller.codes[procReportManagerIdle] = dbproc.RetSuccess

	client := newTestClient(caller)
	result, _ := client.RequestTask(context.Background())

	if result != RequestExcessiveRetries {
		t.Fatalf("result = %v, want RequestExcessiveRetries", result)
	}
	if got := caller.calls[procReportManagerIdle]; got != 1 {
		t.Errorf("report_manager_idle called %d times, want exactly 1", got)
	}
}

func TestRequestTask_DeadlockRevertsLease(t *testing.T) {
	caller := newFakeCaller()
	caller.codes[procRequestStepTask] = dbproc.RetDeadlock
	caller.codes[procReportManagerIdle] = dbproc.RetSuccess

	client := newTestClient(caller)
	result, _ := client.RequestTask(context.Background())

	if result != RequestDeadlock {
		t.Fatalf("result = %v, want RequestDeadlock", result)
	}
	if got := caller.calls[procReportManagerIdle]; got != 1 {
		t.Errorf("report_manager_idle called %d times, want exactly 1", got)
	}
}

func TestRequestTask_IdleFailureKeepsResult(t *testing.T) {
	// Сбой самого idle-отчёта не меняет результат lease-запроса
	caller := newFakeCaller()
	caller.codes[procRequestStepTask] = dbproc.RetDeadlock
	caller.codes[procReportManagerIdle] = 99

	client := newTestClient(caller)
	result, _ := client.RequestTask(context.Background())

	if result != RequestDeadlock {
		t.Fatalf("result = %v, want RequestDeadlock despite idle failure", result)
	}
}

func TestRequestTask_UnparsableRowsDowngradeToError(t *testing.T) {
	caller := newFakeCaller()
	caller.codes[procRequestStepTask] = dbproc.RetSuccess
	caller.rows[procRequestStepTask] = []dbproc.Row{
		{"parameter_value": "orphan"},
	}

	client := newTestClient(caller)
	result, record := client.RequestTask(context.Background())

	if result != RequestError {
		t.Fatalf("result = %v, want RequestError for unparsable rows", result)
	}
	if record != nil {
		t.Error("record should be nil for unparsable rows")
	}
}

func TestRequestTask_EmptyRowsDowngradeToError(t *testing.T) {
	caller := newFakeCaller()
	caller.codes[procRequestStepTask] = dbproc.RetSuccess

	client := newTestClient(caller)
	result, _ := client.RequestTask(context.Background())

	if result != RequestError {
		t.Fatalf("result = %v, want RequestError for success without rows", result)
	}
}

func TestCloseTask(t *testing.T) {
	caller := newFakeCaller()
	caller.codes[procSetStepTaskComplete] = dbproc.RetSuccess

	client := newTestClient(caller)
	err := client.CloseTask(context.Background(), 1001, 3, domain.CloseoutResult{
		Completion:        domain.CompletionSuccess,
		CompletionMessage: "bundle uploaded",
		Evaluation:        domain.EvalSubmittedToRemoteStore,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	caller.codes[procSetStepTaskComplete] = 5
	err = client.CloseTask(context.Background(), 1001, 3, domain.CloseoutResult{})
	if err == nil {
		t.Fatal("expected error for non-zero return code")
	}
}

func TestRemoteActive(t *testing.T) {
	caller := newFakeCaller()
	caller.codes[procGetManagerParameters] = dbproc.RetSuccess
	caller.rows[procGetManagerParameters] = []dbproc.Row{
		{"parameter_name": "MgrActive", "parameter_value": "False"},
	}

	client := newTestClient(caller)
	if client.RemoteActive(context.Background()) {
		t.Error("MgrActive=False should report inactive")
	}

	caller.rows[procGetManagerParameters] = []dbproc.Row{
		{"parameter_name": "MgrActive", "parameter_value": "True"},
	}
	if !client.RemoteActive(context.Background()) {
		t.Error("MgrActive=True should report active")
	}

	// Флага нет вовсе — считаем активным
	caller.rows[procGetManagerParameters] = nil
	if !client.RemoteActive(context.Background()) {
		t.Error("missing MgrActive should report active")
	}
}

func TestRemoteActive_FetchFailureAssumesActive(t *testing.T) {
	// Временная недоступность store — не повод выключать менеджер
	caller := newFakeCaller()
	caller.codes[procGetManagerParameters] = 99

	client := newTestClient(caller)
	if !client.RemoteActive(context.Background()) {
		t.Error("fetch failure should be treated as active")
	}
}

func TestFetchSettings_SkipsNamelessRows(t *testing.T) {
	caller := newFakeCaller()
	caller.codes[procGetManagerParameters] = dbproc.RetSuccess
	caller.rows[procGetManagerParameters] = []dbproc.Row{
		{"parameter_name": "WorkDir", "parameter_value": "/data/capman"},
		{"parameter_value": "orphan"},
	}

	client := newTestClient(caller)
	rows, err := client.FetchSettings(context.Background(), "Proto-7_CTM")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "WorkDir" {
		t.Fatalf("rows = %+v, want single WorkDir row", rows)
	}
}

func TestTaskRequestResult_String(t *testing.T) {
	cases := map[TaskRequestResult]string{
		RequestFound:            "found",
		RequestNotFound:         "not_found",
		RequestError:            "error",
		RequestExcessiveRetries: "excessive_retries",
		RequestDeadlock:         "deadlock",
	}
	for result, want := range cases {
		if got := result.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", result, got, want)
		}
	}
}

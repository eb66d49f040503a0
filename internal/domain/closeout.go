package domain

// CompletionCode — итог выполнения task для closeout.
type CompletionCode int

const (
	// CompletionSuccess — task выполнен успешно.
	CompletionSuccess CompletionCode = 0

	// CompletionFailed — task завершился ошибкой.
	CompletionFailed CompletionCode = 1

	// CompletionNotReady — task пока не может быть выполнен.
	CompletionNotReady CompletionCode = 2

	// CompletionNeedsAbort — task должен быть снят очередью.
	CompletionNeedsAbort CompletionCode = 3
)

// String возвращает строковое представление CompletionCode.
func (c CompletionCode) String() string {
	switch c {
	case CompletionSuccess:
		return "success"
	case CompletionFailed:
		return "failed"
	case CompletionNotReady:
		return "not_ready"
	case CompletionNeedsAbort:
		return "needs_abort"
	default:
		return "unknown"
	}
}

// EvaluationCode — результат оценки доставки в удалённый репозиторий.
type EvaluationCode int

const (
	// EvalSuccess — доставка подтверждена.
	EvalSuccess EvaluationCode = 0

	// EvalFailed — доставка не удалась.
	EvalFailed EvaluationCode = 1

	// EvalNotEvaluated — оценка не выполнялась.
	EvalNotEvaluated EvaluationCode = 2

	// EvalNetworkErrorRetry — сетевая ошибка, имеет смысл retry.
	EvalNetworkErrorRetry EvaluationCode = 3

	// EvalSubmittedToRemoteStore — bundle передан репозиторию.
	EvalSubmittedToRemoteStore EvaluationCode = 4

	// EvalRemoteStoreAlreadyCurrent — репозиторий уже содержит актуальную копию.
	EvalRemoteStoreAlreadyCurrent EvaluationCode = 5

	// EvalSkippedRemoteUpload — загрузка пропущена (debug/offline режим).
	EvalSkippedRemoteUpload EvaluationCode = 6

	// EvalFailureDoNotRetry — невосстановимая ошибка, retry бесполезен.
	EvalFailureDoNotRetry EvaluationCode = 7
)

// CloseoutResult — итог одного lease для отчёта в очередь.
//
// Производится ровно один раз tool runner'ом, потребляется ровно один раз
// клиентом closeout и после отчёта не сохраняется.
type CloseoutResult struct {
	Completion        CompletionCode
	CompletionMessage string

	Evaluation        EvaluationCode
	EvaluationMessage string
}

// Succeeded возвращает true, если task завершён успешно.
func (r CloseoutResult) Succeeded() bool {
	return r.Completion == CompletionSuccess
}

// NoRetry возвращает true, если повтор task заведомо бесполезен.
func (r CloseoutResult) NoRetry() bool {
	return r.Evaluation == EvalFailureDoNotRetry
}

package upload

import "errors"

// Ошибки операции загрузки.
var (
	// ErrSourceMissing — директория dataset не существует.
	ErrSourceMissing = errors.New("dataset source directory not found")

	// ErrWrongIdentity — процесс выполняется не под требуемой сервисной
	// учётной записью.
	ErrWrongIdentity = errors.New("not running under required service account")

	// ErrNoCompletionAck — загрузка вернула успех, но completion-подтверждение
	// от репозитория не получено.
	ErrNoCompletionAck = errors.New("upload succeeded without completion acknowledgment")

	// ErrEmptyBundle — в bundle не попало ни одного файла.
	ErrEmptyBundle = errors.New("bundle contains no files")
)

package domain

// UploadStats — статистика одной попытки загрузки bundle.
//
// Производится ровно один раз на попытку, записывается в store
// и после записи не сохраняется.
type UploadStats struct {
	// NewFileCount — количество новых файлов в bundle.
	NewFileCount int

	// UpdatedFileCount — количество обновлённых файлов в bundle.
	UpdatedFileCount int

	// TotalBytes — объём переданных данных.
	TotalBytes int64

	// ElapsedSeconds — длительность загрузки.
	ElapsedSeconds float64

	// StatusURI — handle статуса загрузки на стороне репозитория.
	StatusURI string

	// Идентификаторы на стороне репозитория.
	InstrumentID int
	ProjectID    int
	UploaderID   int

	// ErrorCode — 0 при успехе; ненулевой hash сообщения об ошибке иначе.
	ErrorCode int

	// UsedTestInstance — загрузка шла на тестовый endpoint.
	UsedTestInstance bool
}

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики менеджера. Регистрируются в default registry,
// отдаются через promhttp в cmd/capman.
var (
	// LeaseRequests — счётчик запросов лизов по исходу
	// (found, not_found, error, excessive_retries, deadlock).
	LeaseRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capman",
		Name:      "lease_requests_total",
		Help:      "Task lease requests by outcome.",
	}, []string{"outcome"})

	// TasksCompleted — счётчик завершённых tasks по исходу closeout.
	TasksCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capman",
		Name:      "tasks_completed_total",
		Help:      "Closed-out tasks by completion outcome.",
	}, []string{"outcome"})

	// UploadBytes — суммарный объём загруженных bundle.
	UploadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "capman",
		Name:      "upload_bytes_total",
		Help:      "Total bytes uploaded to the content repository.",
	})

	// UploadFiles — суммарное количество загруженных файлов (new + updated).
	UploadFiles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "capman",
		Name:      "upload_files_total",
		Help:      "Total files included in uploaded bundles.",
	})

	// UploadAttempts — попытки загрузки по результату (success, failure).
	UploadAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "capman",
		Name:      "upload_attempts_total",
		Help:      "Bundle upload attempts by result.",
	}, []string{"result"})

	// ManagerStatus — текущий статус менеджера (значение enum ManagerStatus).
	ManagerStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "capman",
		Name:      "manager_status",
		Help:      "Current manager status (0=stopped, 1=stopped_error, 2=running, 3=disabled_local, 4=disabled_remote).",
	})

	// ConsecutiveErrors — текущее значение счётчика подряд идущих ошибок лиза.
	ConsecutiveErrors = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "capman",
		Name:      "consecutive_lease_errors",
		Help:      "Consecutive lease request errors observed by the main loop.",
	})
)

// Capman — capture task manager.
//
// Один из флота одинаковых процессов, каждый:
//   - Арендует task из общей job-очереди (Postgres)
//   - Выполняет step-tool (архивирование dataset в content-репозиторий)
//   - Отчитывается closeout'ом обратно в очередь
//   - Слушает broadcast-команды кластера (shutdown, readconfig)
//
// Внешняя обёртка ниже перезапускает цикл при выходе "config changed";
// любая другая причина завершает процесс.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Capman/internal/config"
	"github.com/shaiso/Capman/internal/dbproc"
	"github.com/shaiso/Capman/internal/domain"
	"github.com/shaiso/Capman/internal/manager"
	"github.com/shaiso/Capman/internal/mq"
	"github.com/shaiso/Capman/internal/plugin"
	"github.com/shaiso/Capman/internal/queue"
	"github.com/shaiso/Capman/internal/status"
	"github.com/shaiso/Capman/internal/telemetry"
	"github.com/shaiso/Capman/internal/upload"
)

const managerVersion = "1.4.0"

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting capman", "version", managerVersion)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	settingsPath := envOr("CAPMAN_SETTINGS", "capman.yaml")
	manifestPath := envOr("CAPMAN_TOOL_MANIFEST", "tools.yaml")

	// DB pool
	pool, err := dbproc.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	executor := dbproc.NewExecutor(pool, logger)

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8085"
	if v := os.Getenv("CAPMAN_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Обёртка рестарта: перезапуск цикла только на "config changed".
	// Каждый проход заново читает настройки и пересобирает зависимости,
	// чтобы смена имени менеджера или группы подхватилась без рестарта
	// процесса.
	for {
		exit, fatal := runOnce(ctx, logger, executor, settingsPath, manifestPath)
		if fatal {
			os.Exit(1)
		}
		if exit != manager.ExitConfigChanged {
			logger.Info("capman stopped", "exit_cause", exit.String())
			return
		}
		logger.Info("config changed, reloading settings and restarting loop")
	}
}

// runOnce — один проход главного цикла со свежезагруженными настройками.
func runOnce(ctx context.Context, logger *slog.Logger, executor *dbproc.Executor, settingsPath, manifestPath string) (manager.LoopExitCode, bool) {
	settings, err := config.Load(settingsPath)
	if err != nil {
		// UsingDefaults=true и отсутствующее имя менеджера фатальны:
		// работать под чужим или пустым именем нельзя.
		logger.Error("failed to load local settings", "path", settingsPath, "error", err)
		return 0, true
	}
	logger = logger.With("manager", settings.ManagerName())

	qc := queue.New(queue.Config{
		Caller:         executor,
		ManagerName:    settings.ManagerName(),
		ManagerVersion: managerVersion,
		Logger:         logger,
	})

	if err := settings.WidenFromStore(ctx, qc); err != nil {
		logger.Warn("failed to widen settings from store", "error", err)
	}

	// Control-канал: отсутствие брокера — деградация, не фатал.
	mqURL := envOr("RABBITMQ_URL", mq.DefaultURL())
	channel := mq.NewControlChannel(settings.ManagerName(), mqURL, logger)
	connected := channel.Connect(3, 10*time.Second)
	defer channel.Close()
	if !connected {
		logger.Warn("control channel unavailable, running without broadcast commands")
	}

	appDir := filepath.Dir(settingsPath)
	reporter := status.NewReporter(status.Config{
		ManagerName:  settings.ManagerName(),
		SnapshotPath: filepath.Join(appDir, "status.json"),
		FlagPath:     filepath.Join(appDir, "task_in_progress.flag"),
		Sender:       channel,
		MQEnabled:    connected && settings.MQLoggingEnabled(),
		Logger:       logger,
	})

	// Flag-файл, переживший прошлый запуск — признак нештатного выхода.
	if reporter.TaskFlagExists() {
		logger.Warn("task flag file found from previous run, reporting error cleanup")
		if err := qc.ReportManagerErrorCleanup(ctx, 1, "unclean shutdown detected"); err != nil {
			logger.Warn("failed to report error cleanup", "error", err)
		}
		reporter.ClearTaskFlag()
	}

	registry := plugin.NewRegistry()
	registerTools(registry, logger, qc)
	if err := registry.LoadManifest(manifestPath); err != nil {
		logger.Error("failed to load tool manifest", "path", manifestPath, "error", err)
		return 0, true
	}

	watcher := config.NewWatcher(settingsPath, logger)
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go func() {
		if err := watcher.Start(watchCtx); err != nil && watchCtx.Err() == nil {
			logger.Warn("settings watcher stopped", "error", err)
		}
	}()

	mgr := manager.New(manager.Config{
		Queue:    qc,
		Registry: registry,
		Settings: settings,
		Reporter: reporter,
		Watcher:  watcher,
		Logger:   logger,
	})

	if connected {
		channel.RegisterHandlers(ctx, mgr.HandleCommand)
	}

	return mgr.Run(ctx), false
}

// registerTools регистрирует фабрики tool'ов, доступные манифесту.
func registerTools(registry *plugin.Registry, logger *slog.Logger, qc *queue.Client) {
	deps := upload.Deps{
		Logger: logger,
		RecordStats: func(ctx context.Context, job, datasetID int, subfolder string, stats domain.UploadStats) {
			if err := qc.StoreUploadStats(ctx, job, datasetID, subfolder, stats); err != nil {
				logger.Warn("failed to store upload stats", "job", job, "error", err)
			}
		},
	}

	registry.RegisterFactory("archive", func() plugin.ToolRunner {
		return upload.NewArchiveTool(deps)
	})
	registry.RegisterFactory("archive-update", func() plugin.ToolRunner {
		return upload.NewArchiveUpdateTool(deps)
	})
}

// envOr возвращает переменную окружения или fallback.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package upload

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Capman/internal/config"
	"github.com/shaiso/Capman/internal/domain"
	"github.com/shaiso/Capman/internal/status"
	"github.com/shaiso/Capman/internal/telemetry"
)

// Параметры retry загрузки.
const (
	maxUploadAttempts  = 2
	uploadAttemptPause = 5 * time.Second
)

// Имена настроек операции загрузки.
const (
	settingClientPathRoot = "ClientPathRoot"
	settingServerPathRoot = "ServerPathRoot"
	settingRepoEndpoint   = "RepoEndpoint"
	settingRepoAccessKey  = "RepoAccessKey"
	settingRepoSecretKey  = "RepoSecretKey"
	settingRepoBucket     = "RepoBucket"
	settingRepoUseSSL     = "RepoUseSSL"
	settingTestEndpoint   = "RepoTestEndpoint"
	settingTestBucket     = "RepoTestBucket"
	settingUseTestRepo    = "UseTestInstance"
	settingDebugBundle    = "DebugBundleOnly"
	settingDebugOffline   = "DebugOffline"
	settingMirrorPercent  = "MirrorPercent"
)

// StatsRecorder получает статистику загрузки ровно один раз на попытку
// PerformTask, дошедшую до стадии загрузки.
type StatsRecorder func(ctx context.Context, job, datasetID int, subfolder string, stats domain.UploadStats)

// Deps — инфраструктурные зависимости tool'а.
// Захватываются фабричным замыканием при регистрации в реестре.
type Deps struct {
	Logger      *slog.Logger
	RecordStats StatsRecorder

	// Repository и Mirror переопределяют построение клиента из настроек
	// (тесты, offline-режим).
	Repository Repository
	Mirror     Repository

	// Identity переопределяет определение текущей учётной записи.
	Identity IdentityFunc
}

// ArchiveTool — tool runner архивирования dataset'а.
//
// Вариант update (re-archive) отличается тем, что допускает уже
// существующую копию в репозитории: совпадение hash bundle даёт
// EvalRemoteStoreAlreadyCurrent без повторной передачи.
type ArchiveTool struct {
	update bool

	settings *config.Settings
	task     *domain.TaskRecord
	reporter *status.Reporter
	logger   *slog.Logger

	repo     Repository
	mirror   Repository
	identity IdentityFunc
	record   StatsRecorder

	// completionAcked выставляется completion-подтверждением отдельно от
	// результата Upload; успех требует обоих.
	completionAcked bool

	// Дросселирование progress и статусных строк.
	progressGate throttle
	statusGate   lineThrottle

	// percentile и attemptPause подменяются в тестах.
	percentile   func() int
	attemptPause time.Duration
}

// NewArchiveTool создаёт tool первичного архивирования.
func NewArchiveTool(deps Deps) *ArchiveTool {
	return newTool(deps, false)
}

// NewArchiveUpdateTool создаёт tool повторного архивирования.
func NewArchiveUpdateTool(deps Deps) *ArchiveTool {
	return newTool(deps, true)
}

func newTool(deps Deps, update bool) *ArchiveTool {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	identity := deps.Identity
	if identity == nil {
		identity = currentIdentity
	}
	return &ArchiveTool{
		update:       update,
		logger:       logger,
		repo:         deps.Repository,
		mirror:       deps.Mirror,
		identity:     identity,
		record:       deps.RecordStats,
		progressGate: throttle{interval: progressInterval},
		statusGate:   lineThrottle{interval: statusLineInterval},
		percentile:   func() int { return rand.Intn(100) },
		attemptPause: uploadAttemptPause,
	}
}

// Setup привязывает tool к параметрам менеджера и текущему lease.
func (t *ArchiveTool) Setup(settings *config.Settings, task *domain.TaskRecord, reporter *status.Reporter) error {
	t.settings = settings
	t.task = task
	t.reporter = reporter

	// Горячее обновление debug level из параметров task: длинный запуск
	// не требует рестарта менеджера ради уровня логирования.
	if task.HasParam("DebugLevel") {
		settings.SetDebugLevel(task.GetParamInt("DebugLevel", settings.DebugLevel()))
	}
	return nil
}

// RunTool выполняет операцию архивирования.
//
// State machine: Validate dataset present → Bundle+Upload (retryable) →
// Report stats → Done.
func (t *ArchiveTool) RunTool(ctx context.Context) domain.CloseoutResult {
	dataset := t.task.Dataset()
	logger := telemetry.WithDataset(telemetry.WithJob(t.logger, t.task.Job(), t.task.Step()), dataset)

	t.reporter.SetDetail(domain.TaskDetailRetrievingResources)

	sourceDir := t.resolveSourceDir(dataset)
	if _, err := os.Stat(sourceDir); err != nil {
		// Retry не материализует директорию.
		logger.Error("dataset source directory missing", "dir", sourceDir)
		return failDoNotRetry(fmt.Sprintf("%v: %s", ErrSourceMissing, sourceDir))
	}

	required := t.settings.Get(config.SettingUploadIdentity)
	if required != "" {
		current, err := t.identity()
		if err != nil || !identityMatches(current, required) {
			// Загрузка под чужой учёткой мис-атрибутирует данные.
			logger.Error("upload identity mismatch",
				"required", required, "current", current, "error", err)
			return failDoNotRetry(fmt.Sprintf("%v: need %s", ErrWrongIdentity, required))
		}
	}

	t.reporter.SetDetail(domain.TaskDetailPackagingResults)

	bundlePath := filepath.Join(t.settings.WorkDir(),
		fmt.Sprintf("bundle_%d_%d_%s.tar.gz", t.task.Job(), t.task.Step(), uuid.New().String()[:8]))
	bundle, err := buildBundle(sourceDir, bundlePath)
	if err != nil {
		logger.Error("failed to build bundle", "error", err)
		return domain.CloseoutResult{
			Completion:        domain.CompletionFailed,
			CompletionMessage: fmt.Sprintf("bundle build failed: %v", err),
			Evaluation:        domain.EvalFailed,
			EvaluationMessage: err.Error(),
		}
	}
	defer os.Remove(bundle.Path)

	logger.Info("bundle built",
		"files", bundle.FileCount, "bytes", bundle.TotalBytes, "sha256", bundle.SHA256)

	if t.settings.GetBool(settingDebugBundle, false) {
		// Debug-режим: bundle собран локально, передача не выполняется.
		logger.Warn("debug bundle-only mode, skipping upload")
		return domain.CloseoutResult{
			Completion:        domain.CompletionSuccess,
			CompletionMessage: "bundle built locally, upload skipped",
			Evaluation:        domain.EvalSkippedRemoteUpload,
			EvaluationMessage: bundle.Path,
		}
	}

	if err := t.ensureRepository(); err != nil {
		logger.Error("repository client unavailable", "error", err)
		return domain.CloseoutResult{
			Completion:        domain.CompletionFailed,
			CompletionMessage: fmt.Sprintf("repository unavailable: %v", err),
			Evaluation:        domain.EvalNetworkErrorRetry,
			EvaluationMessage: err.Error(),
		}
	}

	t.reporter.SetDetail(domain.TaskDetailDeliveringResults)
	return t.performUpload(ctx, logger, dataset, bundle)
}

// performUpload выполняет стадию загрузки с retry и ровно одним
// stats-событием на весь вызов.
func (t *ArchiveTool) performUpload(ctx context.Context, logger *slog.Logger, dataset string, bundle BundleInfo) domain.CloseoutResult {
	objectName := t.objectName(dataset)
	start := time.Now()

	var result domain.CloseoutResult
	var statusURI string

	for attempt := 1; ; attempt++ {
		result, statusURI = t.attemptUpload(ctx, logger, objectName, bundle, attempt)
		if result.Succeeded() || attempt >= maxUploadAttempts {
			break
		}

		logger.Warn("upload attempt failed, pausing before retry",
			"attempt", attempt, "pause", t.attemptPause, "error", result.EvaluationMessage)
		select {
		case <-ctx.Done():
			result.EvaluationMessage = ctx.Err().Error()
			attempt = maxUploadAttempts
		case <-time.After(t.attemptPause):
			continue
		}
		break
	}

	t.raiseStats(ctx, bundle, statusURI, time.Since(start), result)

	if result.Succeeded() {
		t.mirrorUpload(ctx, logger, objectName, bundle)
	}
	return result
}

// attemptUpload — одна попытка передачи bundle.
func (t *ArchiveTool) attemptUpload(ctx context.Context, logger *slog.Logger, objectName string, bundle BundleInfo, attempt int) (domain.CloseoutResult, string) {
	t.completionAcked = false

	if t.update {
		existing, exists, err := t.repo.ExistingHash(ctx, objectName)
		if err != nil {
			logger.Warn("failed to check existing copy", "error", err)
		} else if exists && existing == bundle.SHA256 {
			logger.Info("repository already holds identical bundle", "object", objectName)
			t.completionAcked = true
			return domain.CloseoutResult{
				Completion:        domain.CompletionSuccess,
				CompletionMessage: "remote store already current",
				Evaluation:        domain.EvalRemoteStoreAlreadyCurrent,
				EvaluationMessage: objectName,
			}, ""
		}
	}

	total := bundleFileSize(bundle.Path)
	statusURI, err := t.repo.Upload(ctx, bundle.Path, objectName, bundle.SHA256, func(transferred int64) {
		t.onProgress(logger, objectName, transferred, total)
	})
	if err != nil {
		telemetry.UploadAttempts.WithLabelValues("failure").Inc()
		logger.Warn("upload attempt failed", "attempt", attempt, "error", err)
		return domain.CloseoutResult{
			Completion:        domain.CompletionFailed,
			CompletionMessage: fmt.Sprintf("upload failed: %v", err),
			Evaluation:        domain.EvalNetworkErrorRetry,
			EvaluationMessage: err.Error(),
		}, ""
	}

	// Успех требует обоих: возврата без ошибки И отдельного
	// completion-подтверждения. Молчаливо отсутствующее подтверждение —
	// нарушение протокола репозитория, даже если сам вызов не упал.
	acked, ackErr := t.repo.Acknowledged(ctx, objectName)
	t.completionAcked = acked && ackErr == nil
	if !t.completionAcked {
		telemetry.UploadAttempts.WithLabelValues("failure").Inc()
		logger.Warn("upload returned success but completion was never acknowledged",
			"object", objectName, "error", ackErr)
		return domain.CloseoutResult{
			Completion:        domain.CompletionFailed,
			CompletionMessage: ErrNoCompletionAck.Error(),
			Evaluation:        domain.EvalFailed,
			EvaluationMessage: ErrNoCompletionAck.Error(),
		}, statusURI
	}

	telemetry.UploadAttempts.WithLabelValues("success").Inc()
	logger.Info("bundle uploaded", "object", objectName, "status_uri", statusURI)
	return domain.CloseoutResult{
		Completion:        domain.CompletionSuccess,
		CompletionMessage: "bundle uploaded",
		Evaluation:        domain.EvalSubmittedToRemoteStore,
		EvaluationMessage: statusURI,
	}, statusURI
}

// onProgress — progress-callback передачи с дросселированием.
func (t *ArchiveTool) onProgress(logger *slog.Logger, objectName string, transferred, total int64) {
	now := time.Now()

	pct := float64(0)
	if total > 0 {
		pct = float64(transferred) / float64(total) * 100
	}

	if t.progressGate.allow(now) {
		t.reporter.SetProgress(pct, "uploading "+objectName)
	}

	line := fmt.Sprintf("uploading %s: %.0f%%", objectName, pct)
	if t.statusGate.allow(now, line) {
		logger.Info("upload progress", "object", objectName, "percent", fmt.Sprintf("%.0f", pct))
		t.reporter.SetLastLogLine(line)
	}
}

// raiseStats поднимает stats-событие ровно один раз на вызов performUpload.
func (t *ArchiveTool) raiseStats(ctx context.Context, bundle BundleInfo, statusURI string, elapsed time.Duration, result domain.CloseoutResult) {
	stats := domain.UploadStats{
		TotalBytes:       bundle.TotalBytes,
		ElapsedSeconds:   elapsed.Seconds(),
		StatusURI:        statusURI,
		InstrumentID:     t.task.GetParamInt("EUS_Instrument_ID", 0),
		ProjectID:        t.task.GetParamInt("EUS_Project_ID", 0),
		UploaderID:       t.task.GetParamInt("EUS_Uploader_ID", 0),
		UsedTestInstance: t.repo.IsTestInstance(),
	}
	if t.update {
		stats.UpdatedFileCount = bundle.FileCount
	} else {
		stats.NewFileCount = bundle.FileCount
	}
	if !result.Succeeded() {
		stats.ErrorCode = hashErrorCode(result.EvaluationMessage)
	}

	telemetry.UploadBytes.Add(float64(stats.TotalBytes))
	telemetry.UploadFiles.Add(float64(bundle.FileCount))

	if t.record != nil {
		t.record(ctx, t.task.Job(), t.task.GetParamInt("DatasetID", 0),
			t.task.GetParam("Subfolder"), stats)
	}
}

// mirrorUpload — опциональная зеркальная загрузка доли dataset'ов на
// тестовый endpoint. Её сбой никогда не влияет на основной результат.
func (t *ArchiveTool) mirrorUpload(ctx context.Context, logger *slog.Logger, objectName string, bundle BundleInfo) {
	percent := t.settings.GetInt(settingMirrorPercent, 0)
	if percent <= 0 || t.mirror == nil {
		return
	}
	if t.percentile() >= percent {
		return
	}

	if _, err := t.mirror.Upload(ctx, bundle.Path, objectName, bundle.SHA256, nil); err != nil {
		logger.Warn("test mirror upload failed", "object", objectName, "error", err)
		return
	}
	logger.Info("test mirror upload done", "object", objectName)
}

// ensureRepository строит клиент репозитория из настроек, если он не
// был внедрён. Offline-режим подменяет клиент симуляцией.
func (t *ArchiveTool) ensureRepository() error {
	if t.repo != nil {
		return nil
	}

	if t.settings.GetBool(settingDebugOffline, false) {
		t.repo = NewOfflineRepository()
		return nil
	}

	cfg := RepositoryConfig{
		Endpoint:  t.settings.Get(settingRepoEndpoint),
		AccessKey: t.settings.Get(settingRepoAccessKey),
		SecretKey: t.settings.Get(settingRepoSecretKey),
		Bucket:    t.settings.GetOr(settingRepoBucket, "capman-bundles"),
		UseSSL:    t.settings.GetBool(settingRepoUseSSL, true),
	}
	if t.settings.GetBool(settingUseTestRepo, false) {
		cfg.Endpoint = t.settings.GetOr(settingTestEndpoint, cfg.Endpoint)
		cfg.Bucket = t.settings.GetOr(settingTestBucket, cfg.Bucket)
		cfg.TestInstance = true
	}

	repo, err := NewRepository(cfg)
	if err != nil {
		return err
	}
	t.repo = repo
	return nil
}

// resolveSourceDir выбирает корень пути по перспективе конфигурации.
func (t *ArchiveTool) resolveSourceDir(dataset string) string {
	perspective := t.settings.GetOr(config.SettingPerspective, "client")
	root := t.settings.Get(settingClientPathRoot)
	if perspective == "server" {
		root = t.settings.Get(settingServerPathRoot)
	}
	dir := filepath.Join(root, dataset)
	if sub := t.task.GetParam("Subfolder"); sub != "" {
		dir = filepath.Join(dir, sub)
	}
	return dir
}

// objectName — ключ bundle в репозитории.
func (t *ArchiveTool) objectName(dataset string) string {
	if sub := t.task.GetParam("Subfolder"); sub != "" {
		return dataset + "/" + sub + ".tar.gz"
	}
	return dataset + ".tar.gz"
}

// failDoNotRetry — результат фатальной ошибки, retry бесполезен.
func failDoNotRetry(msg string) domain.CloseoutResult {
	return domain.CloseoutResult{
		Completion:        domain.CompletionFailed,
		CompletionMessage: msg,
		Evaluation:        domain.EvalFailureDoNotRetry,
		EvaluationMessage: msg,
	}
}

// hashErrorCode — ненулевой код ошибки из сообщения (FNV-1a).
func hashErrorCode(msg string) int {
	h := fnv.New32a()
	h.Write([]byte(msg))
	code := int(int32(h.Sum32()))
	if code < 0 {
		code = -code
	}
	if code == 0 {
		code = 1
	}
	return code
}

// bundleFileSize возвращает размер файла bundle (0 при ошибке).
func bundleFileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

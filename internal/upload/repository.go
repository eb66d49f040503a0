package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Имя метаданных с hash bundle на стороне репозитория.
const metaBundleSHA256 = "Bundle-Sha256"

// Repository — удалённый content-репозиторий bundle'ов.
//
// Upload передаёт архив; Acknowledged — отдельное completion-подтверждение:
// успешный возврат Upload без него трактуется как нарушение протокола.
type Repository interface {
	Upload(ctx context.Context, localPath, objectName, bundleSHA256 string, progress func(transferred int64)) (statusURI string, err error)
	Acknowledged(ctx context.Context, objectName string) (bool, error)
	ExistingHash(ctx context.Context, objectName string) (hash string, exists bool, err error)
	IsTestInstance() bool
}

// RepositoryConfig — параметры подключения к репозиторию.
type RepositoryConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	Bucket       string
	UseSSL       bool
	TestInstance bool
}

// minioRepository — производственная реализация поверх MinIO.
type minioRepository struct {
	client *minio.Client
	cfg    RepositoryConfig
}

// NewRepository создаёт клиент репозитория.
func NewRepository(cfg RepositoryConfig) (Repository, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("repository endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create repository client: %w", err)
	}
	return &minioRepository{client: client, cfg: cfg}, nil
}

// Upload передаёт bundle в репозиторий.
func (r *minioRepository) Upload(ctx context.Context, localPath, objectName, bundleSHA256 string, progress func(transferred int64)) (string, error) {
	exists, err := r.client.BucketExists(ctx, r.cfg.Bucket)
	if err != nil {
		return "", fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := r.client.MakeBucket(ctx, r.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return "", fmt.Errorf("create bucket: %w", err)
		}
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat bundle: %w", err)
	}

	reader := &countingReader{r: f, cb: progress}
	_, err = r.client.PutObject(ctx, r.cfg.Bucket, objectName, reader, fi.Size(), minio.PutObjectOptions{
		ContentType: "application/gzip",
		UserMetadata: map[string]string{
			metaBundleSHA256: bundleSHA256,
		},
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	scheme := "http"
	if r.cfg.UseSSL {
		scheme = "https"
	}
	statusURI := fmt.Sprintf("%s://%s/%s/%s", scheme, r.cfg.Endpoint, r.cfg.Bucket, objectName)
	return statusURI, nil
}

// Acknowledged проверяет completion-подтверждение: объект существует
// и виден в репозитории после загрузки.
func (r *minioRepository) Acknowledged(ctx context.Context, objectName string) (bool, error) {
	_, err := r.client.StatObject(ctx, r.cfg.Bucket, objectName, minio.StatObjectOptions{})
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ExistingHash возвращает hash уже загруженной копии bundle, если она есть.
func (r *minioRepository) ExistingHash(ctx context.Context, objectName string) (string, bool, error) {
	info, err := r.client.StatObject(ctx, r.cfg.Bucket, objectName, minio.StatObjectOptions{})
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && (resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket") {
			return "", false, nil
		}
		return "", false, err
	}
	return info.UserMetadata[metaBundleSHA256], true, nil
}

// IsTestInstance возвращает true для тестового endpoint'а.
func (r *minioRepository) IsTestInstance() bool {
	return r.cfg.TestInstance
}

// countingReader считает переданные байты и дёргает callback.
type countingReader struct {
	r     io.Reader
	total int64
	cb    func(transferred int64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.total += int64(n)
		if c.cb != nil {
			c.cb(c.total)
		}
	}
	return n, err
}

// offlineRepository — offline-симуляция для тестовых прогонов:
// загрузка не выполняется, подтверждение всегда положительное.
type offlineRepository struct{}

// NewOfflineRepository создаёт offline-симуляцию репозитория.
func NewOfflineRepository() Repository {
	return offlineRepository{}
}

func (offlineRepository) Upload(_ context.Context, localPath, objectName, _ string, progress func(int64)) (string, error) {
	fi, err := os.Stat(localPath)
	if err != nil {
		return "", err
	}
	if progress != nil {
		progress(fi.Size())
	}
	return "offline://" + objectName, nil
}

func (offlineRepository) Acknowledged(context.Context, string) (bool, error) {
	return true, nil
}

func (offlineRepository) ExistingHash(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func (offlineRepository) IsTestInstance() bool { return true }

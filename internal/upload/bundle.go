package upload

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BundleInfo — результат упаковки dataset'а.
type BundleInfo struct {
	// Path — путь собранного tar.gz.
	Path string

	// FileCount — количество файлов в bundle.
	FileCount int

	// TotalBytes — суммарный размер исходных файлов.
	TotalBytes int64

	// SHA256 — hash собранного архива. Используется update-вариантом
	// для проверки "репозиторий уже содержит актуальную копию".
	SHA256 string
}

// buildBundle упаковывает директорию dataset в tar.gz.
//
// Поддиректории включаются рекурсивно. Символические ссылки
// пропускаются: bundle должен быть самодостаточным.
func buildBundle(sourceDir, outPath string) (BundleInfo, error) {
	out, err := os.Create(outPath)
	if err != nil {
		return BundleInfo{}, fmt.Errorf("create bundle file: %w", err)
	}
	defer out.Close()

	hasher := sha256.New()
	gz := gzip.NewWriter(io.MultiWriter(out, hasher))
	tw := tar.NewWriter(gz)

	info := BundleInfo{Path: outPath}

	walkErr := filepath.Walk(sourceDir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(fi, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		n, err := io.Copy(tw, f)
		f.Close()
		if err != nil {
			return err
		}

		info.FileCount++
		info.TotalBytes += n
		return nil
	})
	if walkErr != nil {
		tw.Close()
		gz.Close()
		return BundleInfo{}, fmt.Errorf("walk dataset dir: %w", walkErr)
	}

	if err := tw.Close(); err != nil {
		return BundleInfo{}, fmt.Errorf("close tar writer: %w", err)
	}
	if err := gz.Close(); err != nil {
		return BundleInfo{}, fmt.Errorf("close gzip writer: %w", err)
	}

	if info.FileCount == 0 {
		return BundleInfo{}, ErrEmptyBundle
	}

	info.SHA256 = hex.EncodeToString(hasher.Sum(nil))
	return info, nil
}

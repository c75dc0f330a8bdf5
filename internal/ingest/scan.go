package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/invoice-extract/constants"
)

type ScanOptions struct {
	SkipHidden bool
	// SkipHash leaves HashHex empty; hashing is only needed for the ledger.
	SkipHash bool
	Logger   *slog.Logger
}

// ScanDirectory lists the supported files directly inside root in lexical order.
// Subdirectories are not descended into. A file that cannot be hashed is still
// returned, with Err set, so the caller can decide what to do with it.
func ScanDirectory(ctx context.Context, root string, opts ScanOptions) ([]SourceFile, DirStats, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("input directory is required")
	}

	// os.ReadDir sorts by file name
	entries, err := os.ReadDir(root)
	if err != nil {
		logger.Error("ingest.scan.failed", "root", root, "error", err)
		return nil, DirStats{}, fmt.Errorf("read dir %s: %w", root, err)
	}

	var files []SourceFile
	var stats DirStats
	for _, d := range entries {
		if err := ctx.Err(); err != nil {
			return files, stats, err
		}
		stats.Scanned++
		if d.IsDir() {
			continue
		}
		if opts.SkipHidden && IsHidden(d.Name()) {
			continue
		}
		if !constants.IsAllowedExt(filepath.Ext(d.Name())) {
			continue
		}
		stats.Matched++

		sf, err := describe(filepath.Join(root, d.Name()), !opts.SkipHash)
		if err != nil {
			logger.Warn("ingest.file.unreadable", "path", sf.Path, "error", err)
			sf.Err = err.Error()
			stats.Failed++
		} else if sf.HashHex != "" {
			stats.Hashed++
		}
		files = append(files, sf)
	}

	logger.Debug("ingest.scan.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"failed", stats.Failed,
	)
	return files, stats, nil
}

// Describe stats and hashes a single path.
func Describe(path string) (SourceFile, error) {
	return describe(path, true)
}

// Stat describes path without hashing it.
func Stat(path string) (SourceFile, error) {
	return describe(path, false)
}

func describe(path string, hash bool) (SourceFile, error) {
	ext := constants.NormalizeExt(filepath.Ext(path))
	sf := SourceFile{
		Path:   path,
		Name:   filepath.Base(path),
		Ext:    ext,
		Format: constants.MapExtToFormat(ext),
	}
	info, err := os.Stat(path)
	if err != nil {
		return sf, err
	}
	sf.Size = info.Size()
	sf.ModTime = info.ModTime()
	if !hash {
		return sf, nil
	}
	sum, err := HashFile(path)
	if err != nil {
		return sf, err
	}
	sf.HashHex = sum
	return sf, nil
}

// HashFile returns the hex sha256 of the file content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

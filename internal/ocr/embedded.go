package ocr

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/joseph-ayodele/invoice-extract/constants"
)

// EmbeddedImage is an image pulled out of a PDF and written to disk.
type EmbeddedImage struct {
	PDF   string
	Index int
	Path  string
}

// EmbeddedImageName is the file name given to the i-th image of a PDF.
func EmbeddedImageName(pdfPath string, i int) string {
	return fmt.Sprintf("%s%s_%d.png", constants.EmbeddedImagePrefix, filepath.Base(pdfPath), i)
}

// ExtractEmbeddedImages writes every image embedded in pdfPath as PNG using
// pdfimages. Images land in ArtifactCacheDir when set, otherwise in a temp dir
// that cleanup removes. cleanup is always non-nil.
func (e *Extractor) ExtractEmbeddedImages(ctx context.Context, pdfPath string) ([]EmbeddedImage, func(), error) {
	cleanup := func() {}
	tmpDir, err := os.MkdirTemp("", "invx-img-*")
	if err != nil {
		return nil, cleanup, err
	}
	cleanup = func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("failed to remove temp dir", "dir", tmpDir, "error", err)
		}
	}

	prefix := filepath.Join(tmpDir, "img")
	// pdfimages -png <in.pdf> <tmp/img>
	_, errb, err := e.run(ctx, e.cfg.PDFImages, "-png", pdfPath, prefix)
	if err != nil {
		return nil, cleanup, fmt.Errorf("pdfimages: %w: %s", err, truncate(string(errb), 512))
	}

	// img-000.png, img-001.png, ...
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)

	outDir := tmpDir
	if e.cfg.ArtifactCacheDir != "" {
		if err := os.MkdirAll(e.cfg.ArtifactCacheDir, 0o755); err != nil {
			return nil, cleanup, fmt.Errorf("artifact dir: %w", err)
		}
		outDir = e.cfg.ArtifactCacheDir
	}

	images := make([]EmbeddedImage, 0, len(matches))
	for i, m := range matches {
		dst := filepath.Join(outDir, EmbeddedImageName(pdfPath, i))
		if err := moveFile(m, dst); err != nil {
			return images, cleanup, fmt.Errorf("move %s: %w", m, err)
		}
		images = append(images, EmbeddedImage{PDF: pdfPath, Index: i, Path: dst})
	}
	e.logger.Debug("embedded images extracted", "pdf", pdfPath, "count", len(images), "dir", outDir)
	return images, cleanup, nil
}

// moveFile renames src to dst, copying when they sit on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

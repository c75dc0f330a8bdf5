package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/joseph-ayodele/invoice-extract/internal/common"
	"github.com/joseph-ayodele/invoice-extract/internal/ocr"
)

// LowConfidence is the heuristic score below which a read is logged as suspect.
const LowConfidence = 0.35

// OCRAdapter exposes an ocr.Extractor as a TextSource.
type OCRAdapter struct {
	extractor *ocr.Extractor
	logger    *slog.Logger
}

func NewOCRAdapter(e *ocr.Extractor, l *slog.Logger) *OCRAdapter {
	if l == nil {
		l = slog.Default()
	}
	return &OCRAdapter{
		extractor: e,
		logger:    l,
	}
}

// Extract never returns an error: failures are logged and surface as empty text.
func (a *OCRAdapter) Extract(ctx context.Context, path string) (TextExtractionResult, error) {
	logger := common.LoggerFromContext(ctx, a.logger)
	r, err := a.extractor.Extract(ctx, path)
	res := TextExtractionResult{
		Text:       r.Text,
		Pages:      r.Pages,
		SourceType: r.SourceType,
		Method:     r.Method,
		Language:   r.Language,
		Duration:   r.Duration,
		Warnings:   r.Warnings,
		Confidence: r.Confidence,
	}
	if err != nil {
		logger.Error("text.extract.failed", "path", path, "method", r.Method, "error", err, "warnings", r.Warnings)
		res.Text = ""
		res.Err = fmt.Errorf("%w: %v", common.ErrExtraction, err)
		return res, nil
	}
	if res.Text == "" {
		logger.Warn("text.extract.empty", "path", path, "method", res.Method)
	} else if res.Confidence < LowConfidence {
		logger.Warn("text.extract.low_confidence", "path", path, "method", res.Method, "confidence", res.Confidence)
	}
	logger.Debug("text.extract.ok",
		"path", path,
		"method", res.Method,
		"pages", res.Pages,
		"chars", len(res.Text),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// EmbeddedImages logs pdfimages failures and returns whatever was extracted.
func (a *OCRAdapter) EmbeddedImages(ctx context.Context, pdfPath string) ([]EmbeddedImage, func(), error) {
	logger := common.LoggerFromContext(ctx, a.logger)
	imgs, cleanup, err := a.extractor.ExtractEmbeddedImages(ctx, pdfPath)
	out := make([]EmbeddedImage, 0, len(imgs))
	for _, img := range imgs {
		out = append(out, EmbeddedImage{Name: filepath.Base(img.Path), Path: img.Path})
	}
	if err != nil {
		logger.Error("text.embedded_images.failed", "pdf", pdfPath, "error", err)
		return out, cleanup, nil
	}
	return out, cleanup, nil
}

package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/invoice-extract/constants"
)

type Config struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	PDFImages string // binary name or absolute path; if empty -> "pdfimages"

	TesseractLang string // default "eng"
	TessdataDir   string
	MaxPages      int // 0 = no limit

	EnableTSVConfidence bool
	PSM                 int // e.g., 6 is good for uniform block of text
	OEM                 int // 1 = LSTM; leave 0 to use default

	// ArtifactCacheDir keeps images pulled out of PDFs; a temp dir is used when empty.
	ArtifactCacheDir string

	// CommandTimeout bounds each tesseract or pdfimages call; 0 = no limit.
	CommandTimeout time.Duration
}

type ExtractionResult struct {
	Text       string
	Pages      int
	SourceType string           // constants.PDF | constants.IMAGE
	Method     constants.Method // pdf-text | image-ocr
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return NewExtractorWithRunner(cfg, execRunner{logger: logger}, logger)
}

// NewExtractorWithRunner is NewExtractor with a custom command runner.
func NewExtractorWithRunner(cfg Config, r Runner, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.PDFImages == "" {
		cfg.PDFImages = "pdfimages"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if r == nil {
		r = execRunner{logger: logger}
	}
	return &Extractor{cfg: cfg, runner: r, logger: logger}
}

func (e *Extractor) Config() Config { return e.cfg }

func (e *Extractor) run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	if e.cfg.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.CommandTimeout)
		defer cancel()
	}
	return e.runner.Run(ctx, name, args...)
}

// Extract picks a strategy based on file extension.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("starting text extraction", "path", path, "ext", ext)
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err := e.extractPDF(path)
		res.Duration = time.Since(start)
		return res, err
	case constants.IMAGE:
		res, err := e.extractImage(ctx, path)
		res.Duration = time.Since(start)
		return res, err
	default:
		e.logger.Error("unsupported extension", "extension", ext)
		return ExtractionResult{}, fmt.Errorf("unsupported extension: %q", ext)
	}
}

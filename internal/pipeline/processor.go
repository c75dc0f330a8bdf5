package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extract/constants"
	"github.com/joseph-ayodele/invoice-extract/internal/common"
	"github.com/joseph-ayodele/invoice-extract/internal/export"
	"github.com/joseph-ayodele/invoice-extract/internal/extract"
	"github.com/joseph-ayodele/invoice-extract/internal/ingest"
	"github.com/joseph-ayodele/invoice-extract/internal/invoice"
	"github.com/joseph-ayodele/invoice-extract/internal/parse"
	"github.com/joseph-ayodele/invoice-extract/internal/repository"
	"github.com/joseph-ayodele/invoice-extract/internal/storage"
)

type Config struct {
	InputDir string
	Profile  invoice.Profile
	// UseHosted sends PDFs to the SchemaExtractor instead of the regex extractor.
	UseHosted bool
	// EmbeddedImages also OCRs the images inside each PDF. Implied by a profile
	// with EmbeddedImages set when UseHosted is on.
	EmbeddedImages bool
	SkipProcessed  bool
	SkipHidden     bool
	// XLSXPath, when set, receives a summary workbook after each batch.
	XLSXPath string
}

// Outcome is the result for one output (or one skipped input).
type Outcome struct {
	Source        string
	Output        string
	Method        constants.Method
	Status        constants.OutcomeStatus
	InvoiceNumber string
	Items         int
	Err           error
}

type Summary struct {
	RunID    string
	Outcomes []Outcome
	Written  int
	Skipped  int
	Failed   int
	Duration time.Duration
}

func (s *Summary) add(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Status {
	case constants.StatusWritten:
		s.Written++
	case constants.StatusSkipped:
		s.Skipped++
	case constants.StatusFailed:
		s.Failed++
	}
}

// Processor runs scan -> acquire -> extract -> persist for one input directory.
// Files are handled one at a time; a Processor is safe to share between the
// batch run and the watch queue.
type Processor struct {
	cfg      Config
	text     extract.TextSource
	fields   *parse.Extractor
	schema   extract.SchemaExtractor
	writer   *storage.Writer
	ledger   repository.LedgerRepository
	exporter *export.Service
	logger   *slog.Logger

	mu       sync.Mutex
	schemaID string
	rows     []export.Row
}

type Option func(*Processor)

// WithSchemaExtractor enables the hosted path.
func WithSchemaExtractor(s extract.SchemaExtractor) Option {
	return func(p *Processor) { p.schema = s }
}

// WithLedger records processed files and enables SkipProcessed.
func WithLedger(l repository.LedgerRepository) Option {
	return func(p *Processor) { p.ledger = l }
}

// WithExporter writes the XLSX summary when Config.XLSXPath is set.
func WithExporter(e *export.Service) Option {
	return func(p *Processor) { p.exporter = e }
}

func NewProcessor(cfg Config, text extract.TextSource, writer *storage.Writer, logger *slog.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Profile.Name == "" {
		cfg.Profile = invoice.Itemized
	}
	p := &Processor{
		cfg:    cfg,
		text:   text,
		fields: parse.NewExtractor(cfg.Profile),
		writer: writer,
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Processor) hosted() bool {
	return p.cfg.UseHosted && p.schema != nil
}

func (p *Processor) embedded() bool {
	return p.cfg.EmbeddedImages || (p.hosted() && p.cfg.Profile.EmbeddedImages)
}

// Run processes every supported file in the input directory in lexical order.
// Text acquisition failures degrade to empty records; a hosted-service error or
// a failed write aborts the batch, leaving files already written in place.
func (p *Processor) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: common.RunIDFromContext(ctx)}
	if sum.RunID == "" {
		sum.RunID = uuid.NewString()
		ctx = common.WithRunID(ctx, sum.RunID)
	}
	logger := common.LoggerFromContext(ctx, p.logger)

	if p.cfg.UseHosted && p.schema == nil {
		return sum, common.NewAppError("CONFIG_ERROR", "hosted extraction enabled without a client", common.ErrConfig)
	}

	files, stats, err := ingest.ScanDirectory(ctx, p.cfg.InputDir, ingest.ScanOptions{
		SkipHidden: p.cfg.SkipHidden,
		SkipHash:   p.ledger == nil,
		Logger:     logger,
	})
	if err != nil {
		return sum, common.NewAppError("INVALID_INPUT", "scan "+p.cfg.InputDir, fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
	}
	logger.Info("pipeline.run.start",
		"input_dir", p.cfg.InputDir,
		"output_dir", p.writer.Dir(),
		"profile", p.cfg.Profile.Name,
		"hosted", p.hosted(),
		"embedded_images", p.embedded(),
		"scanned", stats.Scanned,
		"matched", stats.Matched,
	)

	if p.hosted() {
		if _, err := p.ensureSchema(ctx); err != nil {
			sum.Duration = time.Since(start)
			return sum, err
		}
	}

	var runErr error
	for _, sf := range files {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		outs, err := p.processFile(ctx, sf)
		for _, o := range outs {
			sum.add(o)
		}
		if err != nil {
			runErr = err
			break
		}
	}

	if err := p.FlushSummary(ctx); err != nil {
		logger.Error("pipeline.xlsx.failed", "path", p.cfg.XLSXPath, "error", err)
	}

	sum.Duration = time.Since(start)
	if runErr != nil {
		logger.Error("pipeline.run.aborted",
			"error", runErr,
			"written", sum.Written,
			"skipped", sum.Skipped,
			"failed", sum.Failed,
		)
		return sum, runErr
	}
	logger.Info("pipeline.run.done",
		"written", sum.Written,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"elapsed_ms", sum.Duration.Milliseconds(),
	)
	return sum, nil
}

// ProcessPath handles one file outside a batch run, as the watch queue does.
func (p *Processor) ProcessPath(ctx context.Context, path string) ([]Outcome, error) {
	if common.RunIDFromContext(ctx) == "" {
		ctx = common.WithRunID(ctx, uuid.NewString())
	}
	if !constants.IsAllowedExt(filepath.Ext(path)) {
		return nil, common.NewAppError("UNSUPPORTED", path, common.ErrUnsupported)
	}
	var (
		sf  ingest.SourceFile
		err error
	)
	if p.ledger != nil {
		sf, err = ingest.Describe(path)
	} else {
		sf, err = ingest.Stat(path)
	}
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", path, err)
	}
	if p.cfg.UseHosted && p.schema == nil {
		return nil, common.NewAppError("CONFIG_ERROR", "hosted extraction enabled without a client", common.ErrConfig)
	}
	return p.processFile(ctx, sf)
}

func (p *Processor) ensureSchema(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.schemaID != "" {
		return p.schemaID, nil
	}
	id, err := p.schema.PrepareSchema(ctx, p.cfg.Profile)
	if err != nil {
		return "", err
	}
	p.schemaID = id
	return id, nil
}

func (p *Processor) processFile(ctx context.Context, sf ingest.SourceFile) ([]Outcome, error) {
	ctx = common.WithSource(ctx, sf.Path)
	logger := common.LoggerFromContext(ctx, p.logger)

	if sf.Err != "" {
		logger.Warn("pipeline.file.hash_failed", "error", sf.Err)
	}
	if p.cfg.SkipProcessed && p.ledger != nil && sf.HashHex != "" {
		prev, found, err := p.ledger.Lookup(ctx, sf.HashHex)
		if err != nil {
			logger.Warn("pipeline.ledger.lookup_failed", "error", err)
		} else if found {
			logger.Info("pipeline.file.skipped", "previous_output", prev.OutputPath, "previous_run", prev.RunID)
			return []Outcome{{
				Source:        sf.Path,
				Output:        prev.OutputPath,
				Method:        prev.Method,
				Status:        constants.StatusSkipped,
				InvoiceNumber: prev.InvoiceNumber,
			}}, nil
		}
	}

	var (
		outs []Outcome
		err  error
	)
	if sf.Format == constants.PDF && p.hosted() {
		var o Outcome
		o, err = p.hostedFile(ctx, sf.Path)
		outs = append(outs, o)
	} else {
		var o Outcome
		o, err = p.regexFile(ctx, sf.Path, "")
		outs = append(outs, o)
	}
	if err != nil {
		return outs, err
	}
	p.recordLedger(ctx, sf, outs[0])

	if sf.Format == constants.PDF && p.embedded() {
		more, err := p.embeddedImages(ctx, sf.Path)
		outs = append(outs, more...)
		if err != nil {
			return outs, err
		}
	}
	return outs, nil
}

// regexFile acquires text for path and runs the field extractor over it. A
// failed read still produces a (mostly empty) record.
func (p *Processor) regexFile(ctx context.Context, path string, method constants.Method) (Outcome, error) {
	logger := common.LoggerFromContext(ctx, p.logger)

	res, err := p.text.Extract(ctx, path)
	if err != nil {
		// TextSource implementations should degrade on their own; treat a
		// returned error the same way.
		logger.Error("pipeline.text.failed", "error", err)
		res = extract.TextExtractionResult{Err: err}
	}
	if method == "" {
		method = res.Method
	}
	if method == "" {
		method = methodFor(path)
	}

	rec := p.fields.Extract(res.Text)
	out := Outcome{
		Source:        path,
		Method:        method,
		InvoiceNumber: rec.Number(),
		Items:         len(rec.Items),
		Err:           res.Err,
	}
	written, err := p.writer.Write(rec, storage.SourceFileName(path))
	if err != nil {
		out.Status = constants.StatusFailed
		out.Err = err
		logger.Error("pipeline.file.failed", "method", method, "error", err)
		return out, err
	}
	out.Output = written
	out.Status = constants.StatusWritten
	p.addRow(export.Row{Source: path, Output: written, Method: method, Record: rec})

	if res.Err != nil {
		logger.Warn("pipeline.file.degraded", "output", written, "method", method, "error", res.Err)
	} else {
		logger.Info("pipeline.file.ok",
			"output", written,
			"method", method,
			"chars", len(res.Text),
			"fields", rec.Populated(),
			"items", len(rec.Items),
			"invoice_number", rec.Number(),
		)
	}
	return out, nil
}

// hostedFile sends a PDF to the SchemaExtractor. Every error is returned so
// the batch stops.
func (p *Processor) hostedFile(ctx context.Context, path string) (Outcome, error) {
	logger := common.LoggerFromContext(ctx, p.logger)
	out := Outcome{Source: path, Method: constants.MethodHosted}

	schemaID, err := p.ensureSchema(ctx)
	if err != nil {
		out.Status = constants.StatusFailed
		out.Err = err
		return out, err
	}
	rec, err := p.schema.ExtractDocument(ctx, schemaID, path)
	if err != nil {
		out.Status = constants.StatusFailed
		out.Err = err
		logger.Error("pipeline.hosted.failed", "schema_id", schemaID, "error", err)
		if !errors.Is(err, common.ErrHosted) {
			err = fmt.Errorf("%w: %v", common.ErrHosted, err)
		}
		return out, err
	}

	written, err := p.writer.Write(rec, storage.InvoiceFileName(rec, path))
	if err != nil {
		out.Status = constants.StatusFailed
		out.Err = err
		logger.Error("pipeline.file.failed", "method", out.Method, "error", err)
		return out, err
	}
	out.Output = written
	out.Status = constants.StatusWritten
	out.InvoiceNumber = rec.Number()
	out.Items = len(rec.Items)
	p.addRow(export.Row{Source: path, Output: written, Method: out.Method, Record: rec})

	logger.Info("pipeline.file.ok",
		"output", written,
		"method", out.Method,
		"fields", rec.Populated(),
		"items", len(rec.Items),
		"invoice_number", rec.Number(),
	)
	return out, nil
}

func (p *Processor) embeddedImages(ctx context.Context, pdf string) ([]Outcome, error) {
	logger := common.LoggerFromContext(ctx, p.logger)

	imgs, cleanup, err := p.text.EmbeddedImages(ctx, pdf)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		logger.Error("pipeline.embedded.failed", "error", err)
		return nil, nil
	}
	logger.Debug("pipeline.embedded.found", "images", len(imgs))

	outs := make([]Outcome, 0, len(imgs))
	for _, img := range imgs {
		if err := ctx.Err(); err != nil {
			return outs, err
		}
		o, err := p.regexFile(common.WithSource(ctx, img.Path), img.Path, constants.MethodEmbeddedOCR)
		outs = append(outs, o)
		if err != nil {
			return outs, err
		}
	}
	return outs, nil
}

func (p *Processor) recordLedger(ctx context.Context, sf ingest.SourceFile, o Outcome) {
	if p.ledger == nil || sf.HashHex == "" || o.Status != constants.StatusWritten {
		return
	}
	err := p.ledger.Record(ctx, repository.Entry{
		ContentHash:   sf.HashHex,
		SourcePath:    sf.Path,
		OutputPath:    o.Output,
		Method:        o.Method,
		InvoiceNumber: o.InvoiceNumber,
		RunID:         common.RunIDFromContext(ctx),
		ProcessedAt:   time.Now().UTC(),
	})
	if err != nil {
		common.LoggerFromContext(ctx, p.logger).Warn("pipeline.ledger.record_failed", "error", err)
	}
}

func (p *Processor) addRow(r export.Row) {
	if p.exporter == nil || p.cfg.XLSXPath == "" {
		return
	}
	p.mu.Lock()
	p.rows = append(p.rows, r)
	p.mu.Unlock()
}

// FlushSummary writes every record collected so far to Config.XLSXPath. It is
// a no-op without an exporter or path.
func (p *Processor) FlushSummary(ctx context.Context) error {
	if p.exporter == nil || p.cfg.XLSXPath == "" {
		return nil
	}
	p.mu.Lock()
	rows := append([]export.Row(nil), p.rows...)
	p.mu.Unlock()
	if err := p.exporter.WriteFile(p.cfg.XLSXPath, rows); err != nil {
		return err
	}
	common.LoggerFromContext(ctx, p.logger).Info("pipeline.xlsx.ok", "path", p.cfg.XLSXPath, "rows", len(rows))
	return nil
}

func methodFor(path string) constants.Method {
	if constants.MapExtToFormat(filepath.Ext(path)) == constants.PDF {
		return constants.MethodPDFText
	}
	return constants.MethodImageOCR
}

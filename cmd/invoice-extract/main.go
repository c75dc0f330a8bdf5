package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extract/internal/async"
	"github.com/joseph-ayodele/invoice-extract/internal/common"
	"github.com/joseph-ayodele/invoice-extract/internal/export"
	"github.com/joseph-ayodele/invoice-extract/internal/extract"
	"github.com/joseph-ayodele/invoice-extract/internal/hosted"
	"github.com/joseph-ayodele/invoice-extract/internal/ingest"
	"github.com/joseph-ayodele/invoice-extract/internal/invoice"
	"github.com/joseph-ayodele/invoice-extract/internal/ocr"
	"github.com/joseph-ayodele/invoice-extract/internal/pipeline"
	repo "github.com/joseph-ayodele/invoice-extract/internal/repository"
	"github.com/joseph-ayodele/invoice-extract/internal/storage"
)

const (
	exitOK    = 0
	exitAbort = 1
	exitUsage = 2
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		pdfDir        = flag.String("pdf_dir", "", "directory with PDF/JPG/JPEG/PNG invoices (env INVOICE_PDF_DIR, default data)")
		saveDir       = flag.String("save_dir", "", "directory for the JSON output (env INVOICE_SAVE_DIR, default output)")
		useLlama      = flag.Bool("use_llama", false, "send PDFs to the hosted extraction service (env USE_LLAMA)")
		profileName   = flag.String("profile", "", "extraction profile: itemized or scanned (env INVOICE_PROFILE)")
		xlsxPath      = flag.String("xlsx", "", "also write a summary workbook to this path")
		ledgerDSN     = flag.String("ledger", "", "processed-file ledger DSN: sqlite path or postgres:// URL (env LEDGER_DSN)")
		skipProcessed = flag.Bool("skip-processed", false, "skip files whose content is already in the ledger")
		watch         = flag.Bool("watch", false, "keep running and process new files until interrupted")
		pdfImages     = flag.Bool("pdf-images", false, "also OCR images embedded in PDFs")
		envFile       = flag.String("env", ".env", "dotenv file loaded before reading the environment")
		verbose       = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := common.LoadDotEnv(*envFile); err != nil {
		printError("Error: %v\n", err)
		return exitUsage
	}
	cfg := common.LoadConfig()

	// flags win over env
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["pdf_dir"] {
		cfg.Input.PDFDir = *pdfDir
	}
	if set["save_dir"] {
		cfg.Input.SaveDir = *saveDir
	}
	if set["use_llama"] {
		cfg.Hosted.Enabled = *useLlama
	}
	if set["profile"] {
		cfg.Input.Profile = *profileName
	}
	if set["ledger"] {
		cfg.Ledger.DSN = *ledgerDSN
	}

	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		return exitUsage
	}
	v := common.NewValidator().Field("pdf_dir", cfg.Input.PDFDir, common.ExistingDir)
	if *skipProcessed {
		v.Field("ledger", cfg.Ledger.DSN, common.Required)
	}
	if err := common.ValidateAndReturnError(v); err != nil {
		printError("Error: %v\n", err)
		return exitUsage
	}
	profile, err := invoice.LookupProfile(cfg.Input.Profile)
	if err != nil {
		printError("Error: %v\n", err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runID := uuid.NewString()
	ctx = common.WithRunID(ctx, runID)
	logger = logger.With("run_id", runID)

	// Text acquisition
	extractor := ocr.NewExtractor(ocr.Config{
		Tesseract:           cfg.OCR.TesseractBin,
		PDFImages:           cfg.OCR.PDFImagesBin,
		TesseractLang:       cfg.OCR.Lang,
		TessdataDir:         cfg.OCR.TessdataDir,
		ArtifactCacheDir:    cfg.OCR.ArtifactCacheDir,
		CommandTimeout:      cfg.OCR.Timeout,
		EnableTSVConfidence: *verbose,
	}, logger)
	source := extract.NewOCRAdapter(extractor, logger)

	opts := []pipeline.Option{}

	if cfg.Hosted.Enabled {
		client, err := hosted.NewClient(hosted.Config{
			APIKey:       cfg.Hosted.APIKey,
			BaseURL:      cfg.Hosted.BaseURL,
			Timeout:      cfg.Hosted.Timeout,
			PollInterval: cfg.Hosted.PollInterval,
			MaxPolls:     cfg.Hosted.MaxPolls,
		}, logger)
		if err != nil {
			printError("Error: %v\n", err)
			return exitUsage
		}
		opts = append(opts, pipeline.WithSchemaExtractor(client))
		logger.Info("hosted extraction enabled", "base_url", cfg.Hosted.BaseURL)
	}

	if cfg.Ledger.DSN != "" {
		db, err := repo.Open(ctx, repo.Config{
			DSN:             cfg.Ledger.DSN,
			MaxConns:        cfg.Ledger.MaxConns,
			MinConns:        cfg.Ledger.MinConns,
			MaxConnLifetime: cfg.Ledger.MaxConnLifetime,
			DialTimeout:     cfg.Ledger.DialTimeout,
		}, logger)
		if err != nil {
			logger.Error("failed to open ledger", "error", err)
			return exitAbort
		}
		defer db.Close()
		if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
			logger.Error("failed to ping ledger", "error", err)
			return exitAbort
		}
		ledger := repo.NewLedgerRepository(db, logger)
		if err := ledger.Migrate(ctx); err != nil {
			logger.Error("failed to migrate ledger", "error", err)
			return exitAbort
		}
		opts = append(opts, pipeline.WithLedger(ledger))
	}

	if *xlsxPath != "" {
		opts = append(opts, pipeline.WithExporter(export.NewService(logger)))
	}

	proc := pipeline.NewProcessor(pipeline.Config{
		InputDir:       cfg.Input.PDFDir,
		Profile:        profile,
		UseHosted:      cfg.Hosted.Enabled,
		EmbeddedImages: *pdfImages,
		SkipProcessed:  *skipProcessed,
		SkipHidden:     true,
		XLSXPath:       *xlsxPath,
	}, source, storage.NewWriter(cfg.Input.SaveDir, logger), logger, opts...)

	var w *watchLoop
	if *watch {
		// started ahead of the batch so files added while it runs are not missed
		w, err = startWatch(ctx, cfg.Input.PDFDir, runID, proc, logger)
		if err != nil {
			return exitAbort
		}
	}

	sum, err := proc.Run(ctx)
	printSummary(sum, cfg.Input.SaveDir, err)
	if err != nil {
		if w != nil {
			w.stop(false)
		}
		if errors.Is(err, context.Canceled) {
			return exitAbort
		}
		printError("Error: %v\n", err)
		if common.IsUsage(err) {
			return exitUsage
		}
		return exitAbort
	}

	if w == nil {
		return exitOK
	}
	close(w.ready)
	logger.Info("watching for new invoices", "dir", cfg.Input.PDFDir)
	<-ctx.Done()
	return w.stop(true)
}

// watchLoop feeds files seen by the directory watcher to the processor queue.
type watchLoop struct {
	proc   *pipeline.Processor
	queue  *async.ProcessorQueue
	ready  chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger
}

func startWatch(ctx context.Context, dir, runID string, proc *pipeline.Processor, logger *slog.Logger) (*watchLoop, error) {
	wctx, cancel := context.WithCancel(ctx)
	events, errs, err := ingest.StartWatcher(wctx, ingest.WatchConfig{
		Roots:      []string{dir},
		SkipHidden: true,
		Debounce:   500 * time.Millisecond,
		Logger:     logger,
	})
	if err != nil {
		cancel()
		logger.Error("failed to start watcher", "dir", dir, "error", err)
		return nil, err
	}

	w := &watchLoop{
		proc: proc,
		queue: async.NewProcessorQueue(proc, logger,
			async.WithRunID(runID),
			async.WithProcessTimeout(5*time.Minute),
		),
		ready:  make(chan struct{}),
		cancel: cancel,
		done:   make(chan struct{}),
		logger: logger,
	}
	go func() {
		defer close(w.done)
		async.Follow(wctx, events, errs, w.ready, w.queue, logger)
	}()
	return w, nil
}

// stop ends the watch, drains queued files and, when flush is set, rewrites
// the summary workbook with everything processed so far.
func (w *watchLoop) stop(flush bool) int {
	w.cancel()
	<-w.done

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	w.queue.Shutdown(shutdownCtx)
	if !flush {
		return exitAbort
	}
	if err := w.proc.FlushSummary(shutdownCtx); err != nil {
		w.logger.Error("failed to write summary workbook", "error", err)
		return exitAbort
	}
	w.logger.Info("watch stopped")
	return exitOK
}

func printSummary(sum pipeline.Summary, saveDir string, err error) {
	if err != nil {
		fmt.Printf("Extraction aborted!\n")
	} else {
		fmt.Printf("Extraction complete!\n")
	}
	fmt.Printf("- Written: %d\n", sum.Written)
	fmt.Printf("- Skipped: %d\n", sum.Skipped)
	fmt.Printf("- Failed: %d\n", sum.Failed)
	fmt.Printf("- Output: %s\n", saveDir)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/invoice-extract/internal/common"
	"github.com/joseph-ayodele/invoice-extract/internal/extract"
	"github.com/joseph-ayodele/invoice-extract/internal/invoice"
	"github.com/joseph-ayodele/invoice-extract/internal/ocr"
	"github.com/joseph-ayodele/invoice-extract/internal/parse"
	"github.com/joseph-ayodele/invoice-extract/internal/storage"
)

func main() {
	var (
		doParse     = flag.Bool("parse", false, "also print the extracted record as JSON")
		profileName = flag.String("profile", "", "extraction profile used with -parse")
		pdfImages   = flag.Bool("pdf-images", false, "also print the text of images embedded in a PDF")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runocr [-parse] [-profile itemized|scanned] [-pdf-images] <file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	if err := common.LoadDotEnv(""); err != nil {
		logger.Error("load .env", "error", err)
		os.Exit(2)
	}
	cfg := common.LoadConfig()
	if *profileName != "" {
		cfg.Input.Profile = *profileName
	}
	profile, err := invoice.LookupProfile(cfg.Input.Profile)
	if err != nil {
		logger.Error("invalid profile", "profile", cfg.Input.Profile, "error", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Build OCR extractor and adapt it to a TextSource.
	ocrx := ocr.NewExtractor(ocr.Config{
		Tesseract:           cfg.OCR.TesseractBin,
		PDFImages:           cfg.OCR.PDFImagesBin,
		TesseractLang:       cfg.OCR.Lang,
		TessdataDir:         cfg.OCR.TessdataDir,
		CommandTimeout:      cfg.OCR.Timeout,
		EnableTSVConfidence: true,
	}, logger)
	var source extract.TextSource = extract.NewOCRAdapter(ocrx, logger)

	start := time.Now()
	res, _ := source.Extract(ctx, path)
	dur := time.Since(start)
	if res.Err != nil {
		logger.Error("text extraction failed", "path", path, "error", res.Err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}
	logger.Info("text extraction OK",
		"method", res.Method,
		"pages", res.Pages,
		"bytes", len(res.Text),
		"confidence", res.Confidence,
		"duration_ms", dur.Milliseconds(),
	)
	fmt.Println(res.Text)

	if *doParse {
		printRecord(parse.NewExtractor(profile), res.Text)
	}

	if *pdfImages {
		imgs, cleanup, _ := source.EmbeddedImages(ctx, path)
		defer cleanup()
		for _, img := range imgs {
			r, _ := source.Extract(ctx, img.Path)
			fmt.Printf("--- %s ---\n%s\n", img.Name, r.Text)
			if *doParse {
				printRecord(parse.NewExtractor(profile), r.Text)
			}
		}
	}
}

func printRecord(x *parse.Extractor, text string) {
	b, err := storage.Marshal(x.Extract(text))
	if err != nil {
		slog.Error("encode record", "error", err)
		return
	}
	fmt.Print(string(b))
}

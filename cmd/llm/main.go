package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joseph-ayodele/invoice-extract/internal/common"
	"github.com/joseph-ayodele/invoice-extract/internal/hosted"
	"github.com/joseph-ayodele/invoice-extract/internal/invoice"
	"github.com/joseph-ayodele/invoice-extract/internal/storage"
)

// Runs the hosted extraction for one PDF, optionally several times, and prints
// each record so runs can be compared.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		logger.Error("usage: llm <file.pdf> [times]")
		os.Exit(2)
	}
	path := os.Args[1]
	times := 1
	if len(os.Args) >= 3 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil && n > 0 {
			times = n
		}
	}

	if err := common.LoadDotEnv(""); err != nil {
		logger.Error("load .env", "error", err)
		os.Exit(2)
	}
	cfg := common.LoadConfig()
	profile, err := invoice.LookupProfile(cfg.Input.Profile)
	if err != nil {
		logger.Error("invalid profile", "profile", cfg.Input.Profile, "error", err)
		os.Exit(2)
	}

	client, err := hosted.NewClient(hosted.Config{
		APIKey:       cfg.Hosted.APIKey,
		BaseURL:      cfg.Hosted.BaseURL,
		Timeout:      cfg.Hosted.Timeout,
		PollInterval: cfg.Hosted.PollInterval,
		MaxPolls:     cfg.Hosted.MaxPolls,
	}, logger)
	if err != nil {
		logger.Error("hosted client", "error", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	schemaID, err := client.PrepareSchema(ctx, profile)
	if err != nil {
		logger.Error("prepare schema", "error", err)
		os.Exit(1)
	}

	var prev string
	for i := 1; i <= times; i++ {
		start := time.Now()
		rec, err := client.ExtractDocument(ctx, schemaID, path)
		if err != nil {
			logger.Error("extract", "run", i, "error", err)
			os.Exit(1)
		}
		b, err := storage.Marshal(rec)
		if err != nil {
			logger.Error("encode", "run", i, "error", err)
			os.Exit(1)
		}
		logger.Info("extract ok",
			"run", i,
			"invoice_number", rec.Number(),
			"fields", rec.Populated(),
			"items", len(rec.Items),
			"same_as_previous", i > 1 && prev == string(b),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		prev = string(b)
		fmt.Print(prev)
	}
}

package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/joseph-ayodele/invoice-extract/constants"
	"github.com/joseph-ayodele/invoice-extract/internal/common"
	"github.com/joseph-ayodele/invoice-extract/internal/invoice"
)

var reUnsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Writer persists invoice records as pretty-printed JSON. Existing files with the
// same name are overwritten.
type Writer struct {
	dir    string
	logger *slog.Logger
}

func NewWriter(dir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{dir: dir, logger: logger}
}

func (w *Writer) Dir() string { return w.dir }

// Write stores rec under name inside the output directory, creating it if needed,
// and returns the full path.
func (w *Writer) Write(rec invoice.Record, name string) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", common.NewAppError("PERSIST_ERROR", "create "+w.dir, fmt.Errorf("%w: %v", common.ErrPersist, err))
	}
	if rec.Items == nil {
		rec.Items = []invoice.LineItem{}
	}

	b, err := Marshal(rec)
	if err != nil {
		return "", common.NewAppError("PERSIST_ERROR", "encode "+name, err)
	}
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", common.NewAppError("PERSIST_ERROR", "write "+path, fmt.Errorf("%w: %v", common.ErrPersist, err))
	}
	w.logger.Info("storage.write.ok", "path", path, "bytes", len(b), "invoice_number", rec.Number())
	return path, nil
}

// Marshal renders rec the way it is stored on disk: four-space indent, no HTML escaping.
func Marshal(rec invoice.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Read loads a record written by Write.
func Read(path string) (invoice.Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return invoice.Record{}, err
	}
	var rec invoice.Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return invoice.Record{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return rec, nil
}

// SourceFileName names the output for a record parsed from source text:
// extracted_invoice_from_image_<basename>.json.
func SourceFileName(source string) string {
	return constants.OutputFromImagePrefix + filepath.Base(source) + constants.OutputExt
}

// InvoiceFileName names the output after the invoice number, falling back to
// SourceFileName when the record has none.
func InvoiceFileName(rec invoice.Record, source string) string {
	num := reUnsafeName.ReplaceAllString(rec.Number(), "_")
	if num == "" || num == "." || num == ".." {
		return SourceFileName(source)
	}
	return constants.OutputPrefix + num + constants.OutputExt
}

package extract

import (
	"context"
	"time"

	"github.com/joseph-ayodele/invoice-extract/constants"
	"github.com/joseph-ayodele/invoice-extract/internal/invoice"
)

// TextSource is stage 1: file -> text. Implementations degrade instead of
// failing; a source that cannot be read yields an empty Text and sets Err.
type TextSource interface {
	Extract(ctx context.Context, path string) (TextExtractionResult, error)
	// EmbeddedImages writes the images inside a PDF to disk. cleanup is always non-nil.
	EmbeddedImages(ctx context.Context, pdfPath string) (images []EmbeddedImage, cleanup func(), err error)
}

type TextExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // "PDF" | "IMAGE"
	Method     constants.Method
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
	// Err records why Text is empty when the read failed.
	Err error
}

type EmbeddedImage struct {
	Name string // extracted_image_<pdf>_<i>.png
	Path string
}

// SchemaExtractor is the hosted alternative to stages 1 and 2: a document goes
// in and a structured record comes out. Any error aborts the batch.
type SchemaExtractor interface {
	PrepareSchema(ctx context.Context, profile invoice.Profile) (schemaID string, err error)
	ExtractDocument(ctx context.Context, schemaID, path string) (invoice.Record, error)
}

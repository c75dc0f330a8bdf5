package constants

// Method records how the text (or record) of a file was obtained.
type Method string

// Stable values (stored in the ledger and logged).
const (
	MethodPDFText     Method = "pdf-text"      // text layer of a PDF
	MethodImageOCR    Method = "image-ocr"     // tesseract on an image file
	MethodEmbeddedOCR Method = "pdf-image-ocr" // tesseract on an image embedded in a PDF
	MethodHosted      Method = "hosted"        // hosted schema extraction
)

// OutcomeStatus is the per-file result of a run.
type OutcomeStatus string

const (
	StatusWritten OutcomeStatus = "WRITTEN"
	StatusSkipped OutcomeStatus = "SKIPPED"
	StatusFailed  OutcomeStatus = "FAILED"
)

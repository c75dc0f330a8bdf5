package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extract/constants"
	"github.com/joseph-ayodele/invoice-extract/internal/common"
	"github.com/joseph-ayodele/invoice-extract/internal/export"
	"github.com/joseph-ayodele/invoice-extract/internal/extract"
	"github.com/joseph-ayodele/invoice-extract/internal/invoice"
	"github.com/joseph-ayodele/invoice-extract/internal/ocr"
	"github.com/joseph-ayodele/invoice-extract/internal/repository"
	"github.com/joseph-ayodele/invoice-extract/internal/storage"
)

// stubSource returns canned text per base name; names in fail degrade like a
// broken file would.
type stubSource struct {
	text   map[string]string
	fail   map[string]bool
	images map[string][]extract.EmbeddedImage
	calls  []string
}

func (s *stubSource) Extract(_ context.Context, path string) (extract.TextExtractionResult, error) {
	name := filepath.Base(path)
	s.calls = append(s.calls, name)
	if s.fail[name] {
		return extract.TextExtractionResult{Err: common.ErrExtraction}, nil
	}
	return extract.TextExtractionResult{Text: s.text[name], Method: constants.MethodPDFText}, nil
}

func (s *stubSource) EmbeddedImages(_ context.Context, pdf string) ([]extract.EmbeddedImage, func(), error) {
	return s.images[filepath.Base(pdf)], func() {}, nil
}

type stubSchema struct {
	records map[string]invoice.Record
	fail    map[string]bool
	calls   []string
}

func (s *stubSchema) PrepareSchema(context.Context, invoice.Profile) (string, error) {
	return "schema-1", nil
}

func (s *stubSchema) ExtractDocument(_ context.Context, schemaID, path string) (invoice.Record, error) {
	name := filepath.Base(path)
	s.calls = append(s.calls, name)
	if s.fail[name] {
		return invoice.Record{}, common.HostedErrorf("job for %s failed", name)
	}
	return s.records[name], nil
}

func fixtureText(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("..", "parse", "testdata", "invoice.txt"))
	require.NoError(t, err)
	return string(b)
}

func touch(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func outputs(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRun_FullInvoicePDF(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "out")
	touch(t, in, "invoice.pdf", "%PDF-1.4")
	touch(t, in, "notes.txt", "ignored")

	src := &stubSource{text: map[string]string{"invoice.pdf": fixtureText(t)}}
	p := NewProcessor(Config{InputDir: in}, src, storage.NewWriter(out, nil), nil)

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, sum.RunID)
	assert.Equal(t, 1, sum.Written)
	assert.Equal(t, []string{"invoice.pdf"}, src.calls)

	require.Equal(t, []string{"extracted_invoice_from_image_invoice.pdf.json"}, outputs(t, out))
	rec, err := storage.Read(filepath.Join(out, "extracted_invoice_from_image_invoice.pdf.json"))
	require.NoError(t, err)
	assert.Equal(t, "INV-1001", rec.Number())
	assert.Equal(t, "Acme Traders Pvt Ltd", invoice.Deref(rec.Company))
	assert.Len(t, rec.Items, 2)
	require.NotNil(t, rec.TotalAmount)
	assert.Equal(t, "HDFC Bank", invoice.Deref(rec.PaymentDetails.Bank))
}

type noExecRunner struct{ t *testing.T }

func (r noExecRunner) Run(_ context.Context, name string, _ ...string) ([]byte, []byte, error) {
	r.t.Fatalf("unexpected shell-out to %s", name)
	return nil, nil, nil
}

// writeInvoicePDF renders a text-layer invoice. Core fonts have no rupee sign,
// so amounts are printed with "Rs" and only the item table span is checked.
func writeInvoicePDF(t *testing.T, path string) {
	t.Helper()
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	doc.AddPage()
	doc.SetFont("Helvetica", "", 10)
	line := func(s string) {
		doc.Cell(0, 6, s)
		doc.Ln(6)
	}
	for _, s := range []string{
		"TAX INVOICE",
		"R E C I P I E N T",
		"Acme Traders Pvt Ltd",
		"GSTIN 29ABCDE1234F1Z5",
		"12 MG Road, Bengaluru",
		"Karnataka 560001",
		"Mobile +91 9876543210",
		"Email billing@acme.example",
		"Invoice #: INV-1001",
		"Invoice Date: 05 Mar 2024",
		"Due Date: 20 Mar 2024",
		"Customer Details:",
		"Ravi Kumar",
		"Ph: 9123456789",
		"Shipping Address: 45 Park Street, Kolkata",
		"Place of Supply: 19-WEST BENGAL",
	} {
		line(s)
	}
	for _, h := range []string{"#", "Item", "Rate / Item", "Qty", "Taxable Value", "Tax Amount", "Amount"} {
		doc.CellFormat(26, 6, h, "", 0, "L", false, 0, "")
	}
	doc.Ln(6)
	for _, s := range []string{
		"Widget 2 Rs100.00 2 Rs200.00",
		"Gadget 1 Rs1,250.50 1 Rs1,250.50",
		"Taxable Amount",
		"Bank Details:",
		"Bank: HDFC Bank",
		"Account #: 50100123456789",
		"IFSC Code: HDFC0001234",
		"Branch: MG ROAD",
		"Authorized Signatory: Anita Rao",
	} {
		line(s)
	}
	require.NoError(t, doc.OutputFileAndClose(path))
}

func TestRun_TextLayerPDFEndToEnd(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeInvoicePDF(t, filepath.Join(in, "acme.pdf"))

	source := extract.NewOCRAdapter(ocr.NewExtractorWithRunner(ocr.Config{}, noExecRunner{t}, nil), nil)
	p := NewProcessor(Config{InputDir: in, Profile: invoice.Scanned}, source, storage.NewWriter(out, nil), nil)

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sum.Outcomes, 1)
	assert.NoError(t, sum.Outcomes[0].Err)
	assert.Equal(t, constants.MethodPDFText, sum.Outcomes[0].Method)

	require.Equal(t, []string{"extracted_invoice_from_image_acme.pdf.json"}, outputs(t, out))
	rec, err := storage.Read(filepath.Join(out, "extracted_invoice_from_image_acme.pdf.json"))
	require.NoError(t, err)

	assert.Equal(t, "Acme Traders Pvt Ltd", invoice.Deref(rec.Company))
	assert.Equal(t, "29ABCDE1234F1Z5", invoice.Deref(rec.CompanyGSTIN))
	assert.Equal(t, "12 MG Road, Bengaluru Karnataka 560001", invoice.Deref(rec.CompanyAddress))
	assert.Equal(t, "91 9876543210", invoice.Deref(rec.CompanyMobile))
	assert.Equal(t, "billing@acme.example", invoice.Deref(rec.CompanyEmail))
	assert.Equal(t, "INV-1001", rec.Number())
	assert.Equal(t, "05 Mar 2024", invoice.Deref(rec.InvoiceDate))
	assert.Equal(t, "20 Mar 2024", invoice.Deref(rec.DueDate))
	assert.Equal(t, "Ravi Kumar", invoice.Deref(rec.CustomerName))
	assert.Equal(t, "9123456789", invoice.Deref(rec.CustomerPhone))
	assert.Equal(t, "45 Park Street, Kolkata", invoice.Deref(rec.ShippingAddress))
	assert.Equal(t, "19-WEST BENGAL", invoice.Deref(rec.PlaceOfSupply))
	assert.Equal(t, "HDFC Bank", invoice.Deref(rec.PaymentDetails.Bank))
	assert.Equal(t, "50100123456789", invoice.Deref(rec.PaymentDetails.AccountNumber))
	assert.Equal(t, "HDFC0001234", invoice.Deref(rec.PaymentDetails.IFSCCode))
	assert.Equal(t, "MG ROAD", invoice.Deref(rec.PaymentDetails.Branch))
	require.NotNil(t, rec.ItemList)
	assert.Equal(t, "Widget 2 Rs100.00 2 Rs200.00 Gadget 1 Rs1,250.50 1 Rs1,250.50", *rec.ItemList)
}

func TestRun_FailedReadYieldsEmptyRecordAndContinues(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	touch(t, in, "a_broken.png", "x")
	touch(t, in, "b_good.pdf", "y")

	src := &stubSource{
		text: map[string]string{"b_good.pdf": "Invoice #: INV-7\n"},
		fail: map[string]bool{"a_broken.png": true},
	}
	p := NewProcessor(Config{InputDir: in}, src, storage.NewWriter(out, nil), nil)

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sum.Outcomes, 2)
	assert.Equal(t, 2, sum.Written)
	assert.ErrorIs(t, sum.Outcomes[0].Err, common.ErrExtraction)
	assert.Equal(t, constants.MethodImageOCR, sum.Outcomes[0].Method)

	empty, err := storage.Read(filepath.Join(out, "extracted_invoice_from_image_a_broken.png.json"))
	require.NoError(t, err)
	assert.Zero(t, empty.Populated())
	assert.Empty(t, empty.Items)

	good, err := storage.Read(filepath.Join(out, "extracted_invoice_from_image_b_good.pdf.json"))
	require.NoError(t, err)
	assert.Equal(t, "INV-7", good.Number())
}

func TestRun_HostedErrorAbortsBatch(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	touch(t, in, "a.pdf", "1")
	touch(t, in, "b.pdf", "2")
	touch(t, in, "c.pdf", "3")

	num := "A-1"
	schema := &stubSchema{
		records: map[string]invoice.Record{"a.pdf": {InvoiceNumber: &num, Items: []invoice.LineItem{}}},
		fail:    map[string]bool{"b.pdf": true},
	}
	p := NewProcessor(Config{InputDir: in, UseHosted: true}, &stubSource{}, storage.NewWriter(out, nil), nil,
		WithSchemaExtractor(schema))

	sum, err := p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrHosted)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, schema.calls)
	assert.Equal(t, 1, sum.Written)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, []string{"extracted_invoice_A-1.json"}, outputs(t, out))
}

func TestRun_HostedImagesUseRegexPath(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	touch(t, in, "scan.jpg", "img")

	src := &stubSource{text: map[string]string{"scan.jpg": "Invoice #: INV-9\n"}}
	schema := &stubSchema{}
	p := NewProcessor(Config{InputDir: in, UseHosted: true}, src, storage.NewWriter(out, nil), nil,
		WithSchemaExtractor(schema))

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, schema.calls)
	assert.Equal(t, []string{"extracted_invoice_from_image_scan.jpg.json"}, outputs(t, out))
}

func TestRun_HostedWithoutClientIsConfigError(t *testing.T) {
	p := NewProcessor(Config{InputDir: t.TempDir(), UseHosted: true}, &stubSource{}, storage.NewWriter(t.TempDir(), nil), nil)
	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, common.IsUsage(err))
}

func TestRun_EmbeddedImages(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	touch(t, in, "scan.pdf", "pdf")
	img := touch(t, t.TempDir(), "extracted_image_scan.pdf_0.png", "png")

	src := &stubSource{
		text:   map[string]string{filepath.Base(img): "Invoice #: INV-42\n"},
		images: map[string][]extract.EmbeddedImage{"scan.pdf": {{Name: filepath.Base(img), Path: img}}},
	}
	p := NewProcessor(Config{InputDir: in, EmbeddedImages: true}, src, storage.NewWriter(out, nil), nil)

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sum.Outcomes, 2)
	assert.Equal(t, constants.MethodEmbeddedOCR, sum.Outcomes[1].Method)
	assert.Equal(t, "INV-42", sum.Outcomes[1].InvoiceNumber)
	assert.ElementsMatch(t, []string{
		"extracted_invoice_from_image_scan.pdf.json",
		"extracted_invoice_from_image_extracted_image_scan.pdf_0.png.json",
	}, outputs(t, out))
}

func TestRun_SkipProcessedWithLedger(t *testing.T) {
	ctx := context.Background()
	in, out := t.TempDir(), t.TempDir()
	touch(t, in, "a.pdf", "first")
	touch(t, in, "b.png", "second")

	db, err := repository.Open(ctx, repository.Config{DSN: "sqlite:" + filepath.Join(t.TempDir(), "ledger.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	ledger := repository.NewLedgerRepository(db, nil)
	require.NoError(t, ledger.Migrate(ctx))

	src := &stubSource{text: map[string]string{"a.pdf": "Invoice #: INV-1\n"}}
	cfg := Config{InputDir: in, SkipProcessed: true}

	first, err := NewProcessor(cfg, src, storage.NewWriter(out, nil), nil, WithLedger(ledger)).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Written)

	entries, err := ledger.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first.RunID, entries[0].RunID)

	src.calls = nil
	second, err := NewProcessor(cfg, src, storage.NewWriter(out, nil), nil, WithLedger(ledger)).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Written)
	assert.Equal(t, 2, second.Skipped)
	assert.Empty(t, src.calls)
}

func TestRun_WritesXLSXSummary(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	touch(t, in, "invoice.pdf", "pdf")
	xlsx := filepath.Join(t.TempDir(), "summary", "invoices.xlsx")

	src := &stubSource{text: map[string]string{"invoice.pdf": fixtureText(t)}}
	p := NewProcessor(Config{InputDir: in, XLSXPath: xlsx}, src, storage.NewWriter(out, nil), nil,
		WithExporter(export.NewService(nil)))

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	info, err := os.Stat(xlsx)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestProcessPath(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	path := touch(t, in, "late.PNG", "img")
	src := &stubSource{text: map[string]string{"late.PNG": "Invoice #: INV-5\n"}}
	p := NewProcessor(Config{InputDir: in}, src, storage.NewWriter(out, nil), nil)

	outs, err := p.ProcessPath(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, constants.StatusWritten, outs[0].Status)
	assert.Equal(t, "INV-5", outs[0].InvoiceNumber)

	_, err = p.ProcessPath(context.Background(), filepath.Join(in, "notes.txt"))
	assert.True(t, errors.Is(err, common.ErrUnsupported))
}

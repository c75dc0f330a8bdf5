package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extract/constants"
)

type call struct {
	name string
	args []string
}

type stubRunner struct {
	calls []call
	fn    func(name string, args []string) ([]byte, []byte, error)
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.calls = append(s.calls, call{name: name, args: args})
	return s.fn(name, args)
}

func writeTextPDF(t *testing.T, path string, lines []string) {
	t.Helper()
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	doc.AddPage()
	doc.SetFont("Helvetica", "", 11)
	for _, ln := range lines {
		doc.Cell(0, 7, ln)
		doc.Ln(7)
	}
	require.NoError(t, doc.OutputFileAndClose(path))
}

func TestExtract_PDFTextLayer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inv.pdf")
	writeTextPDF(t, path, []string{
		"GSTIN 29ABCDE1234F1Z5",
		"Invoice #: INV-1001",
		"Invoice Date: 05 Mar 2024",
	})

	r := &stubRunner{fn: func(string, []string) ([]byte, []byte, error) {
		t.Fatal("pdf text layer must not shell out")
		return nil, nil, nil
	}}
	e := NewExtractorWithRunner(Config{}, r, nil)
	res, err := e.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, constants.PDF, res.SourceType)
	assert.Equal(t, constants.MethodPDFText, res.Method)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, "GSTIN 29ABCDE1234F1Z5\nInvoice #: INV-1001\nInvoice Date: 05 Mar 2024\n\n", res.Text)
	assert.Greater(t, res.Confidence, float32(0.3))
}

func TestExtract_PDFKeepsLinesAndCells(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.pdf")
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	doc.AddPage()
	doc.SetFont("Helvetica", "", 11)
	doc.Cell(0, 7, "Customer Details:")
	doc.Ln(7)
	doc.Cell(0, 7, "Ravi Kumar")
	doc.Ln(7)
	for _, h := range []string{"Taxable Value", "Tax Amount", "Amount"} {
		doc.CellFormat(40, 7, h, "", 0, "L", false, 0, "")
	}
	doc.Ln(7)
	doc.Cell(0, 7, "Taxable Amount")
	require.NoError(t, doc.OutputFileAndClose(path))

	res, err := NewExtractor(Config{}, nil).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Customer Details:",
		"Ravi Kumar",
		"Taxable Value Tax Amount Amount",
		"Taxable Amount",
	}, strings.Split(strings.TrimRight(res.Text, "\n"), "\n"))
}

func TestPageLines(t *testing.T) {
	glyphs := []pdf.Text{
		// second line, second cell listed first and with a slightly lower baseline
		{FontSize: 10, X: 120, Y: 699.6, S: "B"},
		{FontSize: 10, X: 120, Y: 699.6, S: "ank"},
		{FontSize: 10, X: 50, Y: 700, S: "HDFC"},
		// first line, glyphs with widths that touch
		{FontSize: 10, X: 50, Y: 720, W: 6, S: "P"},
		{FontSize: 10, X: 56, Y: 720, W: 5, S: "h"},
		{FontSize: 10, X: 61, Y: 720, W: 3, S: ":"},
		{FontSize: 10, X: 64, Y: 720, W: 3, S: " "},
		{FontSize: 10, X: 67, Y: 720, W: 6, S: "9"},
		{FontSize: 10, X: 90, Y: 680, S: ""},
	}
	assert.Equal(t, []string{"Ph: 9", "HDFC Bank"}, pageLines(glyphs))
	assert.Empty(t, pageLines(nil))
}

func TestExtract_PDFCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf at all"), 0o600))

	e := NewExtractor(Config{}, nil)
	res, err := e.Extract(context.Background(), path)
	assert.Error(t, err)
	assert.Empty(t, res.Text)
}

func TestExtract_ImageUsesTesseract(t *testing.T) {
	r := &stubRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		return []byte("Invoice #:\tINV-42\r\n-----\r\n\r\n\r\n\r\nTotal  ₹10.00  \r\n"), nil, nil
	}}
	e := NewExtractorWithRunner(Config{TesseractLang: "hin", TessdataDir: "/td"}, r, nil)

	res, err := e.Extract(context.Background(), "/x/scan.PNG")
	require.NoError(t, err)
	require.Len(t, r.calls, 1)
	assert.Equal(t, "tesseract", r.calls[0].name)
	assert.Equal(t, []string{"/x/scan.PNG", "stdout", "-l", "hin", "--tessdata-dir", "/td"}, r.calls[0].args)
	assert.Equal(t, "Invoice #: INV-42\n\nTotal ₹10.00", res.Text)
	assert.Equal(t, constants.MethodImageOCR, res.Method)
	assert.Equal(t, "hin", res.Language)
}

func TestExtract_ImageFailure(t *testing.T) {
	r := &stubRunner{fn: func(string, []string) ([]byte, []byte, error) {
		return nil, []byte("read error"), errors.New("exit status 1")
	}}
	e := NewExtractorWithRunner(Config{}, r, nil)
	res, err := e.Extract(context.Background(), "a.jpg")
	require.Error(t, err)
	assert.Equal(t, []string{"read error"}, res.Warnings)
}

func TestExtract_TSVConfidence(t *testing.T) {
	tsv := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
		"5\t1\t1\t1\t1\t1\t0\t0\t1\t1\t90\tTotal\n" +
		"5\t1\t1\t1\t1\t2\t0\t0\t1\t1\t70\t10.00\n" +
		"4\t1\t1\t1\t1\t0\t0\t0\t1\t1\t-1\t\n"
	r := &stubRunner{fn: func(_ string, args []string) ([]byte, []byte, error) {
		if args[len(args)-1] == "tsv" {
			return []byte(tsv), nil, nil
		}
		return []byte("Total 10.00"), nil, nil
	}}
	e := NewExtractorWithRunner(Config{EnableTSVConfidence: true, PSM: 6}, r, nil)
	res, err := e.Extract(context.Background(), "a.jpeg")
	require.NoError(t, err)
	require.Len(t, r.calls, 2)
	assert.Contains(t, r.calls[1].args, "--psm")
	// 0.7*0.8 + 0.3*heuristic
	assert.InDelta(t, 0.7*0.8+0.3*heuristicConfidence("Total 10.00"), res.Confidence, 1e-5)
}

func TestExtract_Unsupported(t *testing.T) {
	_, err := NewExtractor(Config{}, nil).Extract(context.Background(), "notes.txt")
	assert.Error(t, err)
}

func TestExtractEmbeddedImages(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "cache")
	r := &stubRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		prefix := args[len(args)-1]
		for _, n := range []string{"-001.png", "-000.png"} {
			if err := os.WriteFile(prefix+n, []byte("png"), 0o600); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	}}
	e := NewExtractorWithRunner(Config{ArtifactCacheDir: cache}, r, nil)

	imgs, cleanup, err := e.ExtractEmbeddedImages(context.Background(), "/in/bill.pdf")
	defer cleanup()
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	assert.Equal(t, "pdfimages", r.calls[0].name)
	assert.Equal(t, []string{"-png", "/in/bill.pdf"}, r.calls[0].args[:2])
	assert.Equal(t, filepath.Join(cache, "extracted_image_bill.pdf_0.png"), imgs[0].Path)
	assert.Equal(t, 1, imgs[1].Index)
	assert.FileExists(t, imgs[1].Path)
}

func TestExtractEmbeddedImages_Failure(t *testing.T) {
	r := &stubRunner{fn: func(string, []string) ([]byte, []byte, error) {
		return nil, []byte("Syntax Error"), errors.New("exit status 1")
	}}
	imgs, cleanup, err := NewExtractorWithRunner(Config{}, r, nil).ExtractEmbeddedImages(context.Background(), "x.pdf")
	require.NotNil(t, cleanup)
	cleanup()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Syntax Error"))
	assert.Empty(t, imgs)
}

func TestNormalizeKeepsDigits(t *testing.T) {
	assert.Equal(t, "Invoice Date: 05 Mar 2024", Normalize("Invoice Date:  05 Mar 2024  "))
	assert.Equal(t, "", Normalize(""))
}

func TestHeuristicConfidence(t *testing.T) {
	assert.Zero(t, heuristicConfidence(""))
	low := heuristicConfidence("blurry")
	high := heuristicConfidence("GSTIN 29ABCDE1234F1Z5 Invoice #: INV-1 05 Mar 2024 Total ₹1,450.50")
	assert.Less(t, low, high)
	assert.LessOrEqual(t, high, float32(1))
}

package ocr

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/invoice-extract/constants"
)

func (e *Extractor) extractPDF(path string) (ExtractionResult, error) {
	res := ExtractionResult{SourceType: constants.PDF, Method: constants.MethodPDFText}
	text, pages, warns, err := e.pdfToText(path)
	res.Pages = pages
	res.Warnings = warns
	if err != nil {
		return res, fmt.Errorf("pdf text layer: %w", err)
	}
	res.Text = text
	res.Confidence = heuristicConfidence(text)
	return res, nil
}

// pdfToText reads the text layer page by page; each page is followed by "\n".
// The pdf package panics on some malformed inputs, which is reported as an error.
func (e *Extractor) pdfToText(path string) (text string, pages int, warnings []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, nil, err
	}
	defer func() { _ = f.Close() }()

	pages = r.NumPage()
	limit := pages
	if e.cfg.MaxPages > 0 && limit > e.cfg.MaxPages {
		limit = e.cfg.MaxPages
		warnings = append(warnings, fmt.Sprintf("only first %d of %d pages read", limit, pages))
	}

	var b strings.Builder
	for i := 1; i <= limit; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			b.WriteString("\n")
			continue
		}
		for _, ln := range pageLines(p.Content().Text) {
			b.WriteString(ln)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String(), pages, warnings, nil
}

// pageLines rebuilds the visual lines of a page from positioned glyphs: top to
// bottom, then left to right. Glyphs whose baselines differ by less than half
// the font size share a line. A space is inserted where two glyphs on a line
// are separated by a visible gap.
func pageLines(glyphs []pdf.Text) []string {
	gs := make([]pdf.Text, 0, len(glyphs))
	for _, g := range glyphs {
		if g.S != "" {
			gs = append(gs, g)
		}
	}
	sort.SliceStable(gs, func(i, j int) bool { return gs[i].Y > gs[j].Y })

	var lines []string
	for i := 0; i < len(gs); {
		top := gs[i].Y
		tol := math.Max(gs[i].FontSize/2, 1)
		j := i + 1
		for j < len(gs) && top-gs[j].Y <= tol {
			j++
		}
		line := append([]pdf.Text(nil), gs[i:j]...)
		sort.SliceStable(line, func(a, b int) bool { return line[a].X < line[b].X })
		if s := joinGlyphs(line); s != "" {
			lines = append(lines, s)
		}
		i = j
	}
	return lines
}

func joinGlyphs(line []pdf.Text) string {
	var b strings.Builder
	var end float64
	lastSpace := true
	for k, g := range line {
		gap := g.X - end
		if k > 0 && !lastSpace && !strings.HasPrefix(g.S, " ") && gap > math.Max(g.FontSize*0.2, 1) {
			b.WriteByte(' ')
		}
		b.WriteString(g.S)
		lastSpace = strings.HasSuffix(g.S, " ")
		if e := g.X + g.W; k == 0 || e > end {
			end = e
		}
	}
	return strings.TrimSpace(b.String())
}

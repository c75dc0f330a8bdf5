package ocr

import (
	"regexp"
)

var (
	reDate      = regexp.MustCompile(`\b\d{2}\s[A-Za-z]{3}\s\d{4}\b`)
	reCurr      = regexp.MustCompile(`₹|\b(?i:inr|rs\.?)\b`)
	reAmount    = regexp.MustCompile(`\b\d{1,3}(,\d{2,3})*(\.\d{2})\b|\b\d+\.\d{2}\b`)
	reTaxID     = regexp.MustCompile(`GSTIN\s*[A-Z0-9]{10,}`)
	reInvoiceNo = regexp.MustCompile(`INV-\d+`)
)

func hasDatePattern(s string) bool     { return reDate.MatchString(s) }
func hasCurrencyPattern(s string) bool { return reCurr.MatchString(s) }
func hasAmountPattern(s string) bool   { return reAmount.MatchString(s) }

// heuristicConfidence scores decoded text by the invoice markers it carries.
// It is only used to warn about likely-bad reads.
func heuristicConfidence(txt string) float32 {
	if txt == "" {
		return 0
	}
	score := float32(0.1) // base
	if hasDatePattern(txt) {
		score += 0.15
	}
	if hasCurrencyPattern(txt) {
		score += 0.15
	}
	if hasAmountPattern(txt) {
		score += 0.15
	}
	if reTaxID.MatchString(txt) {
		score += 0.2
	}
	if reInvoiceNo.MatchString(txt) {
		score += 0.15
	}
	if len(txt) > 120 {
		score += 0.1
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}

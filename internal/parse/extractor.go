package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-extract/internal/invoice"
)

// Extractor turns raw invoice text into a Record. It is pure and safe for
// concurrent use; every field lookup is independent and a miss leaves the field null.
type Extractor struct {
	profile invoice.Profile
}

func NewExtractor(profile invoice.Profile) *Extractor {
	if profile.Name == "" {
		profile = invoice.Itemized
	}
	return &Extractor{profile: profile}
}

func (e *Extractor) Profile() invoice.Profile { return e.profile }

// Extract never fails; unknown or empty text yields an empty record.
func (e *Extractor) Extract(text string) invoice.Record {
	p := e.profile
	rec := invoice.New()

	rec.Company = e.span(reCompany, text)
	rec.CompanyGSTIN = e.scalar(reGSTIN, text)
	rec.CompanyAddress = e.span(reAddress, text)
	rec.CompanyMobile = e.scalar(reMobile, text)
	rec.CompanyEmail = e.scalar(reEmail, text)

	rec.InvoiceNumber = e.scalar(reInvoiceNumber, text)
	rec.InvoiceDate = e.scalar(reInvoiceDate, text)
	rec.DueDate = e.scalar(reDueDate, text)

	rec.CustomerPhone = e.scalar(rePhone, text)
	rec.CustomerName = e.scalar(reCustomer, text)
	if rec.CustomerPhone == nil && p.CustomerFallback {
		rec.CustomerName = e.scalar(reCustomerLine, text)
	}

	rec.ShippingAddress = e.span(reShipping, text)
	rec.PlaceOfSupply = e.span(rePlace, text)

	if raw, ok := first(reItemSpan, text); ok {
		rec.Items = ParseItems(raw)
		if p.KeepItemSpan {
			rec.ItemList = e.fold(raw)
		}
	}

	if p.Totals {
		rec.TaxableAmount = amount(reTaxable, text)
	}
	rec.TotalAmount = amount(reTotal, text)
	rec.TotalDiscount = amount(reDiscount, text)

	rec.PaymentDetails.Bank = e.scalar(reBank, text)
	rec.PaymentDetails.AccountNumber = e.scalar(reAccount, text)
	rec.PaymentDetails.IFSCCode = e.scalar(reIFSC, text)
	if p.Branch {
		rec.PaymentDetails.Branch = e.scalar(reBranch, text)
	}
	if p.Totals {
		rec.AuthorizedSignatory = e.scalar(reSignatory, text)
	}
	return rec
}

// ParseItems reads item rows out of the item table span. Rows whose numbers
// do not parse are skipped.
func ParseItems(span string) []invoice.LineItem {
	items := []invoice.LineItem{}
	for _, m := range reItemRow.FindAllStringSubmatch(span, -1) {
		rate, err := ParseAmount(m[3])
		if err != nil {
			continue
		}
		qty, err := ParseQuantity(m[4])
		if err != nil {
			continue
		}
		value, err := ParseAmount(m[5])
		if err != nil {
			continue
		}
		items = append(items, invoice.LineItem{
			ItemNumber:   strconv.Itoa(len(items) + 1),
			ItemName:     m[1],
			RatePerItem:  rate,
			Quantity:     qty,
			TaxableValue: value,
			TaxAmount:    0,
			TotalAmount:  value,
		})
	}
	return items
}

func (e *Extractor) scalar(re *regexp.Regexp, text string) *string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return invoice.StrPtr(strings.TrimSpace(m[1]))
}

// span is scalar for captures that may cross lines.
func (e *Extractor) span(re *regexp.Regexp, text string) *string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return e.fold(m[1])
}

func (e *Extractor) fold(s string) *string {
	if e.profile.FoldNewlines {
		s = strings.ReplaceAll(s, "\n", " ")
	}
	return invoice.StrPtr(strings.TrimSpace(s))
}

func amount(re *regexp.Regexp, text string) *float64 {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	f, err := ParseAmount(m[1])
	if err != nil {
		return nil
	}
	return invoice.FloatPtr(f)
}

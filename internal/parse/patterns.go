package parse

import "regexp"

// Field patterns, applied independently against the whole text. RE2 has no
// look-ahead, so terminators are trailing non-capturing groups paired with
// non-greedy captures.
var (
	reCompany       = regexp.MustCompile(`(?s)R E C I P I E N T(.*?)GSTIN`)
	reGSTIN         = regexp.MustCompile(`GSTIN\s*([A-Z0-9]+)`)
	reAddress       = regexp.MustCompile(`(?s)GSTIN\s*[A-Z0-9]+(.*?)Mobile`)
	reMobile        = regexp.MustCompile(`Mobile\s*\+?(\d{1,3}\s*\d+)`)
	reEmail         = regexp.MustCompile(`Email\s*([\w.-]+@[\w.-]+)`)
	reInvoiceNumber = regexp.MustCompile(`Invoice #:\s*(INV-\d+)`)
	reInvoiceDate   = regexp.MustCompile(`Invoice Date:\s*(\d{2}\s\w{3}\s\d{4})`)
	reDueDate       = regexp.MustCompile(`Due Date:\s*(\d{2}\s\w{3}\s\d{4})`)
	reCustomer      = regexp.MustCompile(`Customer Details:\s*([\w\s]+?)(?:\nPh|$)`)
	reCustomerLine  = regexp.MustCompile(`Customer Details:\s*([\w\s]+)\n`)
	rePhone         = regexp.MustCompile(`Ph:\s*(\d+)`)
	reShipping      = regexp.MustCompile(`(?:Shipping Address|Billing Address):\s*([\w\s,]+?)(?:\nPlace of Supply:|$)`)
	rePlace         = regexp.MustCompile(`Place of Supply:\s*(\d{2}-[\w\s]+)`)
	reItemSpan      = regexp.MustCompile(`(?s)Value\s*Tax\s*Amount\s*Amount(.*?)Taxable Amount`)
	reItemRow       = regexp.MustCompile(`(\w+)\s+(\d+)\s+₹([\d.,]+)\s+(\d+)\s+₹([\d.,]+)`)
	reTaxable       = regexp.MustCompile(`Taxable Amount\s*₹([\d.,]+)`)
	reTotal         = regexp.MustCompile(`Total\s*₹([\d.,]+)`)
	reDiscount      = regexp.MustCompile(`Total Discount\s+₹([\d.,]+)`)
	reBank          = regexp.MustCompile(`Bank:\s*([a-zA-Z\s]+)\n`)
	reAccount       = regexp.MustCompile(`Account #:\s*(\d+)`)
	reIFSC          = regexp.MustCompile(`IFSC Code:\s*([A-Za-z0-9]+)`)
	reBranch        = regexp.MustCompile(`Branch:\s*([A-Z\s-]+)\n`)
	reSignatory     = regexp.MustCompile(`Authorized Signatory:\s*([\w\s]+)`)
)

// first returns capture group 1 of the first match, or "" with ok=false.
func first(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

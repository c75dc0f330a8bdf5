package invoice

// Record is the structured form of one invoice. Every scalar is nullable: a nil
// pointer means the value was not found in the source.
type Record struct {
	Company             *string        `json:"Company"`
	CompanyGSTIN        *string        `json:"Company_GSTIN"`
	CompanyAddress      *string        `json:"Company_Address"`
	CompanyMobile       *string        `json:"Company_Mobile"`
	CompanyEmail        *string        `json:"Company_Email"`
	InvoiceNumber       *string        `json:"Invoice_Number"`
	InvoiceDate         *string        `json:"Invoice_Date"`
	DueDate             *string        `json:"Due_Date"`
	CustomerName        *string        `json:"Customer_Name"`
	CustomerPhone       *string        `json:"Customer_Phone"`
	ShippingAddress     *string        `json:"Shipping_Address"`
	PlaceOfSupply       *string        `json:"Place_Of_Supply"`
	Items               []LineItem     `json:"Items"`
	ItemList            *string        `json:"Item_List"`
	TaxableAmount       *float64       `json:"Taxable_Amount"`
	TotalAmount         *float64       `json:"Total_Amount"`
	TotalDiscount       *float64       `json:"Total_Discount"`
	PaymentDetails      PaymentDetails `json:"Payment_Details"`
	AuthorizedSignatory *string        `json:"Authorized_Signatory"`
}

// LineItem is one purchased product or service row.
type LineItem struct {
	ItemNumber   string  `json:"Item_Number"`
	ItemName     string  `json:"Item_Name"`
	RatePerItem  float64 `json:"Rate_per_Item"`
	Quantity     int     `json:"Quantity"`
	TaxableValue float64 `json:"Taxable_Value"`
	TaxAmount    float64 `json:"Tax_Amount"`
	TotalAmount  float64 `json:"Total_Amount"`
}

type PaymentDetails struct {
	Bank          *string `json:"Bank"`
	AccountNumber *string `json:"Account_Number"`
	IFSCCode      *string `json:"IFSC_Code"`
	Branch        *string `json:"Branch"`
}

// New returns an empty record with a non-nil item list.
func New() Record {
	return Record{Items: []LineItem{}}
}

// Number returns the invoice number or "" when absent.
func (r Record) Number() string {
	return Deref(r.InvoiceNumber)
}

// Populated counts the non-null scalar fields, payment details included.
func (r Record) Populated() int {
	n := 0
	for _, p := range []*string{
		r.Company, r.CompanyGSTIN, r.CompanyAddress, r.CompanyMobile, r.CompanyEmail,
		r.InvoiceNumber, r.InvoiceDate, r.DueDate, r.CustomerName, r.CustomerPhone,
		r.ShippingAddress, r.PlaceOfSupply, r.ItemList, r.AuthorizedSignatory,
		r.PaymentDetails.Bank, r.PaymentDetails.AccountNumber, r.PaymentDetails.IFSCCode, r.PaymentDetails.Branch,
	} {
		if p != nil {
			n++
		}
	}
	for _, p := range []*float64{r.TaxableAmount, r.TotalAmount, r.TotalDiscount} {
		if p != nil {
			n++
		}
	}
	return n
}

// StrPtr returns nil for an empty string.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func FloatPtr(f float64) *float64 {
	return &f
}

func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

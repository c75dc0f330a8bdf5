package hosted

import (
	"encoding/json"
	"fmt"

	"github.com/joseph-ayodele/invoice-extract/internal/invoice"
)

// wireInvoice is the record shape exchanged with the hosted service.
type wireInvoice struct {
	CompanyName         *string      `json:"Company_Name"`
	GSTIN               *string      `json:"GSTIN"`
	CompanyAddress      *string      `json:"Company_Address"`
	InvoiceNumber       *string      `json:"Invoice_Number"`
	InvoiceDate         *string      `json:"Invoice_Date"`
	DueDate             *string      `json:"Due_Date"`
	CustomerName        *string      `json:"Customer_Name"`
	ShippingAddress     *string      `json:"Shipping_address"`
	PlaceOfSupply       *string      `json:"Place_of_supply"`
	Items               []wireItem   `json:"Items"`
	TaxableAmount       *float64     `json:"Taxable_Amount"`
	TotalAmount         *float64     `json:"Total_Amount"`
	TotalDiscount       *float64     `json:"Total_Discount"`
	PaymentDetails      *wirePayment `json:"Payment_Details"`
	AuthorizedSignatory *string      `json:"Authorized_Signatory"`
}

type wireItem struct {
	ItemNumber   string  `json:"Item_Number"`
	ItemName     string  `json:"Item_Name"`
	RatePerItem  float64 `json:"Rate_per_Item"`
	Quantity     int     `json:"Quantity"`
	TaxableValue float64 `json:"Taxable_Value"`
	TaxAmount    float64 `json:"Tax_Amount"`
	TotalAmount  float64 `json:"Total_Amount"`
}

type wirePayment struct {
	Bank          *string `json:"Bank"`
	AccountNumber *string `json:"Account_Number"`
	IFSCCode      *string `json:"IFSC_Code"`
}

// DecodeRecord maps a sanitized hosted document onto an invoice record.
func DecodeRecord(doc []byte) (invoice.Record, error) {
	var w wireInvoice
	if err := json.Unmarshal(doc, &w); err != nil {
		return invoice.Record{}, fmt.Errorf("decode hosted record: %w", err)
	}
	return w.toRecord(), nil
}

func (w wireInvoice) toRecord() invoice.Record {
	rec := invoice.New()
	rec.Company = blankToNil(w.CompanyName)
	rec.CompanyGSTIN = blankToNil(w.GSTIN)
	rec.CompanyAddress = blankToNil(w.CompanyAddress)
	rec.InvoiceNumber = blankToNil(w.InvoiceNumber)
	rec.InvoiceDate = blankToNil(w.InvoiceDate)
	rec.DueDate = blankToNil(w.DueDate)
	rec.CustomerName = blankToNil(w.CustomerName)
	rec.ShippingAddress = blankToNil(w.ShippingAddress)
	rec.PlaceOfSupply = blankToNil(w.PlaceOfSupply)
	rec.TaxableAmount = w.TaxableAmount
	rec.TotalAmount = w.TotalAmount
	rec.TotalDiscount = w.TotalDiscount
	rec.AuthorizedSignatory = blankToNil(w.AuthorizedSignatory)
	if w.PaymentDetails != nil {
		rec.PaymentDetails.Bank = blankToNil(w.PaymentDetails.Bank)
		rec.PaymentDetails.AccountNumber = blankToNil(w.PaymentDetails.AccountNumber)
		rec.PaymentDetails.IFSCCode = blankToNil(w.PaymentDetails.IFSCCode)
	}
	for i, it := range w.Items {
		num := it.ItemNumber
		if num == "" {
			num = fmt.Sprint(i + 1)
		}
		rec.Items = append(rec.Items, invoice.LineItem{
			ItemNumber:   num,
			ItemName:     it.ItemName,
			RatePerItem:  it.RatePerItem,
			Quantity:     it.Quantity,
			TaxableValue: it.TaxableValue,
			TaxAmount:    it.TaxAmount,
			TotalAmount:  it.TotalAmount,
		})
	}
	return rec
}

func blankToNil(p *string) *string {
	if p == nil {
		return nil
	}
	return invoice.StrPtr(*p)
}

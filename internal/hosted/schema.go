package hosted

import (
	"github.com/joseph-ayodele/invoice-extract/internal/invoice"
)

// BuildInvoiceJSONSchema returns the data schema registered with the hosted
// service. The same map validates responses locally.
func BuildInvoiceJSONSchema(p invoice.Profile) map[string]any {
	props := map[string]any{
		"Company_Name":         textProp(),
		"GSTIN":                textProp(),
		"Invoice_Number":       map[string]any{"type": "string", "minLength": 1},
		"Invoice_Date":         textProp(),
		"Due_Date":             textProp(),
		"Customer_Name":        textProp(),
		"Items":                map[string]any{"type": "array", "items": itemSchema()},
		"Taxable_Amount":       amountProp(),
		"Total_Amount":         amountProp(),
		"Total_Discount":       amountProp(),
		"Payment_Details":      paymentSchema(),
		"Authorized_Signatory": textProp(),
	}
	if p.HostedAddresses {
		props["Company_Address"] = textProp()
		props["Shipping_address"] = textProp()
		props["Place_of_supply"] = textProp()
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"Invoice_Number", "Items"},
	}
}

func itemSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"Item_Number":   map[string]any{"type": "string"},
			"Item_Name":     map[string]any{"type": "string"},
			"Rate_per_Item": amountProp(),
			"Quantity":      map[string]any{"type": "integer", "minimum": 0},
			"Taxable_Value": amountProp(),
			"Tax_Amount":    amountProp(),
			"Total_Amount":  amountProp(),
		},
		"required": []string{"Item_Name", "Quantity", "Total_Amount"},
	}
}

func paymentSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"Bank":           textProp(),
			"Account_Number": textProp(),
			"IFSC_Code":      textProp(),
		},
	}
}

func textProp() map[string]any {
	return map[string]any{"type": "string"}
}

func amountProp() map[string]any {
	return map[string]any{"type": "number", "minimum": 0}
}

// schemaKeys lists the top-level properties of schema.
func schemaKeys(schema map[string]any) map[string]bool {
	out := map[string]bool{}
	if props, ok := schema["properties"].(map[string]any); ok {
		for k := range props {
			out[k] = true
		}
	}
	return out
}

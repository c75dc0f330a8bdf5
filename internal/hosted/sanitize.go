package hosted

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-extract/internal/parse"
)

var (
	moneyFields     = []string{"Taxable_Amount", "Total_Amount", "Total_Discount"}
	itemMoneyFields = []string{"Rate_per_Item", "Taxable_Value", "Tax_Amount", "Total_Amount"}
	itemFields      = map[string]bool{
		"Item_Number": true, "Item_Name": true, "Rate_per_Item": true, "Quantity": true,
		"Taxable_Value": true, "Tax_Amount": true, "Total_Amount": true,
	}
	paymentFields = map[string]bool{"Bank": true, "Account_Number": true, "IFSC_Code": true}
	synonyms      = map[string]string{
		"Company":          "Company_Name",
		"Company_GSTIN":    "GSTIN",
		"Shipping_Address": "Shipping_address",
		"Place_Of_Supply":  "Place_of_supply",
	}
)

// NormalizeAndSanitizeJSON reshapes a hosted response so it can validate against schema:
//   - renames known synonyms to the wire names
//   - drops null values and keys the schema does not declare
//   - coerces money strings ("₹1,450.50") to numbers and quantities to integers
//
// It returns the cleaned document and a list of what was changed.
func NormalizeAndSanitizeJSON(raw []byte, schema map[string]any, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}
	if m == nil {
		return nil, nil, fmt.Errorf("sanitize: response data is not an object")
	}

	changes := make([]string, 0, 8)
	for from, to := range synonyms {
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			changes = append(changes, from+"->"+to)
		}
	}

	allowed := schemaKeys(schema)
	for k, v := range m {
		switch {
		case !allowed[k]:
			delete(m, k)
			changes = append(changes, k+"(unknown)")
		case v == nil:
			delete(m, k)
			changes = append(changes, k+"(null)")
		}
	}

	for k, v := range m {
		if s, ok := v.(string); ok {
			m[k] = strings.TrimSpace(s)
		}
	}

	for _, k := range moneyFields {
		coerceMoney(m, k, "", &changes)
	}

	switch items := m["Items"].(type) {
	case []any:
		kept := make([]any, 0, len(items))
		for i, it := range items {
			row, ok := it.(map[string]any)
			if !ok {
				changes = append(changes, fmt.Sprintf("Items[%d](type)", i))
				continue
			}
			sanitizeItem(row, i, &changes)
			kept = append(kept, row)
		}
		m["Items"] = kept
	default:
		m["Items"] = []any{}
		changes = append(changes, "Items(missing)")
	}

	if pd, ok := m["Payment_Details"].(map[string]any); ok {
		for k, v := range pd {
			if !paymentFields[k] {
				delete(pd, k)
				changes = append(changes, "Payment_Details."+k+"(unknown)")
				continue
			}
			switch t := v.(type) {
			case nil:
				delete(pd, k)
			case float64:
				pd[k] = strconv.FormatFloat(t, 'f', -1, 64)
				changes = append(changes, "Payment_Details."+k+"(number)")
			case string:
				pd[k] = strings.TrimSpace(t)
			}
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	if len(changes) > 0 {
		sort.Strings(changes)
		logger.Debug("hosted.sanitize.changes", "changes", changes)
	}
	return out, changes, nil
}

func sanitizeItem(row map[string]any, i int, changes *[]string) {
	prefix := fmt.Sprintf("Items[%d].", i)
	for k, v := range row {
		if v == nil || !itemFields[k] {
			delete(row, k)
		}
	}
	for _, k := range itemMoneyFields {
		coerceMoney(row, k, prefix, changes)
	}
	switch q := row["Quantity"].(type) {
	case float64:
		if q != math.Trunc(q) {
			row["Quantity"] = math.Round(q)
			*changes = append(*changes, prefix+"Quantity(rounded)")
		}
	case string:
		if n, err := parse.ParseQuantity(q); err == nil {
			row["Quantity"] = n
		} else {
			delete(row, "Quantity")
		}
		*changes = append(*changes, prefix+"Quantity(string)")
	}
	switch n := row["Item_Number"].(type) {
	case float64:
		row["Item_Number"] = strconv.FormatFloat(n, 'f', -1, 64)
		*changes = append(*changes, prefix+"Item_Number(number)")
	}
	if s, ok := row["Item_Name"].(string); ok {
		row["Item_Name"] = strings.TrimSpace(s)
	}
}

func coerceMoney(m map[string]any, k, prefix string, changes *[]string) {
	v, ok := m[k]
	if !ok {
		return
	}
	switch t := v.(type) {
	case float64:
		// already a number
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "null") {
			delete(m, k)
			*changes = append(*changes, prefix+k+"(empty)")
			return
		}
		f, err := parse.ParseAmount(s)
		if err != nil {
			delete(m, k)
			*changes = append(*changes, prefix+k+"(unparseable)")
			return
		}
		m[k] = f
		*changes = append(*changes, prefix+k+"(string)")
	default:
		delete(m, k)
		*changes = append(*changes, prefix+k+"(type)")
	}
}

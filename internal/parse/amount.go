package parse

import (
	"fmt"
	"strconv"
	"strings"
)

var amountReplacer = strings.NewReplacer("₹", "", ",", "", " ", "", " ", "")

// ParseAmount converts a rupee amount such as "₹12,345.67" to a float,
// stripping the currency symbol and thousands separators.
func ParseAmount(s string) (float64, error) {
	clean := amountReplacer.Replace(strings.TrimSpace(s))
	clean = strings.TrimRight(clean, ".")
	if clean == "" {
		return 0, fmt.Errorf("empty amount %q", s)
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return f, nil
}

// ParseQuantity parses an integer quantity, tolerating thousands separators.
func ParseQuantity(s string) (int, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	n, err := strconv.Atoi(clean)
	if err != nil {
		return 0, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	return n, nil
}

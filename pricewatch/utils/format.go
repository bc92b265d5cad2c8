package utils

import "fmt"

// Ptr returns a pointer to v, for the disgo builders that take optionals.
func Ptr[T any](v T) *T {
	return &v
}

// FormatPrice renders a price with its currency symbol. Only USD is
// symbolized; other currencies keep their ISO code as a suffix.
func FormatPrice(amount float64, currency string) string {
	if currency == "" || currency == "USD" {
		return fmt.Sprintf("$%.2f", amount)
	}
	return fmt.Sprintf("%.2f %s", amount, currency)
}

// TruncateString shortens s to max runes, appending an ellipsis when cut.
func TruncateString(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

package aliexpress

import (
	"strconv"
	"strings"
)

// ParsePrice converts the API's mixed-format price strings ("USD 12.34",
// "$1,299.00") to a number. A false return means no price is available, which
// callers must treat differently from a price of zero.
func ParsePrice(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	cleaned := strings.NewReplacer("USD", "", "$", "", ",", "").Replace(raw)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

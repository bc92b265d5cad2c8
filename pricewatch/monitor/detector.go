package monitor

import "math"

// ChangeEpsilon is the smallest absolute price move treated as real. Absolute
// rather than relative on purpose: currency-conversion jitter below one cent
// must never wake anyone up.
const ChangeEpsilon = 0.01

// floatSlack absorbs the representation error of cent-sized deltas so that a
// move of exactly one cent counts as a change.
const floatSlack = 1e-9

// IsChange reports whether the move from old to new clears the epsilon.
func IsChange(oldPrice, newPrice float64) bool {
	return math.Abs(newPrice-oldPrice) > ChangeEpsilon-floatSlack
}

// Change returns the signed delta and the percent move relative to the old
// price. Percent is 0 when the old price is not positive.
func Change(oldPrice, newPrice float64) (delta, percent float64) {
	delta = newPrice - oldPrice
	if oldPrice > 0 {
		percent = delta / oldPrice * 100
	}
	return delta, percent
}

// DiscountPercent is the display discount against the original list price,
// used when a product is first added. It is deliberately a different
// calculation from Change: the denominator here is the list price, not the
// previously observed price.
func DiscountPercent(currentPrice, originalPrice float64) float64 {
	if originalPrice <= 0 || originalPrice <= currentPrice {
		return 0
	}
	return (originalPrice - currentPrice) / originalPrice * 100
}

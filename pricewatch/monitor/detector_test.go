package monitor

import (
	"math"
	"testing"
)

func TestIsChange(t *testing.T) {
	tests := []struct {
		name     string
		oldPrice float64
		newPrice float64
		want     bool
	}{
		{name: "identical", oldPrice: 10.00, newPrice: 10.00, want: false},
		{name: "sub-cent jitter", oldPrice: 10.00, newPrice: 10.004, want: false},
		{name: "exactly one cent up", oldPrice: 10.00, newPrice: 10.01, want: true},
		{name: "one cent and a bit", oldPrice: 10.00, newPrice: 10.011, want: true},
		{name: "clear drop", oldPrice: 10.00, newPrice: 9.00, want: true},
		{name: "clear increase", oldPrice: 9.00, newPrice: 10.00, want: true},
		{name: "from zero", oldPrice: 0, newPrice: 0.02, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsChange(tt.oldPrice, tt.newPrice); got != tt.want {
				t.Errorf("IsChange(%v, %v) = %v, want %v", tt.oldPrice, tt.newPrice, got, tt.want)
			}
		})
	}
}

func TestChange(t *testing.T) {
	tests := []struct {
		name        string
		oldPrice    float64
		newPrice    float64
		wantDelta   float64
		wantPercent float64
	}{
		{name: "drop", oldPrice: 20.00, newPrice: 17.50, wantDelta: -2.50, wantPercent: -12.5},
		{name: "increase", oldPrice: 10.00, newPrice: 11.00, wantDelta: 1.00, wantPercent: 10.0},
		{name: "old price zero", oldPrice: 0, newPrice: 5.00, wantDelta: 5.00, wantPercent: 0},
		{name: "no move", oldPrice: 8.00, newPrice: 8.00, wantDelta: 0, wantPercent: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, percent := Change(tt.oldPrice, tt.newPrice)
			if math.Abs(delta-tt.wantDelta) > 1e-9 {
				t.Errorf("Change(%v, %v) delta = %v, want %v", tt.oldPrice, tt.newPrice, delta, tt.wantDelta)
			}
			if math.Abs(percent-tt.wantPercent) > 1e-9 {
				t.Errorf("Change(%v, %v) percent = %v, want %v", tt.oldPrice, tt.newPrice, percent, tt.wantPercent)
			}
		})
	}
}

func TestDiscountPercent(t *testing.T) {
	tests := []struct {
		name          string
		currentPrice  float64
		originalPrice float64
		want          float64
	}{
		{name: "half off", currentPrice: 5.00, originalPrice: 10.00, want: 50},
		{name: "no list price", currentPrice: 5.00, originalPrice: 0, want: 0},
		{name: "list equals current", currentPrice: 5.00, originalPrice: 5.00, want: 0},
		{name: "marked up above list", currentPrice: 6.00, originalPrice: 5.00, want: 0},
		{name: "quarter off", currentPrice: 7.50, originalPrice: 10.00, want: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DiscountPercent(tt.currentPrice, tt.originalPrice); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("DiscountPercent(%v, %v) = %v, want %v", tt.currentPrice, tt.originalPrice, got, tt.want)
			}
		})
	}
}

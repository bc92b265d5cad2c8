package aliexpress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
		ok   bool
	}{
		{name: "plain number", raw: "12.34", want: 12.34, ok: true},
		{name: "usd prefix", raw: "USD 12.34", want: 12.34, ok: true},
		{name: "dollar sign", raw: "$5.99", want: 5.99, ok: true},
		{name: "thousands separator", raw: "$1,299.00", want: 1299.00, ok: true},
		{name: "zero is a real price", raw: "0.00", want: 0, ok: true},
		{name: "integer", raw: "7", want: 7, ok: true},
		{name: "empty string", raw: "", ok: false},
		{name: "whitespace only", raw: "   ", ok: false},
		{name: "symbols only", raw: "USD $", ok: false},
		{name: "not a number", raw: "free shipping", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePrice(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestExtractProductID(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{name: "item url", url: "https://www.aliexpress.com/item/1005001234567890.html", want: "1005001234567890"},
		{name: "locale subdomain", url: "https://es.aliexpress.com/item/4000123456789.html?gatewayAdapt=glo2esp", want: "4000123456789"},
		{name: "i path", url: "https://www.aliexpress.com/i/1005009876543210.html", want: "1005009876543210"},
		{name: "no id", url: "https://www.aliexpress.com/category/phones", want: ""},
		{name: "not a product url", url: "https://example.com/item/abc.html", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractProductID(tt.url))
		})
	}
}

func TestIsShortenedURL(t *testing.T) {
	assert.True(t, IsShortenedURL("https://s.click.aliexpress.com/e/_DdEoXyz"))
	assert.True(t, IsShortenedURL("https://a.aliexpress.com/_mLkJh"))
	assert.True(t, IsShortenedURL("https://ali.ski/abcd"))
	assert.False(t, IsShortenedURL("https://www.aliexpress.com/item/1005001234567890.html"))
}

func TestBuildProductURL(t *testing.T) {
	assert.Equal(t,
		"https://www.aliexpress.com/item/1005001234567890.html",
		BuildProductURL("1005001234567890"))
}

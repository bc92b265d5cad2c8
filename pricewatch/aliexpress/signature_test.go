package aliexpress

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var signedParams = map[string]string{
	"app_key":     "519492",
	"method":      "aliexpress.affiliate.productdetail.get",
	"timestamp":   "1719849600000",
	"sign_method": "hmac",
	"product_ids": "1005001234567890",
}

func TestSign_Deterministic(t *testing.T) {
	first := Sign("secret", signedParams)
	second := Sign("secret", signedParams)
	assert.Equal(t, first, second, "same params must always produce the same signature")
}

func TestSign_UppercaseHex(t *testing.T) {
	sig := Sign("secret", signedParams)
	assert.Regexp(t, regexp.MustCompile(`^[0-9A-F]{32}$`), sig)
}

func TestSign_IgnoresSignAndEmptyParams(t *testing.T) {
	base := map[string]string{
		"app_key": "519492",
		"method":  "aliexpress.affiliate.productdetail.get",
	}
	withNoise := map[string]string{
		"app_key": "519492",
		"method":  "aliexpress.affiliate.productdetail.get",
		"sign":    "SHOULD-BE-DROPPED",
		"country": "",
	}
	assert.Equal(t, Sign("secret", base), Sign("secret", withNoise))
}

func TestSign_SecretChangesSignature(t *testing.T) {
	assert.NotEqual(t, Sign("secret-a", signedParams), Sign("secret-b", signedParams))
}

func TestSign_ValueChangesSignature(t *testing.T) {
	other := map[string]string{
		"app_key": "519492",
		"method":  "aliexpress.affiliate.link.generate",
	}
	base := map[string]string{
		"app_key": "519492",
		"method":  "aliexpress.affiliate.productdetail.get",
	}
	assert.NotEqual(t, Sign("secret", base), Sign("secret", other))
}

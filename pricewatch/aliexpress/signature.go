package aliexpress

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
)

// Sign computes the request signature the remote API verifies: drop the sign
// parameter and every empty value, sort the remaining keys by raw byte order,
// concatenate key and value pairs with no separator, HMAC-MD5 the result with
// the app secret and render it as uppercase hex. The canonical form has to
// match the server bit for bit or every call is rejected.
func Sign(appSecret string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == "sign" || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var canonical strings.Builder
	for _, k := range keys {
		canonical.WriteString(k)
		canonical.WriteString(params[k])
	}

	mac := hmac.New(md5.New, []byte(appSecret))
	mac.Write([]byte(canonical.String()))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

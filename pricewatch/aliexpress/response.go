package aliexpress

import (
	"encoding/json"
	"fmt"
)

// The API wraps every payload in an envelope named after the method. Only the
// envelopes for the two methods this client calls are accepted; anything else
// is contract drift and surfaces as InvalidResponse instead of being scanned
// for at runtime.
type envelope struct {
	ErrorResponse *errorResponse         `json:"error_response"`
	ProductDetail *productDetailResponse `json:"aliexpress_affiliate_productdetail_get_response"`
	LinkGenerate  *linkGenerateResponse  `json:"aliexpress_affiliate_link_generate_response"`
}

type errorResponse struct {
	Code json.Number `json:"code"`
	Msg  string      `json:"msg"`
}

type productDetailResponse struct {
	RespResult struct {
		RespCode json.Number `json:"resp_code"`
		Result   struct {
			Products struct {
				Product productList `json:"product"`
			} `json:"products"`
		} `json:"result"`
	} `json:"resp_result"`
}

type linkGenerateResponse struct {
	RespResult struct {
		RespCode json.Number `json:"resp_code"`
		Result   struct {
			PromotionLinks struct {
				PromotionLink []promotionLink `json:"promotion_link"`
			} `json:"promotion_links"`
		} `json:"result"`
	} `json:"resp_result"`
}

type promotionLink struct {
	PromotionLink string `json:"promotion_link"`
	SourceValue   string `json:"source_value"`
}

type rawProduct struct {
	ProductID           json.Number `json:"product_id"`
	ProductTitle        string      `json:"product_title"`
	TargetSalePrice     string      `json:"target_sale_price"`
	SalePrice           string      `json:"sale_price"`
	TargetOriginalPrice string      `json:"target_original_price"`
	OriginalPrice       string      `json:"original_price"`
	ProductMainImageURL string      `json:"product_main_image_url"`
}

// productList tolerates the API returning either a single product object or
// an array of them under the same key.
type productList []rawProduct

func (l *productList) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		var many []rawProduct
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*l = many
		return nil
	}
	var one rawProduct
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = productList{one}
	return nil
}

func decodeEnvelope(data []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, newAPIError(KindInvalidResponse, "malformed response body: %v", err)
	}
	if env.ErrorResponse == nil && env.ProductDetail == nil && env.LinkGenerate == nil {
		return nil, newAPIError(KindInvalidResponse, "unknown response envelope")
	}
	return &env, nil
}

// apiError converts an error_response payload to the failure taxonomy.
func (e *errorResponse) apiError() *APIError {
	msg := e.Msg
	if msg == "" {
		msg = fmt.Sprintf("API error code %s", e.Code)
	}
	if isRateLimitMessage(msg) {
		return newAPIError(KindRateLimited, "%s", msg)
	}
	return newAPIError(KindTransient, "%s", msg)
}

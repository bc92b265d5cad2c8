// Package aliexpress is the signed client for the affiliate product API.
// Every failure crosses the package boundary as a tagged *APIError; nothing
// here panics or retries forever.
package aliexpress

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

const (
	defaultAPIURL  = "https://api-sg.aliexpress.com/sync"
	defaultTimeout = 15 * time.Second

	methodProductDetail = "aliexpress.affiliate.productdetail.get"
	methodLinkGenerate  = "aliexpress.affiliate.link.generate"

	shortLinkAttempts   = 3
	shortLinkRetryDelay = 2 * time.Second
	shortLinkTimeout    = 10 * time.Second
	resolvedLinkCache   = 512

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"
)

var productIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/item/(\d+)\.html`),
	regexp.MustCompile(`/i/(\d+)\.html`),
	regexp.MustCompile(`/(\d+)\.html`),
	regexp.MustCompile(`item/(\d+)`),
	regexp.MustCompile(`/goods/(\d+)`),
	regexp.MustCompile(`product/(\d+)`),
	regexp.MustCompile(`/dp/(\d+)`),
}

var shortLinkMarkers = []string{
	"s.click.aliexpress.com",
	"a.aliexpress.com",
	"/e/_",
	"ali.ski",
}

var rateLimitMarkers = []string{
	"frequency exceeds the limit",
	"rate limit",
	"too many requests",
}

// ProductSnapshot is one successful price observation.
type ProductSnapshot struct {
	ProductID     string
	Title         string
	Price         float64
	OriginalPrice float64
	Currency      string
	ImageURL      string
	ProductURL    string
}

type Config struct {
	AppKey     string
	AppSecret  string
	TrackingID string

	// APIURL overrides the production endpoint, used by tests.
	APIURL         string
	RequestTimeout time.Duration
	MaxRetries     int
	BackoffBase    time.Duration
}

// Client is constructed once at startup and shared by every concurrent check.
// The underlying HTTP client (and its connection pool) is created lazily on
// first use behind the mutex.
type Client struct {
	appKey     string
	appSecret  string
	trackingID string

	apiURL      string
	timeout     time.Duration
	maxRetries  int
	backoffBase time.Duration

	// sleep is swapped out in tests to assert the backoff schedule.
	sleep func(time.Duration)

	mu         sync.Mutex
	httpClient *http.Client

	resolved *lru.Cache
}

func New(cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 30 * time.Second
	}

	cache, _ := lru.New(resolvedLinkCache)

	return &Client{
		appKey:      cfg.AppKey,
		appSecret:   cfg.AppSecret,
		trackingID:  cfg.TrackingID,
		apiURL:      cfg.APIURL,
		timeout:     cfg.RequestTimeout,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase,
		sleep:       time.Sleep,
		resolved:    cache,
	}
}

func (c *Client) session() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return c.httpClient
}

func nowMillis() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

func isRateLimitMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range rateLimitMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// IsShortenedURL reports whether rawURL points at one of the known link
// shortener domains.
func IsShortenedURL(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, marker := range shortLinkMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ExtractProductID pulls the numeric product id out of a marketplace URL,
// returning "" when none of the known URL shapes match.
func ExtractProductID(rawURL string) string {
	for _, pattern := range productIDPatterns {
		if m := pattern.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}
	return ""
}

// BuildProductURL returns the canonical item URL for a product id.
func BuildProductURL(productID string) string {
	return "https://www.aliexpress.com/item/" + productID + ".html"
}

// FetchDetails retrieves the current snapshot for a product. Rate-limited
// responses are retried internally with exponential backoff until the shared
// attempt budget is exhausted; every other failure is terminal for this call.
func (c *Client) FetchDetails(ctx context.Context, productID, country string) (*ProductSnapshot, error) {
	for attempt := 0; ; attempt++ {
		snapshot, err := c.fetchOnce(ctx, productID, country)
		if err == nil {
			return snapshot, nil
		}

		if IsKind(err, KindRateLimited) && attempt < c.maxRetries {
			delay := c.backoffBase * (1 << attempt)
			slog.Warn("Rate limited, backing off",
				slog.String("type", "api"),
				slog.String("product_id", productID),
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay))
			c.sleep(delay)
			continue
		}

		return nil, err
	}
}

func (c *Client) fetchOnce(ctx context.Context, productID, country string) (*ProductSnapshot, error) {
	params := map[string]string{
		"app_key":         c.appKey,
		"format":          "json",
		"method":          methodProductDetail,
		"sign_method":     "hmac",
		"timestamp":       nowMillis(),
		"v":               "2.0",
		"tracking_id":     c.trackingID,
		"product_ids":     productID,
		"target_currency": "USD",
		"target_language": "EN",
		"country":         country,
	}
	params["sign"] = Sign(c.appSecret, params)

	body, err := c.doGet(ctx, params)
	if err != nil {
		return nil, err
	}

	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	if env.ErrorResponse != nil {
		return nil, env.ErrorResponse.apiError()
	}
	if env.ProductDetail == nil {
		return nil, newAPIError(KindInvalidResponse, "missing product detail envelope")
	}

	products := env.ProductDetail.RespResult.Result.Products.Product
	if len(products) == 0 {
		return nil, newAPIError(KindNotFound, "product %s not found", productID)
	}
	product := products[0]

	salePrice := product.TargetSalePrice
	if salePrice == "" {
		salePrice = product.SalePrice
	}
	originalPrice := product.TargetOriginalPrice
	if originalPrice == "" {
		originalPrice = product.OriginalPrice
	}

	price, ok := ParsePrice(salePrice)
	if !ok {
		return nil, newAPIError(KindNoPrice, "no price available for product %s", productID)
	}
	origPrice, ok := ParsePrice(originalPrice)
	if !ok {
		origPrice = price
	}

	id := product.ProductID.String()
	if id == "" {
		id = productID
	}
	title := product.ProductTitle
	if title == "" {
		title = "N/A"
	}

	return &ProductSnapshot{
		ProductID:     id,
		Title:         title,
		Price:         price,
		OriginalPrice: origPrice,
		Currency:      "USD",
		ImageURL:      product.ProductMainImageURL,
		ProductURL:    BuildProductURL(id),
	}, nil
}

func (c *Client) doGet(ctx context.Context, params map[string]string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.apiURL+"?"+values.Encode(), nil)
	if err != nil {
		return nil, newAPIError(KindTransient, "failed to build request: %v", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.session().Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, newAPIError(KindRateLimited, "HTTP %d from API", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(KindTransient, "HTTP %d from API", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	return body, nil
}

func classifyTransportError(err error) *APIError {
	if errors.Is(err, context.DeadlineExceeded) {
		return newAPIError(KindTimeout, "request timed out")
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return newAPIError(KindTimeout, "request timed out")
	}
	return newAPIError(KindTransient, "%v", err)
}

// GenerateAffiliateLink converts a product URL to a tracked promotion link.
// It degrades gracefully: any failure returns the input URL so a notification
// is never blocked on affiliate rewriting.
func (c *Client) GenerateAffiliateLink(ctx context.Context, productURL, country string) string {
	params := map[string]string{
		"app_key":             c.appKey,
		"format":              "json",
		"method":              methodLinkGenerate,
		"sign_method":         "hmac",
		"timestamp":           nowMillis(),
		"v":                   "2.0",
		"tracking_id":         c.trackingID,
		"promotion_link_type": "0",
		"source_values":       productURL,
	}
	params["sign"] = Sign(c.appSecret, params)

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return productURL
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.session().Do(req)
	if err != nil {
		slog.Debug("Affiliate link generation failed",
			slog.String("type", "api"),
			slog.Any("error", err))
		return productURL
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return productURL
	}

	env, err := decodeEnvelope(body)
	if err != nil || env.ErrorResponse != nil || env.LinkGenerate == nil {
		return productURL
	}

	result := env.LinkGenerate.RespResult
	if result.RespCode.String() != "200" {
		return productURL
	}
	links := result.Result.PromotionLinks.PromotionLink
	if len(links) == 0 || links[0].PromotionLink == "" {
		return productURL
	}
	return links[0].PromotionLink
}

// ResolveShortLink follows a shortener redirect chain (headers only, no body)
// until it reaches a URL with an extractable product id. Non-shortened URLs
// and resolution failures return the input unchanged.
func (c *Client) ResolveShortLink(ctx context.Context, rawURL string) string {
	if !IsShortenedURL(rawURL) {
		return rawURL
	}

	if cached, ok := c.resolved.Get(rawURL); ok {
		return cached.(string)
	}

	for attempt := 0; attempt < shortLinkAttempts; attempt++ {
		if attempt > 0 {
			c.sleep(shortLinkRetryDelay)
		}

		final, err := c.headFinalURL(ctx, rawURL)
		if err != nil {
			continue
		}
		if ExtractProductID(final) != "" {
			c.resolved.Add(rawURL, final)
			return final
		}
	}

	return rawURL
}

func (c *Client) headFinalURL(ctx context.Context, rawURL string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, shortLinkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.session().Do(req)
	if err != nil {
		return "", err
	}
	resp.Body.Close()

	return resp.Request.URL.String(), nil
}

package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopscan/backend/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// vendorTag marks every product produced by this client
const vendorTag = "marketplace"

// Config holds marketplace API credentials and endpoint settings
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
}

// Client handles communication with the affiliate marketplace API. Search,
// category and advertiser lookups return empty slices on failure, and
// affiliate link generation falls back to the original URL: the marketplace
// is an optional enhancement of a response, never a required dependency.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	clientID    string
	secret      string
	tokens      *tokenSource
	rateLimiter *rate.Limiter
	logger      *zap.Logger
}

// NewClient creates a new marketplace API client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}

	// The marketplace allows 20 requests per second per token
	limiter := rate.NewLimiter(rate.Limit(20), 40)

	return &Client{
		httpClient:  httpClient,
		baseURL:     cfg.BaseURL,
		clientID:    cfg.ClientID,
		secret:      cfg.ClientSecret,
		tokens:      newTokenSource(httpClient, cfg.BaseURL, cfg.ClientID, cfg.ClientSecret, logger),
		rateLimiter: limiter,
		logger:      logger,
	}
}

// IsConfigured reports whether API credentials are set. Every other method is
// a documented no-op returning an empty result when this is false.
func (c *Client) IsConfigured() bool {
	return c.clientID != "" && c.secret != ""
}

// productPayload is the wire format of a marketplace product. Numeric fields
// arrive as strings or numbers depending on the endpoint, so json.Number is
// used throughout.
type productPayload struct {
	ID          json.Number `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Picture     string      `json:"picture"`
	Price       json.Number `json:"price"`
	OldPrice    json.Number `json:"oldprice"`
	Currency    string      `json:"currency"`
	URL         string      `json:"url"`
	Merchant    string      `json:"merchant"`
	Category    struct {
		Name string `json:"name"`
	} `json:"category"`
	Available string `json:"available"`
}

// productListResponse is the wire format of product list endpoints
type productListResponse struct {
	Results []productPayload `json:"results"`
}

// advertiserPayload is the wire format of an advertiser campaign
type advertiserPayload struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Region      string `json:"region"`
	Categories  []struct {
		Name string `json:"name"`
	} `json:"categories"`
	GotoLink string `json:"gotolink"`
	Status   string `json:"status"`
}

// advertiserListResponse is the wire format of the advertiser endpoint
type advertiserListResponse struct {
	Results []advertiserPayload `json:"results"`
}

// deeplinkResponse is the wire format of the deeplink endpoint
type deeplinkResponse struct {
	Deeplink string `json:"deeplink"`
}

// Search queries products by free text across all connected stores. Returns
// an empty slice on any transport or auth failure.
func (c *Client) Search(ctx context.Context, query string, limit, offset int) []domain.ExternalProduct {
	if !c.IsConfigured() {
		return nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	var listResp productListResponse
	if err := c.doGet(ctx, "/products/", params, &listResp); err != nil {
		c.logger.Warn("marketplace search failed",
			zap.String("query", query),
			zap.Error(err))
		return nil
	}

	products := make([]domain.ExternalProduct, 0, len(listResp.Results))
	for _, p := range listResp.Results {
		products = append(products, formatProduct(p))
	}

	c.logger.Debug("marketplace search completed",
		zap.String("query", query),
		zap.Int("count", len(products)))
	return products
}

// ByCategory fetches products in a given category. Same failure policy as Search.
func (c *Client) ByCategory(ctx context.Context, categoryID, limit int) []domain.ExternalProduct {
	if !c.IsConfigured() {
		return nil
	}

	params := url.Values{}
	params.Set("category", strconv.Itoa(categoryID))
	params.Set("limit", strconv.Itoa(limit))

	var listResp productListResponse
	if err := c.doGet(ctx, "/products/", params, &listResp); err != nil {
		c.logger.Warn("marketplace category lookup failed",
			zap.Int("category_id", categoryID),
			zap.Error(err))
		return nil
	}

	products := make([]domain.ExternalProduct, 0, len(listResp.Results))
	for _, p := range listResp.Results {
		products = append(products, formatProduct(p))
	}
	return products
}

// Advertisers lists the active stores connected to the affiliate account.
// Returns an empty slice on failure.
func (c *Client) Advertisers(ctx context.Context) []domain.StoreInfo {
	if !c.IsConfigured() {
		return nil
	}

	params := url.Values{}
	params.Set("limit", "100")
	params.Set("status", "active")

	var listResp advertiserListResponse
	if err := c.doGet(ctx, "/advcampaigns/", params, &listResp); err != nil {
		c.logger.Warn("advertiser listing failed", zap.Error(err))
		return nil
	}

	stores := make([]domain.StoreInfo, 0, len(listResp.Results))
	for _, a := range listResp.Results {
		categories := make([]string, 0, len(a.Categories))
		for _, cat := range a.Categories {
			categories = append(categories, cat.Name)
		}
		stores = append(stores, domain.StoreInfo{
			ID:          a.ID,
			Name:        a.Name,
			Description: a.Description,
			Region:      a.Region,
			Categories:  categories,
			SiteURL:     a.GotoLink,
			Active:      a.Status == "active",
		})
	}
	return stores
}

// AffiliateLink converts a product URL into a monetized deeplink for the
// given campaign. On any failure the original URL is returned unchanged, so
// a product can always be surfaced even when monetization is unavailable.
func (c *Client) AffiliateLink(ctx context.Context, productURL string, campaignID int) string {
	if !c.IsConfigured() {
		return productURL
	}

	params := url.Values{}
	params.Set("url", productURL)
	params.Set("campaign", strconv.Itoa(campaignID))

	var dl deeplinkResponse
	if err := c.doGet(ctx, "/deeplink/", params, &dl); err != nil {
		c.logger.Warn("affiliate link generation failed",
			zap.String("url", productURL),
			zap.Int("campaign_id", campaignID),
			zap.Error(err))
		return productURL
	}
	if dl.Deeplink == "" {
		return productURL
	}
	return dl.Deeplink
}

// doGet executes an authenticated GET against the marketplace API and decodes
// the JSON response into out
func (c *Client) doGet(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", "ShopScan/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMarketplaceAPIFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d, body: %s", domain.ErrMarketplaceAPIFailure, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// formatProduct normalizes a raw marketplace product to our schema
func formatProduct(p productPayload) domain.ExternalProduct {
	price := parsePrice(p.Price)

	currency := p.Currency
	if currency == "" {
		currency = "USD"
	}

	product := domain.ExternalProduct{
		ExternalID:  p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		ImageURL:    p.Picture,
		Price:       price,
		Currency:    currency,
		URL:         p.URL,
		Store:       p.Merchant,
		Category:    p.Category.Name,
		InStock:     p.Available == "yes",
		Vendor:      vendorTag,
	}

	if p.OldPrice.String() != "" {
		oldPrice := parsePrice(p.OldPrice)
		product.OriginalPrice = &oldPrice
		product.DiscountPercent = calculateDiscount(price, oldPrice)
	}

	return product
}

// parsePrice parses a numeric wire value, defaulting to zero on malformed input
func parsePrice(n json.Number) decimal.Decimal {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

// calculateDiscount computes the rounded discount percentage. It is present
// only when the old price is strictly greater than the current price;
// otherwise nil, never zero or negative.
func calculateDiscount(price, oldPrice decimal.Decimal) *int {
	if oldPrice.LessThanOrEqual(price) || !oldPrice.IsPositive() {
		return nil
	}
	percent := oldPrice.Sub(price).
		Div(oldPrice).
		Mul(decimal.NewFromInt(100)).
		Round(0)
	discount := int(percent.IntPart())
	return &discount
}

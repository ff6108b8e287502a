package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source tags identify which backend produced a ranked result
const (
	SourceLocal       = "local"
	SourceMarketplace = "marketplace"
)

// Priorities assigned during the merge step (local results always rank first)
const (
	PriorityLocal       = 1
	PriorityMarketplace = 2
)

// StorePrice is a single store's offer for a local catalog product
type StorePrice struct {
	Store       string          `json:"store"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	URL         string          `json:"url,omitempty"`
	LastUpdated time.Time       `json:"lastUpdated,omitempty"`
}

// Reviews holds aggregate review data for a local catalog product
type Reviews struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// LocalProduct is a product record owned by the local catalog
type LocalProduct struct {
	ID          string       `json:"id"`
	Barcode     string       `json:"barcode,omitempty"`
	Name        string       `json:"name"`
	Brand       string       `json:"brand,omitempty"`
	Category    string       `json:"category,omitempty"`
	Description string       `json:"description,omitempty"`
	ImageURL    string       `json:"imageUrl,omitempty"`
	Prices      []StorePrice `json:"prices,omitempty"`
	Reviews     Reviews      `json:"reviews"`
	ScanCount   int          `json:"scanCount,omitempty"`
	LastScanned time.Time    `json:"lastScanned,omitempty"`
}

// ExternalProduct is a product returned by the marketplace API, normalized to
// our schema. Instances are built fresh on every marketplace call and never
// cached or mutated afterwards.
type ExternalProduct struct {
	ExternalID      string           `json:"externalId"`
	Name            string           `json:"name"`
	Description     string           `json:"description,omitempty"`
	ImageURL        string           `json:"imageUrl,omitempty"`
	Price           decimal.Decimal  `json:"price"`
	Currency        string           `json:"currency"`
	OriginalPrice   *decimal.Decimal `json:"originalPrice,omitempty"`
	DiscountPercent *int             `json:"discount,omitempty"`
	URL             string           `json:"url"`
	AffiliateURL    string           `json:"affiliateUrl,omitempty"` // empty until generated
	Store           string           `json:"store,omitempty"`
	Category        string           `json:"category,omitempty"`
	InStock         bool             `json:"inStock"`
	Vendor          string           `json:"vendor"`
}

// StoreInfo describes an advertiser/store available through the marketplace
// affiliate network
type StoreInfo struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Region      string   `json:"region,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	SiteURL     string   `json:"siteUrl,omitempty"`
	Active      bool     `json:"active"`
}

// RankedResult wraps a product from any source together with its merge
// priority. Constructed only inside the resolver for a single request.
type RankedResult struct {
	Product  interface{} `json:"product"`
	Source   string      `json:"source"`
	Priority int         `json:"priority"`
}

// Capabilities describes which result sources are available. Computed once at
// startup from configuration and passed into the resolver, so availability is
// never re-checked per call.
type Capabilities struct {
	Local       bool `json:"local"`
	Vision      bool `json:"vision"`
	Marketplace bool `json:"marketplace"`
}

// ResolveRequest is a single resolution query. Exactly one of Barcode, Query,
// or ImagePath is usually set, but combinations are allowed (e.g. a barcode
// scan with a fallback name).
type ResolveRequest struct {
	Barcode   string `json:"barcode,omitempty"`
	Query     string `json:"query,omitempty"`
	ImagePath string `json:"-"`
	Limit     int    `json:"limit,omitempty"`
}

// ResolveResponse is the terminal outcome of one resolution request. Zero
// results is a valid outcome, distinct from a hard failure.
type ResolveResponse struct {
	Query       string         `json:"query,omitempty"`
	Suggestions []string       `json:"suggestions,omitempty"`
	Results     []RankedResult `json:"results"`
	Count       int            `json:"count"`
}

package domain

import "context"

// CatalogRepository defines the interface to the local product catalog.
// The catalog returns entries already deduplicated and ranked internally.
type CatalogRepository interface {
	FindByBarcode(ctx context.Context, barcode string) (*LocalProduct, error)
	FindByText(ctx context.Context, query string, limit int) ([]LocalProduct, error)
	FindByID(ctx context.Context, id string) (*LocalProduct, error)
	List(ctx context.Context) ([]LocalProduct, error)
}

// MarketplaceAPI defines the interface for the affiliate marketplace network.
// Every method except IsConfigured degrades to an empty result (or the
// unmodified input URL for AffiliateLink) on failure; the marketplace is an
// optional enhancement, never a required dependency for a response.
type MarketplaceAPI interface {
	Search(ctx context.Context, query string, limit, offset int) []ExternalProduct
	ByCategory(ctx context.Context, categoryID, limit int) []ExternalProduct
	Advertisers(ctx context.Context) []StoreInfo
	AffiliateLink(ctx context.Context, productURL string, campaignID int) string
	IsConfigured() bool
}

// VisionAnnotator defines the interface to the image analysis provider.
// The four detections are independent calls and may fail independently.
type VisionAnnotator interface {
	DetectLabels(ctx context.Context, imagePath string) ([]LabelAnnotation, error)
	DetectWeb(ctx context.Context, imagePath string) (*WebDetection, error)
	DetectText(ctx context.Context, imagePath string) (string, error)
	DetectLogos(ctx context.Context, imagePath string) ([]LabelAnnotation, error)
	IsConfigured() bool
}

package http

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopscan/backend/internal/domain"
	"github.com/shopscan/backend/internal/usecase"
	"go.uber.org/zap"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	resolver    *usecase.ResolverService
	suggestions *usecase.SuggestionService
	marketplace domain.MarketplaceAPI
	catalog     domain.CatalogRepository
	uploadDir   string
	campaignID  int
	logger      *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	resolver *usecase.ResolverService,
	suggestions *usecase.SuggestionService,
	marketplace domain.MarketplaceAPI,
	catalog domain.CatalogRepository,
	uploadDir string,
	campaignID int,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		resolver:    resolver,
		suggestions: suggestions,
		marketplace: marketplace,
		catalog:     catalog,
		uploadDir:   uploadDir,
		campaignID:  campaignID,
		logger:      logger,
	}
}

// HealthCheck returns the health status of the API together with the source
// capability descriptor
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"service":      "shopscan-backend",
		"version":      "1.0.0",
		"capabilities": h.resolver.Capabilities(),
	})
}

// barcodeRequest is the payload for barcode searches
type barcodeRequest struct {
	Barcode string `json:"barcode" binding:"required"`
	Limit   int    `json:"limit"`
}

// SearchByBarcode resolves a scanned barcode. A local catalog miss without a
// fallback identity yields an explicit "needs name or image" outcome rather
// than an empty marketplace search.
func (h *Handler) SearchByBarcode(c *gin.Context) {
	var req barcodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "barcode required"})
		return
	}

	resp, err := h.resolver.Resolve(c.Request.Context(), domain.ResolveRequest{
		Barcode: req.Barcode,
		Limit:   req.Limit,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientInput) {
			c.JSON(http.StatusOK, gin.H{
				"success":    false,
				"barcode":    req.Barcode,
				"message":    "Product not found in catalog. Please use image search or enter the product name.",
				"suggestion": "Use /api/v1/search/by-image or /api/v1/search/by-name",
			})
			return
		}
		h.respondResolveError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"barcode": req.Barcode,
		"results": resp.Results,
		"count":   resp.Count,
	})
}

// SearchByName resolves a free-text product name
func (h *Handler) SearchByName(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product name required"})
		return
	}

	resp, err := h.resolver.Resolve(c.Request.Context(), domain.ResolveRequest{
		Query: name,
		Limit: h.parseLimit(c),
	})
	if err != nil {
		h.respondResolveError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"query":   name,
		"results": resp.Results,
		"count":   resp.Count,
	})
}

// SearchByImage resolves an uploaded product photo: vision suggestions feed
// both the local catalog and the marketplace search
func (h *Handler) SearchByImage(c *gin.Context) {
	imagePath, cleanup, ok := h.saveUpload(c)
	if !ok {
		return
	}
	defer cleanup()

	resp, err := h.resolver.Resolve(c.Request.Context(), domain.ResolveRequest{
		Query:     c.PostForm("query"),
		ImagePath: imagePath,
		Limit:     h.parseLimit(c),
	})
	if err != nil {
		h.respondResolveError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"suggestions": resp.Suggestions,
		"query":       resp.Query,
		"results":     resp.Results,
		"count":       resp.Count,
	})
}

// SmartSearch runs the full resolution pipeline over a free-text query
func (h *Handler) SmartSearch(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		query = c.Query("q")
	}
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "search query required"})
		return
	}

	resp, err := h.resolver.Resolve(c.Request.Context(), domain.ResolveRequest{
		Query: query,
		Limit: h.parseLimit(c),
	})
	if err != nil {
		h.respondResolveError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"query":   query,
		"count":   resp.Count,
		"results": resp.Results,
	})
}

// affiliateLinkRequest is the payload for affiliate link generation
type affiliateLinkRequest struct {
	URL        string `json:"url" binding:"required"`
	CampaignID int    `json:"campaignId"`
}

// AffiliateLink converts a product URL into a monetized link, falling back to
// the original URL when generation fails
func (h *Handler) AffiliateLink(c *gin.Context) {
	var req affiliateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url required"})
		return
	}

	campaignID := req.CampaignID
	if campaignID == 0 {
		campaignID = h.campaignID
	}

	link := h.resolver.AffiliateLink(c.Request.Context(), req.URL, campaignID)
	c.JSON(http.StatusOK, gin.H{
		"url":          req.URL,
		"affiliateUrl": link,
		"monetized":    link != req.URL,
	})
}

// MarketplaceStatus reports whether marketplace credentials are configured
func (h *Handler) MarketplaceStatus(c *gin.Context) {
	configured := h.marketplace.IsConfigured()
	message := "Marketplace API is configured and ready"
	if !configured {
		message = "Marketplace API credentials not set. Configure SHOPSCAN_MARKETPLACE_CLIENT_ID and SHOPSCAN_MARKETPLACE_CLIENT_SECRET."
	}
	c.JSON(http.StatusOK, gin.H{
		"configured": configured,
		"message":    message,
	})
}

// MarketplaceStores lists the active advertiser stores
func (h *Handler) MarketplaceStores(c *gin.Context) {
	if !h.marketplace.IsConfigured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": domain.ErrMarketplaceNotConfigured.Error()})
		return
	}

	stores := h.marketplace.Advertisers(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"count":  len(stores),
		"stores": stores,
	})
}

// MarketplaceSearch searches the marketplace directly, without the merge step
func (h *Handler) MarketplaceSearch(c *gin.Context) {
	if !h.marketplace.IsConfigured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": domain.ErrMarketplaceNotConfigured.Error()})
		return
	}

	query := c.Query("q")
	if query == "" {
		query = c.Query("query")
	}
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter required (q or query)"})
		return
	}

	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	products := h.marketplace.Search(c.Request.Context(), query, h.parseLimit(c), offset)

	c.JSON(http.StatusOK, gin.H{
		"query":    query,
		"count":    len(products),
		"products": products,
	})
}

// MarketplaceCategory fetches marketplace products for one category
func (h *Handler) MarketplaceCategory(c *gin.Context) {
	if !h.marketplace.IsConfigured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": domain.ErrMarketplaceNotConfigured.Error()})
		return
	}

	categoryID, err := strconv.Atoi(c.Param("categoryId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category id"})
		return
	}

	products := h.marketplace.ByCategory(c.Request.Context(), categoryID, h.parseLimit(c))
	c.JSON(http.StatusOK, gin.H{
		"categoryId": categoryID,
		"count":      len(products),
		"products":   products,
	})
}

// VisionStatus reports whether the image analysis provider is configured
func (h *Handler) VisionStatus(c *gin.Context) {
	configured := h.suggestions.IsConfigured()
	message := "Image analysis is configured and ready"
	if !configured {
		message = "Image analysis not configured. Set SHOPSCAN_VISION_API_KEY."
	}
	c.JSON(http.StatusOK, gin.H{
		"configured": configured,
		"message":    message,
	})
}

// VisionAnalyze runs the full four-feature image analysis
func (h *Handler) VisionAnalyze(c *gin.Context) {
	if !h.suggestions.IsConfigured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": domain.ErrVisionNotConfigured.Error()})
		return
	}

	imagePath, cleanup, ok := h.saveUpload(c)
	if !ok {
		return
	}
	defer cleanup()

	analysis, err := h.suggestions.Analyze(c.Request.Context(), imagePath)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to analyze image"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"analysis": analysis,
	})
}

// VisionSuggest extracts candidate product names from an uploaded photo
func (h *Handler) VisionSuggest(c *gin.Context) {
	if !h.suggestions.IsConfigured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": domain.ErrVisionNotConfigured.Error()})
		return
	}

	imagePath, cleanup, ok := h.saveUpload(c)
	if !ok {
		return
	}
	defer cleanup()

	suggestions, err := h.suggestions.Suggest(c.Request.Context(), imagePath)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to analyze image"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"count":       len(suggestions),
		"suggestions": suggestions,
	})
}

// ListProducts returns the full local catalog
func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.catalog.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list products"})
		return
	}
	c.JSON(http.StatusOK, products)
}

// GetProduct returns a single catalog product by ID
func (h *Handler) GetProduct(c *gin.Context) {
	product, err := h.catalog.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	c.JSON(http.StatusOK, product)
}

// parseLimit reads the limit query parameter, leaving validation and
// defaulting to the resolver
func (h *Handler) parseLimit(c *gin.Context) int {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	return limit
}

// respondResolveError maps resolver errors to HTTP responses
func (h *Handler) respondResolveError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInsufficientInput):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.logger.Error("resolution failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
	}
}

// saveUpload persists the multipart image to the upload directory and returns
// its path plus a cleanup func. Writes the error response itself when the
// upload is missing or cannot be stored.
func (h *Handler) saveUpload(c *gin.Context) (string, func(), bool) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return "", nil, false
	}

	path := filepath.Join(h.uploadDir, uuid.New().String()+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, path); err != nil {
		h.logger.Error("failed to store upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return "", nil, false
	}

	cleanup := func() {
		if err := os.Remove(path); err != nil {
			h.logger.Warn("failed to remove upload", zap.String("path", path), zap.Error(err))
		}
	}
	return path, cleanup, true
}

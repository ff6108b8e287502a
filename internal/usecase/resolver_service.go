package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/shopscan/backend/internal/domain"
	"go.uber.org/zap"
)

// ResolverConfig holds tunables for the resolution pipeline
type ResolverConfig struct {
	DefaultLimit int // result limit when the caller does not specify one
	MaxLimit     int // upper bound on caller-requested limits
	LocalLimit   int // how many local catalog entries feed the merge
}

// ResolverService orchestrates one resolution request through the pipeline
// LocalLookup -> FanOut -> Merge. The local catalog is queried synchronously
// first; the vision extractor and the marketplace search run as concurrent
// fan-out branches whose failures are absorbed into empty contributions.
// No state is carried across requests.
type ResolverService struct {
	catalog      domain.CatalogRepository
	marketplace  domain.MarketplaceAPI
	suggestions  *SuggestionService
	capabilities domain.Capabilities
	defaultLimit int
	maxLimit     int
	localLimit   int
	logger       *zap.Logger
}

// NewResolverService creates a resolver over the given sources. Capabilities
// are computed once at startup; the resolver consults them instead of
// re-checking configuration per call.
func NewResolverService(
	catalog domain.CatalogRepository,
	marketplace domain.MarketplaceAPI,
	suggestions *SuggestionService,
	capabilities domain.Capabilities,
	config ResolverConfig,
	logger *zap.Logger,
) *ResolverService {
	defaultLimit := config.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	maxLimit := config.MaxLimit
	if maxLimit <= 0 {
		maxLimit = 100
	}
	localLimit := config.LocalLimit
	if localLimit <= 0 {
		localLimit = 5
	}

	return &ResolverService{
		catalog:      catalog,
		marketplace:  marketplace,
		suggestions:  suggestions,
		capabilities: capabilities,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		localLimit:   localLimit,
		logger:       logger,
	}
}

// Capabilities returns the source availability descriptor computed at startup
func (s *ResolverService) Capabilities() domain.Capabilities {
	return s.capabilities
}

// fanOutResult collects the outcome of every fan-out branch. Each branch's
// result is recorded, success or failure, so the merge step operates on
// explicit outcomes rather than implicit empty slices.
type fanOutResult struct {
	suggestions []string
	visionErr   error
	external    []domain.ExternalProduct
}

// Resolve runs one resolution request to completion. Zero results is a valid
// outcome; an error is returned only when the request cannot even begin
// (nothing to search by) or a barcode lookup misses with no fallback identity.
func (s *ResolverService) Resolve(ctx context.Context, req domain.ResolveRequest) (*domain.ResolveResponse, error) {
	if req.Barcode == "" && req.Query == "" && req.ImagePath == "" {
		return nil, domain.ErrInvalidRequest
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	locals := s.localLookup(ctx, req)

	// A barcode that misses the catalog cannot be forwarded to the
	// marketplace (it has no barcode index). Without a name or image to fall
	// back on the caller must supply more input.
	if req.Barcode != "" && len(locals) == 0 && req.Query == "" && req.ImagePath == "" {
		return nil, domain.ErrInsufficientInput
	}

	fanned := s.fanOut(ctx, req, limit)

	effectiveQuery := req.Query
	if effectiveQuery == "" && len(fanned.suggestions) > 0 {
		effectiveQuery = fanned.suggestions[0]
	}

	// Vision suggestions can also surface local catalog entries the barcode
	// or raw query missed.
	if len(locals) == 0 && req.Query == "" && effectiveQuery != "" {
		locals = s.textLookup(ctx, effectiveQuery)
	}

	results := merge(locals, fanned.external, limit)

	s.logger.Debug("resolution completed",
		zap.String("query", effectiveQuery),
		zap.Int("local", len(locals)),
		zap.Int("marketplace", len(fanned.external)),
		zap.Int("returned", len(results)))

	return &domain.ResolveResponse{
		Query:       effectiveQuery,
		Suggestions: fanned.suggestions,
		Results:     results,
		Count:       len(results),
	}, nil
}

// localLookup queries the catalog synchronously: barcode exact match first,
// then case-insensitive text match
func (s *ResolverService) localLookup(ctx context.Context, req domain.ResolveRequest) []domain.LocalProduct {
	if req.Barcode != "" {
		product, err := s.catalog.FindByBarcode(ctx, req.Barcode)
		if err == nil {
			return []domain.LocalProduct{*product}
		}
		if !errors.Is(err, domain.ErrProductNotFound) {
			s.logger.Warn("catalog barcode lookup failed",
				zap.String("barcode", req.Barcode),
				zap.Error(err))
		}
	}

	if req.Query != "" {
		return s.textLookup(ctx, req.Query)
	}
	return nil
}

func (s *ResolverService) textLookup(ctx context.Context, query string) []domain.LocalProduct {
	products, err := s.catalog.FindByText(ctx, query, s.localLimit)
	if err != nil {
		s.logger.Warn("catalog text lookup failed",
			zap.String("query", query),
			zap.Error(err))
		return nil
	}
	return products
}

// fanOut issues the vision and marketplace branches. When a text query is
// present both run in parallel; when only an image is available the
// marketplace search keys off the top vision suggestion and therefore joins
// after it. Every branch outcome is collected; none fails the fan-out.
func (s *ResolverService) fanOut(ctx context.Context, req domain.ResolveRequest, limit int) fanOutResult {
	var result fanOutResult

	runVision := req.ImagePath != "" && s.capabilities.Vision

	if req.Query != "" {
		var wg sync.WaitGroup
		if runVision {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result.suggestions, result.visionErr = s.suggestions.Suggest(ctx, req.ImagePath)
			}()
		}
		if s.capabilities.Marketplace {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result.external = s.marketplace.Search(ctx, req.Query, limit, 0)
			}()
		}
		wg.Wait()
	} else {
		if runVision {
			result.suggestions, result.visionErr = s.suggestions.Suggest(ctx, req.ImagePath)
		}
		if s.capabilities.Marketplace && len(result.suggestions) > 0 {
			result.external = s.marketplace.Search(ctx, result.suggestions[0], limit, 0)
		}
	}

	if result.visionErr != nil {
		s.logger.Warn("vision branch degraded", zap.Error(result.visionErr))
	}
	return result
}

// AffiliateLink converts a product URL into a monetized link. Failures of any
// kind, including an unconfigured marketplace, fall back to the input URL;
// affiliate revenue is strictly additive and never blocks the caller's flow.
func (s *ResolverService) AffiliateLink(ctx context.Context, productURL string, campaignID int) string {
	if !s.capabilities.Marketplace {
		return productURL
	}
	return s.marketplace.AffiliateLink(ctx, productURL, campaignID)
}

// merge assigns priorities (local first) and produces the final ranked list.
// The sort is stable: relative order within each source group is preserved
// from source order regardless of branch arrival timing.
func merge(locals []domain.LocalProduct, external []domain.ExternalProduct, limit int) []domain.RankedResult {
	results := make([]domain.RankedResult, 0, len(locals)+len(external))

	for _, p := range locals {
		results = append(results, domain.RankedResult{
			Product:  p,
			Source:   domain.SourceLocal,
			Priority: domain.PriorityLocal,
		})
	}
	for _, p := range external {
		results = append(results, domain.RankedResult{
			Product:  p,
			Source:   domain.SourceMarketplace,
			Priority: domain.PriorityMarketplace,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Priority < results[j].Priority
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

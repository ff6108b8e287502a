package usecase

import (
	"context"
	"sort"
	"sync"

	"github.com/shopscan/backend/internal/domain"
	"go.uber.org/zap"
)

// Suggestion extraction bounds
const (
	maxSuggestions      = 10  // hard cap on suggestions per image
	entityScoreCutoff   = 0.5 // web entities below this score are ignored
	labelScoreCutoff    = 0.7 // general labels below this score are ignored
	maxLabelSuggestions = 3   // only the top general labels contribute
)

// SuggestionService turns raw image analysis output into a ranked list of
// candidate product name queries
type SuggestionService struct {
	annotator domain.VisionAnnotator
	logger    *zap.Logger
}

// NewSuggestionService creates a new suggestion service
func NewSuggestionService(annotator domain.VisionAnnotator, logger *zap.Logger) *SuggestionService {
	return &SuggestionService{
		annotator: annotator,
		logger:    logger,
	}
}

// IsConfigured reports whether the underlying annotator has credentials
func (s *SuggestionService) IsConfigured() bool {
	return s.annotator.IsConfigured()
}

// Analyze runs the four detection calls concurrently and joins their results.
// A failed call contributes nothing; Analyze fails only when the annotator is
// unconfigured or every call failed.
func (s *SuggestionService) Analyze(ctx context.Context, imagePath string) (*domain.ImageAnalysis, error) {
	if !s.annotator.IsConfigured() {
		return nil, domain.ErrVisionNotConfigured
	}

	var (
		wg sync.WaitGroup

		labels    []domain.LabelAnnotation
		labelsErr error

		product    *domain.WebDetection
		productErr error

		text    string
		textErr error

		logos    []domain.LabelAnnotation
		logosErr error
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		labels, labelsErr = s.annotator.DetectLabels(ctx, imagePath)
	}()
	go func() {
		defer wg.Done()
		product, productErr = s.annotator.DetectWeb(ctx, imagePath)
	}()
	go func() {
		defer wg.Done()
		text, textErr = s.annotator.DetectText(ctx, imagePath)
	}()
	go func() {
		defer wg.Done()
		logos, logosErr = s.annotator.DetectLogos(ctx, imagePath)
	}()
	wg.Wait()

	for _, pair := range []struct {
		name string
		err  error
	}{
		{"labels", labelsErr},
		{"web", productErr},
		{"text", textErr},
		{"logos", logosErr},
	} {
		if pair.err != nil {
			s.logger.Warn("image detection branch failed",
				zap.String("detection", pair.name),
				zap.Error(pair.err))
		}
	}

	if labelsErr != nil && productErr != nil && textErr != nil && logosErr != nil {
		return nil, domain.ErrVisionAPIFailure
	}

	analysis := &domain.ImageAnalysis{
		Labels: labels,
		Text:   text,
		Logos:  logos,
	}
	if productErr == nil {
		analysis.Product = product
	}
	return analysis, nil
}

// Suggest returns up to maxSuggestions candidate product names for an image,
// deduplicated, in priority order: best-guess labels, confident web entities,
// brand logos, then the top general labels.
func (s *SuggestionService) Suggest(ctx context.Context, imagePath string) ([]string, error) {
	analysis, err := s.Analyze(ctx, imagePath)
	if err != nil {
		return nil, err
	}
	return buildSuggestions(analysis), nil
}

// buildSuggestions assembles the insertion-ordered suggestion set from a
// completed analysis
func buildSuggestions(analysis *domain.ImageAnalysis) []string {
	set := newSuggestionSet()

	if analysis.Product != nil {
		for _, guess := range analysis.Product.BestGuess {
			set.add(guess)
		}
		for _, entity := range analysis.Product.Entities {
			if entity.Score > entityScoreCutoff {
				set.add(entity.Description)
			}
		}
	}

	for _, logo := range analysis.Logos {
		set.add(logo.Description)
	}

	for _, label := range topLabels(analysis.Labels) {
		set.add(label.Description)
	}

	return set.slice(maxSuggestions)
}

// topLabels filters labels by confidence cutoff and keeps the strongest few
func topLabels(labels []domain.LabelAnnotation) []domain.LabelAnnotation {
	var confident []domain.LabelAnnotation
	for _, label := range labels {
		if label.Score > labelScoreCutoff {
			confident = append(confident, label)
		}
	}

	sort.SliceStable(confident, func(i, j int) bool {
		return confident[i].Score > confident[j].Score
	})

	if len(confident) > maxLabelSuggestions {
		confident = confident[:maxLabelSuggestions]
	}
	return confident
}

// suggestionSet is an insertion-ordered string set. Duplicates (exact,
// case-sensitive) are dropped without disturbing already-inserted entries.
type suggestionSet struct {
	seen  map[string]bool
	order []string
}

func newSuggestionSet() *suggestionSet {
	return &suggestionSet{seen: make(map[string]bool)}
}

func (s *suggestionSet) add(value string) {
	if value == "" || s.seen[value] {
		return
	}
	s.seen[value] = true
	s.order = append(s.order, value)
}

func (s *suggestionSet) slice(max int) []string {
	if len(s.order) > max {
		return s.order[:max]
	}
	return s.order
}

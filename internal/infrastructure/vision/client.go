package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/shopscan/backend/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Feature types understood by the image annotation endpoint
const (
	featureLabels = "LABEL_DETECTION"
	featureWeb    = "WEB_DETECTION"
	featureText   = "TEXT_DETECTION"
	featureLogos  = "LOGO_DETECTION"
)

// maxResultsPerFeature bounds each detection call
const maxResultsPerFeature = 10

// Config holds image analysis provider settings
type Config struct {
	APIKey  string
	BaseURL string
}

// Client handles communication with the image annotation API. Each detection
// type is issued as its own call so that one failing feature never poisons
// the others.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	logger      *zap.Logger
}

// NewClient creates a new image annotation client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	// The provider allows 1800 requests per minute; stay well below it
	limiter := rate.NewLimiter(rate.Limit(10), 20)

	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		rateLimiter: limiter,
		logger:      logger,
	}
}

// IsConfigured reports whether an API credential is present
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// annotateRequest is the wire format of an annotation request
type annotateRequest struct {
	Requests []annotateEntry `json:"requests"`
}

type annotateEntry struct {
	Image    imageContent     `json:"image"`
	Features []featureRequest `json:"features"`
}

type imageContent struct {
	Content string `json:"content"`
}

type featureRequest struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults"`
}

// annotatePayload mirrors the provider's annotation response for the feature
// types we request
type annotatePayload struct {
	Responses []struct {
		LabelAnnotations []labelPayload `json:"labelAnnotations"`
		LogoAnnotations  []labelPayload `json:"logoAnnotations"`
		TextAnnotations  []struct {
			Description string `json:"description"`
		} `json:"textAnnotations"`
		WebDetection *struct {
			BestGuessLabels []struct {
				Label string `json:"label"`
			} `json:"bestGuessLabels"`
			WebEntities []struct {
				Description string  `json:"description"`
				Score       float64 `json:"score"`
			} `json:"webEntities"`
			FullMatchingImages []struct {
				URL string `json:"url"`
			} `json:"fullMatchingImages"`
			PartialMatchingImages []struct {
				URL string `json:"url"`
			} `json:"partialMatchingImages"`
			PagesWithMatchingImages []struct {
				URL       string `json:"url"`
				PageTitle string `json:"pageTitle"`
			} `json:"pagesWithMatchingImages"`
		} `json:"webDetection"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

type labelPayload struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// DetectLabels returns general image labels with confidence scores
func (c *Client) DetectLabels(ctx context.Context, imagePath string) ([]domain.LabelAnnotation, error) {
	resp, err := c.annotate(ctx, imagePath, featureLabels)
	if err != nil {
		return nil, err
	}
	return mapLabels(resp.Responses[0].LabelAnnotations), nil
}

// DetectLogos returns detected brand logos
func (c *Client) DetectLogos(ctx context.Context, imagePath string) ([]domain.LabelAnnotation, error) {
	resp, err := c.annotate(ctx, imagePath, featureLogos)
	if err != nil {
		return nil, err
	}
	return mapLabels(resp.Responses[0].LogoAnnotations), nil
}

// DetectText extracts text from the image. The first annotation carries the
// full recognized text block.
func (c *Client) DetectText(ctx context.Context, imagePath string) (string, error) {
	resp, err := c.annotate(ctx, imagePath, featureText)
	if err != nil {
		return "", err
	}
	annotations := resp.Responses[0].TextAnnotations
	if len(annotations) == 0 {
		return "", nil
	}
	return annotations[0].Description, nil
}

// DetectWeb performs product identification via web detection, returning
// best-guess labels and web entities
func (c *Client) DetectWeb(ctx context.Context, imagePath string) (*domain.WebDetection, error) {
	resp, err := c.annotate(ctx, imagePath, featureWeb)
	if err != nil {
		return nil, err
	}

	wd := resp.Responses[0].WebDetection
	if wd == nil {
		return &domain.WebDetection{}, nil
	}

	detection := &domain.WebDetection{}
	for _, label := range wd.BestGuessLabels {
		detection.BestGuess = append(detection.BestGuess, label.Label)
	}
	for _, entity := range wd.WebEntities {
		detection.Entities = append(detection.Entities, domain.WebEntity{
			Description: entity.Description,
			Score:       entity.Score,
		})
	}
	for _, img := range wd.FullMatchingImages {
		detection.FullMatches = append(detection.FullMatches, img.URL)
	}
	for _, img := range wd.PartialMatchingImages {
		detection.PartialMatches = append(detection.PartialMatches, img.URL)
	}
	for _, page := range wd.PagesWithMatchingImages {
		detection.PagesWithMatches = append(detection.PagesWithMatches, domain.WebPage{
			URL:   page.URL,
			Title: page.PageTitle,
		})
	}
	return detection, nil
}

// annotate issues a single-feature annotation call for the given image
func (c *Client) annotate(ctx context.Context, imagePath, feature string) (*annotatePayload, error) {
	if !c.IsConfigured() {
		return nil, domain.ErrVisionNotConfigured
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	content, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	annotateReq := annotateRequest{
		Requests: []annotateEntry{{
			Image:    imageContent{Content: base64.StdEncoding.EncodeToString(content)},
			Features: []featureRequest{{Type: feature, MaxResults: maxResultsPerFeature}},
		}},
	}

	body, err := json.Marshal(annotateReq)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v1/images:annotate?key=%s", c.baseURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrVisionAPIFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		c.logger.Warn("image annotation rejected",
			zap.String("feature", feature),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody))
		return nil, fmt.Errorf("%w: status %d", domain.ErrVisionAPIFailure, resp.StatusCode)
	}

	var payload annotatePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(payload.Responses) == 0 {
		return nil, fmt.Errorf("%w: empty response", domain.ErrVisionAPIFailure)
	}
	if respErr := payload.Responses[0].Error; respErr != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrVisionAPIFailure, respErr.Message)
	}

	return &payload, nil
}

// mapLabels converts wire annotations to domain annotations
func mapLabels(payloads []labelPayload) []domain.LabelAnnotation {
	annotations := make([]domain.LabelAnnotation, 0, len(payloads))
	for _, p := range payloads {
		annotations = append(annotations, domain.LabelAnnotation{
			Description: p.Description,
			Score:       p.Score,
			Confidence:  int(math.Round(p.Score * 100)),
		})
	}
	return annotations
}

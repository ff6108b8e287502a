package domain

// LabelAnnotation is a single detected label or logo with its confidence
// score. Scores are in [0,1] as reported by the provider.
type LabelAnnotation struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
	Confidence  int     `json:"confidence"` // score rounded to 0-100
}

// WebEntity is a web-derived entity (product name, brand) from web detection
type WebEntity struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// WebPage is a page carrying an image matching the analyzed one
type WebPage struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// WebDetection aggregates the product-identification results of a web
// detection call. Best-guess labels are the strongest product-name signal.
type WebDetection struct {
	BestGuess        []string    `json:"bestGuess,omitempty"`
	Entities         []WebEntity `json:"entities,omitempty"`
	FullMatches      []string    `json:"fullMatches,omitempty"`
	PartialMatches   []string    `json:"partialMatches,omitempty"`
	PagesWithMatches []WebPage   `json:"pagesWithMatches,omitempty"`
}

// ImageAnalysis is the combined outcome of the four detection calls. A failed
// call leaves its field empty; the analysis as a whole succeeds if at least
// one call did.
type ImageAnalysis struct {
	Labels  []LabelAnnotation `json:"labels"`
	Product *WebDetection     `json:"product,omitempty"`
	Text    string            `json:"text,omitempty"`
	Logos   []LabelAnnotation `json:"logos"`
}

package domain

import "errors"

var (
	// ErrAuthFailed is returned when the marketplace credential exchange fails
	ErrAuthFailed = errors.New("marketplace authentication failed")

	// ErrMarketplaceAPIFailure is returned when a marketplace API request fails
	ErrMarketplaceAPIFailure = errors.New("marketplace API request failed")

	// ErrMarketplaceNotConfigured is returned when the marketplace client is
	// invoked without credentials
	ErrMarketplaceNotConfigured = errors.New("marketplace API not configured")

	// ErrVisionAPIFailure is returned when every image analysis call fails
	ErrVisionAPIFailure = errors.New("image analysis failed")

	// ErrVisionNotConfigured is returned when the vision client is invoked
	// without credentials
	ErrVisionNotConfigured = errors.New("vision API not configured")

	// ErrInsufficientInput is returned when a barcode misses the local catalog
	// and no name or image is available to continue the search
	ErrInsufficientInput = errors.New("product not found by barcode: name or image required")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrProductNotFound is returned when a product cannot be found in the catalog
	ErrProductNotFound = errors.New("product not found")
)

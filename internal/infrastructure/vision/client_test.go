package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopscan/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeTestImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "product.jpg")
	require.NoError(t, os.WriteFile(path, []byte("fake-jpeg-bytes"), 0o644))
	return path
}

func newTestVisionClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(Config{APIKey: "test-key", BaseURL: server.URL}, zap.NewNop())
}

func TestIsConfigured(t *testing.T) {
	assert.True(t, NewClient(Config{APIKey: "key"}, zap.NewNop()).IsConfigured())
	assert.False(t, NewClient(Config{}, zap.NewNop()).IsConfigured())
}

func TestAnnotate_NotConfigured(t *testing.T) {
	client := NewClient(Config{}, zap.NewNop())

	_, err := client.DetectLabels(context.Background(), "whatever.jpg")
	assert.ErrorIs(t, err, domain.ErrVisionNotConfigured)
}

func TestDetectLabels(t *testing.T) {
	imagePath := writeTestImage(t)

	client := newTestVisionClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images:annotate", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req annotateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Requests, 1)
		assert.Equal(t, featureLabels, req.Requests[0].Features[0].Type)

		decoded, err := base64.StdEncoding.DecodeString(req.Requests[0].Image.Content)
		require.NoError(t, err)
		assert.Equal(t, []byte("fake-jpeg-bytes"), decoded)

		fmt.Fprint(w, `{"responses":[{"labelAnnotations":[
			{"description": "Headphones", "score": 0.97},
			{"description": "Electronics", "score": 0.81}
		]}]}`)
	})

	labels, err := client.DetectLabels(context.Background(), imagePath)
	require.NoError(t, err)
	require.Len(t, labels, 2)
	assert.Equal(t, "Headphones", labels[0].Description)
	assert.InDelta(t, 0.97, labels[0].Score, 1e-9)
	assert.Equal(t, 97, labels[0].Confidence)
}

func TestDetectLogos(t *testing.T) {
	imagePath := writeTestImage(t)

	client := newTestVisionClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req annotateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, featureLogos, req.Requests[0].Features[0].Type)

		fmt.Fprint(w, `{"responses":[{"logoAnnotations":[{"description": "Sony", "score": 0.92}]}]}`)
	})

	logos, err := client.DetectLogos(context.Background(), imagePath)
	require.NoError(t, err)
	require.Len(t, logos, 1)
	assert.Equal(t, "Sony", logos[0].Description)
	assert.Equal(t, 92, logos[0].Confidence)
}

func TestDetectText(t *testing.T) {
	imagePath := writeTestImage(t)

	t.Run("returns full text block", func(t *testing.T) {
		client := newTestVisionClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"responses":[{"textAnnotations":[
				{"description": "Sony WH-1000XM5\nWireless"},
				{"description": "Sony"}
			]}]}`)
		})

		text, err := client.DetectText(context.Background(), imagePath)
		require.NoError(t, err)
		assert.Equal(t, "Sony WH-1000XM5\nWireless", text)
	})

	t.Run("empty when nothing detected", func(t *testing.T) {
		client := newTestVisionClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"responses":[{}]}`)
		})

		text, err := client.DetectText(context.Background(), imagePath)
		require.NoError(t, err)
		assert.Empty(t, text)
	})
}

func TestDetectWeb(t *testing.T) {
	imagePath := writeTestImage(t)

	client := newTestVisionClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req annotateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, featureWeb, req.Requests[0].Features[0].Type)

		fmt.Fprint(w, `{"responses":[{"webDetection":{
			"bestGuessLabels": [{"label": "sony wh-1000xm5"}],
			"webEntities": [
				{"description": "Sony WH-1000XM5", "score": 0.88},
				{"description": "Headphones", "score": 0.41}
			],
			"fullMatchingImages": [{"url": "https://img.example/a.jpg"}],
			"pagesWithMatchingImages": [{"url": "https://shop.example/p", "pageTitle": "Buy now"}]
		}}]}`)
	})

	detection, err := client.DetectWeb(context.Background(), imagePath)
	require.NoError(t, err)
	assert.Equal(t, []string{"sony wh-1000xm5"}, detection.BestGuess)
	require.Len(t, detection.Entities, 2)
	assert.Equal(t, "Sony WH-1000XM5", detection.Entities[0].Description)
	assert.Equal(t, []string{"https://img.example/a.jpg"}, detection.FullMatches)
	require.Len(t, detection.PagesWithMatches, 1)
	assert.Equal(t, "Buy now", detection.PagesWithMatches[0].Title)
}

func TestAnnotate_APIError(t *testing.T) {
	imagePath := writeTestImage(t)

	t.Run("http error status", func(t *testing.T) {
		client := newTestVisionClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})

		_, err := client.DetectLabels(context.Background(), imagePath)
		assert.ErrorIs(t, err, domain.ErrVisionAPIFailure)
	})

	t.Run("per-image error payload", func(t *testing.T) {
		client := newTestVisionClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"responses":[{"error":{"code": 3, "message": "bad image data"}}]}`)
		})

		_, err := client.DetectLabels(context.Background(), imagePath)
		assert.ErrorIs(t, err, domain.ErrVisionAPIFailure)
	})

	t.Run("missing image file", func(t *testing.T) {
		client := newTestVisionClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"responses":[{}]}`)
		})

		_, err := client.DetectLabels(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
		assert.Error(t, err)
	})
}

package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
)

const defaultVisionBaseURL = "https://vision.googleapis.com/v1"

// VisionClient performs document text detection through the Google Cloud
// Vision REST API, one synchronous request per page image.
type VisionClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	logger     *slog.Logger
}

// NewVisionClient creates a Vision API client authenticated by API key.
func NewVisionClient(apiKey string, logger *slog.Logger) *VisionClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &VisionClient{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		baseURL:    defaultVisionBaseURL,
		logger:     logger,
	}
}

type annotateRequest struct {
	Requests []imageAnnotateRequest `json:"requests"`
}

type imageAnnotateRequest struct {
	Image    annotateImage     `json:"image"`
	Features []annotateFeature `json:"features"`
}

type annotateImage struct {
	Content string `json:"content"`
}

type annotateFeature struct {
	Type string `json:"type"`
}

type annotateResponse struct {
	Responses []struct {
		FullTextAnnotation struct {
			Text string `json:"text"`
		} `json:"fullTextAnnotation"`
	} `json:"responses"`
}

// DetectText runs document text detection on a single page image and
// returns the extracted text. An image with no detectable text yields an
// empty string, not an error.
func (v *VisionClient) DetectText(ctx context.Context, imagePath string) (string, error) {
	imageBytes, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("reading page image: %w", err)
	}

	body, err := json.Marshal(annotateRequest{
		Requests: []imageAnnotateRequest{{
			Image:    annotateImage{Content: base64.StdEncoding.EncodeToString(imageBytes)},
			Features: []annotateFeature{{Type: "DOCUMENT_TEXT_DETECTION"}},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("encoding annotate request: %w", err)
	}

	url := fmt.Sprintf("%s/images:annotate?key=%s", v.baseURL, v.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building annotate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Vision API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Vision API returned %s: %s", resp.Status, respBody)
	}

	var result annotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding annotate response: %w", err)
	}

	if len(result.Responses) == 0 {
		return "", nil
	}
	return result.Responses[0].FullTextAnnotation.Text, nil
}

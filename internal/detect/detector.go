// Package detect provides HTTP clients for the external face detection and
// face embedding services. Both are treated as opaque capabilities; all
// recognition logic lives elsewhere.
package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/recallapp/recall/internal/store"
)

const (
	defaultDetectorURL = "http://localhost:8000"

	// CropPaddingFactor is the padding the detector applies around the raw
	// detected box before cropping, so returned crops extend beyond the
	// tight bounding box. Part of the service contract.
	CropPaddingFactor = 0.3
)

// Face is one detected face: a normalized bounding box in a
// bottom-left-origin unit square plus the padded crop image.
type Face struct {
	Rect store.Rect
	Crop []byte
}

// DetectorClient calls the face detection service.
type DetectorClient struct {
	baseURL string
	enhance bool
	maxSize int
	client  *http.Client
}

// NewDetectorClient creates a detector client. enhance asks the service to
// run its image enhancement pass before detection; maxSize caps the upload
// dimension (0 disables downscaling).
func NewDetectorClient(baseURL string, enhance bool, maxSize int) *DetectorClient {
	if baseURL == "" {
		baseURL = defaultDetectorURL
	}
	return &DetectorClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		enhance: enhance,
		maxSize: maxSize,
		client:  &http.Client{},
	}
}

// detectResponse represents the response from the detection service.
type detectResponse struct {
	Faces []struct {
		BBox []float64 `json:"bbox"` // [x, y, w, h] normalized, bottom-left origin
		Crop []byte    `json:"crop"` // JPEG bytes, base64 in JSON
	} `json:"faces"`
}

// Detect finds faces in an image. A failure affects only this photo; the
// caller continues with other photos.
func (c *DetectorClient) Detect(ctx context.Context, imageData []byte) ([]Face, error) {
	if c.maxSize > 0 {
		resized, err := ResizeImage(imageData, c.maxSize)
		if err == nil {
			imageData = resized
		}
		// Undecodable images go to the service as-is; it reports its own error.
	}

	body, err := postMultipartImage(ctx, c.client, c.baseURL+"/detect", imageData, map[string]string{
		"enhance": fmt.Sprintf("%t", c.enhance),
	})
	if err != nil {
		return nil, err
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse detection response: %w", err)
	}

	faces := make([]Face, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.BBox) != 4 {
			continue
		}
		faces = append(faces, Face{
			Rect: store.Rect{X: f.BBox[0], Y: f.BBox[1], Width: f.BBox[2], Height: f.BBox[3]},
			Crop: f.Crop,
		})
	}
	return faces, nil
}

// postMultipartImage constructs a multipart form with the image data and
// optional extra fields and posts it to the given endpoint.
func postMultipartImage(ctx context.Context, client *http.Client, url string, imageData []byte, fields map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

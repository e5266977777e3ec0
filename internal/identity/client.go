// Package identity is the HTTP client for the external identity-document
// parsing service. It submits the two captured sides as a multipart upload
// and returns whatever fields the service recognized.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	"hpcredit/internal/domain"
	"hpcredit/pkg/config"
	"hpcredit/pkg/errors"
	"hpcredit/pkg/logger"

	"github.com/hashicorp/go-retryablehttp"
)

type Client struct {
	http    *http.Client
	baseURL string
	log     logger.Logger
}

func NewClient(cfg config.OCRConfig, log logger.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.MaxRetries
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil

	return &Client{
		http:    &http.Client{Transport: &retryablehttp.RoundTripper{Client: rc}},
		baseURL: cfg.BaseURL,
		log:     log,
	}
}

// Parse submits both document sides and returns the recognized fields. A
// document the service cannot read comes back as an APIError carrying the
// service's human-readable detail.
func (c *Client) Parse(ctx context.Context, frontImage, backImage []byte) (*domain.ParsedIdentityDocument, error) {
	if len(frontImage) == 0 || len(backImage) == 0 {
		return nil, errors.ErrImageMissing
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := writeImagePart(w, "front", frontImage); err != nil {
		return nil, err
	}
	if err := writeImagePart(w, "back", backImage); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/parse", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "document parse request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read parse response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &errors.APIError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil {
			c.log.Warn("parse service returned non-JSON error body", map[string]interface{}{
				"status": resp.StatusCode,
			})
		}
		return nil, apiErr
	}

	var doc domain.ParsedIdentityDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to decode parsed document")
	}
	return &doc, nil
}

func writeImagePart(w *multipart.Writer, field string, image []byte) error {
	part, err := w.CreateFormFile(field, field+".jpg")
	if err != nil {
		return err
	}
	_, err = part.Write(image)
	return err
}

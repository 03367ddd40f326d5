// Package media talks to the external image host. The catalog only needs two
// operations from the provider: upload a base64 payload and delete a stored
// file, both consumed through the Store interface so the lifecycle logic can
// be tested without the real API.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"souq/internal/config"
)

// Asset is the result of a successful upload.
type Asset struct {
	URL    string
	FileID string
}

// Store is the narrow contract the catalog holds against the media provider.
type Store interface {
	Upload(ctx context.Context, base64Payload, folder string) (Asset, error)
	Delete(ctx context.Context, fileID string) error
}

// ImageKitClient implements Store against the ImageKit REST API.
type ImageKitClient struct {
	uploadEndpoint string
	apiEndpoint    string
	privateKey     string
	uploadClient   *http.Client
	deleteClient   *http.Client
}

// NewImageKitClient creates a client with per-call timeouts from config.
// Timeouts surface as upload/delete failures subject to the caller's normal
// rollback rules.
func NewImageKitClient(cfg config.ImageKitConfig) *ImageKitClient {
	return &ImageKitClient{
		uploadEndpoint: cfg.UploadEndpoint,
		apiEndpoint:    strings.TrimRight(cfg.APIEndpoint, "/"),
		privateKey:     cfg.PrivateKey,
		uploadClient:   &http.Client{Timeout: time.Duration(cfg.UploadTimeout) * time.Second},
		deleteClient:   &http.Client{Timeout: time.Duration(cfg.DeleteTimeout) * time.Second},
	}
}

type uploadResponse struct {
	URL     string `json:"url"`
	FileID  string `json:"fileId"`
	Message string `json:"message"`
}

// Upload sends a base64 image payload to the provider and returns the hosted
// URL and file identifier.
func (c *ImageKitClient) Upload(ctx context.Context, base64Payload, folder string) (Asset, error) {
	form := url.Values{}
	form.Set("file", base64Payload)
	form.Set("fileName", fmt.Sprintf("product-%d", time.Now().UnixNano()))
	form.Set("folder", folder)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Asset{}, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.privateKey, "")

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return Asset{}, fmt.Errorf("image upload failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to read upload response: %w", err)
	}

	var parsed uploadResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Asset{}, fmt.Errorf("failed to decode upload response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if parsed.Message != "" {
			return Asset{}, fmt.Errorf("image upload failed: %s", parsed.Message)
		}
		return Asset{}, fmt.Errorf("image upload failed: status %d", resp.StatusCode)
	}

	if parsed.URL == "" || parsed.FileID == "" {
		return Asset{}, fmt.Errorf("image upload failed: incomplete response")
	}

	return Asset{URL: parsed.URL, FileID: parsed.FileID}, nil
}

// Delete removes a stored file by its provider identifier.
func (c *ImageKitClient) Delete(ctx context.Context, fileID string) error {
	endpoint := fmt.Sprintf("%s/files/%s", c.apiEndpoint, url.PathEscape(fileID))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build delete request: %w", err)
	}
	req.SetBasicAuth(c.privateKey, "")

	resp, err := c.deleteClient.Do(req)
	if err != nil {
		return fmt.Errorf("image delete failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("image delete failed: status %d", resp.StatusCode)
	}

	return nil
}

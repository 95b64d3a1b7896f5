// Package imagekit implements storage.Uploader against the ImageKit
// upload API.
//
// The API is a single multipart POST to the upload endpoint, authenticated
// with the account's private key via HTTP basic auth (key as username,
// empty password). A 2xx answer carries JSON with the hosted file's url;
// anything else carries an error envelope with a message.
package imagekit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/gallery/internal/storage"
)

// DefaultUploadURL is ImageKit's public upload endpoint.
const DefaultUploadURL = "https://upload.imagekit.io/api/v1/files/upload"

const httpTimeout = 20 * time.Second

// uploadTag is attached to every file so uploads from this backend are
// identifiable in the ImageKit media library.
const uploadTag = "backend-upload"

// httpDoer lets tests substitute the HTTP client.
type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to the ImageKit upload API.
type Client struct {
	uploadURL  string
	privateKey string
	httpClient httpDoer
}

var _ storage.Uploader = (*Client)(nil)

// New creates a Client. uploadURL may be empty to use the public endpoint.
func New(privateKey, uploadURL string) (*Client, error) {
	if strings.TrimSpace(privateKey) == "" {
		return nil, fmt.Errorf("imagekit: private key required")
	}
	if uploadURL == "" {
		uploadURL = DefaultUploadURL
	}
	return &Client{
		uploadURL:  uploadURL,
		privateKey: privateKey,
		httpClient: &http.Client{Timeout: httpTimeout},
	}, nil
}

// uploadResponse is the slice of ImageKit's response we care about. The
// API returns a much larger object; unknown fields are ignored.
type uploadResponse struct {
	URL    string `json:"url"`
	Name   string `json:"name"`
	FileID string `json:"fileId"`
}

type errorEnvelope struct {
	Message string `json:"message"`
}

// Upload sends the file and returns the hosted URL.
//
// The remote name is a fresh xid plus the original extension, so every
// upload gets a unique object name regardless of what clients call their
// files. The original name still travels with the post record locally.
func (c *Client) Upload(ctx context.Context, file io.Reader, fileName, contentType string) (*storage.UploadResult, error) {
	remoteName := xid.New().String() + strings.ToLower(path.Ext(fileName))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", remoteName)
	if err != nil {
		return nil, fmt.Errorf("imagekit: building request body: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("imagekit: reading upload: %w", err)
	}

	fields := map[string]string{
		"fileName":          remoteName,
		"useUniqueFileName": "false",
		"tags":              uploadTag,
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("imagekit: writing field %s: %w", k, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("imagekit: finalizing request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &body)
	if err != nil {
		return nil, fmt.Errorf("imagekit: building request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetBasicAuth(c.privateKey, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imagekit: upload request: %w", err)
	}
	defer resp.Body.Close()

	// Cap the read: a misbehaving endpoint must not balloon memory.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("imagekit: reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, buildAPIError(resp.StatusCode, raw)
	}

	var parsed uploadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("imagekit: decoding response: %w", err)
	}
	if parsed.URL == "" {
		return nil, fmt.Errorf("imagekit: response missing url")
	}

	return &storage.UploadResult{
		URL:    parsed.URL,
		Name:   parsed.Name,
		FileID: parsed.FileID,
	}, nil
}

// buildAPIError turns a non-2xx response into an error, preferring the
// API's own message and falling back to a truncated body snippet.
func buildAPIError(statusCode int, body []byte) error {
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil {
		if msg := strings.TrimSpace(envelope.Message); msg != "" {
			return fmt.Errorf("imagekit: api error (%d): %s", statusCode, msg)
		}
	}

	snippet := strings.TrimSpace(string(body))
	if snippet == "" {
		snippet = http.StatusText(statusCode)
	}
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}

	return fmt.Errorf("imagekit: api error (%d): %s", statusCode, snippet)
}

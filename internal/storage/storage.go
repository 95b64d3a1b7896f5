// Package storage defines the contract with the external file-storage
// provider. The provider accepts file bytes and returns a durable URL;
// everything else about hosting the content is its problem.
//
// The imagekit subpackage is the real implementation. Tests use a mock —
// the service layer only sees this interface.
package storage

import (
	"context"
	"io"
)

// UploadResult is what the provider reports back after a successful
// upload. URL is the durable, publicly retrievable location.
type UploadResult struct {
	URL    string
	Name   string
	FileID string
}

// Uploader sends a file to the storage provider.
//
// fileName is the client's original file name (its extension decides the
// remote name's extension); contentType is the MIME type as declared in
// the upload request. The call blocks until the provider answers — post
// records are only created after a URL exists.
type Uploader interface {
	Upload(ctx context.Context, file io.Reader, fileName, contentType string) (*UploadResult, error)
}

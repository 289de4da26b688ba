package azure

import (
	"context"
	"errors"
)

// ErrBlobNotFound is returned for unknown report names
var ErrBlobNotFound = errors.New("blob not found")

// BlobStorage is the report archive used by the report service
type BlobStorage interface {
	UploadReport(ctx context.Context, userID, filename string, data []byte) (string, error)
	DownloadReport(ctx context.Context, userID, filename string) ([]byte, error)
}

var (
	_ BlobStorage = (*BlobStorageClient)(nil)
	_ BlobStorage = (*MockBlobStorageClient)(nil)
)

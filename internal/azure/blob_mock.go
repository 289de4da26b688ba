package azure

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// MockBlobStorageClient is an in-memory BlobStorage. It backs the report archive when no
// storage account is configured and is used in tests.
type MockBlobStorageClient struct {
	Storage map[string][]byte
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewMockBlobStorageClient creates a new in-memory blob storage
func NewMockBlobStorageClient(logger *zap.Logger) *MockBlobStorageClient {
	return &MockBlobStorageClient{
		Storage: make(map[string][]byte),
		logger:  logger,
	}
}

func (c *MockBlobStorageClient) UploadReport(ctx context.Context, userID, filename string, data []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	blobName := ReportBlobName(userID, filename)
	stored := make([]byte, len(data))
	copy(stored, data)
	c.Storage[blobName] = stored

	if c.logger != nil {
		c.logger.Debug("memory: report stored",
			zap.String("blob_name", blobName),
			zap.Int("size_bytes", len(data)),
		)
	}
	return blobName, nil
}

func (c *MockBlobStorageClient) DownloadReport(ctx context.Context, userID, filename string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	blobName := ReportBlobName(userID, filename)
	data, ok := c.Storage[blobName]
	if !ok {
		return nil, fmt.Errorf("%s: %w", blobName, ErrBlobNotFound)
	}
	return data, nil
}

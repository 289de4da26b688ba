package azure

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewBlobStorageClient(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name          string
		accountName   string
		accountKey    string
		containerName string
		wantErr       bool
	}{
		{"valid configuration", "testaccount", "dGVzdGtleQ==", "test-container", false},
		{"missing account name", "", "dGVzdGtleQ==", "test-container", true},
		{"missing account key", "testaccount", "", "test-container", true},
		{"missing container name", "testaccount", "dGVzdGtleQ==", "", true},
		{"invalid account key format", "testaccount", "invalid-key-format", "test-container", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewBlobStorageClient(tt.accountName, tt.accountKey, tt.containerName, logger)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.containerName, client.containerName)
		})
	}
}

func TestBlobStorageClient_ContextCancellation(t *testing.T) {
	client, err := NewBlobStorageClient("testaccount", "dGVzdGtleQ==", "test-container", zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.UploadReport(ctx, "user-1", "report.json", []byte("{}"))
	assert.Error(t, err)

	_, err = client.DownloadReport(ctx, "user-1", "report.json")
	assert.Error(t, err)
}

func TestReportBlobName_ScopedPerUser(t *testing.T) {
	assert.Equal(t, "adherence-reports/user-1/2025-03.json", ReportBlobName("user-1", "2025-03.json"))
	assert.NotEqual(t, ReportBlobName("user-1", "a.json"), ReportBlobName("user-2", "a.json"))
}

func TestMockBlobStorage_RoundTrip(t *testing.T) {
	store := NewMockBlobStorageClient(zap.NewNop())
	ctx := context.Background()

	name, err := store.UploadReport(ctx, "user-1", "report.json", []byte(`{"taken":3}`))
	require.NoError(t, err)
	assert.Equal(t, ReportBlobName("user-1", "report.json"), name)

	data, err := store.DownloadReport(ctx, "user-1", "report.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"taken":3}`, string(data))

	_, err = store.DownloadReport(ctx, "user-2", "report.json")
	assert.True(t, errors.Is(err, ErrBlobNotFound))
}

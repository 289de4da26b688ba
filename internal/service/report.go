package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/vcscsvcscs/adherence-engine/internal/audit"
	"github.com/vcscsvcscs/adherence-engine/internal/azure"
	"github.com/vcscsvcscs/adherence-engine/internal/clock"
	"github.com/vcscsvcscs/adherence-engine/internal/repository"
	"go.uber.org/zap"
)

// ArchivedReport describes a stored adherence snapshot
type ArchivedReport struct {
	Name        string    `json:"name"`
	BlobName    string    `json:"blob_name"`
	Days        int       `json:"days"`
	SizeBytes   int       `json:"size_bytes"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ReportService archives adherence snapshots as JSON documents
type ReportService struct {
	adherence *AdherenceService
	blob      azure.BlobStorage
	audit     audit.Recorder
	clock     clock.Clock
	logger    *zap.Logger
}

// NewReportService creates a new ReportService
func NewReportService(adherence *AdherenceService, blob azure.BlobStorage, auditor audit.Recorder, clk clock.Clock, logger *zap.Logger) *ReportService {
	if clk == nil {
		clk = clock.NewReal()
	}
	return &ReportService{
		adherence: adherence,
		blob:      blob,
		audit:     auditor,
		clock:     clk,
		logger:    logger,
	}
}

// Archive builds a snapshot of the last days and uploads it
func (s *ReportService) Archive(ctx context.Context, userID string, days int, actor Actor) (*ArchivedReport, error) {
	snapshot, err := s.adherence.Snapshot(ctx, userID, days)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}

	days, _ = normalizeDays(days)
	name := fmt.Sprintf("adherence-%s-%dd.json", snapshot.GeneratedAt.UTC().Format("20060102T150405Z"), days)

	blobName, err := s.blob.UploadReport(ctx, userID, name, data)
	if err != nil {
		s.logger.Error("failed to archive adherence report", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to archive report: %w", err)
	}

	s.logger.Info("adherence report archived",
		zap.String("user_id", userID),
		zap.String("blob_name", blobName),
		zap.Int("days", days),
	)

	if s.audit != nil {
		err := s.audit.Log(ctx, audit.Entry{
			UserID:        userID,
			OperationType: audit.OperationCreate,
			ResourceType:  audit.ResourceReport,
			ResourceID:    name,
			IPAddress:     actor.IPAddress,
			UserAgent:     actor.UserAgent,
		})
		if err != nil {
			s.logger.Warn("failed to audit report archive", zap.Error(err), zap.String("user_id", userID))
		}
	}

	return &ArchivedReport{
		Name:        name,
		BlobName:    blobName,
		Days:        days,
		SizeBytes:   len(data),
		GeneratedAt: snapshot.GeneratedAt,
	}, nil
}

// Fetch downloads an archived report of the user
func (s *ReportService) Fetch(ctx context.Context, userID, name string) ([]byte, error) {
	if userID == "" {
		return nil, invalid("user_id", "is required")
	}
	if name == "" || path.Base(name) != name || !strings.HasSuffix(name, ".json") {
		return nil, invalid("name", "is not a report name")
	}

	data, err := s.blob.DownloadReport(ctx, userID, name)
	if err != nil {
		if errors.Is(err, azure.ErrBlobNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch report: %w", err)
	}
	return data, nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/vcscsvcscs/adherence-engine/internal/azure"
	"github.com/vcscsvcscs/adherence-engine/internal/config"
	"github.com/vcscsvcscs/adherence-engine/internal/notify"
	"github.com/vcscsvcscs/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// notify-check sends one sample reminder over every configured channel and round-trips a
// report through blob storage. Recipients come from NOTIFY_CHECK_EMAIL and
// NOTIFY_CHECK_CHAT_ID.
func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	to := model.Recipient{
		UserID: "notify-check",
		Email:  os.Getenv("NOTIFY_CHECK_EMAIL"),
	}
	if raw := os.Getenv("NOTIFY_CHECK_CHAT_ID"); raw != "" {
		to.TelegramChatID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			logger.Fatal("NOTIFY_CHECK_CHAT_ID must be an integer", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	failed := false

	logger.Info("=== Testing notification channels ===")
	if err := checkChannels(ctx, cfg, to, logger); err != nil {
		logger.Error("Notification check failed", zap.Error(err))
		failed = true
	}

	if cfg.Azure.Storage.Configured() {
		logger.Info("=== Testing report blob storage ===")
		if err := checkBlobStorage(ctx, cfg.Azure.Storage, logger); err != nil {
			logger.Error("Blob storage check failed", zap.Error(err))
			failed = true
		}
	} else {
		logger.Info("Azure storage not configured, skipping blob check")
	}

	if failed {
		os.Exit(1)
	}
	logger.Info("=== All checks completed ===")
}

func checkChannels(ctx context.Context, cfg *config.Config, to model.Recipient, logger *zap.Logger) error {
	dispatcher, err := notify.Setup(cfg.Notify, cfg.Azure.OpenAI, logger)
	if err != nil {
		return err
	}

	channels := dispatcher.Channels()
	if len(channels) == 0 {
		return fmt.Errorf("no channel configured")
	}

	late := 20
	payload := notify.Payload{
		Kind:           notify.KindOverdue,
		UserID:         to.UserID,
		RegimenID:      "notify-check",
		MedicationName: "Vitamin D",
		Dosage:         model.Dosage{Amount: 1000, Unit: "IU"},
		ScheduledTime:  time.Now().Add(-20 * time.Minute),
		MinutesLate:    &late,
	}

	var sent int
	for _, ch := range channels {
		if err := dispatcher.Send(ctx, to, ch, payload); err != nil {
			logger.Error("Channel failed", zap.String("channel", string(ch)), zap.Error(err))
			continue
		}
		sent++
		logger.Info("Channel delivered", zap.String("channel", string(ch)))
	}

	if sent != len(channels) {
		return fmt.Errorf("%d of %d channels failed", len(channels)-sent, len(channels))
	}
	return nil
}

func checkBlobStorage(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) error {
	client, err := azure.NewBlobStorageClient(cfg.AccountName, cfg.AccountKey, cfg.ReportContainer, logger)
	if err != nil {
		return fmt.Errorf("failed to create blob client: %w", err)
	}

	name := fmt.Sprintf("notify-check-%d.json", time.Now().Unix())
	body := []byte(`{"check":"ok"}`)

	blobName, err := client.UploadReport(ctx, "notify-check", name, body)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	got, err := client.DownloadReport(ctx, "notify-check", name)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	if string(got) != string(body) {
		return fmt.Errorf("downloaded content differs from upload")
	}

	logger.Info("Blob round trip succeeded", zap.String("blob_name", blobName))
	return nil
}

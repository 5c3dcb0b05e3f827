package db

import (
	"log"
	"time"

	"gorm.io/gorm"
)

// runRetentionOnce performs a single pass of retention cleanup, deleting
// webhook events past the retention window and expired idempotency records.
func runRetentionOnce(db *gorm.DB, webhookRetentionDays int) error {
	now := time.Now()

	cutoff := now.Add(-time.Duration(webhookRetentionDays) * 24 * time.Hour)
	if err := db.Where("created_at <= ?", cutoff).Delete(&WebhookEvent{}).Error; err != nil {
		return err
	}

	if err := db.Where("expires_at <= ?", now).Delete(&IdempotencyRecord{}).Error; err != nil {
		return err
	}

	return nil
}

// StartRetentionWorker launches a background goroutine that runs the
// retention cleanup once at startup and then once per day.
func StartRetentionWorker(db *gorm.DB, webhookRetentionDays int) {
	go func() {
		if err := runRetentionOnce(db, webhookRetentionDays); err != nil {
			log.Printf("retention cleanup error (startup): %v", err)
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			if err := runRetentionOnce(db, webhookRetentionDays); err != nil {
				log.Printf("retention cleanup error: %v", err)
			}
		}
	}()
}

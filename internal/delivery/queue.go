package delivery

import (
	"fmt"

	"github.com/homelead/distributor/internal/models"
	"gorm.io/gorm"
)

// Enqueue inserts a delivery message with status pending. Any producer
// may call it; the worker is the only mutator afterwards.
func Enqueue(db *gorm.DB, msg *models.DeliveryMessage) error {
	if msg.TargetAddress == "" {
		return fmt.Errorf("delivery: target address is required")
	}
	switch msg.PayloadType {
	case models.PayloadText, models.PayloadMedia, models.PayloadButtons, models.PayloadList:
	default:
		return fmt.Errorf("delivery: unknown payload type %q", msg.PayloadType)
	}
	msg.Status = models.DeliveryPending
	msg.Attempts = 0
	if err := db.Create(msg).Error; err != nil {
		return fmt.Errorf("delivery: enqueue message to %s: %w", msg.TargetAddress, err)
	}
	return nil
}

// Resend resets a dead-lettered message for another delivery cycle. This
// is the manual path only; nothing resurrects a failed message
// automatically.
func Resend(db *gorm.DB, messageID uint) error {
	result := db.Model(&models.DeliveryMessage{}).
		Where("id = ? AND status = ?", messageID, models.DeliveryFailed).
		Updates(map[string]interface{}{
			"status":        models.DeliveryPending,
			"attempts":      0,
			"error_message": "",
		})
	if result.Error != nil {
		return fmt.Errorf("delivery: resend message %d: %w", messageID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("delivery: message %d is not dead-lettered", messageID)
	}
	return nil
}

package db

import (
	"fmt"

	"github.com/homelead/distributor/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model owned by the distribution subsystem.
func AllModels() []interface{} {
	return []interface{}{
		&models.WorkItem{},
		&models.Attempt{},
		&models.DeliveryMessage{},
		&models.DeadLetter{},
		&models.ChannelInstance{},
		&models.IntegrationLog{},
		&models.Agent{},
		&models.ScoringSettings{},
	}
}

// AutoMigrate creates or updates all distribution tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedScoringSettings ensures the single weights row exists so operators
// have something to edit. Existing values are never overwritten.
func SeedScoringSettings(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.ScoringSettings{}).Count(&count).Error; err != nil {
		return fmt.Errorf("db: count scoring settings: %w", err)
	}
	if count > 0 {
		return nil
	}
	row := models.ScoringSettings{
		AreaMatchBonus:      30,
		DeveloperMatchBonus: 20,
		RatingMultiplier:    10,
		LoadPenalty:         5,
	}
	if err := db.Create(&row).Error; err != nil {
		return fmt.Errorf("db: seed scoring settings: %w", err)
	}
	return nil
}

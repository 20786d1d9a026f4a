package db

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		password string
		host     string
		port     int
		database string
		want     string
	}{
		{
			name:     "no password",
			user:     "root",
			host:     "127.0.0.1",
			port:     3306,
			database: "distributor",
			want:     "root@tcp(127.0.0.1:3306)/distributor?parseTime=true&charset=utf8mb4",
		},
		{
			name:     "with password",
			user:     "app",
			password: "s3cret",
			host:     "db.vpc.internal",
			port:     3307,
			database: "distributor",
			want:     "app:s3cret@tcp(db.vpc.internal:3307)/distributor?parseTime=true&charset=utf8mb4",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DSN(tt.user, tt.password, tt.host, tt.port, tt.database); got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAutoMigrate(t *testing.T) {
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, table := range []string{"work_items", "attempts", "delivery_messages", "dead_letters", "channel_instances", "integration_logs", "agents", "scoring_settings"} {
		if !gormDB.Migrator().HasTable(table) {
			t.Errorf("table %s missing after migrate", table)
		}
	}
}

func TestSeedScoringSettingsIdempotent(t *testing.T) {
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	if err := SeedScoringSettings(gormDB); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := SeedScoringSettings(gormDB); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	var count int64
	gormDB.Table("scoring_settings").Count(&count)
	if count != 1 {
		t.Errorf("scoring_settings rows = %d, want 1", count)
	}
}

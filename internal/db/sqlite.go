package db

import (
	"crypto/rand"
	"encoding/hex"
	"log"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"zaop.zip/paylink/internal/db/models"
)

// InitDB opens the SQLite database and runs migrations.
func InitDB(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&models.AuthorizationRecord{},
		&models.Receipt{},
		&models.ReceiptItem{},
		&models.WbwList{},
		&models.WbwMember{},
		&models.Config{},
	); err != nil {
		return nil, err
	}

	ensureAPIKey(db)

	return db, nil
}

func newAPIKey() string {
	b := make([]byte, 16)
	rand.Read(b)
	return "pk-" + hex.EncodeToString(b)
}

// ensureAPIKey generates the local API key on first run.
func ensureAPIKey(db *gorm.DB) {
	var config models.Config
	if err := db.Where("key = ?", "api_key").First(&config).Error; err == nil {
		return
	}

	apiKey := newAPIKey()
	db.Create(&models.Config{Key: "api_key", Value: apiKey})
	log.Printf("generated new API key: %s", apiKey)
}

// GetAPIKey retrieves the local API key.
func GetAPIKey(db *gorm.DB) string {
	var config models.Config
	db.Where("key = ?", "api_key").First(&config)
	return config.Value
}

// RegenerateAPIKey replaces the local API key.
func RegenerateAPIKey(db *gorm.DB) string {
	apiKey := newAPIKey()
	db.Model(&models.Config{}).Where("key = ?", "api_key").Update("value", apiKey)
	log.Printf("regenerated API key: %s", apiKey)
	return apiKey
}

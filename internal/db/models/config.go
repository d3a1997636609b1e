package models

import "time"

// Config stores daemon-level settings like the local API key.
type Config struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

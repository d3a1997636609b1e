package models

import "time"

// PlaceholderAccountID is the reserved account id used between code exchange
// and discovery of the platform's real account identifier.
const PlaceholderAccountID int64 = 0

// AuthorizationRecord stores one linked account's authorization state for one
// platform. State is an opaque blob owned by the authstate package; at most
// one record exists per (platform, account) pair.
type AuthorizationRecord struct {
	Platform  string `gorm:"primaryKey"`
	AccountID int64  `gorm:"primaryKey;autoIncrement:false"`
	State     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

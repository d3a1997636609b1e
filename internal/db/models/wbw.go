package models

import "time"

// WbwList is a shared-expense list the signed-in WBW user belongs to.
type WbwList struct {
	ID          string `gorm:"primaryKey"` // WBW's UUID
	Name        string
	OurMemberID string // our member id within this list, from the balances call
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WbwMember is one member of a WBW list, needed to build expense shares.
type WbwMember struct {
	ID       string `gorm:"primaryKey"` // WBW's UUID
	ListID   string `gorm:"index"`
	Nickname string
}

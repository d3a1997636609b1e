package models

import "time"

// Receipt is one purchase receipt pulled from a retailer. The retailer's own
// id is kept so re-syncs upsert instead of duplicating.
type Receipt struct {
	ID              uint   `gorm:"primaryKey"`
	Store           string `gorm:"uniqueIndex:idx_store_provided"`
	StoreProvidedID string `gorm:"uniqueIndex:idx_store_provided"`
	Date            string
	TotalAmount     int // cents
	Items           []ReceiptItem `gorm:"foreignKey:ReceiptID"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ReceiptItem is one line item on a receipt, addressed by its position so a
// re-fetch of the same receipt replaces rather than appends.
type ReceiptItem struct {
	ID                   uint `gorm:"primaryKey"`
	ReceiptID            uint `gorm:"uniqueIndex:idx_receipt_index"`
	IndexInsideReceipt   int  `gorm:"uniqueIndex:idx_receipt_index"`
	UnitPrice            int  // cents
	Quantity             float64
	StoreProvidedItemCode string
	Description          string
	TotalPrice           int // cents
}

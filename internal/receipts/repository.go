// Package receipts stores pulled receipts and computes selection totals.
package receipts

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"zaop.zip/paylink/internal/db/models"
)

// ErrNotFound is returned when a receipt does not exist locally.
var ErrNotFound = errors.New("receipt not found")

// Repository wraps receipt persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository wraps the shared database handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert stores pulled receipts, keyed by the retailer's own id so re-syncs
// update in place.
func (r *Repository) Upsert(recs []models.Receipt) error {
	if len(recs) == 0 {
		return nil
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "store"}, {Name: "store_provided_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"date", "total_amount", "updated_at"}),
	}).Create(&recs).Error
	if err != nil {
		return fmt.Errorf("upsert receipts: %w", err)
	}
	return nil
}

// List returns all receipts with their items, newest first.
func (r *Repository) List() ([]models.Receipt, error) {
	var recs []models.Receipt
	if err := r.db.Preload("Items").Order("date DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return recs, nil
}

// Get loads one receipt with its items.
func (r *Repository) Get(id uint) (*models.Receipt, error) {
	var rec models.Receipt
	err := r.db.Preload("Items").First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load receipt: %w", err)
	}
	return &rec, nil
}

// ReplaceItems swaps in a freshly fetched itemization for a receipt.
func (r *Repository) ReplaceItems(receiptID uint, items []models.ReceiptItem) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("receipt_id = ?", receiptID).Delete(&models.ReceiptItem{}).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			items[i].ReceiptID = receiptID
		}
		return tx.Create(&items).Error
	})
}

// SelectionTotal sums the prices of the selected line items, addressed by
// their position inside the receipt.
func (r *Repository) SelectionTotal(receiptID uint, indexes []int) (int, error) {
	if len(indexes) == 0 {
		return 0, nil
	}
	var items []models.ReceiptItem
	err := r.db.Where("receipt_id = ? AND index_inside_receipt IN ?", receiptID, indexes).Find(&items).Error
	if err != nil {
		return 0, fmt.Errorf("load selected items: %w", err)
	}
	if len(items) != len(indexes) {
		return 0, fmt.Errorf("selection references %d items, found %d", len(indexes), len(items))
	}
	total := 0
	for _, it := range items {
		total += it.TotalPrice
	}
	return total, nil
}

// Clear deletes all receipts and items.
func (r *Repository) Clear() error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.ReceiptItem{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&models.Receipt{}).Error
	})
}

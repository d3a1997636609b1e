// Package store persists authorization records keyed by (platform, account).
package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"zaop.zip/paylink/internal/db/models"
	"zaop.zip/paylink/internal/platform"
)

// ErrNotFound is returned when no record exists for a key.
var ErrNotFound = errors.New("authorization record not found")

// Store is a durable key-value table of authorization records. No operation
// spans more than one record.
type Store struct {
	db *gorm.DB
}

// New wraps the shared database handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get loads the record for a key.
func (s *Store) Get(p platform.Platform, accountID int64) (*models.AuthorizationRecord, error) {
	var rec models.AuthorizationRecord
	err := s.db.Where("platform = ? AND account_id = ?", string(p), accountID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load authorization record: %w", err)
	}
	return &rec, nil
}

// Put upserts a record under its (platform, account) key. The explicit
// on-conflict clause is needed because a zero AccountID is a real key, not an
// unset primary key.
func (s *Store) Put(rec *models.AuthorizationRecord) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "platform"}, {Name: "account_id"}},
		UpdateAll: true,
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("save authorization record: %w", err)
	}
	return nil
}

// Delete removes the record for a key; deleting an absent key is a no-op.
func (s *Store) Delete(p platform.Platform, accountID int64) error {
	err := s.db.Where("platform = ? AND account_id = ?", string(p), accountID).
		Delete(&models.AuthorizationRecord{}).Error
	if err != nil {
		return fmt.Errorf("delete authorization record: %w", err)
	}
	return nil
}

// ListAll returns every linked account across all platforms. Called once at
// startup to seed the session registry.
func (s *Store) ListAll() ([]models.AuthorizationRecord, error) {
	var recs []models.AuthorizationRecord
	if err := s.db.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list authorization records: %w", err)
	}
	return recs, nil
}

// Package lockout persists and enforces the top-up lockout rule: three
// consecutive failed transactions lock a card for an hour, surviving kiosk
// restarts.
package lockout

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bikeshare/station-kiosk/internal/domain/entity"
	"github.com/bikeshare/station-kiosk/pkg/database"
	"go.uber.org/zap"
)

// Store persists lockout records in sqlite
type Store struct {
	db     *database.DB
	logger *zap.Logger
}

// NewStore creates a lockout store
func NewStore(db *database.DB, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// querier is satisfied by both *database.DB and *sql.Tx
type querier interface {
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
}

// Get retrieves the lockout record for a card. A card with no record gets
// a zero-valued one.
func (s *Store) Get(cardNumber string) (*entity.LockoutRecord, error) {
	return s.get(s.db, cardNumber)
}

func (s *Store) get(q querier, cardNumber string) (*entity.LockoutRecord, error) {
	query := `
		SELECT is_locked, lock_until, failed_attempts
		FROM card_lockouts WHERE card_number = ?
	`

	record := &entity.LockoutRecord{CardNumber: cardNumber}
	var isLocked int
	var lockUntil int64

	err := q.QueryRow(query, cardNumber).Scan(&isLocked, &lockUntil, &record.FailedAttempts)
	if err == sql.ErrNoRows {
		return record, nil
	}
	if err != nil {
		s.logger.Error("Failed to read lockout record", zap.Error(err))
		return nil, fmt.Errorf("failed to read lockout record: %w", err)
	}

	record.IsLocked = isLocked != 0
	if lockUntil > 0 {
		record.LockUntil = time.UnixMilli(lockUntil)
	}
	return record, nil
}

// Save upserts the lockout record for a card
func (s *Store) Save(record *entity.LockoutRecord) error {
	return s.save(s.db, record)
}

func (s *Store) save(q querier, record *entity.LockoutRecord) error {
	query := `
		INSERT INTO card_lockouts (card_number, is_locked, lock_until, failed_attempts, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(card_number) DO UPDATE SET
			is_locked = excluded.is_locked,
			lock_until = excluded.lock_until,
			failed_attempts = excluded.failed_attempts,
			updated_at = CURRENT_TIMESTAMP
	`

	isLocked := 0
	if record.IsLocked {
		isLocked = 1
	}
	var lockUntil int64
	if !record.LockUntil.IsZero() {
		lockUntil = record.LockUntil.UnixMilli()
	}

	if _, err := q.Exec(query, record.CardNumber, isLocked, lockUntil, record.FailedAttempts); err != nil {
		s.logger.Error("Failed to save lockout record", zap.Error(err))
		return fmt.Errorf("failed to save lockout record: %w", err)
	}
	return nil
}

// Update applies fn to the card's record and writes the result back inside
// one transaction, so a failure count read concurrently cannot be lost.
// An error from fn rolls the transaction back and leaves the row untouched.
func (s *Store) Update(cardNumber string, fn func(*entity.LockoutRecord) error) (*entity.LockoutRecord, error) {
	var record *entity.LockoutRecord
	err := s.db.WithTransaction(func(tx *sql.Tx) error {
		var err error
		record, err = s.get(tx, cardNumber)
		if err != nil {
			return err
		}
		if err := fn(record); err != nil {
			return err
		}
		return s.save(tx, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Clear removes the lockout record for a card
func (s *Store) Clear(cardNumber string) error {
	if _, err := s.db.Exec("DELETE FROM card_lockouts WHERE card_number = ?", cardNumber); err != nil {
		s.logger.Error("Failed to clear lockout record", zap.Error(err))
		return fmt.Errorf("failed to clear lockout record: %w", err)
	}
	return nil
}

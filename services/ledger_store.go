package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"referral-reward-system/models"
)

// LedgerStore is the narrow persistence surface the grant path depends
// on, so the orchestration logic never touches a concrete client.
// Transact must be atomic: everything issued through the LedgerTx
// commits as a whole or not at all.
type LedgerStore interface {
	Transact(ctx context.Context, fn func(tx LedgerTx) error) error
	CreditsForUser(ctx context.Context, userID string) (*models.UserCredits, error)
	TransactionsForUser(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error)
}

// LedgerTx exposes the in-transaction operations of the grant algorithm:
// conditional insert, locked read, create/update, append.
type LedgerTx interface {
	// InsertRewardEvent inserts with "do nothing on duplicate key" and
	// reports false when the idempotency triple already exists.
	InsertRewardEvent(event *models.RewardEvent) (bool, error)

	// LockUserCredits reads the user's balance row FOR UPDATE,
	// serializing concurrent mutations for the same user. Returns
	// (nil, nil) when the user has no row yet.
	LockUserCredits(userID string) (*models.UserCredits, error)

	CreateUserCredits(credits *models.UserCredits) error
	UpdateUserCredits(userID string, remaining, totalGranted int) error
	AppendTransaction(txn *models.CreditTransaction) error
}

// GormLedgerStore implements LedgerStore on Postgres via GORM.
type GormLedgerStore struct {
	db *gorm.DB
}

func NewGormLedgerStore(db *gorm.DB) *GormLedgerStore {
	return &GormLedgerStore{db: db}
}

func (s *GormLedgerStore) Transact(ctx context.Context, fn func(tx LedgerTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormLedgerTx{tx: tx})
	})
}

func (s *GormLedgerStore) CreditsForUser(ctx context.Context, userID string) (*models.UserCredits, error) {
	var credits models.UserCredits
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&credits).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &credits, nil
}

// TransactionsForUser returns the audit trail in creation order; that
// order is what makes the balance_before/balance_after chain readable.
func (s *GormLedgerStore) TransactionsForUser(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var txns []models.CreditTransaction
	if err := query.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

type gormLedgerTx struct {
	tx *gorm.DB
}

func (t *gormLedgerTx) InsertRewardEvent(event *models.RewardEvent) (bool, error) {
	res := t.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "type"}, {Name: "related_user_id"}},
		DoNothing: true,
	}).Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (t *gormLedgerTx) LockUserCredits(userID string) (*models.UserCredits, error) {
	var credits models.UserCredits
	err := t.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&credits).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &credits, nil
}

func (t *gormLedgerTx) CreateUserCredits(credits *models.UserCredits) error {
	return t.tx.Create(credits).Error
}

func (t *gormLedgerTx) UpdateUserCredits(userID string, remaining, totalGranted int) error {
	return t.tx.Model(&models.UserCredits{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"messages_remaining": remaining,
			"total_granted":      totalGranted,
			"updated_at":         time.Now(),
		}).Error
}

func (t *gormLedgerTx) AppendTransaction(txn *models.CreditTransaction) error {
	return t.tx.Create(txn).Error
}

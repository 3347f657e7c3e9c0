package models

import "time"

// CreditTransaction is one row of the append-only audit trail. For every
// row balance_after == balance_before + messages_change, and reading a
// user's rows in creation order reconstructs the full balance history.
// Never updated, never deleted.
type CreditTransaction struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID         string    `gorm:"type:uuid;not null;index" json:"user_id"`
	Type           string    `gorm:"size:40;not null" json:"type"`
	MessagesChange int       `gorm:"not null" json:"messages_change"`
	BalanceBefore  int       `gorm:"not null" json:"balance_before"`
	BalanceAfter   int       `gorm:"not null" json:"balance_after"`
	Description    string    `gorm:"type:text" json:"description"`
	Metadata       string    `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (CreditTransaction) TableName() string { return "credit_transactions" }

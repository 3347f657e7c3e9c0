package models

import "time"

// UserCredits is the balance-of-record for one user. The row is created
// lazily by the first grant (or by the consumption subsystem) and is
// only ever mutated under a row-level lock inside GrantReward's
// transaction: messages_remaining moves by exactly the same signed delta
// as total_granted/total_used, never independently.
type UserCredits struct {
	UserID            string    `gorm:"primaryKey;type:uuid" json:"user_id"`
	MessagesRemaining int       `gorm:"not null" json:"messages_remaining"`
	TotalGranted      int       `gorm:"not null" json:"total_granted"`
	TotalUsed         int       `gorm:"not null" json:"total_used"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserCredits) TableName() string { return "user_credits" }

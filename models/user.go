package models

import (
	"time"

	"gorm.io/gorm"
)

// User mirrors the account rows owned by the profile service. This
// service only ever writes two columns: referral_code (back-filled,
// globally unique once set) and referred_by (set at most once, at
// registration, never rewritten).
type User struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Username string `gorm:"index" json:"username"`

	ReferralCode *string `gorm:"uniqueIndex;size:16" json:"referral_code,omitempty"`
	ReferredBy   *string `gorm:"type:uuid;index" json:"referred_by,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

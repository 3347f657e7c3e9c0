package models

import "time"

// RewardType identifies which reward policy produced an event
type RewardType string

const (
	RewardReferralSignup      RewardType = "referral_signup"       // paid to the referrer at signup
	RewardReferralSignupBonus RewardType = "referral_signup_bonus" // paid to the referred user at signup
	RewardReferralOnboarding  RewardType = "referral_onboarding"   // paid to the referrer after onboarding completes
)

// RewardEvent is permanent proof that a specific reward was paid.
// The composite unique index on (user_id, type, related_user_id) is the
// sole idempotency guard for the whole subsystem: the database, not the
// application, decides who paid first. Rows are never updated or deleted.
type RewardEvent struct {
	ID             string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID         string     `gorm:"type:uuid;not null;uniqueIndex:idx_reward_events_dedup,priority:1" json:"user_id"`
	Type           RewardType `gorm:"size:40;not null;uniqueIndex:idx_reward_events_dedup,priority:2" json:"type"`
	RelatedUserID  string     `gorm:"type:uuid;not null;uniqueIndex:idx_reward_events_dedup,priority:3" json:"related_user_id"`
	CreditsAwarded int        `gorm:"not null" json:"credits_awarded"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (RewardEvent) TableName() string { return "reward_events" }

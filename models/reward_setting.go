package models

import "time"

// Setting keys understood by this service. Values live in the
// reward_settings table; a missing row falls back to a compiled-in
// default so the service is safe to run before an admin touches it.
const (
	SettingReferralSignupReward     = "referral_signup_reward"
	SettingReferralSignupBonus      = "referral_signup_bonus"
	SettingReferralOnboardingReward = "referral_onboarding_reward"
)

// RewardSetting is an admin-editable credit amount, keyed by string.
type RewardSetting struct {
	Key       string    `gorm:"primaryKey;size:64" json:"key"`
	Value     int       `gorm:"not null" json:"value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RewardSetting) TableName() string { return "reward_settings" }

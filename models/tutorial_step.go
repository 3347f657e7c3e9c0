package models

import "time"

// TutorialStep records one completed onboarding step. The table is owned
// by the tutorial tracker; this service only counts rows per user to
// decide whether the onboarding threshold has been reached.
type TutorialStep struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string    `gorm:"type:uuid;not null;uniqueIndex:idx_tutorial_steps_user_step,priority:1" json:"user_id"`
	StepKey     string    `gorm:"size:64;not null;uniqueIndex:idx_tutorial_steps_user_step,priority:2" json:"step_key"`
	CompletedAt time.Time `gorm:"autoCreateTime" json:"completed_at"`
}

func (TutorialStep) TableName() string { return "tutorial_steps" }

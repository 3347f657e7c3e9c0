package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"referral-reward-system/models"
)

// OnboardingStepThreshold is how many tutorial steps the referred user
// must complete before the referrer's onboarding bonus is paid.
const OnboardingStepThreshold = 8

var (
	ErrUnknownReferralCode = errors.New("referral code does not match any user")
	ErrSelfReferral        = errors.New("users cannot refer themselves")
)

// rewardGranter is the slice of RewardService the orchestrator needs.
type rewardGranter interface {
	GrantReward(ctx context.Context, req GrantRequest) (bool, error)
}

// settingsReader resolves configured reward amounts.
type settingsReader interface {
	GetValue(ctx context.Context, key string) (int, error)
}

// ReferralService holds the referral reward policies: who gets paid how
// much, and when. The actual at-most-once bookkeeping lives in the
// granter, so every method here is safe to call again after a failure.
type ReferralService struct {
	DB       *gorm.DB
	rewards  rewardGranter
	settings settingsReader
	log      *zap.SugaredLogger
}

func NewReferralService(db *gorm.DB, rewards rewardGranter, settings settingsReader, log *zap.SugaredLogger) *ReferralService {
	return &ReferralService{DB: db, rewards: rewards, settings: settings, log: log}
}

// GrantSignupReward pays both sides of a referral: the referrer gets the
// signup reward, the referred user gets the welcome bonus. The two
// grants carry independent idempotency keys, so a partial failure heals
// itself on retry.
func (s *ReferralService) GrantSignupReward(ctx context.Context, referrerID, referredID string) error {
	referrerCredits, err := s.settings.GetValue(ctx, models.SettingReferralSignupReward)
	if err != nil {
		return err
	}
	referredCredits, err := s.settings.GetValue(ctx, models.SettingReferralSignupBonus)
	if err != nil {
		return err
	}

	var errs []error
	if _, err := s.rewards.GrantReward(ctx, GrantRequest{
		UserID:        referrerID,
		Type:          models.RewardReferralSignup,
		Credits:       referrerCredits,
		RelatedUserID: referredID,
		Description:   "Referral signup reward",
	}); err != nil {
		errs = append(errs, err)
	}

	if _, err := s.rewards.GrantReward(ctx, GrantRequest{
		UserID:        referredID,
		Type:          models.RewardReferralSignupBonus,
		Credits:       referredCredits,
		RelatedUserID: referrerID,
		Description:   "Welcome bonus for joining via referral",
	}); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// GrantOnboardingReward pays the referrer once the referred user has
// finished onboarding. The tutorial tracker calls this after every
// completed step, so the common "not yet done" path stays cheap and
// side-effect-free; once the threshold is crossed, the grant's
// idempotency key keeps repeated calls from paying twice.
func (s *ReferralService) GrantOnboardingReward(ctx context.Context, referredUserID string) error {
	var user models.User
	if err := s.DB.WithContext(ctx).Select("id", "referred_by").
		First(&user, "id = ?", referredUserID).Error; err != nil {
		return fmt.Errorf("load user %s: %w", referredUserID, err)
	}
	if user.ReferredBy == nil {
		return nil
	}

	var completed int64
	if err := s.DB.WithContext(ctx).Model(&models.TutorialStep{}).
		Where("user_id = ?", referredUserID).Count(&completed).Error; err != nil {
		return fmt.Errorf("count tutorial steps for user %s: %w", referredUserID, err)
	}
	if completed < OnboardingStepThreshold {
		return nil
	}

	credits, err := s.settings.GetValue(ctx, models.SettingReferralOnboardingReward)
	if err != nil {
		return err
	}
	_, err = s.rewards.GrantReward(ctx, GrantRequest{
		UserID:        *user.ReferredBy,
		Type:          models.RewardReferralOnboarding,
		Credits:       credits,
		RelatedUserID: referredUserID,
		Description:   "Referred user completed onboarding",
	})
	return err
}

// ApplyReferralCode links a freshly registered user to the owner of the
// code and pays the signup rewards. referred_by is written only while
// still NULL, so an existing link is never rewritten. When the link is
// already in place for the same referrer the grants are re-attempted
// anyway: their idempotency keys make repeats free, and that is what
// lets a call that linked but then failed to pay heal on retry.
func (s *ReferralService) ApplyReferralCode(ctx context.Context, newUserID, code string) error {
	var referrer models.User
	err := s.DB.WithContext(ctx).Select("id").
		Where("referral_code = ?", code).First(&referrer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUnknownReferralCode
	}
	if err != nil {
		return fmt.Errorf("look up referral code: %w", err)
	}
	if referrer.ID == newUserID {
		return ErrSelfReferral
	}

	res := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND referred_by IS NULL", newUserID).
		Update("referred_by", referrer.ID)
	if res.Error != nil {
		return fmt.Errorf("link user %s to referrer: %w", newUserID, res.Error)
	}
	if res.RowsAffected == 0 {
		// Already linked. Reload to see who holds the link: a different
		// referrer means this code loses and nothing is owed, but the
		// same referrer means an earlier call may have died between
		// linking and paying, so fall through and re-run the grants.
		var linked models.User
		if err := s.DB.WithContext(ctx).Select("id", "referred_by").
			First(&linked, "id = ?", newUserID).Error; err != nil {
			return fmt.Errorf("reload user %s: %w", newUserID, err)
		}
		if linked.ReferredBy == nil || *linked.ReferredBy != referrer.ID {
			s.log.Debugw("referral link held by another referrer", "user_id", newUserID)
			return nil
		}
	}

	return s.GrantSignupReward(ctx, referrer.ID, newUserID)
}

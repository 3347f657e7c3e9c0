package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"referral-reward-system/models"
	"referral-reward-system/monitoring"
)

// Referral codes are typed by humans, so the alphabet drops the glyphs
// people confuse: 0/O and 1/I/l. 26 letters minus O and I plus the
// digits 2-9 leaves exactly 32 symbols; at length 8 that is ~1.1e12
// combinations, which is why three attempts are plenty.
const (
	ReferralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	ReferralCodeLength   = 8

	maxCodeAttempts = 3
)

// ErrCodeSpaceExhausted means maxCodeAttempts fresh codes all collided.
// That never happens by chance at this alphabet size, so surfacing it
// loudly is the point.
var ErrCodeSpaceExhausted = errors.New("referral code generation exhausted its retry attempts")

// GenerateReferralCode returns a random human-typeable code. The random
// source is crypto/rand because codes are shared publicly and must not
// be enumerable.
func GenerateReferralCode() string {
	buf := make([]byte, ReferralCodeLength)
	// crypto/rand.Read never returns an error on supported platforms
	_, _ = rand.Read(buf)
	for i, b := range buf {
		// 32 divides 256, so the modulo introduces no bias
		buf[i] = ReferralCodeAlphabet[int(b)%len(ReferralCodeAlphabet)]
	}
	return string(buf)
}

// ReferralCodeProvisioner makes sure every user eventually carries a
// unique referral code.
type ReferralCodeProvisioner struct {
	DB  *gorm.DB
	log *zap.SugaredLogger
}

func NewReferralCodeProvisioner(db *gorm.DB, log *zap.SugaredLogger) *ReferralCodeProvisioner {
	return &ReferralCodeProvisioner{DB: db, log: log}
}

// EnsureReferralCode returns the user's code, assigning one first if
// none exists. The write is conditioned on referral_code still being
// NULL, so a concurrently-assigned code is never clobbered; if someone
// else won the race we return their code.
func (p *ReferralCodeProvisioner) EnsureReferralCode(ctx context.Context, userID string) (string, error) {
	var user models.User
	if err := p.DB.WithContext(ctx).Select("id", "referral_code").
		First(&user, "id = ?", userID).Error; err != nil {
		return "", fmt.Errorf("load user %s: %w", userID, err)
	}
	if user.ReferralCode != nil && *user.ReferralCode != "" {
		return *user.ReferralCode, nil
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code := GenerateReferralCode()
		res := p.DB.WithContext(ctx).Model(&models.User{}).
			Where("id = ? AND referral_code IS NULL", userID).
			Update("referral_code", code)
		if res.Error != nil {
			if isUniqueViolation(res.Error) {
				monitoring.ReferralCodeCollisions.Inc()
				p.log.Warnw("referral code collision",
					"user_id", userID, "attempt", attempt)
				continue
			}
			return "", fmt.Errorf("assign referral code to user %s: %w", userID, res.Error)
		}
		if res.RowsAffected == 0 {
			// Lost a race against another assigner; keep their code.
			if err := p.DB.WithContext(ctx).Select("id", "referral_code").
				First(&user, "id = ?", userID).Error; err != nil {
				return "", fmt.Errorf("reload user %s: %w", userID, err)
			}
			if user.ReferralCode != nil {
				return *user.ReferralCode, nil
			}
			return "", fmt.Errorf("referral code update matched no row for user %s", userID)
		}

		monitoring.ReferralCodesAssigned.Inc()
		p.log.Infow("referral code assigned", "user_id", userID, "code", code)
		return code, nil
	}

	p.log.Errorw("referral code space exhausted",
		"user_id", userID, "attempts", maxCodeAttempts)
	return "", ErrCodeSpaceExhausted
}

// BackfillReferralCodes assigns codes to every user missing one. One
// user's failure is logged and counted but never aborts the sweep.
func (p *ReferralCodeProvisioner) BackfillReferralCodes(ctx context.Context) (int, error) {
	var users []models.User
	if err := p.DB.WithContext(ctx).Select("id").
		Where("referral_code IS NULL").Find(&users).Error; err != nil {
		return 0, fmt.Errorf("list users without referral codes: %w", err)
	}

	assigned, failed := 0, 0
	for _, u := range users {
		if _, err := p.EnsureReferralCode(ctx, u.ID); err != nil {
			failed++
			monitoring.BackfillFailures.Inc()
			p.log.Errorw("backfill could not assign referral code",
				"user_id", u.ID, "error", err)
			continue
		}
		assigned++
	}

	if assigned > 0 || failed > 0 {
		p.log.Infow("referral code backfill finished",
			"assigned", assigned, "failed", failed)
	}
	return assigned, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

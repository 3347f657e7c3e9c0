package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"referral-reward-system/models"
	"referral-reward-system/monitoring"
)

// DefaultInitialAllotment is the baseline a lazily-created balance row
// starts from, before the triggering grant is added on top.
const DefaultInitialAllotment = 50

// GrantRequest describes one reward to pay. (UserID, Type,
// RelatedUserID) is the idempotency key: the same triple is paid at most
// once, ever.
type GrantRequest struct {
	UserID        string
	Type          models.RewardType
	Credits       int
	RelatedUserID string
	Description   string
}

// RewardService owns the credit ledger: it is the only code path allowed
// to mutate user_credits, and every mutation leaves a matching
// credit_transactions row behind.
type RewardService struct {
	store            LedgerStore
	log              *zap.SugaredLogger
	initialAllotment int
}

func NewRewardService(store LedgerStore, log *zap.SugaredLogger, initialAllotment int) *RewardService {
	if initialAllotment < 0 {
		initialAllotment = DefaultInitialAllotment
	}
	return &RewardService{
		store:            store,
		log:              log,
		initialAllotment: initialAllotment,
	}
}

// GrantReward pays a reward exactly once. It returns (false, nil)
// without touching storage when credits is not positive (a zero setting
// is a legitimate way to disable a reward) and when the reward was
// already paid. An error means the outcome is unknown and the call is
// safe to retry in full.
func (s *RewardService) GrantReward(ctx context.Context, req GrantRequest) (bool, error) {
	if req.Credits <= 0 {
		s.log.Debugw("skipping non-positive reward",
			"user_id", req.UserID, "type", req.Type, "credits", req.Credits)
		return false, nil
	}

	granted := false
	err := s.store.Transact(ctx, func(tx LedgerTx) error {
		event := &models.RewardEvent{
			ID:             uuid.NewString(),
			UserID:         req.UserID,
			Type:           req.Type,
			RelatedUserID:  req.RelatedUserID,
			CreditsAwarded: req.Credits,
		}
		inserted, err := tx.InsertRewardEvent(event)
		if err != nil {
			return err
		}
		if !inserted {
			// Already paid. Nothing else has been written, so the
			// transaction commits with no side effects.
			return nil
		}

		credits, err := tx.LockUserCredits(req.UserID)
		if err != nil {
			return err
		}

		var balanceBefore int
		if credits != nil {
			balanceBefore = credits.MessagesRemaining
			if err := tx.UpdateUserCredits(req.UserID,
				balanceBefore+req.Credits,
				credits.TotalGranted+req.Credits,
			); err != nil {
				return err
			}
		} else {
			balanceBefore = s.initialAllotment
			if err := tx.CreateUserCredits(&models.UserCredits{
				UserID:            req.UserID,
				MessagesRemaining: balanceBefore + req.Credits,
				TotalGranted:      balanceBefore + req.Credits,
				TotalUsed:         0,
			}); err != nil {
				return err
			}
		}

		metadata, err := json.Marshal(map[string]string{
			"reward_type":     string(req.Type),
			"related_user_id": req.RelatedUserID,
			"reward_event_id": event.ID,
		})
		if err != nil {
			return err
		}

		if err := tx.AppendTransaction(&models.CreditTransaction{
			ID:             uuid.NewString(),
			UserID:         req.UserID,
			Type:           string(req.Type),
			MessagesChange: req.Credits,
			BalanceBefore:  balanceBefore,
			BalanceAfter:   balanceBefore + req.Credits,
			Description:    req.Description,
			Metadata:       string(metadata),
		}); err != nil {
			return err
		}

		granted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("grant %s reward to user %s: %w", req.Type, req.UserID, err)
	}

	if granted {
		monitoring.RewardsGranted.WithLabelValues(string(req.Type)).Inc()
		s.log.Infow("reward granted",
			"user_id", req.UserID, "type", req.Type,
			"credits", req.Credits, "related_user_id", req.RelatedUserID)
	} else {
		monitoring.DuplicateRewards.WithLabelValues(string(req.Type)).Inc()
		s.log.Debugw("reward already paid",
			"user_id", req.UserID, "type", req.Type, "related_user_id", req.RelatedUserID)
	}
	return granted, nil
}

// Balance returns the user's current credit row, or a zeroed row when
// no grant or consumption has created one yet.
func (s *RewardService) Balance(ctx context.Context, userID string) (*models.UserCredits, error) {
	credits, err := s.store.CreditsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if credits == nil {
		credits = &models.UserCredits{UserID: userID}
	}
	return credits, nil
}

// History returns the user's transaction log in creation order.
func (s *RewardService) History(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	return s.store.TransactionsForUser(ctx, userID, limit)
}

// --- Fiber handlers (admin/profile reads) ---

// GetUserCredits serves the current balance for display
func (s *RewardService) GetUserCredits(c *fiber.Ctx) error {
	userID := c.Params("id")
	if _, err := uuid.Parse(userID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user ID"})
	}

	credits, err := s.Balance(c.Context(), userID)
	if err != nil {
		s.log.Errorw("failed to load user credits", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load credits"})
	}
	return c.JSON(credits)
}

// GetUserTransactions serves the audit trail for display
func (s *RewardService) GetUserTransactions(c *fiber.Ctx) error {
	userID := c.Params("id")
	if _, err := uuid.Parse(userID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user ID"})
	}

	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid limit parameter"})
		}
		limit = l
	}

	txns, err := s.History(c.Context(), userID, limit)
	if err != nil {
		s.log.Errorw("failed to load transactions", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load transactions"})
	}
	return c.JSON(txns)
}

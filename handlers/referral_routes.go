package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"referral-reward-system/middleware"
	"referral-reward-system/services"
)

// SetupReferralRoutes wires the endpoints the registration flow, the
// tutorial tracker, and the user profile screen call.
func SetupReferralRoutes(app *fiber.App, referrals *services.ReferralService, codes *services.ReferralCodeProvisioner, log *zap.SugaredLogger) {
	internal := app.Group("/internal")

	// Called by the registration flow right after the referred account
	// has been persisted.
	internal.Post("/referrals/signup", func(c *fiber.Ctx) error {
		var req struct {
			ReferredID   string `json:"referred_id"`
			ReferralCode string `json:"referral_code"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if req.ReferredID == "" || req.ReferralCode == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "referred_id and referral_code are required"})
		}

		err := referrals.ApplyReferralCode(c.Context(), req.ReferredID, req.ReferralCode)
		switch {
		case errors.Is(err, services.ErrUnknownReferralCode):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, services.ErrSelfReferral):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		case err != nil:
			log.Errorw("failed to apply referral code", "referred_id", req.ReferredID, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to apply referral code"})
		}
		return c.JSON(fiber.Map{"message": "referral applied"})
	})

	// Called by the tutorial tracker after every completed step.
	// Fire-and-forget from the tracker's point of view: grant failures
	// are logged here and the tracker always gets 202, so completing a
	// step never fails because of the reward path. The grant itself
	// still ran to completion (or rolled back) before we respond.
	internal.Post("/referrals/onboarding", func(c *fiber.Ctx) error {
		var req struct {
			UserID string `json:"user_id"`
		}
		if err := c.BodyParser(&req); err != nil || req.UserID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
		}

		if err := referrals.GrantOnboardingReward(c.Context(), req.UserID); err != nil {
			log.Errorw("onboarding reward check failed", "user_id", req.UserID, "error", err)
		}
		return c.SendStatus(fiber.StatusAccepted)
	})

	// Profile screen: lazily provisions the code on first view.
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Get("/user/referral-code", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		code, err := codes.EnsureReferralCode(c.Context(), userID)
		if errors.Is(err, services.ErrCodeSpaceExhausted) {
			log.Errorw("referral code provisioning exhausted", "user_id", userID)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not allocate a referral code"})
		}
		if err != nil {
			log.Errorw("failed to ensure referral code", "user_id", userID, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load referral code"})
		}
		return c.JSON(fiber.Map{"referral_code": code})
	})
}

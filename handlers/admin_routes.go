package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"referral-reward-system/middleware"
	"referral-reward-system/services"
)

// SetupAdminRoutes wires the admin surface: reward amounts, ledger
// inspection, and a manual backfill trigger. The Gateway has already
// authorized these callers as admins.
func SetupAdminRoutes(app *fiber.App, settings *services.SettingsService, rewards *services.RewardService, codes *services.ReferralCodeProvisioner, log *zap.SugaredLogger) {
	admin := app.Group("/admin", middleware.UserContextMiddleware())

	admin.Get("/reward-settings", settings.GetSettings)
	admin.Put("/reward-settings/:key", settings.UpdateSetting)

	admin.Get("/users/:id/credits", rewards.GetUserCredits)
	admin.Get("/users/:id/transactions", rewards.GetUserTransactions)

	admin.Post("/referral-codes/backfill", func(c *fiber.Ctx) error {
		assigned, err := codes.BackfillReferralCodes(c.Context())
		if err != nil {
			log.Errorw("manual referral code backfill failed", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "backfill failed"})
		}
		return c.JSON(fiber.Map{"message": "backfill finished", "assigned": assigned})
	})
}

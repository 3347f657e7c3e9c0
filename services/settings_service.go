package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"referral-reward-system/models"
)

const settingsCacheTTL = 5 * time.Minute

// Compiled-in defaults. A missing reward_settings row is a configuration
// gap, not an error: the service is safe to deploy before an admin has
// set anything.
var defaultRewardSettings = map[string]int{
	models.SettingReferralSignupReward:     50,
	models.SettingReferralSignupBonus:      30,
	models.SettingReferralOnboardingReward: 100,
}

// ErrNegativeSettingValue rejects admin writes below zero. Zero itself
// is allowed, it disables the reward.
var ErrNegativeSettingValue = errors.New("reward setting value must be >= 0")

// SettingsService resolves admin-editable reward amounts with
// defaulting, optionally fronted by a redis read-through cache.
type SettingsService struct {
	DB    *gorm.DB
	cache *redis.Client // nil disables caching
	log   *zap.SugaredLogger
}

func NewSettingsService(db *gorm.DB, cache *redis.Client, log *zap.SugaredLogger) *SettingsService {
	return &SettingsService{DB: db, cache: cache, log: log}
}

// GetValue returns the stored amount for key, or the compiled-in default
// when no row exists. Only a genuinely missing row falls back to the
// default; a storage error propagates, because paying the default while
// an admin override (possibly 0, disabling the reward) is unreadable
// would grant credits irreversibly. Grants are safe to retry once the
// store recovers.
func (s *SettingsService) GetValue(ctx context.Context, key string) (int, error) {
	if s.cache != nil {
		if val, err := s.cache.Get(ctx, settingsCacheKey(key)).Int(); err == nil {
			return val, nil
		}
	}

	var setting models.RewardSetting
	err := s.DB.WithContext(ctx).Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaultRewardSettings[key], nil
	}
	if err != nil {
		return 0, fmt.Errorf("load reward setting %s: %w", key, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, settingsCacheKey(key), setting.Value, settingsCacheTTL).Err(); err != nil {
			s.log.Debugw("settings cache write failed", "key", key, "error", err)
		}
	}
	return setting.Value, nil
}

// EffectiveSetting is a setting as the admin UI sees it: the value in
// force plus whether it is still the compiled-in default.
type EffectiveSetting struct {
	Key     string `json:"key"`
	Value   int    `json:"value"`
	Default bool   `json:"default"`
}

// GetAll returns every known setting with its effective value.
func (s *SettingsService) GetAll(ctx context.Context) ([]EffectiveSetting, error) {
	var rows []models.RewardSetting
	if err := s.DB.WithContext(ctx).Order("key ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list reward settings: %w", err)
	}

	stored := make(map[string]int, len(rows))
	for _, row := range rows {
		stored[row.Key] = row.Value
	}

	settings := make([]EffectiveSetting, 0, len(defaultRewardSettings))
	for _, key := range []string{
		models.SettingReferralSignupReward,
		models.SettingReferralSignupBonus,
		models.SettingReferralOnboardingReward,
	} {
		if value, ok := stored[key]; ok {
			settings = append(settings, EffectiveSetting{Key: key, Value: value})
		} else {
			settings = append(settings, EffectiveSetting{Key: key, Value: defaultRewardSettings[key], Default: true})
		}
	}
	return settings, nil
}

// SetValue upserts an amount. Authorization happened upstream; the only
// validation this subsystem owns is the non-negative bound.
func (s *SettingsService) SetValue(ctx context.Context, key string, value int) (*models.RewardSetting, error) {
	if value < 0 {
		return nil, ErrNegativeSettingValue
	}

	setting := models.RewardSetting{Key: key, Value: value}
	if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error; err != nil {
		return nil, fmt.Errorf("save reward setting %s: %w", key, err)
	}

	if s.cache != nil {
		if err := s.cache.Del(ctx, settingsCacheKey(key)).Err(); err != nil {
			s.log.Warnw("settings cache invalidation failed", "key", key, "error", err)
		}
	}

	s.log.Infow("reward setting updated", "key", key, "value", value)
	return &setting, nil
}

func settingsCacheKey(key string) string {
	return "reward_settings:" + key
}

// --- Fiber handlers (admin surface) ---

// GetSettings lists every reward amount for the admin screen
func (s *SettingsService) GetSettings(c *fiber.Ctx) error {
	settings, err := s.GetAll(c.Context())
	if err != nil {
		s.log.Errorw("failed to list reward settings", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list settings"})
	}
	return c.JSON(settings)
}

// UpdateSetting writes one reward amount
func (s *SettingsService) UpdateSetting(c *fiber.Ctx) error {
	key := c.Params("key")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "setting key required"})
	}

	var req struct {
		Value int `json:"value"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	setting, err := s.SetValue(c.Context(), key, req.Value)
	if errors.Is(err, ErrNegativeSettingValue) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		s.log.Errorw("failed to update reward setting", "key", key, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update setting"})
	}
	return c.JSON(setting)
}

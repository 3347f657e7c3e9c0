package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"referral-reward-system/models"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestGetValueFallsBackToDefault(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := NewSettingsService(db, nil, zap.NewNop().Sugar())

	mock.ExpectQuery(`SELECT \* FROM "reward_settings"`).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}))

	value, err := svc.GetValue(context.Background(), models.SettingReferralSignupReward)
	require.NoError(t, err)
	assert.Equal(t, 50, value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetValuePrefersStoredValue(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := NewSettingsService(db, nil, zap.NewNop().Sugar())

	mock.ExpectQuery(`SELECT \* FROM "reward_settings"`).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow(models.SettingReferralSignupReward, 75))

	value, err := svc.GetValue(context.Background(), models.SettingReferralSignupReward)
	require.NoError(t, err)
	assert.Equal(t, 75, value)
}

func TestGetValueFailsOnStorageError(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := NewSettingsService(db, nil, zap.NewNop().Sugar())

	// An unreadable store must not silently pay the compiled-in default:
	// the admin may have set the reward to 0.
	mock.ExpectQuery(`SELECT \* FROM "reward_settings"`).
		WillReturnError(assert.AnError)

	_, err := svc.GetValue(context.Background(), models.SettingReferralSignupReward)
	require.Error(t, err)
}

func TestGetValueServesRepeatsFromCache(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := NewSettingsService(db, setupTestRedis(t), zap.NewNop().Sugar())

	// One DB round trip only; the second read comes from redis.
	mock.ExpectQuery(`SELECT \* FROM "reward_settings"`).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow(models.SettingReferralSignupBonus, 40))

	value, err := svc.GetValue(context.Background(), models.SettingReferralSignupBonus)
	require.NoError(t, err)
	assert.Equal(t, 40, value)

	value, err = svc.GetValue(context.Background(), models.SettingReferralSignupBonus)
	require.NoError(t, err)
	assert.Equal(t, 40, value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetValueInvalidatesCache(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := NewSettingsService(db, setupTestRedis(t), zap.NewNop().Sugar())

	mock.ExpectQuery(`SELECT \* FROM "reward_settings"`).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow(models.SettingReferralOnboardingReward, 100))
	value, err := svc.GetValue(context.Background(), models.SettingReferralOnboardingReward)
	require.NoError(t, err)
	assert.Equal(t, 100, value)

	mock.ExpectExec(`INSERT INTO "reward_settings"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	setting, err := svc.SetValue(context.Background(), models.SettingReferralOnboardingReward, 150)
	require.NoError(t, err)
	assert.Equal(t, 150, setting.Value)

	// The stale cached 100 is gone, so the next read hits the DB and
	// sees the new value.
	mock.ExpectQuery(`SELECT \* FROM "reward_settings"`).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow(models.SettingReferralOnboardingReward, 150))
	value, err = svc.GetValue(context.Background(), models.SettingReferralOnboardingReward)
	require.NoError(t, err)
	assert.Equal(t, 150, value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetValueRejectsNegativeAmounts(t *testing.T) {
	db, _ := setupMockDB(t)
	svc := NewSettingsService(db, nil, zap.NewNop().Sugar())

	_, err := svc.SetValue(context.Background(), models.SettingReferralSignupReward, -1)
	require.ErrorIs(t, err, ErrNegativeSettingValue)
}

func TestSetValueAllowsZeroToDisableReward(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := NewSettingsService(db, nil, zap.NewNop().Sugar())

	mock.ExpectExec(`INSERT INTO "reward_settings"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	setting, err := svc.SetValue(context.Background(), models.SettingReferralSignupBonus, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, setting.Value)
}

func TestGetAllMarksDefaults(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := NewSettingsService(db, nil, zap.NewNop().Sugar())

	// Only the signup reward has been overridden.
	mock.ExpectQuery(`SELECT \* FROM "reward_settings"`).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow(models.SettingReferralSignupReward, 80))

	settings, err := svc.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, settings, 3)

	byKey := make(map[string]EffectiveSetting, len(settings))
	for _, s := range settings {
		byKey[s.Key] = s
	}

	assert.Equal(t, 80, byKey[models.SettingReferralSignupReward].Value)
	assert.False(t, byKey[models.SettingReferralSignupReward].Default)
	assert.Equal(t, 30, byKey[models.SettingReferralSignupBonus].Value)
	assert.True(t, byKey[models.SettingReferralSignupBonus].Default)
	assert.Equal(t, 100, byKey[models.SettingReferralOnboardingReward].Value)
	assert.True(t, byKey[models.SettingReferralOnboardingReward].Default)
}

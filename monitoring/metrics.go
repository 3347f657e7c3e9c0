package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RewardsGranted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_grants_total",
			Help: "Rewards actually paid, by reward type",
		},
		[]string{"type"},
	)

	DuplicateRewards = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_duplicates_suppressed_total",
			Help: "Grant attempts that hit an existing idempotency key",
		},
		[]string{"type"},
	)

	ReferralCodesAssigned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "referral_codes_assigned_total",
			Help: "Referral codes successfully persisted",
		},
	)

	ReferralCodeCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "referral_code_collisions_total",
			Help: "Generated codes rejected by the unique index",
		},
	)

	BackfillFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "referral_code_backfill_failures_total",
			Help: "Users the backfill could not assign a code to",
		},
	)
)

package workers

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"referral-reward-system/services"
)

const backfillRunTimeout = 5 * time.Minute

// CodeBackfillWorker periodically sweeps for users without a referral
// code and assigns one, replacing the one-off backfill script. Each
// user is handled independently inside the provisioner, so a bad row
// never stalls the sweep.
type CodeBackfillWorker struct {
	provisioner *services.ReferralCodeProvisioner
	interval    time.Duration
	log         *zap.SugaredLogger
	sched       gocron.Scheduler
}

func NewCodeBackfillWorker(provisioner *services.ReferralCodeProvisioner, interval time.Duration, log *zap.SugaredLogger) *CodeBackfillWorker {
	return &CodeBackfillWorker{
		provisioner: provisioner,
		interval:    interval,
		log:         log,
	}
}

func (w *CodeBackfillWorker) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	w.sched = sched

	if _, err := sched.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(w.run),
	); err != nil {
		return err
	}

	sched.Start()
	w.log.Infow("referral code backfill worker started", "interval", w.interval)
	return nil
}

func (w *CodeBackfillWorker) Stop() {
	if w.sched != nil {
		if err := w.sched.Shutdown(); err != nil {
			w.log.Warnw("backfill scheduler shutdown failed", "error", err)
		}
	}
}

func (w *CodeBackfillWorker) run() {
	ctx, cancel := context.WithTimeout(context.Background(), backfillRunTimeout)
	defer cancel()

	if _, err := w.provisioner.BackfillReferralCodes(ctx); err != nil {
		w.log.Errorw("referral code backfill run failed", "error", err)
	}
}

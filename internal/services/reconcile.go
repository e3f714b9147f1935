package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"skilltrack-backend/internal/badges"
	"skilltrack-backend/internal/models"
)

// Reconciler repairs badge records that fell behind their closed sessions or carry a
// title that no longer matches their total. Totals are only ever raised.
type Reconciler struct {
	store     AuditStore
	table     *badges.Table
	clock     Clock
	interval  time.Duration
	scheduler *gocron.Scheduler
}

func NewReconciler(store AuditStore, table *badges.Table, interval time.Duration, clock Clock) *Reconciler {
	if clock == nil {
		clock = time.Now
	}
	return &Reconciler{
		store:     store,
		table:     table,
		clock:     clock,
		interval:  interval,
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

func (r *Reconciler) Start() error {
	if r.interval <= 0 {
		return nil
	}

	r.scheduler.SingletonModeAll()
	if _, err := r.scheduler.Every(r.interval).Do(r.run); err != nil {
		return fmt.Errorf("failed to schedule badge reconciliation: %w", err)
	}
	r.scheduler.StartAsync()

	log.Printf("Badge reconciler started (every %s)", r.interval)
	return nil
}

func (r *Reconciler) Stop() {
	if r.scheduler.IsRunning() {
		r.scheduler.Stop()
	}
}

func (r *Reconciler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	repaired, err := r.ReconcileAll(ctx)
	if err != nil {
		log.Printf("badge reconcile: %v", err)
		return
	}
	if repaired > 0 {
		log.Printf("badge reconcile: repaired %d record(s)", repaired)
	}
}

// ReconcileAll checks every badge record and returns how many were rewritten.
func (r *Reconciler) ReconcileAll(ctx context.Context) (int, error) {
	audits, err := r.store.ListBadgeAudits(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list badge audits: %w", err)
	}

	repaired := 0
	for _, audit := range audits {
		if !r.needsRepair(audit) {
			continue
		}

		sessionMinutes := audit.SessionMinutes
		_, err := r.store.UpdateBadgeRecord(ctx, audit.UserID, func(rec *models.BadgeRecord) error {
			if rec.TotalStudyMinutes < sessionMinutes {
				log.Printf("badge reconcile: user %s total %d behind session minutes %d",
					rec.UserID, rec.TotalStudyMinutes, sessionMinutes)
				rec.TotalStudyMinutes = sessionMinutes
			}
			rec.CurrentBadge = r.table.TierFor(rec.TotalStudyMinutes).Title
			rec.BadgeUpdatedAt = storeTime(r.clock)
			return nil
		})
		if err != nil {
			log.Printf("badge reconcile: failed to repair user %s: %v", audit.UserID, err)
			continue
		}
		repaired++
	}

	return repaired, nil
}

func (r *Reconciler) needsRepair(a models.BadgeAudit) bool {
	if a.TotalStudyMinutes < a.SessionMinutes {
		return true
	}
	return a.CurrentBadge != r.table.TierFor(a.TotalStudyMinutes).Title
}

// Package scheduler runs the periodic subscription reconcile
package scheduler

import (
	"context"
	"time"

	"github.com/a2s-dz/gestion/internal/services"
	"github.com/rs/zerolog/log"
)

// Reconciler persists derived subscription statuses
type Reconciler interface {
	Reconcile(ctx context.Context) (*services.ReconcileReport, error)
}

// Run reconciles once immediately, then every interval until ctx is
// cancelled. A non-positive interval disables the loop.
func Run(ctx context.Context, r Reconciler, interval time.Duration) {
	if interval <= 0 {
		log.Info().Msg("subscription reconcile scheduler disabled")
		return
	}
	log.Info().Dur("interval", interval).Msg("subscription reconcile scheduler started")

	runOnce(ctx, r)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runOnce(ctx, r)
		case <-ctx.Done():
			log.Info().Msg("subscription reconcile scheduler stopped")
			return
		}
	}
}

func runOnce(ctx context.Context, r Reconciler) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	report, err := r.Reconcile(ctx)
	if err != nil {
		log.Error().Err(err).Msg("subscription reconcile failed")
		return
	}
	log.Info().
		Int("checked", report.Checked).
		Int("changed", report.Changed).
		Int("failed", report.Failed).
		Dur("took", time.Since(start)).
		Msg("subscription reconcile done")
}

package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/a2s-dz/gestion/internal/services"
	"github.com/stretchr/testify/assert"
)

type countingReconciler struct {
	calls atomic.Int32
	err   error
}

func (c *countingReconciler) Reconcile(ctx context.Context) (*services.ReconcileReport, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return &services.ReconcileReport{Checked: 1}, nil
}

func TestRunTicksUntilCancelled(t *testing.T) {
	r := &countingReconciler{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Run(ctx, r, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return r.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestRunDisabled(t *testing.T) {
	r := &countingReconciler{}
	Run(context.Background(), r, 0)
	assert.Zero(t, r.calls.Load())
}

func TestRunSurvivesErrors(t *testing.T) {
	r := &countingReconciler{err: errors.New("db down")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Run(ctx, r, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return r.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

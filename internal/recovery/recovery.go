// Package recovery implements the process-wide recovery loop of
// SPEC_FULL.md §4.6: the single task that notices abandoned (or
// freshly-submitted) submissions and spins up a Dispatcher for each.
// Grounded on internal/controller.Start's recovery sequence
// (loadSnapshot -> replayWAL -> requeue in-flight jobs), generalized from a
// one-time startup step into a continuously ticking scan, since ownership
// here is decided by a `check_at` CAS rather than by being the only
// process that ever existed.
package recovery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zkstage/coordinator/internal/dispatcher"
	"github.com/zkstage/coordinator/internal/persistence"
	"github.com/zkstage/coordinator/internal/workerpool"
	"github.com/zkstage/coordinator/pkg/types"
)

// tickInterval is the scan cadence on a clean pass, per §4.6 "Every 1 s".
const tickInterval = 1 * time.Second

// errorBackoff is the scan cadence after ListExpiredComputing itself fails
// (persistence trouble, not a candidate-processing failure), per §4.6
// "longer on error".
const errorBackoff = 5 * time.Second

// quiescenceWindow is how long a submission's check_at must be stale before
// it's considered abandoned, per the Lease glossary entry ("expiring after
// 60 s of silence").
const quiescenceWindow = 60 * time.Second

// candidateLimit bounds how many expired rows one tick claims, per §4.6
// "limit=5" — a deliberately small batch so one coordinator doesn't
// monopolize every abandoned submission in a single tick.
const candidateLimit = 5

// Loop is the process-wide recovery task. One instance per coordinator
// process; DispatcherConfig is shared by every Dispatcher it spawns.
type Loop struct {
	submissions *persistence.SubmissionStore
	events      *persistence.EventLog
	pool        *workerpool.Pool
	dispatchCfg dispatcher.Config

	log *slog.Logger

	mu     sync.Mutex
	claims map[types.SubmissionID]struct{}
}

// New builds a Loop. dispatchCfg.Submissions/Events/Pool must be the same
// instances passed here — the Loop doesn't duplicate them, it just needs
// its own copies of Submissions/Pool for the scan itself.
func New(submissions *persistence.SubmissionStore, events *persistence.EventLog, pool *workerpool.Pool, dispatchCfg dispatcher.Config, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		submissions: submissions,
		events:      events,
		pool:        pool,
		dispatchCfg: dispatchCfg,
		log:         log,
		claims:      make(map[types.SubmissionID]struct{}),
	}
}

// Run ticks until ctx is cancelled, spawning a Dispatcher (tracked through
// eg) for every submission this process successfully claims. It returns once
// ctx is done and every spawned Dispatcher has exited, so the caller's own
// errgroup.Wait() sees a clean shutdown boundary.
func (l *Loop) Run(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)

	interval := tickInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return eg.Wait()
		case <-ticker.C:
		}

		l.pool.Rescan()

		candidates, err := l.submissions.ListExpiredComputing(time.Now().Unix()-int64(quiescenceWindow.Seconds()), candidateLimit)
		if err != nil {
			l.log.Error("recovery: list expired submissions failed", "error", err)
			if interval != errorBackoff {
				interval = errorBackoff
				ticker.Reset(interval)
			}
			continue
		}
		if interval != tickInterval {
			interval = tickInterval
			ticker.Reset(interval)
		}

		for _, row := range candidates {
			l.claimAndSpawn(egCtx, eg, row)
		}
	}
}

func (l *Loop) claimAndSpawn(ctx context.Context, eg *errgroup.Group, row persistence.SubmissionRow) {
	l.mu.Lock()
	if _, tracked := l.claims[row.ID]; tracked {
		l.mu.Unlock()
		return
	}
	l.claims[row.ID] = struct{}{}
	l.mu.Unlock()

	newCheckAt := time.Now().Unix()
	if err := l.submissions.RenewLease(row.ID, row.CheckAt, newCheckAt, row.Step); err != nil {
		l.untrack(row.ID)
		if err != persistence.ErrLeaseLost {
			l.log.Error("recovery: renew lease failed", "submission_id", row.ID, "error", err)
		}
		return
	}

	var sub types.Submission
	if err := decodeSubmission(row.ContextBlob, &sub); err != nil {
		l.log.Error("recovery: decode submission config failed", "submission_id", row.ID, "error", err)
		l.untrack(row.ID)
		return
	}
	sub.ID = row.ID
	sub.Owner = row.Owner
	sub.CheckAt = newCheckAt
	sub.Step = row.Step

	graph, err := dispatcher.Rebuild(&sub, l.events)
	if err != nil {
		l.log.Error("recovery: rebuild task graph failed", "submission_id", row.ID, "error", err)
		l.untrack(row.ID)
		return
	}

	d := dispatcher.New(l.dispatchCfg, &sub, graph)
	if l.dispatchCfg.Metrics != nil {
		l.dispatchCfg.Metrics.RecordRecoveryClaim()
	}
	l.log.Info("recovery: claimed submission", "submission_id", row.ID, "step", graph.Step)

	eg.Go(func() error {
		defer l.untrack(row.ID)
		if err := d.Run(ctx); err != nil {
			l.log.Error("recovery: dispatcher exited with error", "submission_id", row.ID, "error", err)
		}
		return nil
	})
}

func (l *Loop) untrack(id types.SubmissionID) {
	l.mu.Lock()
	delete(l.claims, id)
	l.mu.Unlock()
}

// Package dispatcher runs one goroutine per submission (component C of
// SPEC_FULL.md §4.4), advancing its task graph and feeding reserved workers
// until the submission reaches a terminal step or its lease is lost to
// another coordinator. Grounded on internal/controller's dispatchLoop/
// resultLoop split: a tick-driven dispatch side and a channel-driven result
// side, generalized from a flat job queue to the Split/Prove/Agg/Snark
// staged graph and from a local worker pool to remote gRPC reservations.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zkstage/coordinator/internal/metrics"
	"github.com/zkstage/coordinator/internal/objectstore"
	"github.com/zkstage/coordinator/internal/persistence"
	"github.com/zkstage/coordinator/internal/taskgraph"
	"github.com/zkstage/coordinator/internal/workerpool"
	"github.com/zkstage/coordinator/pkg/types"
)

// leaseRenewInterval is how often a live Dispatcher refreshes check_at even
// when the step hasn't changed, per §5 "every 10 s".
const leaseRenewInterval = 10 * time.Second

// tickInterval is the Dispatcher's polling cadence for re-evaluating the
// step machine and requesting new reservations, per §4.3/§4.4's "200 ms tick".
const tickInterval = 200 * time.Millisecond

// Config bundles the shared, process-wide dependencies a Dispatcher needs.
// One Config is shared by every submission's Dispatcher.
type Config struct {
	Submissions *persistence.SubmissionStore
	Events      *persistence.EventLog
	Pool        *workerpool.Pool
	Objects     objectstore.Store
	TaskTimeout time.Duration // default 7200s

	Metrics *metrics.Collector // optional; nil disables metrics recording
	Log     *slog.Logger
}

// Dispatcher owns exactly one submission's lifecycle from whatever step it
// starts at through to End.
type Dispatcher struct {
	cfg Config
	sub *types.Submission
	g   *types.TaskGraph

	checkAt int64 // the lease timestamp this Dispatcher last successfully wrote

	inbound chan taskResult
	group   *errgroup.Group
	log     *slog.Logger
}

// New constructs a Dispatcher for a submission whose row has already been
// read. graph is the task graph reconstructed from the event log (see
// Rebuild) — nil starts a fresh one from sub's Step == InSplit.
func New(cfg Config, sub *types.Submission, graph *types.TaskGraph) *Dispatcher {
	if cfg.TaskTimeout == 0 {
		cfg.TaskTimeout = 7200 * time.Second
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	if graph == nil {
		graph = types.NewTaskGraph(sub.ID)
	}
	return &Dispatcher{
		cfg:     cfg,
		sub:     sub,
		g:       graph,
		checkAt: sub.CheckAt,
		inbound: make(chan taskResult, 128),
		log:     log.With("submission_id", sub.ID),
	}
}

// Run drives the submission to completion (or until ctx is cancelled, or
// until this Dispatcher loses its lease to another coordinator). It never
// returns an error for a submission-level failure — those are recorded as
// a terminal submission status instead; the returned error is reserved for
// infrastructure failures that leave the submission's true state unknown.
func (d *Dispatcher) Run(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)
	d.group = eg

	defer func() {
		// Drain every spawned worker-call goroutine before this Dispatcher's
		// run loop returns, so neither a finished submission, a lost lease
		// nor ctx cancellation leaks a call past the submission's own
		// lifetime (§4.4).
		_ = eg.Wait()
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	lastRenew := time.Now()
	renewedStep := d.sub.Step

	for {
		step := taskgraph.Advance(d.g, d.sub.ExecuteOnly, d.sub.CompositeProof, d.sub.TargetStep)
		d.sub.Step = step

		if step == types.StepEnd {
			return d.finish(ctx)
		}

		d.dispatchReady(egCtx)

		select {
		case <-ctx.Done():
			return nil
		case res := <-d.inbound:
			d.absorb(res)
		case <-ticker.C:
		}

		if time.Since(lastRenew) >= leaseRenewInterval || step != renewedStep {
			if err := d.renewLease(step); err != nil {
				if err == persistence.ErrLeaseLost {
					d.log.Info("lease lost, conceding submission to another coordinator")
					return nil
				}
				d.log.Error("lease renewal failed, continuing in-memory", "error", err)
			} else {
				lastRenew = time.Now()
				renewedStep = step
			}
		}
	}
}

func (d *Dispatcher) renewLease(step types.Step) error {
	newCheckAt := time.Now().Unix()
	if err := d.cfg.Submissions.RenewLease(d.sub.ID, d.checkAt, newCheckAt, step); err != nil {
		return err
	}
	d.checkAt = newCheckAt
	return nil
}

// finish writes the terminal submission status and result bytes, per §4.4
// step 6 and §9's target_step design note.
func (d *Dispatcher) finish(ctx context.Context) error {
	if d.g.Terminal {
		status := stageErrorStatus(d.g.ErrStage)
		d.recordFinished(status)
		return d.cfg.Submissions.UpdateSubmissionStatus(d.sub.ID, status, nil)
	}

	result, err := d.readResultArtifact()
	if err != nil {
		d.log.Error("failed to read final artifact", "error", err)
		d.recordFinished(types.StatusInternalError)
		return d.cfg.Submissions.UpdateSubmissionStatus(d.sub.ID, types.StatusInternalError, nil)
	}
	d.recordFinished(types.StatusSuccess)
	return d.cfg.Submissions.UpdateSubmissionStatus(d.sub.ID, types.StatusSuccess, result)
}

func (d *Dispatcher) recordFinished(status types.SubmissionStatus) {
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.RecordSubmissionFinished(status)
	}
}

// readResultArtifact implements §9's resolution: only a Snark target reads
// the wrapped proof off disk into submissions.result; Prove/Aggregate
// targets (and composite_proof/execute_only short-circuits) leave result
// empty. GetStatus reads prove/receipt/0 for a composite_proof submission
// only; it reads no intermediate artifact for a Prove or Aggregate target.
func (d *Dispatcher) readResultArtifact() (json.RawMessage, error) {
	var path string
	switch {
	case d.sub.ExecuteOnly || d.sub.TargetStep == types.TargetSplit:
		return nil, nil
	case d.sub.CompositeProof || d.sub.TargetStep == types.TargetProve:
		return nil, nil
	case d.sub.TargetStep == types.TargetAggregate:
		return nil, nil
	default:
		path = fmt.Sprintf("%s/snark/proof_with_public_inputs.json", d.sub.BaseDir())
	}
	data, err := d.cfg.Objects.Read(path)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func stageErrorStatus(stage string) types.SubmissionStatus {
	switch stage {
	case "Split":
		return types.StatusSplitError
	case "Prove":
		return types.StatusProveError
	case "Agg":
		return types.StatusAggError
	case "Snark":
		return types.StatusSnarkError
	default:
		return types.StatusInternalError
	}
}

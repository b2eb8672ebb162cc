package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/zkstage/coordinator/internal/taskgraph"
	"github.com/zkstage/coordinator/internal/workerpool"
	"github.com/zkstage/coordinator/pkg/types"
)

// taskResult is what a spawned worker-call goroutine hands back over the
// inbound channel; absorb() maps it onto the corresponding taskgraph.AbsorbXxx.
type taskResult struct {
	kind       types.TaskKind
	taskID     types.TaskID
	endpoint   string
	failed     bool
	content    string // receipt, proof path, or (for Split) unused
	segments   int
	totalSteps int
}

// dispatchReady requests as many reservations as the current step has
// ready tasks for, spawning one detached worker call per reservation.
// Reservation failures (no idle worker, probe failure) simply stop this
// round early — the next 200 ms tick tries again, per §4.4 step 2.
func (d *Dispatcher) dispatchReady(ctx context.Context) {
	switch d.g.Step {
	case types.StepInSplit:
		d.spawnSplit(ctx)
	case types.StepInProve:
		for d.spawnProve(ctx) {
		}
	case types.StepInAgg:
		for d.spawnAgg(ctx) {
		}
	case types.StepInSnark:
		d.spawnSnark(ctx)
	}
}

// reserve wraps Pool.Reserve with the reservation-latency histogram (§2.2).
func (d *Dispatcher) reserve(ctx context.Context, kind types.WorkerKind) (*workerpool.Lease, error) {
	start := time.Now()
	lease, err := d.cfg.Pool.Reserve(ctx, kind)
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.ObserveReservationLatency(time.Since(start).Seconds())
	}
	return lease, err
}

func (d *Dispatcher) spawnSplit(ctx context.Context) bool {
	t := taskgraph.NextSplit(d.g)
	if t == nil {
		return false
	}
	lease, err := d.reserve(ctx, types.WorkerGeneral)
	if err != nil {
		// Reservation failure is worker scarcity, not a real attempt at the
		// task: undo NextSplit's Attempts++ so the retry budget is only
		// spent on RPCs that actually ran.
		t.State = types.TaskUnprocessed
		t.Attempts--
		return false
	}
	d.group.Go(func() (err error) {
		defer lease.Release()
		defer d.recoverPanic(&err, types.KindSplit, t.ID)

		callCtx, cancel := context.WithTimeout(ctx, d.cfg.TaskTimeout)
		defer cancel()

		args := workerpool.SplitArgs{
			SubmissionID:     d.sub.ID,
			ElfPath:          d.sub.ElfPath,
			BlockDataPaths:   d.sub.BlockDataPaths,
			PublicInputPath:  d.sub.PublicInputPath,
			PrivateInputPath: d.sub.PrivateInputPath,
			SegSize:          d.sub.SegSize,
		}
		if d.sub.BlockNo != nil {
			args.BlockNo = *d.sub.BlockNo
		}
		segments, steps, rpcErr := lease.Backend.Split(callCtx, args)
		d.sendResult(taskResult{kind: types.KindSplit, taskID: t.ID, endpoint: lease.Endpoint, failed: rpcErr != nil, segments: segments, totalSteps: int(steps)})
		return nil
	})
	return true
}

func (d *Dispatcher) spawnProve(ctx context.Context) bool {
	t := taskgraph.NextProve(d.g)
	if t == nil {
		return false
	}
	lease, err := d.reserve(ctx, types.WorkerGeneral)
	if err != nil {
		// See spawnSplit: a reservation failure isn't a dispatched attempt.
		t.State = types.TaskUnprocessed
		t.Attempts--
		return false
	}
	segmentPath := fmt.Sprintf("%s/segment/%d", d.sub.BaseDir(), t.Index)
	d.group.Go(func() (err error) {
		defer lease.Release()
		defer d.recoverPanic(&err, types.KindProve, t.ID)

		callCtx, cancel := context.WithTimeout(ctx, d.cfg.TaskTimeout)
		defer cancel()

		receipt, rpcErr := lease.Backend.Prove(callCtx, d.sub.ID, t.ID, t.Index, segmentPath)
		d.sendResult(taskResult{kind: types.KindProve, taskID: t.ID, endpoint: lease.Endpoint, failed: rpcErr != nil, content: receipt})
		return nil
	})
	return true
}

func (d *Dispatcher) spawnAgg(ctx context.Context) bool {
	t := taskgraph.NextAgg(d.g)
	if t == nil {
		return false
	}
	lease, err := d.reserve(ctx, types.WorkerGeneral)
	if err != nil {
		// See spawnSplit: a reservation failure isn't a dispatched attempt.
		t.State = types.TaskUnprocessed
		t.Attempts--
		return false
	}
	left := workerpool.AggInput{Receipt: t.Left.Receipt, IsFirstShard: t.IsFirstShard, IsLeafLayer: t.IsLeafLayer}
	var right workerpool.AggInput
	hasRight := t.Right != nil
	if hasRight {
		right = workerpool.AggInput{Receipt: t.Right.Receipt, IsFirstShard: t.IsFirstShard, IsLeafLayer: t.IsLeafLayer}
	}
	d.group.Go(func() (err error) {
		defer lease.Release()
		defer d.recoverPanic(&err, types.KindAgg, t.ID)

		callCtx, cancel := context.WithTimeout(ctx, d.cfg.TaskTimeout)
		defer cancel()

		receipt, rpcErr := lease.Backend.Aggregate(callCtx, d.sub.ID, t.ID, left, right, hasRight)
		d.sendResult(taskResult{kind: types.KindAgg, taskID: t.ID, endpoint: lease.Endpoint, failed: rpcErr != nil, content: receipt})
		return nil
	})
	return true
}

func (d *Dispatcher) spawnSnark(ctx context.Context) bool {
	t := taskgraph.NextSnark(d.g)
	if t == nil {
		return false
	}
	lease, err := d.reserve(ctx, types.WorkerSnark)
	if err != nil {
		// See spawnSplit: a reservation failure isn't a dispatched attempt.
		t.State = types.TaskUnprocessed
		t.Attempts--
		return false
	}
	d.group.Go(func() (err error) {
		defer lease.Release()
		defer d.recoverPanic(&err, types.KindSnark, t.ID)

		callCtx, cancel := context.WithTimeout(ctx, d.cfg.TaskTimeout)
		defer cancel()

		proofPath, rpcErr := lease.Backend.Snark(callCtx, d.sub.ID, t.ID, t.FinalAggReceipt)
		d.sendResult(taskResult{kind: types.KindSnark, taskID: t.ID, endpoint: lease.Endpoint, failed: rpcErr != nil, content: proofPath})
		return nil
	})
	return true
}

// sendResult is best-effort: if the Dispatcher has already exited (inbound
// no longer drained), the goroutine simply drops the result rather than
// blocking forever, since the submission's lease has already moved on.
func (d *Dispatcher) sendResult(res taskResult) {
	select {
	case d.inbound <- res:
	case <-time.After(d.cfg.TaskTimeout):
	}
}

// recoverPanic converts a panic inside a spawned worker call into a Failed
// task absorption instead of crashing the coordinator process, per §7's
// "programmer-invariant violations" path.
func (d *Dispatcher) recoverPanic(errOut *error, kind types.TaskKind, id types.TaskID) {
	if r := recover(); r != nil {
		d.log.Error("recovered panic in worker call", "kind", kind, "task_id", id, "panic", r)
		d.sendResult(taskResult{kind: kind, taskID: id, failed: true})
	}
}

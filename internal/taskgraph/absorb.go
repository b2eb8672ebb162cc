package taskgraph

import (
	"time"

	"github.com/zkstage/coordinator/pkg/types"
)

// retryCap is the number of attempts (the original try plus one retry)
// after which an InternalError on a task becomes terminal for the whole
// submission (§7, open question "exact retry cap" resolved to "retry
// once" in SPEC_FULL.md §9).
const retryCap = 2

// SetProcessing flips the task identified by id to Processing regardless of
// dispatch order, for use only by event-log replay during recovery (§4.6):
// live dispatch always goes through the Next* accessors instead, since
// those also choose *which* task to run next; replay already knows which
// task an event is about and only needs the state-machine precondition
// AbsorbXxx requires ("must be Processing to accept a result").
func SetProcessing(g *types.TaskGraph, kind types.TaskKind, id types.TaskID) {
	switch kind {
	case types.KindSplit:
		if g.Split != nil && g.Split.ID == id {
			g.Split.State = types.TaskProcessing
		}
	case types.KindProve:
		for _, t := range g.Prove {
			if t.ID == id {
				t.State = types.TaskProcessing
				return
			}
		}
	case types.KindAgg:
		for _, t := range g.Agg {
			if t.ID == id {
				t.State = types.TaskProcessing
				return
			}
		}
	case types.KindSnark:
		if g.Snark != nil && g.Snark.ID == id {
			g.Snark.State = types.TaskProcessing
		}
	}
}

// AbsorbSplit records the outcome of a Split RPC. On success it stores the
// reported segment/step counts; BuildProveTasks must be called separately
// once the caller has observed Success (the Dispatcher does this as part
// of advancing the step machine).
func AbsorbSplit(g *types.TaskGraph, totalSegments, totalSteps int, workerInfo string, failed bool) {
	t := g.Split
	if t == nil || t.State != types.TaskProcessing {
		return
	}
	t.Trace.FinishedAt = time.Now().Unix()
	t.Trace.NodeInfo = workerInfo
	if failed {
		t.State = types.TaskFailed
		setErr(g, "Split", "split task failed", t.Attempts >= retryCap)
		return
	}
	t.TotalSegments = totalSegments
	t.TotalSteps = totalSteps
	t.State = types.TaskSuccess
}

// AbsorbProve records the outcome of a Prove RPC for the task with id.
func AbsorbProve(g *types.TaskGraph, id types.TaskID, receipt string, workerInfo string, failed bool) {
	for _, t := range g.Prove {
		if t.ID != id || t.State != types.TaskProcessing {
			continue
		}
		t.Trace.FinishedAt = time.Now().Unix()
		t.Trace.NodeInfo = workerInfo
		if failed {
			t.State = types.TaskFailed
			setErr(g, "Prove", "prove task failed", t.Attempts >= retryCap)
			return
		}
		t.OutputReceipt = receipt
		t.State = types.TaskSuccess
		return
	}
}

// AbsorbAgg records the outcome of an Aggregate RPC for the task with id.
// On success, it clears this task's id from the child pointer of any
// sibling AggTask that was waiting on it, which is what makes that
// sibling eligible for NextAgg on a later call.
func AbsorbAgg(g *types.TaskGraph, id types.TaskID, receipt string, workerInfo string, failed bool) {
	for _, t := range g.Agg {
		if t.ID != id || t.State != types.TaskProcessing {
			continue
		}
		t.Trace.FinishedAt = time.Now().Unix()
		t.Trace.NodeInfo = workerInfo
		if failed {
			t.State = types.TaskFailed
			setErr(g, "Agg", "aggregate task failed", t.Attempts >= retryCap)
			return
		}
		t.OutputReceipt = receipt
		t.State = types.TaskSuccess
		ClearChild(g, id, receipt)
		return
	}
}

// ClearChild unsets the AggTaskID slot of whichever sibling AggTask listed
// childID as a Left or Right input, copying in the now-known receipt.
// Clearing a slot on a passthrough or already-processed AggTask is a no-op
// on that task's own State; clearing on an Unprocessed task only ever
// touches the one matching slot, leaving the other untouched (§8 property
// 2). At most one sibling references any given childID, since a task id is
// consumed by exactly one parent in the aggregation tree.
func ClearChild(g *types.TaskGraph, childID types.TaskID, receipt string) {
	for _, t := range g.Agg {
		if t.Left.AggTaskID == childID {
			t.Left.AggTaskID = ""
			t.Left.Receipt = receipt
			return
		}
		if t.Right != nil && t.Right.AggTaskID == childID {
			t.Right.AggTaskID = ""
			t.Right.Receipt = receipt
			return
		}
	}
}

// AbsorbSnark records the outcome of a Snark RPC.
func AbsorbSnark(g *types.TaskGraph, id types.TaskID, proofPath string, workerInfo string, failed bool) {
	t := g.Snark
	if t == nil || t.ID != id || t.State != types.TaskProcessing {
		return
	}
	t.Trace.FinishedAt = time.Now().Unix()
	t.Trace.NodeInfo = workerInfo
	if failed {
		t.State = types.TaskFailed
		setErr(g, "Snark", "snark task failed", t.Attempts >= retryCap)
		return
	}
	t.ProofPath = proofPath
	t.State = types.TaskSuccess
}

// setErr records the first error a graph encounters; the first error that
// exhausts a task's retry budget replaces it, so the recorded stage is the
// one that made the submission fail. terminal marks that the failing task
// has exhausted its retry budget, which is what Advance checks to stop
// progressing the step machine and errors the submission.
func setErr(g *types.TaskGraph, stage, msg string, terminal bool) {
	if g.ErrStage == "" || (terminal && !g.Terminal) {
		g.ErrStage = stage
		g.ErrMessage = msg
	}
	if terminal {
		g.Terminal = true
	}
}

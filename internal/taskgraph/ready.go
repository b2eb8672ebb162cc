package taskgraph

import (
	"time"

	"github.com/zkstage/coordinator/pkg/types"
)

// NextSplit returns the SplitTask if it is ready to be dispatched,
// transitioning it to Processing and stamping its start time. Returns nil
// if nothing is ready (already Processing or Success).
func NextSplit(g *types.TaskGraph) *types.SplitTask {
	t := g.Split
	if t == nil || (t.State != types.TaskUnprocessed && t.State != types.TaskFailed) {
		return nil
	}
	t.State = types.TaskProcessing
	t.Trace.StartedAt = time.Now().Unix()
	t.Attempts++
	return t
}

// NextProve returns the first Unprocessed|Failed ProveTask, or nil.
func NextProve(g *types.TaskGraph) *types.ProveTask {
	for _, t := range g.Prove {
		if t.State == types.TaskUnprocessed || t.State == types.TaskFailed {
			t.State = types.TaskProcessing
			t.Trace.StartedAt = time.Now().Unix()
			t.Attempts++
			return t
		}
	}
	return nil
}

// ready reports whether an AggInput's source has already resolved: either
// it was never an AggTask reference at all (child was a ProveTask, whose
// receipt is copied in at build time), or its AggTaskID slot has been
// cleared by ClearChild once that AggTask reached Success.
func ready(in types.AggInput) bool { return in.AggTaskID == "" }

// NextAgg returns the first Unprocessed|Failed AggTask whose children have
// both resolved (invariant 7), or nil if none qualify. By the time an
// AggTask becomes eligible, its AggInput.Receipt fields are already
// populated — either at build time (ProveTask children) or by ClearChild
// (AggTask children) — so no late-binding copy is needed here.
func NextAgg(g *types.TaskGraph) *types.AggTask {
	for _, t := range g.Agg {
		if t.State != types.TaskUnprocessed && t.State != types.TaskFailed {
			continue
		}
		if !ready(t.Left) {
			continue
		}
		if t.Right != nil && !ready(*t.Right) {
			continue
		}
		t.State = types.TaskProcessing
		t.Trace.StartedAt = time.Now().Unix()
		t.Attempts++
		return t
	}
	return nil
}

// NextSnark returns the SnarkTask if ready, binding its input to the
// output of the is_final AggTask.
func NextSnark(g *types.TaskGraph) *types.SnarkTask {
	t := g.Snark
	if t == nil || (t.State != types.TaskUnprocessed && t.State != types.TaskFailed) {
		return nil
	}
	for _, a := range g.Agg {
		if a.IsFinal {
			t.FinalAggReceipt = a.OutputReceipt
			break
		}
	}
	t.State = types.TaskProcessing
	t.Trace.StartedAt = time.Now().Unix()
	t.Attempts++
	return t
}

// Package taskgraph implements the pure stage-machine and aggregation-tree
// data structure for a single submission (component B of SPEC_FULL.md).
// Nothing here performs I/O; the Dispatcher (internal/dispatcher) is the
// only caller, and owns the graph exclusively, so no locking is needed.
package taskgraph

import (
	"fmt"
	"time"

	"github.com/zkstage/coordinator/pkg/types"
)

// node is an internal bookkeeping value used while constructing the
// aggregation tree: it is either a reference to a ProveTask or to an
// already-materialized AggTask, never both.
type node struct {
	input types.AggInput
	isAgg bool
}

// BuildProveTasks materializes one ProveTask per segment once Split has
// reported totalSegments, per §4.3: "On entering InProve, enumerate segment
// artifacts produced by Split". Fewer than 2 segments is a build-time error
// (the submission is errored by the caller).
func BuildProveTasks(g *types.TaskGraph, totalSegments int) error {
	if totalSegments < 2 {
		return fmt.Errorf("taskgraph: seg_size too large, split produced %d segment(s)", totalSegments)
	}
	g.Prove = make([]*types.ProveTask, totalSegments)
	for i := 0; i < totalSegments; i++ {
		g.Prove[i] = &types.ProveTask{
			ID:    types.ProveTaskID(g.SubmissionID, i),
			State: types.TaskUnprocessed,
			Index: i,
		}
	}
	return nil
}

// BuildAggTasks constructs the binary aggregation tree over g.Prove, per
// §4.3. It must only be called once every ProveTask has reached Success
// (invariant 4), so every leaf reference already carries a resolved
// OutputReceipt.
//
// Algorithm: pair the current layer of nodes left-to-right into new,
// Unprocessed AggTasks. A trailing unpaired node is carried into the next
// round unchanged if it is already an AggTask (no new entry — nothing to
// do, the value is simply relabeled as input to a later round), or
// promoted exactly once into a pre-resolved ("passthrough") AggTask if it
// is still a raw ProveTask reference. This one-time-promotion rule is what
// keeps the total AggTask count at n-1 real combines plus at most one
// passthrough promotion, i.e. never more than n.
func BuildAggTasks(g *types.TaskGraph) []*types.AggTask {
	layer := make([]node, len(g.Prove))
	for i, pt := range g.Prove {
		layer[i] = node{input: types.AggInput{ProveTaskID: pt.ID, Receipt: pt.OutputReceipt}}
	}

	var created []*types.AggTask
	aggIndex := 0
	isLeafLayer := true

	for len(layer) > 1 {
		var next []node
		i := 0
		for i+1 < len(layer) {
			left, right := layer[i], layer[i+1]
			agg := &types.AggTask{
				ID:           types.AggTaskID(g.SubmissionID, aggIndex),
				AggIndex:     aggIndex,
				State:        types.TaskUnprocessed,
				Left:         left.input,
				Right:        &right.input,
				IsLeafLayer:  isLeafLayer,
				IsFirstShard: isLeafLayer && left.input.ProveTaskID == types.ProveTaskID(g.SubmissionID, 0),
			}
			created = append(created, agg)
			next = append(next, node{input: types.AggInput{AggTaskID: agg.ID}, isAgg: true})
			aggIndex++
			i += 2
		}

		if i < len(layer) {
			tail := layer[i]
			if tail.isAgg {
				// Already an AggTask from an earlier round: no new entry,
				// just carry it forward to be paired in a later round.
				next = append(next, tail)
			} else {
				// Raw ProveTask reference left unpaired: one-time
				// promotion into a pre-resolved AggTask.
				passthrough := &types.AggTask{
					ID:            types.AggTaskID(g.SubmissionID, aggIndex),
					AggIndex:      aggIndex,
					State:         types.TaskSuccess,
					Left:          tail.input,
					IsLeafLayer:   true,
					OutputReceipt: tail.input.Receipt,
					Trace:         types.Trace{StartedAt: nowUnix(), FinishedAt: nowUnix()},
				}
				created = append(created, passthrough)
				// Already resolved (Success the instant it's created), so
				// unlike a real combine's output, its downstream reference
				// carries no pending AggTaskID — it is immediately ready.
				next = append(next, node{input: types.AggInput{Receipt: passthrough.OutputReceipt}, isAgg: true})
				aggIndex++
			}
		}

		layer = next
		isLeafLayer = false
	}

	if len(created) > 0 {
		created[len(created)-1].IsFinal = true
	}

	g.Agg = created
	return created
}

func nowUnix() int64 { return time.Now().Unix() }

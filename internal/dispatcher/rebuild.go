package dispatcher

import (
	"encoding/json"
	"fmt"

	"github.com/zkstage/coordinator/internal/persistence"
	"github.com/zkstage/coordinator/internal/taskgraph"
	"github.com/zkstage/coordinator/pkg/types"
)

// Rebuild reconstructs a submission's TaskGraph by replaying its task_events
// audit trail through the same Next*/AbsorbXxx/Advance calls a live
// Dispatcher uses, so the recovery loop (§4.6) never needs a second copy of
// the graph-mutation logic. Events are expected in append order (Replay's
// contract); replaying them in any other order could absorb a result before
// its task has been dispatched, which SetProcessing would silently no-op.
func Rebuild(sub *types.Submission, events *persistence.EventLog) (*types.TaskGraph, error) {
	g := types.NewTaskGraph(sub.ID)

	err := events.Replay(func(e persistence.TaskEvent) error {
		if e.SubmissionID != sub.ID {
			return nil
		}
		taskgraph.SetProcessing(g, e.Kind, e.TaskID)
		failed := e.State == types.TaskFailed

		switch e.Kind {
		case types.KindSplit:
			var payload struct {
				TotalSegments int `json:"total_segments"`
				TotalSteps    int `json:"total_steps"`
			}
			if !failed {
				if err := json.Unmarshal([]byte(e.ContentBlob), &payload); err != nil {
					return fmt.Errorf("dispatcher: decode split event payload: %w", err)
				}
			}
			taskgraph.AbsorbSplit(g, payload.TotalSegments, payload.TotalSteps, e.WorkerID, failed)
		case types.KindProve:
			taskgraph.AbsorbProve(g, e.TaskID, e.ContentBlob, e.WorkerID, failed)
		case types.KindAgg:
			taskgraph.AbsorbAgg(g, e.TaskID, e.ContentBlob, e.WorkerID, failed)
		case types.KindSnark:
			taskgraph.AbsorbSnark(g, e.TaskID, e.ContentBlob, e.WorkerID, failed)
		}

		taskgraph.Advance(g, sub.ExecuteOnly, sub.CompositeProof, sub.TargetStep)
		return nil
	})
	if err != nil {
		return nil, err
	}

	taskgraph.Advance(g, sub.ExecuteOnly, sub.CompositeProof, sub.TargetStep)
	return g, nil
}

package dispatcher

import (
	"encoding/json"
	"fmt"

	"github.com/zkstage/coordinator/internal/taskgraph"
	"github.com/zkstage/coordinator/pkg/types"
)

// absorb applies one finished worker call to the task graph and appends the
// corresponding audit record, per §4.3 "Result absorption" and §4.5's
// task_events table.
func (d *Dispatcher) absorb(res taskResult) {
	var timeCost float64

	switch res.kind {
	case types.KindSplit:
		taskgraph.AbsorbSplit(d.g, res.segments, res.totalSteps, res.endpoint, res.failed)
		if d.g.Split != nil {
			timeCost = d.g.Split.Trace.Duration().Seconds()
		}
		blob, _ := json.Marshal(struct {
			TotalSegments int `json:"total_segments"`
			TotalSteps    int `json:"total_steps"`
		}{res.segments, res.totalSteps})
		d.appendEvent(types.KindSplit, res.taskID, res.failed, res.endpoint, timeCost, string(blob))

	case types.KindProve:
		taskgraph.AbsorbProve(d.g, res.taskID, res.content, res.endpoint, res.failed)
		timeCost = proveTimeCost(d.g, res.taskID)
		d.appendEvent(types.KindProve, res.taskID, res.failed, res.endpoint, timeCost, res.content)

	case types.KindAgg:
		taskgraph.AbsorbAgg(d.g, res.taskID, res.content, res.endpoint, res.failed)
		timeCost = aggTimeCost(d.g, res.taskID)
		d.appendEvent(types.KindAgg, res.taskID, res.failed, res.endpoint, timeCost, res.content)

	case types.KindSnark:
		taskgraph.AbsorbSnark(d.g, res.taskID, res.content, res.endpoint, res.failed)
		if d.g.Snark != nil {
			timeCost = d.g.Snark.Trace.Duration().Seconds()
		}
		d.appendEvent(types.KindSnark, res.taskID, res.failed, res.endpoint, timeCost, res.content)
	}
}

func (d *Dispatcher) appendEvent(kind types.TaskKind, taskID types.TaskID, failed bool, workerID string, timeCost float64, content string) {
	state := types.TaskSuccess
	if failed {
		state = types.TaskFailed
	}
	if err := d.cfg.Events.Append(kind, d.sub.ID, taskID, state, workerID, timeCost, content); err != nil {
		d.log.Error("failed to append task event", "error", fmt.Errorf("dispatcher: %w", err))
	}
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.RecordTaskEvent(kind, state)
	}
}

func proveTimeCost(g *types.TaskGraph, id types.TaskID) float64 {
	for _, t := range g.Prove {
		if t.ID == id {
			return t.Trace.Duration().Seconds()
		}
	}
	return 0
}

func aggTimeCost(g *types.TaskGraph, id types.TaskID) float64 {
	for _, t := range g.Agg {
		if t.ID == id {
			return t.Trace.Duration().Seconds()
		}
	}
	return 0
}

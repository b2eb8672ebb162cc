// Package types defines the domain model shared across the stage engine:
// submissions, the per-submission task graph, and the task-event audit
// records written for every state transition.
package types

import (
	"strconv"
	"time"
)

// SubmissionID uniquely identifies one client request.
type SubmissionID string

// TaskID uniquely identifies one task within a submission's graph.
// Ids are deterministic (see Split/Prove/Agg/SnarkTaskID helpers below)
// so recovery reconstructs the same ids from context_blob alone.
type TaskID string

// SubmissionStatus is the terminal-or-in-progress state of a submission row.
type SubmissionStatus string

const (
	StatusPending       SubmissionStatus = "Pending"
	StatusComputing     SubmissionStatus = "Computing"
	StatusSuccess       SubmissionStatus = "Success"
	StatusSplitError    SubmissionStatus = "SplitError"
	StatusProveError    SubmissionStatus = "ProveError"
	StatusAggError      SubmissionStatus = "AggError"
	StatusSnarkError    SubmissionStatus = "SnarkError"
	StatusInvalidParam  SubmissionStatus = "InvalidParameter"
	StatusInternalError SubmissionStatus = "InternalError"
)

// Step is the current stage of a submission's task graph.
type Step int

const (
	StepInit Step = iota
	StepInSplit
	StepInProve
	StepInAgg
	StepInSnark
	StepEnd
)

func (s Step) String() string {
	switch s {
	case StepInit:
		return "Init"
	case StepInSplit:
		return "InSplit"
	case StepInProve:
		return "InProve"
	case StepInAgg:
		return "InAgg"
	case StepInSnark:
		return "InSnark"
	case StepEnd:
		return "End"
	default:
		return "Unknown"
	}
}

// TargetStep is the stage at which a submission's client asked it to stop.
type TargetStep string

const (
	TargetSplit     TargetStep = "Split"
	TargetProve     TargetStep = "Prove"
	TargetAggregate TargetStep = "Aggregate"
	TargetSnark     TargetStep = "Snark"
)

// TaskState is the lifecycle state of any single task (Split/Prove/Agg/Snark).
type TaskState int

const (
	TaskInitial TaskState = iota
	TaskUnprocessed
	TaskProcessing
	TaskSuccess
	TaskFailed
)

func (s TaskState) String() string {
	switch s {
	case TaskInitial:
		return "Initial"
	case TaskUnprocessed:
		return "Unprocessed"
	case TaskProcessing:
		return "Processing"
	case TaskSuccess:
		return "Success"
	case TaskFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// TaskKind distinguishes the four task kinds for the audit log and metrics.
type TaskKind string

const (
	KindSplit TaskKind = "Split"
	KindProve TaskKind = "Prove"
	KindAgg   TaskKind = "Agg"
	KindSnark TaskKind = "Snark"
)

// ProverKind selects which backend implementation (see internal/workerpool)
// a worker endpoint speaks: how it shapes the Aggregate RPC payload.
type ProverKind string

const (
	ProverV1 ProverKind = "v1"
	ProverV2 ProverKind = "v2"
)

// WorkerKind distinguishes the two worker sub-registries a Reserve call
// draws from: general-purpose workers run Split/Prove/Aggregate, Snark
// workers are reserved for the final wrapping step.
type WorkerKind string

const (
	WorkerGeneral WorkerKind = "General"
	WorkerSnark   WorkerKind = "Snark"
)

// Trace records the wall-clock lifecycle of a single task attempt.
type Trace struct {
	StartedAt  int64  `json:"started_at,omitempty"`  // Unix seconds
	FinishedAt int64  `json:"finished_at,omitempty"` // Unix seconds
	NodeInfo   string `json:"node_info,omitempty"`   // worker endpoint that ran it
}

// Duration returns the elapsed time between start and finish, or zero if
// either timestamp is unset.
func (t Trace) Duration() time.Duration {
	if t.StartedAt == 0 || t.FinishedAt == 0 || t.FinishedAt < t.StartedAt {
		return 0
	}
	return time.Duration(t.FinishedAt-t.StartedAt) * time.Second
}

// SplitTaskID derives the (deterministic) id of a submission's single split task.
func SplitTaskID(sub SubmissionID) TaskID { return TaskID("split:" + string(sub)) }

// ProveTaskID derives the id of the prove task for a given segment index.
func ProveTaskID(sub SubmissionID, index int) TaskID {
	return TaskID("prove:" + string(sub) + ":" + strconv.Itoa(index))
}

// AggTaskID derives the id of the agg task at a given assignment index.
func AggTaskID(sub SubmissionID, aggIndex int) TaskID {
	return TaskID("agg:" + string(sub) + ":" + strconv.Itoa(aggIndex))
}

// SnarkTaskID derives the id of a submission's single snark task.
func SnarkTaskID(sub SubmissionID) TaskID { return TaskID("snark:" + string(sub)) }

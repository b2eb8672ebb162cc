package types

// SplitTask is the single entry point of a submission's task graph: it
// takes the submitted ELF/inputs and reports how many segments and total
// execution steps the program decomposes into.
type SplitTask struct {
	ID       TaskID    `json:"id"`
	State    TaskState `json:"state"`
	Trace    Trace     `json:"trace"`
	Attempts int       `json:"attempts,omitempty"`

	TotalSegments int `json:"total_segments"`
	TotalSteps    int `json:"total_steps"`
}

// ProveTask is the root-proof for a single segment.
type ProveTask struct {
	ID       TaskID    `json:"id"`
	State    TaskState `json:"state"`
	Trace    Trace     `json:"trace"`
	Attempts int       `json:"attempts,omitempty"`

	Index         int    `json:"index"`
	SegmentPath   string `json:"segment_path"`
	OutputReceipt string `json:"output_receipt,omitempty"`
}

// AggInput describes one child of an AggTask: either a ProveTask output or
// a child AggTask's output. The receipt of a ProveTask child is copied in
// when the tree is built; that of an AggTask child is copied in by
// taskgraph.ClearChild once the child succeeds.
type AggInput struct {
	ProveTaskID TaskID `json:"prove_task_id,omitempty"`
	AggTaskID   TaskID `json:"agg_task_id,omitempty"`
	Receipt     string `json:"receipt,omitempty"` // set at build time or by ClearChild
}

// Resolved reports whether this input's source task has produced output.
func (a AggInput) Resolved() bool { return a.Receipt != "" }

// AggTask proves that both of its children are valid, reducing two receipts
// (or one receipt, in the odd-tail "passthrough" case) into one.
type AggTask struct {
	ID       TaskID    `json:"id"`
	State    TaskState `json:"state"`
	Trace    Trace     `json:"trace"`
	Attempts int       `json:"attempts,omitempty"`

	AggIndex int `json:"agg_index"`

	Left  AggInput  `json:"left"`
	Right *AggInput `json:"right,omitempty"` // nil for a passthrough task

	IsFinal      bool `json:"is_final"`
	IsFirstShard bool `json:"is_first_shard"`
	IsLeafLayer  bool `json:"is_leaf_layer"`

	OutputReceipt string `json:"output_receipt,omitempty"`
}

// Passthrough reports whether this AggTask merely forwards a single child's
// output (the odd-tail case of §4.3), rather than combining two receipts.
func (a *AggTask) Passthrough() bool { return a.Right == nil }

// SnarkTask wraps the final aggregation receipt into the externally
// verifiable proof.
type SnarkTask struct {
	ID       TaskID    `json:"id"`
	State    TaskState `json:"state"`
	Trace    Trace     `json:"trace"`
	Attempts int       `json:"attempts,omitempty"`

	FinalAggReceipt string `json:"final_agg_receipt,omitempty"`
	ProofPath       string `json:"proof_path,omitempty"`
}

// TaskGraph is the full in-memory state for one submission's pipeline,
// constructed from a Submission and mutated as tasks are dispatched and
// their results absorbed. It is not persisted itself: recovery rebuilds it
// by replaying task_events (dispatcher.Rebuild).
type TaskGraph struct {
	SubmissionID SubmissionID `json:"submission_id"`

	Split *SplitTask   `json:"split"`
	Prove []*ProveTask `json:"prove,omitempty"`
	Agg   []*AggTask   `json:"agg,omitempty"`
	Snark *SnarkTask   `json:"snark,omitempty"`

	Step       Step   `json:"step"`
	ErrStage   string `json:"err_stage,omitempty"`
	ErrMessage string `json:"err_message,omitempty"`
	Terminal   bool   `json:"terminal,omitempty"` // set once a task's retry budget is exhausted
}

// NewTaskGraph builds the initial graph for a freshly created submission:
// only the SplitTask exists; Prove/Agg/Snark are populated once Split
// succeeds (see internal/taskgraph).
func NewTaskGraph(sub SubmissionID) *TaskGraph {
	return &TaskGraph{
		SubmissionID: sub,
		Split: &SplitTask{
			ID:    SplitTaskID(sub),
			State: TaskUnprocessed,
		},
		Step: StepInSplit,
	}
}

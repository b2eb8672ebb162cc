// Package zkstagepb holds the wire types for the two RPC surfaces this
// coordinator speaks: ProverService (coordinator -> worker) and
// StageService (client -> coordinator). There is no .proto source in this
// tree; these types are hand-written in the shape protoc-gen-go would
// produce, since no protoc toolchain is available here.
package zkstagepb

// SplitRequest asks a worker to decompose an ELF + inputs into segments.
type SplitRequest struct {
	SubmissionId     string
	ElfPath          string
	BlockDataPaths   []string
	BlockNo          uint64
	PublicInputPath  string
	PrivateInputPath string
	SegSize          uint64
}

type SplitResponse struct {
	TotalSegments int32
	TotalSteps    int64
	Failed        bool
	ErrorMessage  string
}

// ProveRequest asks a worker to produce the root proof for one segment.
type ProveRequest struct {
	SubmissionId string
	TaskId       string
	Index        int32
	SegmentPath  string
}

type ProveResponse struct {
	OutputReceipt string
	Failed        bool
	ErrorMessage  string
}

// AggregateRequest asks a worker to combine two receipts into one. Right is
// unset (nil) for a passthrough combine — see ProverKind in package types
// for why proverV1Backend and proverV2Backend shape this differently.
type AggregateRequest struct {
	SubmissionId string
	TaskId       string
	Left         string
	Right        string // empty for a single-input combine
	IsFirstShard bool
	IsLeafLayer  bool
}

type AggregateResponse struct {
	OutputReceipt string
	Failed        bool
	ErrorMessage  string
}

// SnarkRequest asks a worker to wrap the final aggregation receipt into an
// externally verifiable SNARK proof.
type SnarkRequest struct {
	SubmissionId    string
	TaskId          string
	FinalAggReceipt string
}

type SnarkResponse struct {
	ProofPath    string
	Failed       bool
	ErrorMessage string
}

// PingRequest/PingResponse back the idle-tick liveness probe a pool uses to
// eject a worker that stopped answering (Rescan in internal/workerpool).
type PingRequest struct{}

type PingResponse struct {
	Busy bool
}

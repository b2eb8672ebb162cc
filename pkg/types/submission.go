package types

// Submission is the persisted configuration and status of one client
// request. It is serialized as the context_blob of its submissions row
// (internal/persistence) and deserialized from it to rebuild a TaskGraph.
type Submission struct {
	ID    SubmissionID `json:"id"`
	Owner string       `json:"owner"` // EIP55-style address, see internal/submission

	SegSize        uint64     `json:"seg_size"`
	ExecuteOnly    bool       `json:"execute_only"`
	CompositeProof bool       `json:"composite_proof"`
	TargetStep     TargetStep `json:"target_step"`
	ProverKind     ProverKind `json:"prover_kind"`

	ElfPath             string   `json:"elf_path"`
	BlockDataPaths      []string `json:"block_data_paths,omitempty"`
	BlockNo             *uint64  `json:"block_no,omitempty"`
	PublicInputPath     string   `json:"public_input_path,omitempty"`
	PrivateInputPath    string   `json:"private_input_path,omitempty"`
	ReceiptInputPaths   []string `json:"receipt_input_paths,omitempty"`
	PriorReceiptPaths   []string `json:"prior_receipt_paths,omitempty"`

	Status     SubmissionStatus `json:"status"`
	ErrMessage string           `json:"err_message,omitempty"`

	CheckAt int64 `json:"check_at"` // lease timestamp, Unix seconds
	Step    Step  `json:"step"`
}

// BaseDir is the per-submission artifact root under the configured base
// directory (see internal/objectstore and §6 of SPEC_FULL.md).
func (s *Submission) BaseDir() string { return "proof/" + string(s.ID) }

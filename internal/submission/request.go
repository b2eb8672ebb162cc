// Package submission implements the client-facing intake path of
// SPEC_FULL.md §4.7: seg_size validation, ECDSA owner recovery, whitelist
// enforcement, artifact persistence, and submissions-row creation.
// Grounded on stage_service.rs's generate_proof/get_status handlers, with
// the database access rewritten onto internal/persistence and the file
// writes rewritten onto internal/objectstore.
package submission

import "github.com/zkstage/coordinator/pkg/types"

// MinSegSize and MaxSegSize bound the accepted seg_size outside of
// composite-proof submissions (§4.7 "[MIN, MAX]"). composite_proof
// submissions skip the check entirely, since the segment boundary is
// already fixed by the supplied receipts.
const (
	MinSegSize uint64 = 1 << 16
	MaxSegSize uint64 = 1 << 21
)

// BlockFile is one named block-data file attached to a request.
type BlockFile struct {
	FileName    string
	FileContent []byte
}

// GenerateProofRequest mirrors the wire shape of §4.7's GenerateProof:
// every byte payload the client may attach, plus the fields needed to
// validate and route it.
type GenerateProofRequest struct {
	ProofID   types.SubmissionID
	Signature string

	SegSize        uint64
	BlockNo        *uint64
	ExecuteOnly    bool
	CompositeProof bool
	TargetStep     types.TargetStep
	ProverKind     types.ProverKind

	ElfData           []byte
	BlockData         []BlockFile
	PublicInputStream []byte
	PrivateInputStream []byte
	ReceiptInputs     [][]byte
	Receipts          [][]byte
}

// GenerateProofResponse mirrors §4.7's response shape.
type GenerateProofResponse struct {
	ProofID          types.SubmissionID
	Status           types.SubmissionStatus
	ErrorMessage     string
	SnarkProofURL    string
	StarkProofURL    string
	PublicValuesURL  string
}

// GetStatusRequest asks for the current state of a previously submitted
// proof_id.
type GetStatusRequest struct {
	ProofID types.SubmissionID
}

// GetStatusResponse mirrors §4.7's GetStatus reply: status/step plus the
// result artifact once the submission reaches Snark success.
type GetStatusResponse struct {
	ProofID               types.SubmissionID
	Status                types.SubmissionStatus
	Step                  types.Step
	TotalSteps            int64
	ProofWithPublicInputs []byte
	OutputStream          []byte
	Receipt               []byte
}

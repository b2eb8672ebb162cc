package submission

import (
	"encoding/json"
	"fmt"
	"path"

	"github.com/zkstage/coordinator/internal/persistence"
	"github.com/zkstage/coordinator/pkg/types"
)

// GetStatus reports a submission's current progress. Grounded on
// stage_service.rs's get_status handler: total_steps comes from the Split
// task's audit event, output_stream and (for a composite-proof submission)
// receipt are read directly off the object store once the submission
// reaches Success, and proof_with_public_inputs carries the Snark target's
// result blob — never populated for an execute_only or composite_proof
// submission, since those targets stop before a Snark task ever runs.
func (s *Service) GetStatus(req *GetStatusRequest) (*GetStatusResponse, error) {
	row, err := s.Submissions.GetSubmission(req.ProofID)
	if err == persistence.ErrSubmissionNotFound {
		return &GetStatusResponse{ProofID: req.ProofID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("submission: lookup: %w", err)
	}
	resp := &GetStatusResponse{ProofID: row.ID, Status: row.Status, Step: row.Step}

	if total, ok := s.totalSteps(row.ID); ok {
		resp.TotalSteps = total
	}

	if row.Status != types.StatusSuccess {
		return resp, nil
	}

	var sub types.Submission
	if err := json.Unmarshal(row.ContextBlob, &sub); err != nil {
		s.log.Warn("get_status: malformed context_blob", "proof_id", row.ID, "error", err)
		return resp, nil
	}

	base := sub.BaseDir()
	if data, err := s.Objects.Read(path.Join(base, "output_stream", "output_stream")); err == nil {
		resp.OutputStream = data
	}
	if sub.CompositeProof {
		if data, err := s.Objects.Read(path.Join(base, "prove", "receipt", "0")); err == nil {
			resp.Receipt = data
		}
	}
	if !sub.ExecuteOnly && !sub.CompositeProof && len(row.ResultBlob) > 0 {
		resp.ProofWithPublicInputs = []byte(row.ResultBlob)
	}
	return resp, nil
}

// totalSteps recovers the Split task's reported total_steps from its audit
// event, since it's never written back into the submissions row itself
// (§4.5's context_blob is the pre-Split request, not a live mirror of the
// task graph).
func (s *Service) totalSteps(id types.SubmissionID) (int64, bool) {
	if s.Events == nil {
		return 0, false
	}
	events, err := s.Events.FetchForSubmission(id, types.KindSplit)
	if err != nil || len(events) == 0 {
		return 0, false
	}
	var content struct {
		TotalSteps int64 `json:"total_steps"`
	}
	if err := json.Unmarshal([]byte(events[0].ContentBlob), &content); err != nil {
		return 0, false
	}
	return content.TotalSteps, true
}

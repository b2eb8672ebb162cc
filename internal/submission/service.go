package submission

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/zkstage/coordinator/internal/metrics"
	"github.com/zkstage/coordinator/internal/objectstore"
	"github.com/zkstage/coordinator/internal/persistence"
	"github.com/zkstage/coordinator/pkg/types"
)

// Service is the client-facing intake path: one GenerateProof call either
// rejects the request outright (InvalidParameter, no row written) or
// persists its artifacts and hands a fresh Computing row to the recovery
// loop (§4.7).
type Service struct {
	Submissions   *persistence.SubmissionStore
	Whitelist     *persistence.WhitelistStore
	Events        *persistence.EventLog
	Objects       objectstore.Store
	FileserverURL string
	Metrics       *metrics.Collector // optional

	log *slog.Logger
}

// New builds a Service. log may be nil, in which case slog.Default() is used.
func New(submissions *persistence.SubmissionStore, whitelist *persistence.WhitelistStore, events *persistence.EventLog, objects objectstore.Store, fileserverURL string, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{Submissions: submissions, Whitelist: whitelist, Events: events, Objects: objects, FileserverURL: fileserverURL, log: log}
}

func rejected(proofID types.SubmissionID, msg string) *GenerateProofResponse {
	return &GenerateProofResponse{ProofID: proofID, Status: types.StatusInvalidParam, ErrorMessage: msg}
}

// GenerateProof validates, authenticates, persists, and enqueues req. A
// resubmission of an already-known proof_id is a read of the existing row,
// not a second write (§8 property 5).
func (s *Service) GenerateProof(req *GenerateProofRequest) (*GenerateProofResponse, error) {
	if req.ProofID == "" {
		req.ProofID = types.SubmissionID(uuid.NewString())
	}

	if existing, err := s.Submissions.GetSubmission(req.ProofID); err == nil {
		return &GenerateProofResponse{ProofID: req.ProofID, Status: existing.Status}, nil
	} else if err != persistence.ErrSubmissionNotFound {
		return nil, fmt.Errorf("submission: lookup existing: %w", err)
	}

	if !req.CompositeProof && (req.SegSize < MinSegSize || req.SegSize > MaxSegSize) {
		msg := fmt.Sprintf("invalid seg_size support [%d-%d]", MinSegSize, MaxSegSize)
		s.log.Warn("generate_proof invalid seg_size", "proof_id", req.ProofID, "seg_size", req.SegSize)
		return rejected(req.ProofID, msg), nil
	}

	payload := signedPayload(req.ProofID, req.BlockNo, req.SegSize)
	owner, err := recoverOwner(payload, req.Signature)
	if err != nil {
		s.log.Warn("generate_proof invalid signature", "proof_id", req.ProofID, "error", err)
		return rejected(req.ProofID, "invalid signature"), nil
	}

	whitelisted, err := s.Whitelist.IsWhitelisted(owner)
	if err != nil {
		return nil, fmt.Errorf("submission: whitelist lookup: %w", err)
	}
	if !whitelisted {
		s.log.Warn("generate_proof permission denied", "proof_id", req.ProofID, "address", owner)
		return rejected(req.ProofID, "permission denied"), nil
	}

	sub, err := s.writeArtifacts(req, owner)
	if err != nil {
		return nil, fmt.Errorf("submission: write artifacts: %w", err)
	}

	contextBlob, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("submission: marshal submission config: %w", err)
	}
	if err := s.Submissions.CreateSubmission(sub.ID, sub.Owner, types.StatusComputing, contextBlob); err != nil {
		return nil, fmt.Errorf("submission: create row: %w", err)
	}

	resp := &GenerateProofResponse{ProofID: sub.ID, Status: types.StatusComputing}
	if s.FileserverURL != "" && !req.ExecuteOnly {
		resp.SnarkProofURL = fmt.Sprintf("%s/%s/snark/proof_with_public_inputs.json", s.FileserverURL, sub.ID)
		resp.StarkProofURL = fmt.Sprintf("%s/%s/aggregate/proof_with_public_inputs.json", s.FileserverURL, sub.ID)
		resp.PublicValuesURL = fmt.Sprintf("%s/%s/aggregate/public_values.json", s.FileserverURL, sub.ID)
	}
	if s.Metrics != nil {
		s.Metrics.RecordSubmissionStarted()
	}
	s.log.Info("generate_proof accepted", "proof_id", sub.ID, "owner", owner)
	return resp, nil
}

package server

import (
	"context"

	"github.com/zkstage/coordinator/api/zkstagepb"
	"github.com/zkstage/coordinator/internal/submission"
	"github.com/zkstage/coordinator/pkg/types"
)

// Server implements the gRPC server for StageService. Adapted from the
// teacher's FalconQueueService server: same embed-the-Unimplemented-struct,
// constructor-takes-dependencies shape, but with the Raft RPCs
// (RequestVote/AppendEntries) and the pull-based worker registry
// (RegisterWorker/SendHeartbeat/PollJobs/AcknowledgeJob) dropped — this
// coordinator dials workers itself through internal/workerpool rather than
// waiting for them to poll in.
type Server struct {
	zkstagepb.UnimplementedStageServiceServer

	submissions *submission.Service
}

// NewServer creates a new gRPC server instance.
func NewServer(submissions *submission.Service) *Server {
	return &Server{submissions: submissions}
}

// GenerateProof handles a submission request from a client.
func (s *Server) GenerateProof(ctx context.Context, req *zkstagepb.GenerateProofRequest) (*zkstagepb.GenerateProofResponse, error) {
	blockData := make([]submission.BlockFile, 0, len(req.BlockData))
	for _, f := range req.BlockData {
		blockData = append(blockData, submission.BlockFile{FileName: f.FileName, FileContent: f.FileContent})
	}

	domainReq := &submission.GenerateProofRequest{
		ProofID:            types.SubmissionID(req.ProofId),
		Signature:          req.Signature,
		SegSize:            req.SegSize,
		ExecuteOnly:        req.ExecuteOnly,
		CompositeProof:     req.CompositeProof,
		TargetStep:         types.TargetStep(req.TargetStep),
		ProverKind:         types.ProverKind(req.ProverKind),
		ElfData:            req.ElfData,
		BlockData:          blockData,
		PublicInputStream:  req.PublicInputStream,
		PrivateInputStream: req.PrivateInputStream,
		ReceiptInputs:      req.ReceiptInputs,
		Receipts:           req.Receipts,
	}
	if req.HasBlockNo {
		blockNo := req.BlockNo
		domainReq.BlockNo = &blockNo
	}

	resp, err := s.submissions.GenerateProof(domainReq)
	if err != nil {
		return nil, err
	}
	return &zkstagepb.GenerateProofResponse{
		ProofId:         string(resp.ProofID),
		Status:          string(resp.Status),
		ErrorMessage:    resp.ErrorMessage,
		SnarkProofURL:   resp.SnarkProofURL,
		StarkProofURL:   resp.StarkProofURL,
		PublicValuesURL: resp.PublicValuesURL,
	}, nil
}

// GetStatus reports a submission's current progress.
func (s *Server) GetStatus(ctx context.Context, req *zkstagepb.GetStatusRequest) (*zkstagepb.GetStatusResponse, error) {
	resp, err := s.submissions.GetStatus(&submission.GetStatusRequest{ProofID: types.SubmissionID(req.ProofId)})
	if err != nil {
		return nil, err
	}
	return &zkstagepb.GetStatusResponse{
		ProofId:               string(resp.ProofID),
		Status:                string(resp.Status),
		Step:                  resp.Step.String(),
		TotalSteps:            resp.TotalSteps,
		ProofWithPublicInputs: resp.ProofWithPublicInputs,
		OutputStream:          resp.OutputStream,
		Receipt:               resp.Receipt,
	}, nil
}

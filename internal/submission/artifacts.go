package submission

import (
	"encoding/json"
	"fmt"
	"path"

	"github.com/zkstage/coordinator/pkg/types"
)

// writeArtifacts lays out the per-submission directory tree (§6) and
// returns the types.Submission config that gets serialized into the
// submissions row's context_blob.
func (s *Service) writeArtifacts(req *GenerateProofRequest, owner string) (*types.Submission, error) {
	sub := &types.Submission{
		ID:             req.ProofID,
		Owner:          owner,
		SegSize:        req.SegSize,
		ExecuteOnly:    req.ExecuteOnly,
		CompositeProof: req.CompositeProof,
		TargetStep:     req.TargetStep,
		ProverKind:     req.ProverKind,
		BlockNo:        req.BlockNo,
		Status:         types.StatusComputing,
	}
	if sub.TargetStep == "" {
		sub.TargetStep = types.TargetSnark
	}

	base := sub.BaseDir()
	if err := s.Objects.CreateDirAll(base); err != nil {
		return nil, err
	}

	sub.ElfPath = path.Join(base, "elf")
	if err := s.Objects.Write(sub.ElfPath, req.ElfData); err != nil {
		return nil, err
	}

	blockNo := uint64(0)
	if req.BlockNo != nil {
		blockNo = *req.BlockNo
	}
	blockDir := path.Join(base, fmt.Sprintf("0_%d", blockNo))
	if len(req.BlockData) > 0 {
		if err := s.Objects.CreateDirAll(blockDir); err != nil {
			return nil, err
		}
		for _, f := range req.BlockData {
			p := path.Join(blockDir, f.FileName)
			if err := s.Objects.Write(p, f.FileContent); err != nil {
				return nil, err
			}
			sub.BlockDataPaths = append(sub.BlockDataPaths, p)
		}
	}

	inputDir := path.Join(base, "input_stream")
	if err := s.Objects.CreateDirAll(inputDir); err != nil {
		return nil, err
	}
	if len(req.PublicInputStream) > 0 {
		sub.PublicInputPath = path.Join(inputDir, "public_input")
		if err := s.Objects.Write(sub.PublicInputPath, req.PublicInputStream); err != nil {
			return nil, err
		}
	}
	if len(req.PrivateInputStream) > 0 {
		sub.PrivateInputPath = path.Join(inputDir, "private_input")
		if err := s.Objects.Write(sub.PrivateInputPath, req.PrivateInputStream); err != nil {
			return nil, err
		}
	}
	if len(req.ReceiptInputs) > 0 {
		buf, err := json.Marshal(req.ReceiptInputs)
		if err != nil {
			return nil, err
		}
		p := path.Join(inputDir, "receipt_inputs")
		if err := s.Objects.Write(p, buf); err != nil {
			return nil, err
		}
		sub.ReceiptInputPaths = []string{p}
	}
	if len(req.Receipts) > 0 {
		buf, err := json.Marshal(req.Receipts)
		if err != nil {
			return nil, err
		}
		p := path.Join(inputDir, "receipts")
		if err := s.Objects.Write(p, buf); err != nil {
			return nil, err
		}
		sub.PriorReceiptPaths = []string{p}
	}

	for _, dir := range []string{"output_stream", "segment", "prove", "prove/receipt", "aggregate", "snark"} {
		if err := s.Objects.CreateDirAll(path.Join(base, dir)); err != nil {
			return nil, err
		}
	}

	return sub, nil
}

package workerpool

import (
	"context"

	"google.golang.org/grpc"

	"github.com/zkstage/coordinator/api/zkstagepb"
	"github.com/zkstage/coordinator/pkg/types"
)

// AggInput is the resolved (receipt already populated) shape of an
// aggregation operand that ProverBackend.Aggregate needs — the dispatcher
// builds this from a types.AggTask's Left/Right fields.
type AggInput struct {
	Receipt      string
	IsFirstShard bool
	IsLeafLayer  bool
}

// ProverBackend wraps the worker RPC surface (§4.2). Two implementations
// share a gRPC transport but shape the Aggregate payload differently —
// the dispatcher never branches on which one it holds.
type ProverBackend interface {
	Split(ctx context.Context, req SplitArgs) (totalSegments int, totalSteps int64, err error)
	Prove(ctx context.Context, submissionID types.SubmissionID, taskID types.TaskID, index int, segmentPath string) (receipt string, err error)
	Aggregate(ctx context.Context, submissionID types.SubmissionID, taskID types.TaskID, left, right AggInput, hasRight bool) (receipt string, err error)
	Snark(ctx context.Context, submissionID types.SubmissionID, taskID types.TaskID, finalAggReceipt string) (proofPath string, err error)
	Ping(ctx context.Context) (busy bool, err error)
}

// SplitArgs bundles a Split RPC's inputs.
type SplitArgs struct {
	SubmissionID     types.SubmissionID
	ElfPath          string
	BlockDataPaths   []string
	BlockNo          uint64
	PublicInputPath  string
	PrivateInputPath string
	SegSize          uint64
}

func newBackend(kind types.ProverKind, conn *grpc.ClientConn) ProverBackend {
	client := zkstagepb.NewProverServiceClient(conn)
	switch kind {
	case types.ProverV2:
		return &proverV2Backend{client: client}
	default:
		return &proverV1Backend{client: client}
	}
}

// proverV1Backend speaks the original two-receipt Aggregate shape: no room
// for is_first_shard/is_leaf_layer on the wire, so those flags are computed
// by the task graph but dropped here rather than forwarded.
type proverV1Backend struct {
	client zkstagepb.ProverServiceClient
}

func (b *proverV1Backend) Split(ctx context.Context, req SplitArgs) (int, int64, error) {
	resp, err := b.client.Split(ctx, &zkstagepb.SplitRequest{
		SubmissionId:     string(req.SubmissionID),
		ElfPath:          req.ElfPath,
		BlockDataPaths:   req.BlockDataPaths,
		BlockNo:          req.BlockNo,
		PublicInputPath:  req.PublicInputPath,
		PrivateInputPath: req.PrivateInputPath,
		SegSize:          req.SegSize,
	})
	if err != nil {
		return 0, 0, err
	}
	if resp.Failed {
		return 0, 0, &rpcFailure{resp.ErrorMessage}
	}
	return int(resp.TotalSegments), resp.TotalSteps, nil
}

func (b *proverV1Backend) Prove(ctx context.Context, submissionID types.SubmissionID, taskID types.TaskID, index int, segmentPath string) (string, error) {
	resp, err := b.client.Prove(ctx, &zkstagepb.ProveRequest{
		SubmissionId: string(submissionID),
		TaskId:       string(taskID),
		Index:        int32(index),
		SegmentPath:  segmentPath,
	})
	if err != nil {
		return "", err
	}
	if resp.Failed {
		return "", &rpcFailure{resp.ErrorMessage}
	}
	return resp.OutputReceipt, nil
}

func (b *proverV1Backend) Aggregate(ctx context.Context, submissionID types.SubmissionID, taskID types.TaskID, left, right AggInput, hasRight bool) (string, error) {
	req := &zkstagepb.AggregateRequest{
		SubmissionId: string(submissionID),
		TaskId:       string(taskID),
		Left:         left.Receipt,
	}
	if hasRight {
		req.Right = right.Receipt
	}
	resp, err := b.client.Aggregate(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.Failed {
		return "", &rpcFailure{resp.ErrorMessage}
	}
	return resp.OutputReceipt, nil
}

func (b *proverV1Backend) Snark(ctx context.Context, submissionID types.SubmissionID, taskID types.TaskID, finalAggReceipt string) (string, error) {
	resp, err := b.client.Snark(ctx, &zkstagepb.SnarkRequest{
		SubmissionId:    string(submissionID),
		TaskId:          string(taskID),
		FinalAggReceipt: finalAggReceipt,
	})
	if err != nil {
		return "", err
	}
	if resp.Failed {
		return "", &rpcFailure{resp.ErrorMessage}
	}
	return resp.ProofPath, nil
}

func (b *proverV1Backend) Ping(ctx context.Context) (bool, error) {
	resp, err := b.client.Ping(ctx, &zkstagepb.PingRequest{})
	if err != nil {
		return false, err
	}
	return resp.Busy, nil
}

// proverV2Backend forwards is_first_shard/is_leaf_layer on every Aggregate
// call, per SPEC_FULL.md §9's resolution of the corresponding open question.
type proverV2Backend struct {
	client zkstagepb.ProverServiceClient
}

func (b *proverV2Backend) Split(ctx context.Context, req SplitArgs) (int, int64, error) {
	return (&proverV1Backend{client: b.client}).Split(ctx, req)
}

func (b *proverV2Backend) Prove(ctx context.Context, submissionID types.SubmissionID, taskID types.TaskID, index int, segmentPath string) (string, error) {
	return (&proverV1Backend{client: b.client}).Prove(ctx, submissionID, taskID, index, segmentPath)
}

func (b *proverV2Backend) Aggregate(ctx context.Context, submissionID types.SubmissionID, taskID types.TaskID, left, right AggInput, hasRight bool) (string, error) {
	req := &zkstagepb.AggregateRequest{
		SubmissionId: string(submissionID),
		TaskId:       string(taskID),
		Left:         left.Receipt,
		IsFirstShard: left.IsFirstShard,
		IsLeafLayer:  left.IsLeafLayer,
	}
	if hasRight {
		req.Right = right.Receipt
	}
	resp, err := b.client.Aggregate(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.Failed {
		return "", &rpcFailure{resp.ErrorMessage}
	}
	return resp.OutputReceipt, nil
}

func (b *proverV2Backend) Snark(ctx context.Context, submissionID types.SubmissionID, taskID types.TaskID, finalAggReceipt string) (string, error) {
	return (&proverV1Backend{client: b.client}).Snark(ctx, submissionID, taskID, finalAggReceipt)
}

func (b *proverV2Backend) Ping(ctx context.Context) (bool, error) {
	return (&proverV1Backend{client: b.client}).Ping(ctx)
}

// rpcFailure represents a worker-reported InternalError (as opposed to a
// transport-level gRPC error), carrying the worker's own message through
// to the task event log.
type rpcFailure struct{ msg string }

func (e *rpcFailure) Error() string { return "worker: " + e.msg }

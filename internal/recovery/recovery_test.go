package recovery

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/zkstage/coordinator/api/zkstagepb"
	"github.com/zkstage/coordinator/internal/dispatcher"
	"github.com/zkstage/coordinator/internal/objectstore"
	"github.com/zkstage/coordinator/internal/persistence"
	"github.com/zkstage/coordinator/internal/workerpool"
	"github.com/zkstage/coordinator/pkg/types"
)

// fakeProver mirrors dispatcher's test double: every RPC succeeds.
type fakeProver struct {
	zkstagepb.UnimplementedProverServiceServer
}

func (f *fakeProver) Split(ctx context.Context, req *zkstagepb.SplitRequest) (*zkstagepb.SplitResponse, error) {
	return &zkstagepb.SplitResponse{TotalSegments: 2, TotalSteps: 10}, nil
}

func (f *fakeProver) Prove(ctx context.Context, req *zkstagepb.ProveRequest) (*zkstagepb.ProveResponse, error) {
	return &zkstagepb.ProveResponse{OutputReceipt: "receipt-" + req.TaskId}, nil
}

func (f *fakeProver) Aggregate(ctx context.Context, req *zkstagepb.AggregateRequest) (*zkstagepb.AggregateResponse, error) {
	return &zkstagepb.AggregateResponse{OutputReceipt: "agg-" + req.TaskId}, nil
}

func (f *fakeProver) Snark(ctx context.Context, req *zkstagepb.SnarkRequest) (*zkstagepb.SnarkResponse, error) {
	return &zkstagepb.SnarkResponse{ProofPath: "snark/proof_with_public_inputs.json"}, nil
}

func (f *fakeProver) Ping(ctx context.Context, req *zkstagepb.PingRequest) (*zkstagepb.PingResponse, error) {
	return &zkstagepb.PingResponse{}, nil
}

func startFakeWorker(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	zkstagepb.RegisterProverServiceServer(srv, &fakeProver{})
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)
	return lis.Addr().String()
}

func newTestLoop(t *testing.T) (*Loop, *persistence.SubmissionStore, *persistence.EventLog) {
	t.Helper()
	addr := startFakeWorker(t)
	pool := workerpool.NewPool(workerpool.Config{
		General: []workerpool.Endpoint{{Address: addr, Prover: types.ProverV1}},
		Snark:   []workerpool.Endpoint{{Address: addr, Prover: types.ProverV1}},
	})

	submissions, err := persistence.OpenSubmissionStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { submissions.Close() })

	events, err := persistence.Open(filepath.Join(t.TempDir(), "task_events.log"), 1, time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { events.Close() })

	objects := objectstore.NewLocal(t.TempDir())
	require.NoError(t, objects.Write("proof/stale-1/snark/proof_with_public_inputs.json", []byte(`{"ok":true}`)))

	dispatchCfg := dispatcher.Config{
		Submissions: submissions,
		Events:      events,
		Pool:        pool,
		Objects:     objects,
		TaskTimeout: 5 * time.Second,
	}

	loop := New(submissions, events, pool, dispatchCfg, nil)
	return loop, submissions, events
}

func TestRecoveryLoopClaimsStaleSubmission(t *testing.T) {
	loop, submissions, _ := newTestLoop(t)

	require.NoError(t, submissions.CreateSubmission("stale-1", "0xabc", types.StatusComputing, nil))
	// Force check_at far enough into the past to count as expired.
	require.NoError(t, submissions.RenewLease("stale-1", 0, time.Now().Add(-2*time.Hour).Unix(), types.StepInSplit))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	require.Eventually(t, func() bool {
		row, err := submissions.GetSubmission("stale-1")
		return err == nil && row.Status == types.StatusSuccess
	}, 4*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRecoveryLoopSkipsFreshSubmission(t *testing.T) {
	loop, submissions, _ := newTestLoop(t)

	require.NoError(t, submissions.CreateSubmission("fresh-1", "0xabc", types.StatusComputing, nil))
	require.NoError(t, submissions.RenewLease("fresh-1", 0, time.Now().Unix(), types.StepInSplit))

	ctx, cancel := context.WithTimeout(context.Background(), 1300*time.Millisecond)
	defer cancel()
	require.NoError(t, loop.Run(ctx))

	row, err := submissions.GetSubmission("fresh-1")
	require.NoError(t, err)
	require.Equal(t, types.StatusComputing, row.Status)
}

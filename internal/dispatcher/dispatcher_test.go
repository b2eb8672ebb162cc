package dispatcher

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/zkstage/coordinator/api/zkstagepb"
	"github.com/zkstage/coordinator/internal/objectstore"
	"github.com/zkstage/coordinator/internal/persistence"
	"github.com/zkstage/coordinator/internal/taskgraph"
	"github.com/zkstage/coordinator/internal/workerpool"
	"github.com/zkstage/coordinator/pkg/types"
)

// fakeProver answers every RPC successfully with a value derived from the
// request, enough to drive a submission through Split/Prove/Agg/Snark.
type fakeProver struct {
	zkstagepb.UnimplementedProverServiceServer
}

func (f *fakeProver) Split(ctx context.Context, req *zkstagepb.SplitRequest) (*zkstagepb.SplitResponse, error) {
	return &zkstagepb.SplitResponse{TotalSegments: 4, TotalSteps: 1000}, nil
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

func newTestConfig(t *testing.T) Config {
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

	return Config{
		Submissions: submissions,
		Events:      events,
		Pool:        pool,
		Objects:     objects,
		TaskTimeout: 5 * time.Second,
	}
}

func TestDispatcherRunsToSnarkSuccess(t *testing.T) {
	cfg := newTestConfig(t)
	require.NoError(t, cfg.Objects.Write("proof/sub-1/snark/proof_with_public_inputs.json", []byte(`{"ok":true}`)))

	sub := &types.Submission{
		ID:         "sub-1",
		Owner:      "0xabc",
		SegSize:    1024,
		TargetStep: types.TargetSnark,
		ProverKind: types.ProverV1,
		ElfPath:    "elf",
	}
	require.NoError(t, cfg.Submissions.CreateSubmission(sub.ID, sub.Owner, types.StatusComputing, nil))

	d := New(cfg, sub, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, d.Run(ctx))

	row, err := cfg.Submissions.GetSubmission(sub.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusSuccess, row.Status)
	require.JSONEq(t, `{"ok":true}`, string(row.ResultBlob))

	events, err := cfg.Events.FetchForSubmission(sub.ID, "")
	require.NoError(t, err)

	var proveCount, aggCount, snarkCount int
	for _, e := range events {
		switch e.Kind {
		case types.KindProve:
			proveCount++
		case types.KindAgg:
			aggCount++
		case types.KindSnark:
			snarkCount++
		}
		require.Equal(t, types.TaskSuccess, e.State)
	}
	require.Equal(t, 4, proveCount)
	require.Equal(t, 3, aggCount)
	require.Equal(t, 1, snarkCount)
}

func TestDispatcherExecuteOnlyStopsAfterSplit(t *testing.T) {
	cfg := newTestConfig(t)

	sub := &types.Submission{
		ID:          "sub-2",
		Owner:       "0xabc",
		SegSize:     1024,
		ExecuteOnly: true,
		ProverKind:  types.ProverV1,
		ElfPath:     "elf",
	}
	require.NoError(t, cfg.Submissions.CreateSubmission(sub.ID, sub.Owner, types.StatusComputing, nil))

	d := New(cfg, sub, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, d.Run(ctx))

	row, err := cfg.Submissions.GetSubmission(sub.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusSuccess, row.Status)
	require.Nil(t, row.ResultBlob)

	events, err := cfg.Events.FetchForSubmission(sub.ID, "")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, types.KindSplit, events[0].Kind)
}

// TestReservationFailureDoesNotConsumeAttempts guards against the retry
// budget being spent on worker scarcity rather than real RPC attempts: a
// pool with no idle workers must leave a task's Attempts counter untouched
// across repeated dispatch rounds, or S4/S5 (§8) would misfire after a run
// of transient Busy/no-idle-worker rounds rather than genuine failures.
func TestReservationFailureDoesNotConsumeAttempts(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Pool = workerpool.NewPool(workerpool.Config{}) // no workers of any kind

	sub := &types.Submission{ID: "sub-4", TargetStep: types.TargetSnark, ProverKind: types.ProverV1, ElfPath: "elf"}
	d := New(cfg, sub, nil)

	d.g.Split.State = types.TaskSuccess
	require.NoError(t, taskgraph.BuildProveTasks(d.g, 2))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.False(t, d.spawnProve(ctx))
	}

	require.Equal(t, 0, d.g.Prove[0].Attempts)
	require.Equal(t, types.TaskUnprocessed, d.g.Prove[0].State)
}

func TestRebuildReplaysEventLog(t *testing.T) {
	cfg := newTestConfig(t)
	sub := &types.Submission{ID: "sub-3", TargetStep: types.TargetAggregate, ProverKind: types.ProverV1, ElfPath: "elf"}

	require.NoError(t, cfg.Events.Append(types.KindSplit, sub.ID, types.SplitTaskID(sub.ID), types.TaskSuccess, "w1", 1, `{"total_segments":2,"total_steps":10}`))
	require.NoError(t, cfg.Events.Append(types.KindProve, sub.ID, types.ProveTaskID(sub.ID, 0), types.TaskSuccess, "w1", 1, "receipt-0"))
	require.NoError(t, cfg.Events.Append(types.KindProve, sub.ID, types.ProveTaskID(sub.ID, 1), types.TaskSuccess, "w1", 1, "receipt-1"))
	require.NoError(t, cfg.Events.Append(types.KindAgg, sub.ID, types.AggTaskID(sub.ID, 0), types.TaskSuccess, "w1", 1, "agg-0"))

	g, err := Rebuild(sub, cfg.Events)
	require.NoError(t, err)
	require.Equal(t, types.StepEnd, g.Step)
	require.Len(t, g.Agg, 1)
	require.True(t, g.Agg[0].IsFinal)
	require.Equal(t, types.TaskSuccess, g.Agg[0].State)
}

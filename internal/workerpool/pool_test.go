package workerpool

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/zkstage/coordinator/api/zkstagepb"
	"github.com/zkstage/coordinator/pkg/types"
)

// fakeProver answers Ping honestly and nothing else; that's all Reserve needs.
type fakeProver struct {
	zkstagepb.UnimplementedProverServiceServer
	busy bool
}

func (f *fakeProver) Ping(ctx context.Context, in *zkstagepb.PingRequest) (*zkstagepb.PingResponse, error) {
	return &zkstagepb.PingResponse{Busy: f.busy}, nil
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

func TestReserveRelease(t *testing.T) {
	addr := startFakeWorker(t)
	p := NewPool(Config{General: []Endpoint{{Address: addr, Prover: types.ProverV1}}})

	lease, err := p.Reserve(context.Background(), types.WorkerGeneral)
	require.NoError(t, err)
	require.Equal(t, addr, lease.Endpoint)

	// No other Idle worker of this kind now.
	_, err = p.Reserve(context.Background(), types.WorkerGeneral)
	require.ErrorIs(t, err, ErrNoIdleWorker)

	lease.Release()

	lease2, err := p.Reserve(context.Background(), types.WorkerGeneral)
	require.NoError(t, err)
	require.Equal(t, addr, lease2.Endpoint)
}

func TestReserveKindIsolation(t *testing.T) {
	addr := startFakeWorker(t)
	p := NewPool(Config{Snark: []Endpoint{{Address: addr, Prover: types.ProverV1}}})

	_, err := p.Reserve(context.Background(), types.WorkerGeneral)
	require.ErrorIs(t, err, ErrNoIdleWorker)

	lease, err := p.Reserve(context.Background(), types.WorkerSnark)
	require.NoError(t, err)
	require.NotNil(t, lease)
}

func TestReserveFailedProbeStaysBusyUntilRescan(t *testing.T) {
	// Nothing listens on this address: Dial/Ping fails immediately.
	p := NewPool(Config{
		General:    []Endpoint{{Address: "127.0.0.1:1", Prover: types.ProverV1}},
		ProbeTO:    50 * time.Millisecond,
		StaleAfter: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := p.Reserve(ctx, types.WorkerGeneral)
	require.Error(t, err)

	// Still ejected immediately after the failed probe.
	_, err = p.Reserve(context.Background(), types.WorkerGeneral)
	require.ErrorIs(t, err, ErrNoIdleWorker)

	time.Sleep(20 * time.Millisecond)
	p.Rescan()

	// Rescan freed it, but it will fail its probe again — still returns a
	// (different) error, not ErrNoIdleWorker, proving it was freed.
	_, err = p.Reserve(context.Background(), types.WorkerGeneral)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNoIdleWorker)
}

func TestReleaseIsIdempotent(t *testing.T) {
	addr := startFakeWorker(t)
	p := NewPool(Config{General: []Endpoint{{Address: addr, Prover: types.ProverV1}}})

	lease, err := p.Reserve(context.Background(), types.WorkerGeneral)
	require.NoError(t, err)
	lease.Release()
	require.NotPanics(t, func() { lease.Release() })
}

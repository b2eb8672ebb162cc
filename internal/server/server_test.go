package server

import (
	"context"
	"encoding/hex"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/zkstage/coordinator/api/zkstagepb"
	"github.com/zkstage/coordinator/internal/objectstore"
	"github.com/zkstage/coordinator/internal/persistence"
	"github.com/zkstage/coordinator/internal/submission"
)

// dialServer stands up Server over an in-memory bufconn listener and
// returns a connected client, torn down on test cleanup.
func dialServer(t *testing.T, srv *Server) zkstagepb.StageServiceClient {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	gs := grpc.NewServer()
	zkstagepb.RegisterStageServiceServer(gs, srv)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return zkstagepb.NewStageServiceClient(conn)
}

func newTestServer(t *testing.T) (*Server, *persistence.WhitelistStore) {
	t.Helper()
	submissions, err := persistence.OpenSubmissionStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { submissions.Close() })

	whitelist, err := persistence.OpenWhitelistStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { whitelist.Close() })

	events, err := persistence.Open(filepath.Join(t.TempDir(), "events.log"), 16, time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { events.Close() })

	objects := objectstore.NewLocal(t.TempDir())
	svc := submission.New(submissions, whitelist, events, objects, "", nil)
	return NewServer(svc), whitelist
}

func sign(t *testing.T, payload string) (string, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hash := accounts.TextHash([]byte(payload))
	sig, err := crypto.Sign(hash, key)
	require.NoError(t, err)
	sig[64] += 27
	return hex.EncodeToString(sig), crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func TestServerGenerateProofAndGetStatus(t *testing.T) {
	srv, whitelist := newTestServer(t)
	client := dialServer(t, srv)

	const proofID = "proof-1"
	payload := "proof-1&262144"
	sigHex, addr := sign(t, payload)
	require.NoError(t, whitelist.Seed(addr))

	ctx := context.Background()
	genResp, err := client.GenerateProof(ctx, &zkstagepb.GenerateProofRequest{
		ProofId:   proofID,
		Signature: sigHex,
		SegSize:   262144,
		ElfData:   []byte("elf-bytes"),
	})
	require.NoError(t, err)
	require.Equal(t, "Computing", genResp.Status)
	require.Equal(t, proofID, genResp.ProofId)

	statusResp, err := client.GetStatus(ctx, &zkstagepb.GetStatusRequest{ProofId: proofID})
	require.NoError(t, err)
	require.Equal(t, "Computing", statusResp.Status)
}

func TestServerGenerateProofRejectsUnwhitelisted(t *testing.T) {
	srv, _ := newTestServer(t)
	client := dialServer(t, srv)

	sigHex, _ := sign(t, "proof-2&262144")
	resp, err := client.GenerateProof(context.Background(), &zkstagepb.GenerateProofRequest{
		ProofId:   "proof-2",
		Signature: sigHex,
		SegSize:   262144,
		ElfData:   []byte("elf-bytes"),
	})
	require.NoError(t, err)
	require.Equal(t, "InvalidParameter", resp.Status)
}

func TestServerGetStatusUnknownProof(t *testing.T) {
	srv, _ := newTestServer(t)
	client := dialServer(t, srv)

	resp, err := client.GetStatus(context.Background(), &zkstagepb.GetStatusRequest{ProofId: "missing"})
	require.NoError(t, err)
	require.Equal(t, "", resp.Status)
}

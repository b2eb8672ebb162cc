package submission

import (
	"encoding/hex"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/zkstage/coordinator/internal/objectstore"
	"github.com/zkstage/coordinator/internal/persistence"
	"github.com/zkstage/coordinator/pkg/types"
)

func newTestService(t *testing.T) (*Service, *persistence.SubmissionStore, *persistence.WhitelistStore) {
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
	return New(submissions, whitelist, events, objects, "", nil), submissions, whitelist
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

func TestGenerateProofAcceptsWhitelistedOwner(t *testing.T) {
	svc, submissions, whitelist := newTestService(t)

	payload := signedPayload("sub-1", nil, 262144)
	sigHex, addr := sign(t, payload)
	require.NoError(t, whitelist.Seed(addr))

	req := &GenerateProofRequest{
		ProofID:   "sub-1",
		Signature: sigHex,
		SegSize:   262144,
		ElfData:   []byte("elf-bytes"),
	}
	resp, err := svc.GenerateProof(req)
	require.NoError(t, err)
	require.Equal(t, types.StatusComputing, resp.Status)

	row, err := submissions.GetSubmission("sub-1")
	require.NoError(t, err)
	require.Equal(t, addr, row.Owner)
	require.Equal(t, types.StatusComputing, row.Status)
}

func TestGenerateProofRejectsUnwhitelistedOwner(t *testing.T) {
	svc, _, _ := newTestService(t)

	payload := signedPayload("sub-2", nil, 262144)
	sigHex, _ := sign(t, payload)

	req := &GenerateProofRequest{ProofID: "sub-2", Signature: sigHex, SegSize: 262144, ElfData: []byte("x")}
	resp, err := svc.GenerateProof(req)
	require.NoError(t, err)
	require.Equal(t, types.StatusInvalidParam, resp.Status)
	require.Equal(t, "permission denied", resp.ErrorMessage)
}

func TestGenerateProofRejectsBadSegSize(t *testing.T) {
	svc, _, _ := newTestService(t)

	req := &GenerateProofRequest{ProofID: "sub-3", Signature: "00", SegSize: 4}
	resp, err := svc.GenerateProof(req)
	require.NoError(t, err)
	require.Equal(t, types.StatusInvalidParam, resp.Status)
}

func TestGenerateProofIsIdempotent(t *testing.T) {
	svc, submissions, whitelist := newTestService(t)

	payload := signedPayload("sub-4", nil, 262144)
	sigHex, addr := sign(t, payload)
	require.NoError(t, whitelist.Seed(addr))

	req := &GenerateProofRequest{ProofID: "sub-4", Signature: sigHex, SegSize: 262144, ElfData: []byte("elf")}
	first, err := svc.GenerateProof(req)
	require.NoError(t, err)
	require.Equal(t, types.StatusComputing, first.Status)

	require.NoError(t, submissions.UpdateSubmissionStatus("sub-4", types.StatusSuccess, []byte(`{"ok":true}`)))

	second, err := svc.GenerateProof(req)
	require.NoError(t, err)
	require.Equal(t, types.StatusSuccess, second.Status)
}

func TestGetStatusUnknownSubmission(t *testing.T) {
	svc, _, _ := newTestService(t)
	resp, err := svc.GetStatus(&GetStatusRequest{ProofID: "missing"})
	require.NoError(t, err)
	require.Equal(t, types.SubmissionStatus(""), resp.Status)
}

// TestGetStatusCompositeProofPopulatesReceiptAndTotalSteps exercises the
// S2-shaped scenario from §8: a composite_proof submission stops after
// Prove, and GetStatus must still surface total_steps (from the Split
// event), output_stream, and receipt (from prove/receipt/0) even though no
// Snark result blob was ever written.
func TestGetStatusCompositeProofPopulatesReceiptAndTotalSteps(t *testing.T) {
	svc, submissions, whitelist := newTestService(t)

	payload := signedPayload("sub-5", nil, 262144)
	sigHex, addr := sign(t, payload)
	require.NoError(t, whitelist.Seed(addr))

	req := &GenerateProofRequest{
		ProofID:        "sub-5",
		Signature:      sigHex,
		SegSize:        262144,
		CompositeProof: true,
		ElfData:        []byte("elf"),
	}
	_, err := svc.GenerateProof(req)
	require.NoError(t, err)

	require.NoError(t, svc.Events.Append(types.KindSplit, "sub-5", "split-sub-5", types.TaskSuccess, "w1", 1.0,
		`{"total_segments":4,"total_steps":1024}`))

	base := "proof/sub-5"
	require.NoError(t, svc.Objects.Write(base+"/output_stream/output_stream", []byte("exec-output")))
	require.NoError(t, svc.Objects.Write(base+"/prove/receipt/0", []byte("receipt-bytes")))

	require.NoError(t, submissions.UpdateSubmissionStatus("sub-5", types.StatusSuccess, nil))

	resp, err := svc.GetStatus(&GetStatusRequest{ProofID: "sub-5"})
	require.NoError(t, err)
	require.Equal(t, types.StatusSuccess, resp.Status)
	require.Equal(t, int64(1024), resp.TotalSteps)
	require.Equal(t, []byte("exec-output"), resp.OutputStream)
	require.Equal(t, []byte("receipt-bytes"), resp.Receipt)
	require.Empty(t, resp.ProofWithPublicInputs)
}

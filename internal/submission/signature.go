package submission

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/zkstage/coordinator/pkg/types"
)

// signedPayload reproduces verify_signature's sign_data format: the
// fields that must match between what the client signed and what it
// submitted, so a signature can't be replayed against a different
// seg_size or block_no.
func signedPayload(proofID types.SubmissionID, blockNo *uint64, segSize uint64) string {
	if blockNo != nil {
		return fmt.Sprintf("%s&%d&%d", proofID, *blockNo, segSize)
	}
	return fmt.Sprintf("%s&%d", proofID, segSize)
}

// recoverOwner recovers the signing address from an ECDSA secp256k1
// signature over signedPayload, using the same Ethereum "personal_sign"
// hash (EIP-191) recover() applies before ecrecover. sigHex is a 65-byte
// R||S||V signature, hex-encoded with or without a leading 0x, V either
// {0,1} or {27,28}.
func recoverOwner(payload string, sigHex string) (string, error) {
	sigHex = strings.TrimPrefix(sigHex, "0x")
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return "", fmt.Errorf("submission: decode signature: %w", err)
	}
	if len(sig) != 65 {
		return "", fmt.Errorf("submission: signature must be 65 bytes, got %d", len(sig))
	}
	sig = append([]byte(nil), sig...)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	hash := accounts.TextHash([]byte(payload))
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return "", fmt.Errorf("submission: recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

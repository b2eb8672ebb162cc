package recovery

import (
	"encoding/json"
	"fmt"

	"github.com/zkstage/coordinator/pkg/types"
)

// decodeSubmission unmarshals a submission row's context_blob into its
// config fields (§8 property 6: this round-trip is the identity on every
// field the submission API wrote).
func decodeSubmission(blob json.RawMessage, sub *types.Submission) error {
	if len(blob) == 0 {
		return nil
	}
	if err := json.Unmarshal(blob, sub); err != nil {
		return fmt.Errorf("recovery: unmarshal context_blob: %w", err)
	}
	return nil
}

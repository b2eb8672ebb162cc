package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/zkstage/coordinator/pkg/types"
)

// RotationState is the bookkeeping snapshot.go's atomic-write discipline is
// adapted into: rather than a full system-state snapshot, it tracks only
// the last sequence number the event log was compacted up to per task
// kind, so a future rotation knows which part of the log is safe to
// archive without re-deriving it from a full replay.
type RotationState struct {
	LastCompactedSeq map[types.TaskKind]uint64 `json:"last_compacted_seq"`
}

// RotationTracker persists RotationState with the same atomic
// temp-file-then-rename discipline the snapshot manager uses, so a crash
// mid-write leaves either the old or the new file, never a corrupt one.
type RotationTracker struct {
	mu   sync.Mutex
	path string
}

func NewRotationTracker(path string) *RotationTracker {
	return &RotationTracker{path: path}
}

// Load reads the persisted state, returning a zero-value state (not an
// error) if the tracker file doesn't exist yet.
func (t *RotationTracker) Load() (RotationState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	buf, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return RotationState{LastCompactedSeq: map[types.TaskKind]uint64{}}, nil
	}
	if err != nil {
		return RotationState{}, fmt.Errorf("persistence: read rotation state: %w", err)
	}
	var s RotationState
	if err := json.Unmarshal(buf, &s); err != nil {
		return RotationState{}, fmt.Errorf("persistence: parse rotation state: %w", err)
	}
	if s.LastCompactedSeq == nil {
		s.LastCompactedSeq = map[types.TaskKind]uint64{}
	}
	return s, nil
}

// MarkCompacted records that kind's log has been compacted through seq,
// writing via a temp file + rename so a crash mid-write can't corrupt the
// tracker.
func (t *RotationTracker) MarkCompacted(kind types.TaskKind, seq uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.loadLocked()
	if err != nil {
		return err
	}
	state.LastCompactedSeq[kind] = seq

	buf, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("persistence: marshal rotation state: %w", err)
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("persistence: write rotation state: %w", err)
	}
	return os.Rename(tmp, t.path)
}

func (t *RotationTracker) loadLocked() (RotationState, error) {
	buf, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return RotationState{LastCompactedSeq: map[types.TaskKind]uint64{}}, nil
	}
	if err != nil {
		return RotationState{}, err
	}
	var s RotationState
	if err := json.Unmarshal(buf, &s); err != nil {
		return RotationState{}, err
	}
	if s.LastCompactedSeq == nil {
		s.LastCompactedSeq = map[types.TaskKind]uint64{}
	}
	return s, nil
}

package persistence

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/zkstage/coordinator/pkg/types"
)

// ErrSubmissionNotFound is returned by GetSubmission for an unknown id.
var ErrSubmissionNotFound = errors.New("persistence: submission not found")

// ErrLeaseLost is returned by RenewLease when expectedCheckAt no longer
// matches the stored value — another coordinator (or an earlier renewal
// from this one) has already moved the lease forward.
var ErrLeaseLost = errors.New("persistence: lease check_at changed under us")

// SubmissionRow is the persisted shape of one submissions table row.
type SubmissionRow struct {
	ID          types.SubmissionID     `json:"id"`
	Owner       string                 `json:"owner"`
	Status      types.SubmissionStatus `json:"status"`
	ContextBlob json.RawMessage        `json:"context_blob"`
	ResultBlob  json.RawMessage        `json:"result_blob,omitempty"`
	CheckAt     int64                  `json:"check_at"`
	Step        types.Step             `json:"step"`
}

// SubmissionStore is the Badger-backed submissions table. Transactional
// compare-and-set on check_at replaces the cross-coordinator consensus a
// Raft-backed design would otherwise need (§9 "Raft is dropped").
type SubmissionStore struct {
	db *badger.DB
}

// OpenSubmissionStore opens (or creates) a Badger database at dir.
func OpenSubmissionStore(dir string) (*SubmissionStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("persistence: open submission store: %w", err)
	}
	return &SubmissionStore{db: db}, nil
}

func (s *SubmissionStore) Close() error { return s.db.Close() }

func key(id types.SubmissionID) []byte { return []byte("submission:" + string(id)) }

// CreateSubmission inserts a new row with check_at = 0, so the recovery
// loop picks it up on its very next tick (§4.7).
func (s *SubmissionStore) CreateSubmission(id types.SubmissionID, owner string, status types.SubmissionStatus, contextBlob json.RawMessage) error {
	row := SubmissionRow{ID: id, Owner: owner, Status: status, ContextBlob: contextBlob, CheckAt: 0, Step: types.StepInSplit}
	buf, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("persistence: marshal submission row: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(id), buf)
	})
}

// GetSubmission fetches the current row for id.
func (s *SubmissionStore) GetSubmission(id types.SubmissionID) (*SubmissionRow, error) {
	var row SubmissionRow
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSubmissionNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &row)
		})
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// UpdateSubmissionStatus writes a terminal (or intermediate) status and
// result blob, leaving check_at/step untouched.
func (s *SubmissionStore) UpdateSubmissionStatus(id types.SubmissionID, status types.SubmissionStatus, resultBlob json.RawMessage) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if err != nil {
			return err
		}
		var row SubmissionRow
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &row) }); err != nil {
			return err
		}
		row.Status = status
		if resultBlob != nil {
			row.ResultBlob = resultBlob
		}
		buf, err := json.Marshal(row)
		if err != nil {
			return err
		}
		return txn.Set(key(id), buf)
	})
}

// RenewLease performs the check-and-set at the heart of the lease
// discipline (§5): it succeeds only if the stored check_at still equals
// expectedCheckAt at commit time. Badger's transaction conflict detection
// (the read of check_at is part of the transaction's read set) gives this
// compare-and-set without any separate locking.
func (s *SubmissionStore) RenewLease(id types.SubmissionID, expectedCheckAt, newCheckAt int64, step types.Step) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if err != nil {
			return err
		}
		var row SubmissionRow
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &row) }); err != nil {
			return err
		}
		if row.CheckAt != expectedCheckAt {
			return ErrLeaseLost
		}
		row.CheckAt = newCheckAt
		row.Step = step
		row.Status = types.StatusComputing
		buf, err := json.Marshal(row)
		if err != nil {
			return err
		}
		return txn.Set(key(id), buf)
	})
	return err
}

// ListExpiredComputing returns Computing rows whose check_at is older than
// olderThan, capped at limit — the recovery loop's candidate source (§4.6).
func (s *SubmissionStore) ListExpiredComputing(olderThan int64, limit int) ([]SubmissionRow, error) {
	var out []SubmissionRow
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("submission:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if len(out) >= limit {
				break
			}
			var row SubmissionRow
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &row) }); err != nil {
				return err
			}
			if row.Status == types.StatusComputing && row.CheckAt < olderThan {
				out = append(out, row)
			}
		}
		return nil
	})
	return out, err
}

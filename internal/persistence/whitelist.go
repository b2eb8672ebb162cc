package persistence

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// ErrOwnerNotWhitelisted names the case of an owner missing from the
// whitelist. Nothing in this module returns it: IsWhitelisted reports
// false instead.
var ErrOwnerNotWhitelisted = errors.New("persistence: owner is not whitelisted")

// WhitelistStore is a read-only accessor (from the engine's perspective,
// per §3) over the whitelisted_owners table. Provisioning entries is out
// of scope — this type only ever reads.
type WhitelistStore struct {
	db *badger.DB
}

func OpenWhitelistStore(dir string) (*WhitelistStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("persistence: open whitelist store: %w", err)
	}
	return &WhitelistStore{db: db}, nil
}

func (w *WhitelistStore) Close() error { return w.db.Close() }

// IsWhitelisted reports whether address has an entry in the table.
func (w *WhitelistStore) IsWhitelisted(address string) (bool, error) {
	found := false
	err := w.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("owner:" + address))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// Seed is a test/bootstrap helper: provisioning is out of scope for the
// engine proper, but integration tests need a way to populate entries.
func (w *WhitelistStore) Seed(addresses ...string) error {
	return w.db.Update(func(txn *badger.Txn) error {
		for _, addr := range addresses {
			if err := txn.Set([]byte("owner:"+addr), []byte{1}); err != nil {
				return err
			}
		}
		return nil
	})
}

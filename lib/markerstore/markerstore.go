package markerstore

import (
	"github.com/dgraph-io/badger/v4"
)

// Store is the durable slot holding the last successfully processed remote
// marker per dataset. It lives apart from the append-only history so a
// crash between persisting a cycle and advancing the marker makes the loop
// re-run the same cycle (which is idempotent) instead of losing it.
type Store struct {
	db *badger.DB
}

func Open(path string) (Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return Store{}, err
	}
	return Store{db: db}, nil
}

// OpenInMemory backs the store with memory only; used in tests.
func OpenInMemory() (Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return Store{}, err
	}
	return Store{db: db}, nil
}

func (s Store) Close() error {
	return s.db.Close()
}

// Get returns the stored marker for a dataset, or false when no cycle has
// ever completed for it.
func (s Store) Get(dataset string) (string, bool, error) {
	var marker string
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(dataset))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		marker = string(value)
		found = true
		return nil
	})
	return marker, found, err
}

// Set overwrites the marker for a dataset. Called only after a cycle has
// completed without error.
func (s Store) Set(dataset, marker string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(dataset), []byte(marker))
	})
}

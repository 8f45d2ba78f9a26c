package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/uasmesh/rid-display/internal/rid"
)

// Badger key for the durable portion of the database state.
var stateKey = []byte("riddisplay:state")

// persistedState is the durable subset of a View. Subscriptions are
// deliberately excluded: they lapse within seconds and would be evicted on
// the first Resolve after a restart anyway.
type persistedState struct {
	Flights  map[string]FlightRecord `json:"flights"`
	Behavior rid.Behavior            `json:"behavior"`
}

// BadgerPersister implements Persister on a BadgerDB directory.
type BadgerPersister struct {
	db *badger.DB
	mu sync.Mutex
}

// NewBadgerPersister opens (creating if needed) the Badger database under
// dataDir.
func NewBadgerPersister(dataDir string) (*BadgerPersister, error) {
	dbPath := filepath.Join(dataDir, "badger")
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create badger data directory: %w", err)
	}

	options := badger.DefaultOptions(dbPath)
	options = options.WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open Badger: %w", err)
	}

	return &BadgerPersister{db: db}, nil
}

// Save records the durable subset of the view. Saves are serialized so a
// slow disk never interleaves two commits.
func (p *BadgerPersister) Save(v *View) error {
	state := persistedState{
		Flights:  v.Flights,
		Behavior: v.Behavior,
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(stateKey, data)
	})
	if err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	return nil
}

// Load returns the persisted view, or nil if nothing has been saved yet.
func (p *BadgerPersister) Load() (*View, error) {
	var data []byte

	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(stateKey)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return &View{
		Flights:  state.Flights,
		Behavior: state.Behavior,
	}, nil
}

// Close releases the underlying database.
func (p *BadgerPersister) Close() error {
	return p.db.Close()
}

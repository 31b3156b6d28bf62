// Package store persists the canonical per-unit booking records in a
// Badger database, one JSON document per unit. Writes are whole-document
// replacements; concurrent writers (the refresh loop and an interactive
// assignment edit) are serialized by Badger and the last write wins.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"turnsched/internal/apperr"
	appLog "turnsched/internal/log"
	"turnsched/internal/model"
)

const unitPrefix = "unit:"

// Store wraps a Badger database instance.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the booking store at the given path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Badger's own logging is too chatty for a small daemon
	opts.SyncWrites = true       // a lost assignment edit is a visible regression
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open booking store: %w", err)
	}

	appLog.Info("booking store opened", "path", path)
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the unit's record, or nil when the unit has never been
// reconciled.
func (s *Store) Load(_ context.Context, unit string) (*model.UnitRecord, error) {
	if unit == "" {
		return nil, apperr.InvalidInput("unit id is empty")
	}

	var rec *model.UnitRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(unitPrefix + unit))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var r model.UnitRecord
			if err := json.Unmarshal(val, &r); err != nil {
				return err
			}
			rec = &r
			return nil
		})
	})
	if err != nil {
		if apperr.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, apperr.StoreFailed("failed to load unit record", err)
	}
	return rec, nil
}

// Replace writes the unit's record as a full-document replacement.
func (s *Store) Replace(_ context.Context, rec *model.UnitRecord) error {
	if rec == nil || rec.Unit == "" {
		return apperr.InvalidInput("unit record is empty")
	}

	rec.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(rec)
	if err != nil {
		return apperr.StoreFailed("failed to encode unit record", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(unitPrefix+rec.Unit), data)
	})
	if err != nil {
		return apperr.StoreFailed("failed to write unit record", err)
	}
	return nil
}

// Units lists the unit IDs present in the store, sorted by key order.
func (s *Store) Units(_ context.Context) ([]string, error) {
	units := make([]string, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(unitPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			units = append(units, strings.TrimPrefix(key, unitPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, apperr.StoreFailed("failed to list units", err)
	}
	return units, nil
}

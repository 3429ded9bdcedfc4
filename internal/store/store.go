// Package store persists analysis reports in BadgerDB.
package store

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/skdltmxn/cxxsema/analysis"
)

// Key prefixes.
//
//	report:data:{id}                          -> JSON(analysis.Report)
//	report:meta:{modelHash}:{id}              -> JSON(Metadata)
//	report:index:{id}                         -> modelHash
//	report:latest:{modelHash}:{class}\x00{ctx} -> id
const (
	keyPrefixData   = "report:data:"
	keyPrefixMeta   = "report:meta:"
	keyPrefixIndex  = "report:index:"
	keyPrefixLatest = "report:latest:"
)

// ErrNotFound is returned when no report matches.
var ErrNotFound = errors.New("store: report not found")

// Metadata describes a stored report.
type Metadata struct {
	ID             string `json:"id" yaml:"id"`
	ModelHash      string `json:"model_hash" yaml:"model_hash"`
	ModelPath      string `json:"model_path,omitempty" yaml:"model_path,omitempty"`
	Class          string `json:"class" yaml:"class"`
	Context        string `json:"context,omitempty" yaml:"context,omitempty"`
	Abstract       bool   `json:"abstract" yaml:"abstract"`
	Ambiguities    int    `json:"ambiguities" yaml:"ambiguities"`
	CreatedAtMilli int64  `json:"created_at_milli" yaml:"created_at_milli"`
}

// Store saves and loads reports. It is safe for concurrent use.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	owned  bool
	now    func() time.Time
}

// Open opens the database in dir, or an in-memory database if dir is
// empty. The returned store must be closed.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening report store: %w", err)
	}
	s, err := New(db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New returns a store over an open database. The caller keeps ownership
// of db.
func New(db *badger.DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the database if the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// Save stores a report produced from the model identified by modelHash and
// makes it the latest for its class and context.
func (s *Store) Save(ctx context.Context, modelHash, modelPath string, r *analysis.Report) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("report must not be nil")
	}
	if modelHash == "" {
		return nil, fmt.Errorf("model hash must not be empty")
	}

	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshaling report: %w", err)
	}

	meta := &Metadata{
		ID:             uuid.NewString(),
		ModelHash:      modelHash,
		ModelPath:      modelPath,
		Class:          r.Class,
		Context:        r.Context,
		Abstract:       r.Abstract,
		Ambiguities:    len(r.Ambiguities),
		CreatedAtMilli: s.now().UnixMilli(),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(dataKey(meta.ID), data); err != nil {
			return fmt.Errorf("storing report: %w", err)
		}
		if err := txn.Set(metaKey(modelHash, meta.ID), metaJSON); err != nil {
			return fmt.Errorf("storing metadata: %w", err)
		}
		if err := txn.Set(indexKey(meta.ID), []byte(modelHash)); err != nil {
			return fmt.Errorf("storing index: %w", err)
		}
		if err := txn.Set(latestKey(modelHash, r.Class, r.Context), []byte(meta.ID)); err != nil {
			return fmt.Errorf("updating latest pointer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("writing report: %w", err)
	}

	s.logger.Debug("report saved",
		slog.String("id", meta.ID),
		slog.String("class", meta.Class),
		slog.String("model_hash", modelHash),
	)
	return meta, nil
}

// Get loads a report by id.
func (s *Store) Get(ctx context.Context, id string) (*analysis.Report, *Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var (
		report analysis.Report
		meta   Metadata
	)
	err := s.db.View(func(txn *badger.Txn) error {
		hash, err := get(txn, indexKey(id))
		if err != nil {
			return err
		}
		metaJSON, err := get(txn, metaKey(string(hash), id))
		if err != nil {
			return err
		}
		if err := json.Unmarshal(metaJSON, &meta); err != nil {
			return fmt.Errorf("unmarshaling metadata: %w", err)
		}
		data, err := get(txn, dataKey(id))
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &report); err != nil {
			return fmt.Errorf("unmarshaling report: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("loading report %s: %w", id, err)
	}
	return &report, &meta, nil
}

// Latest loads the most recently saved report for a class and context of
// a model.
func (s *Store) Latest(ctx context.Context, modelHash, class, at string) (*analysis.Report, *Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var id string
	err := s.db.View(func(txn *badger.Txn) error {
		val, err := get(txn, latestKey(modelHash, class, at))
		id = string(val)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("latest report for %s: %w", class, err)
	}
	return s.Get(ctx, id)
}

// List returns the metadata of stored reports, newest first. An empty
// modelHash lists the reports of every model. limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, modelHash string, limit int) ([]*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := keyPrefixMeta
	if modelHash != "" {
		prefix += modelHash + ":"
	}

	var results []*Metadata
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.Valid(); it.Next() {
			item := it.Item()
			var meta Metadata
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			})
			if err != nil {
				s.logger.Warn("skipping corrupt metadata", slog.String("key", string(item.Key())), slog.Any("error", err))
				continue
			}
			results = append(results, &meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}

	slices.SortStableFunc(results, compareMetadata)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Delete removes a report. If it was the latest for its class and context,
// the newest remaining report of the same model, class and context becomes
// the latest.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		hash, err := get(txn, indexKey(id))
		if err != nil {
			return err
		}
		mk := metaKey(string(hash), id)
		metaJSON, err := get(txn, mk)
		if err != nil {
			return err
		}
		var meta Metadata
		if err := json.Unmarshal(metaJSON, &meta); err != nil {
			return fmt.Errorf("unmarshaling metadata: %w", err)
		}

		for _, key := range [][]byte{dataKey(id), mk, indexKey(id)} {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		lk := latestKey(meta.ModelHash, meta.Class, meta.Context)
		current, err := get(txn, lk)
		if err != nil || string(current) != id {
			return nil
		}
		next, err := newestMatching(txn, &meta)
		if err != nil {
			return err
		}
		if next == "" {
			return txn.Delete(lk)
		}
		return txn.Set(lk, []byte(next))
	})
	if err != nil {
		return fmt.Errorf("deleting report %s: %w", id, err)
	}

	s.logger.Info("report deleted", slog.String("id", id))
	return nil
}

// newestMatching returns the id of the newest report of the same model,
// class and context as deleted, other than deleted itself, or "" if none
// is left.
func newestMatching(txn *badger.Txn, deleted *Metadata) (string, error) {
	prefix := []byte(keyPrefixMeta + deleted.ModelHash + ":")
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	var best *Metadata
	for it.Seek(prefix); it.Valid(); it.Next() {
		var meta Metadata
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		}); err != nil {
			continue
		}
		if meta.ID == deleted.ID || meta.Class != deleted.Class || meta.Context != deleted.Context {
			continue
		}
		if best == nil || compareMetadata(&meta, best) < 0 {
			best = &meta
		}
	}
	if best == nil {
		return "", nil
	}
	return best.ID, nil
}

// compareMetadata orders newest first, then by id.
func compareMetadata(a, b *Metadata) int {
	if c := cmp.Compare(b.CreatedAtMilli, a.CreatedAtMilli); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// get reads a value, mapping a missing key to ErrNotFound.
func get(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func dataKey(id string) []byte {
	return []byte(keyPrefixData + id)
}

func metaKey(modelHash, id string) []byte {
	return []byte(keyPrefixMeta + modelHash + ":" + id)
}

func indexKey(id string) []byte {
	return []byte(keyPrefixIndex + id)
}

func latestKey(modelHash, class, at string) []byte {
	return []byte(keyPrefixLatest + modelHash + ":" + class + "\x00" + at)
}

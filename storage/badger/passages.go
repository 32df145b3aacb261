package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/archivist/core"
	"github.com/poiesic/archivist/storage"
)

// maxTombstoneHops bounds redirect chains left by repeated deduplication.
const maxTombstoneHops = 8

// PassageRepository implements storage.PassageRepository for BadgerDB.
type PassageRepository struct {
	backend *Backend
}

var _ storage.PassageRepository = (*PassageRepository)(nil)

// NewPassageRepository creates a new PassageRepository.
func NewPassageRepository(backend *Backend) (*PassageRepository, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	return &PassageRepository{backend: backend}, nil
}

// Close is a no-op; the backend owns the database handle.
func (r *PassageRepository) Close() error {
	return nil
}

// FindSimilar delegates to the backend.
func (r *PassageRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.ScoredPassage, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}

// WithTransaction delegates to the backend.
func (r *PassageRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddPassages stores new passages.
func (r *PassageRepository) AddPassages(ctx context.Context, passages ...*core.Passage) ([]*core.Passage, error) {
	for _, passage := range passages {
		if err := core.ValidatePassage(passage); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, passage := range passages {
			key := makePassageKey(passage.ID)
			if _, err := tx.Get(key); err == nil {
				return fmt.Errorf("%w: passage %s", storage.ErrDuplicateKey, passage.ID)
			} else if err != badger.ErrKeyNotFound {
				return err
			}

			passage.InsertedAt = time.Now().UTC()
			passage.UpdatedAt = passage.InsertedAt
			if passage.Metadata == nil {
				passage.Metadata = map[string]string{}
			}

			if err := r.writePassage(tx, passage); err != nil {
				return err
			}

			// A re-added id is live again
			if err := tx.Delete(makeTombstoneKey(passage.ID)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	return passages, nil
}

// UpdatePassages replaces existing passages.
func (r *PassageRepository) UpdatePassages(ctx context.Context, passages ...*core.Passage) ([]*core.Passage, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, passage := range passages {
			old, err := readPassage(tx, passage.ID)
			if err != nil {
				return err
			}
			if old == nil {
				return fmt.Errorf("%w: %s", storage.ErrNotFound, passage.ID)
			}

			passage.InsertedAt = old.InsertedAt
			passage.UpdatedAt = time.Now().UTC()

			// Move the document index entry if the passage moved
			if old.SourceDocument != passage.SourceDocument || old.Position != passage.Position {
				if err := tx.Delete(makeDocumentKey(old.SourceDocument, old.Position, old.ID)); err != nil {
					return err
				}
			}

			if err := r.writePassage(tx, passage); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	return passages, nil
}

// DeletePassages removes passages by their IDs.
func (r *PassageRepository) DeletePassages(ctx context.Context, ids ...string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			passage, err := readPassage(tx, id)
			if err != nil {
				return err
			}
			if passage == nil {
				return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
			}
			if err := deletePassage(tx, passage); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// TombstonePassages removes every rewritten passage and records its survivor.
// Ids that are already gone still receive a tombstone.
func (r *PassageRepository) TombstonePassages(ctx context.Context, rewrite map[string]string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for oldID, newID := range rewrite {
			if oldID == newID {
				continue
			}
			passage, err := readPassage(tx, oldID)
			if err != nil {
				return err
			}
			if passage != nil {
				if err := deletePassage(tx, passage); err != nil {
					return err
				}
			}
			if err := tx.Set(makeTombstoneKey(oldID), []byte(newID)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetPassage retrieves a single passage by ID.
func (r *PassageRepository) GetPassage(ctx context.Context, id string) (*core.Passage, error) {
	var result *core.Passage
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readPassage(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
		}
		result.Metadata = r.backend.readMetadata(tx, id)
		return nil
	}, false)
	return result, err
}

// GetPassages retrieves passages in the order requested.
func (r *PassageRepository) GetPassages(ctx context.Context, ids ...string) ([]*core.Passage, error) {
	result := make([]*core.Passage, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for i, id := range ids {
			passage, err := r.resolvePassage(tx, id)
			if err != nil {
				return err
			}
			if passage != nil {
				passage.Metadata = r.backend.readMetadata(tx, passage.ID)
			}
			result[i] = passage
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetPassagesByDocument returns the passages of one document ordered by position.
func (r *PassageRepository) GetPassagesByDocument(ctx context.Context, sourceDocument string) ([]*core.Passage, error) {
	var results []*core.Passage
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialDocumentKey(sourceDocument)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var id string
			if err := iter.Item().Value(func(val []byte) error {
				id = string(val)
				return nil
			}); err != nil {
				return err
			}

			passage, err := readPassage(tx, id)
			if err != nil {
				return err
			}
			if passage == nil {
				r.backend.logger.Warn("document index references missing passage", "document", sourceDocument, "id", id)
				continue
			}
			passage.Metadata = r.backend.readMetadata(tx, id)
			results = append(results, passage)
		}
		return nil
	}, false)

	return results, err
}

// ListDocuments returns all document names, sorted.
func (r *PassageRepository) ListDocuments(ctx context.Context) ([]string, error) {
	var documents []string
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(passageDocumentPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			document := documentFromKey(iter.Item().Key())
			// Keys are sorted, so one document's entries are adjacent
			if len(documents) == 0 || documents[len(documents)-1] != document {
				documents = append(documents, document)
			}
		}
		return nil
	}, false)

	return documents, err
}

// CountPassages returns the number of live passages.
func (r *PassageRepository) CountPassages(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(passagePrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// Helper methods

// resolvePassage reads a passage, following tombstones to the survivor.
func (r *PassageRepository) resolvePassage(tx *badger.Txn, id string) (*core.Passage, error) {
	for hop := 0; hop <= maxTombstoneHops; hop++ {
		passage, err := readPassage(tx, id)
		if err != nil || passage != nil {
			return passage, err
		}

		item, err := tx.Get(makeTombstoneKey(id))
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if err := item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return nil, err
		}
	}
	r.backend.logger.Warn("tombstone chain too long", "id", id)
	return nil, nil
}

// writePassage stores the passage body, its metadata and its document index entry.
func (r *PassageRepository) writePassage(tx *badger.Txn, passage *core.Passage) error {
	if err := tx.Set(makePassageKey(passage.ID), storage.MarshalPassage(passage)); err != nil {
		return err
	}
	if err := tx.Set(makeMetadataKey(passage.ID), storage.MarshalMetadata(passage.Metadata)); err != nil {
		return err
	}

	docKey := makeDocumentKey(passage.SourceDocument, passage.Position, passage.ID)
	return tx.Set(docKey, []byte(passage.ID))
}

// readPassage reads a passage body from the transaction.
// Returns nil, nil if the passage doesn't exist. Metadata is left empty.
func readPassage(tx *badger.Txn, id string) (*core.Passage, error) {
	item, err := tx.Get(makePassageKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}
	return decodePassageItem(item)
}

// decodePassageItem decodes a primary passage item.
func decodePassageItem(item *badger.Item) (*core.Passage, error) {
	id := passageIDFromKey(item.KeyCopy(nil))
	var passage *core.Passage
	err := item.Value(func(val []byte) error {
		var unmarshalErr error
		passage, unmarshalErr = storage.UnmarshalPassage(id, val)
		return unmarshalErr
	})
	return passage, err
}

// deletePassage removes the body, metadata and document index entry of a passage.
func deletePassage(tx *badger.Txn, passage *core.Passage) error {
	keys := [][]byte{
		makeDocumentKey(passage.SourceDocument, passage.Position, passage.ID),
		makeMetadataKey(passage.ID),
		makePassageKey(passage.ID),
	}
	for _, key := range keys {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// Package coldstore implements the Bridge's cold storage tier: a single
// bbolt bucket named "anchors", keyed by rule_id, holding the encoded
// anchor block.
//
// Grounded directly on
// haukened-rr-dns/internal/dns/repos/blocklist/bolt/store.go's bbolt
// idiom (Open with a timeout, ensure-bucket-on-open, View/Update
// closures).
package coldstore

import (
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/fencio-dev/prism/internal/bridge/domain"
	"github.com/fencio-dev/prism/internal/bridge/errs"
)

var bucketAnchors = []byte("anchors")

// Store is the bbolt-backed cold storage tier.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) a Bolt database at path and ensures the anchors
// bucket exists.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "open cold storage", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAnchors)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.KindIO, "create anchors bucket", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return errs.Wrap(errs.KindIO, "close cold storage", err)
	}
	return nil
}

// Get returns the anchor block for rule_id, or ok=false if absent. A cold
// miss is not an error.
func (s *Store) Get(ruleId string) (domain.RuleVector, bool, error) {
	var (
		v   domain.RuleVector
		ok  bool
		err error
	)
	txErr := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAnchors)
		if b == nil {
			return nil
		}
		val := b.Get([]byte(ruleId))
		if val == nil {
			return nil
		}
		ok = true
		v, err = decodeRuleVector(val)
		return err
	})
	if txErr != nil {
		return domain.RuleVector{}, false, errs.Wrap(errs.KindIO, "read cold storage", txErr)
	}
	if err != nil {
		return domain.RuleVector{}, false, err
	}
	return v, ok, nil
}

// Put writes the anchor block for rule_id, overwriting any existing
// value.
func (s *Store) Put(ruleId string, v domain.RuleVector) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAnchors)
		return b.Put([]byte(ruleId), encodeRuleVector(v))
	})
	if err != nil {
		return errs.Wrap(errs.KindIO, "write cold storage", err)
	}
	return nil
}

// Count returns the number of rule_ids currently stored cold.
func (s *Store) Count() (uint64, error) {
	var n uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAnchors)
		if b == nil {
			return nil
		}
		n = uint64(b.Stats().KeyN)
		return nil
	})
	if err != nil {
		return 0, errs.Wrap(errs.KindIO, "stat cold storage", err)
	}
	return n, nil
}

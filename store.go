package appcache

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const dbFileName = "apps.db"

var appsBucket = []byte("apps")

// store keeps the ranked snapshot in a bbolt database, one value per rank key.
type store struct {
	db *bolt.DB
}

func openStore(dir string) (*store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := bolt.Open(filepath.Join(dir, dbFileName), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(appsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache db: %w", err)
	}
	return &store{db: db}, nil
}

func (s *store) close() error {
	return s.db.Close()
}

func (s *store) empty() (bool, error) {
	empty := true
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(appsBucket)
		if b == nil {
			return nil
		}
		k, _ := b.Cursor().First()
		empty = k == nil
		return nil
	})
	return empty, err
}

// scan decodes records in rank order, stopping after limit records when limit >= 0.
// A value that cannot be decoded fails the whole scan.
func (s *store) scan(limit int) ([]record, error) {
	var records []record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(appsBucket)
		if b == nil {
			return nil
		}

		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if limit >= 0 && len(records) >= limit {
				break
			}
			r, err := decodeRecord(v)
			if err != nil {
				return fmt.Errorf("rank %x: %w", k, err)
			}
			records = append(records, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// replace drops every stored record and writes records in order under fresh rank keys.
// Everything happens in one transaction, so a failed write leaves the old snapshot in place.
func (s *store) replace(records []record) error {
	values := make([][]byte, len(records))
	for i, r := range records {
		v, err := encodeRecord(r)
		if err != nil {
			return fmt.Errorf("encode %s: %w", r.ID, err)
		}
		values[i] = v
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(appsBucket) != nil {
			if err := tx.DeleteBucket(appsBucket); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket(appsBucket)
		if err != nil {
			return err
		}
		b.FillPercent = 1.0 // keys are appended in order

		for i, v := range values {
			if err := b.Put(rankKey(uint64(i)), v); err != nil {
				return err
			}
		}
		return nil
	})
}

func rankKey(rank uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, rank)
	return key
}

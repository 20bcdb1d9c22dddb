// Package usage persists lightweight request counters for observability.
// Counters are grouped per day and keyed by route; recording is best-effort
// and never blocks or fails the request path.
package usage

import (
	"encoding/binary"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const dayLayout = "2006-01-02"

// Store is a bbolt-backed request counter store.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the usage database at the given path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open usage store: %w", err)
	}
	return &Store{db: db}, nil
}

// Record increments the counter for route under today's bucket. Failures are
// logged at debug level only; usage tracking never disturbs serving.
func (s *Store) Record(route string) {
	if s == nil {
		return
	}
	day := time.Now().UTC().Format(dayLayout)
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket, errBucket := tx.CreateBucketIfNotExists([]byte(day))
		if errBucket != nil {
			return errBucket
		}
		var count uint64
		if v := bucket.Get([]byte(route)); len(v) == 8 {
			count = binary.BigEndian.Uint64(v)
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, count+1)
		return bucket.Put([]byte(route), buf)
	})
	if err != nil {
		log.Debugf("failed to record usage for %s: %v", route, err)
	}
}

// Count returns the counter for route on the given day (UTC, YYYY-MM-DD).
func (s *Store) Count(day, route string) uint64 {
	if s == nil {
		return 0
	}
	var count uint64
	_ = s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(day))
		if bucket == nil {
			return nil
		}
		if v := bucket.Get([]byte(route)); len(v) == 8 {
			count = binary.BigEndian.Uint64(v)
		}
		return nil
	})
	return count
}

// Today returns all counters recorded for the current UTC day.
func (s *Store) Today() map[string]uint64 {
	if s == nil {
		return nil
	}
	day := time.Now().UTC().Format(dayLayout)
	counters := make(map[string]uint64)
	_ = s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(day))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			if len(v) == 8 {
				counters[string(k)] = binary.BigEndian.Uint64(v)
			}
			return nil
		})
	})
	return counters
}

// Close releases the underlying database. Safe on a nil store.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

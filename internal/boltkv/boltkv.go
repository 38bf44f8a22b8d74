// Package boltkv is the local embedded key-value layer backing the client
// audit ledger (C8) and cache manager (C9): both live in the single
// per-project .bdp/bdp.db file, each in its own bucket.
package boltkv

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DB wraps a bbolt database with JSON-bucket helpers.
type DB struct {
	*bolt.DB
}

// Open opens or creates the project-local bbolt file at path.
func Open(path string) (*DB, error) {
	boltDB, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltkv: open %s: %w", path, err)
	}
	return &DB{boltDB}, nil
}

// CreateBucket creates a bucket if it doesn't already exist.
func (db *DB) CreateBucket(name string) error {
	return db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return fmt.Errorf("boltkv: create bucket %s: %w", name, err)
		}
		return nil
	})
}

// PutJSON stores value as JSON under key in bucket.
func (db *DB) PutJSON(bucket, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("boltkv: marshal: %w", err)
	}
	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("boltkv: bucket not found: %s", bucket)
		}
		return b.Put([]byte(key), data)
	})
}

// GetJSON unmarshals the JSON value stored under key into value.
func (db *DB) GetJSON(bucket, key string, value interface{}) error {
	return db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("boltkv: bucket not found: %s", bucket)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("boltkv: key not found: %s", key)
		}
		return json.Unmarshal(data, value)
	})
}

// Delete removes key from bucket.
func (db *DB) Delete(bucket, key string) error {
	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("boltkv: bucket not found: %s", bucket)
		}
		return b.Delete([]byte(key))
	})
}

// ForEachJSON iterates bucket in key order, unmarshaling each value via
// valueType before calling fn.
func (db *DB) ForEachJSON(bucket string, valueType func() interface{}, fn func(key string, value interface{}) error) error {
	return db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("boltkv: bucket not found: %s", bucket)
		}
		return b.ForEach(func(k, v []byte) error {
			value := valueType()
			if err := json.Unmarshal(v, value); err != nil {
				return fmt.Errorf("boltkv: unmarshal %s: %w", k, err)
			}
			return fn(string(k), value)
		})
	})
}

// Count returns the number of keys in bucket.
func (db *DB) Count(bucket string) (int, error) {
	n := 0
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("boltkv: bucket not found: %s", bucket)
		}
		stats := b.Stats()
		n = stats.KeyN
		return nil
	})
	return n, err
}

// Package keystore persists negotiated keys by name in a bbolt database, so
// that a key agreed in one process can encrypt or decrypt in another.
package keystore

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

var bucketKeys = []byte("keys")

// OpenTimeout bounds how long Open waits for another process to release the
// database.
var OpenTimeout = time.Second

// ErrNotFound is returned when no key is stored under the requested name.
var ErrNotFound = errors.New("key not found")

// A Store holds named keys.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the key database at path. The parent directory is
// created if it does not exist.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrap(err, "create keystore directory")
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: OpenTimeout})
	if err != nil {
		return nil, errors.Wrap(err, "open keystore")
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketKeys)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create keys bucket")
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Put stores key under name, replacing any key already there.
func (s *Store) Put(name string, key bitmap.Dense) error {
	if name == "" {
		return errors.New("key name must not be empty")
	}
	return errors.Wrapf(s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketKeys).Put([]byte(name), encodeKey(key))
	}), "put key %q", name)
}

// Get returns the key stored under name, or ErrNotFound.
func (s *Store) Get(name string) (bitmap.Dense, error) {
	var key bitmap.Dense
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketKeys).Get([]byte(name))
		if v == nil {
			return ErrNotFound
		}
		var err error
		key, err = decodeKey(v)
		return err
	})
	if err != nil {
		return bitmap.Empty(), errors.Wrapf(err, "get key %q", name)
	}
	return key, nil
}

// Delete removes the key stored under name. Deleting a missing key is not an
// error.
func (s *Store) Delete(name string) error {
	return errors.Wrapf(s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketKeys).Delete([]byte(name))
	}), "delete key %q", name)
}

// List returns the names of all stored keys in sorted order.
func (s *Store) List() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketKeys).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, errors.Wrap(err, "list keys")
}

// encodeKey lays key out as a 4-byte big-endian bit length followed by its
// packed bits.
func encodeKey(key bitmap.Dense) []byte {
	v := make([]byte, 4, 4+key.SizeBytes())
	binary.BigEndian.PutUint32(v, uint32(key.Size()))
	return append(v, key.Data()[:key.SizeBytes()]...)
}

func decodeKey(v []byte) (bitmap.Dense, error) {
	if len(v) < 4 {
		return bitmap.Empty(), errors.Errorf("stored key of %d bytes is truncated", len(v))
	}
	n := int(binary.BigEndian.Uint32(v))
	data := v[4:]
	if bitmap.BytesFor(n) != len(data) {
		return bitmap.Empty(), errors.Errorf("stored key claims %d bits but holds %d bytes", n, len(data))
	}
	// bbolt values are only valid for the life of the transaction.
	return bitmap.NewDense(append([]byte(nil), data...), n), nil
}

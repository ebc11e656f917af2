// Package snapshotstore persists mempool snapshots to disk, one file per
// snapshot in a date-partitioned directory tree, and indexes them by
// timestamp in a BoltDB file for fast time-range lookups (the basis for the
// historical-fee HTTP endpoint).
package snapshotstore

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"

	"github.com/douglaz/feeaugur/engine/snapshot"
)

var indexBucket = []byte("snapshots")

// Store is a file-backed snapshot store with a BoltDB time index.
type Store struct {
	dataRoot string
	db       *bolt.DB
}

// Open creates dataRoot (and the BoltDB file alongside it, at
// dataRoot/index.db) if they don't already exist.
func Open(dataRoot string) (*Store, error) {
	if err := os.MkdirAll(dataRoot, 0700); err != nil {
		return nil, fmt.Errorf("snapshotstore: creating data root: %v", err)
	}
	db, err := bolt.Open(filepath.Join(dataRoot, "index.db"), 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("snapshotstore: opening index: %v", err)
	}
	err = db.Update(func(tr *bolt.Tx) error {
		_, err := tr.CreateBucketIfNotExists(indexBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshotstore: creating index bucket: %v", err)
	}
	return &Store{dataRoot: dataRoot, db: db}, nil
}

// Close releases the index file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put writes snap to its dated file and indexes it by timestamp.
// dataRoot/<YYYY-MM-DD>/<blockheight>_<unix_timestamp_seconds>.json is the
// on-disk layout; writes are idempotent since the filename is derived
// entirely from snap's own fields.
func (s *Store) Put(snap snapshot.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("snapshotstore: marshaling snapshot: %v", err)
	}

	ts := snap.Timestamp().UTC()
	dir := filepath.Join(s.dataRoot, ts.Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("snapshotstore: creating date directory: %v", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%d_%d.json", snap.BlockHeight(), ts.Unix()))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("snapshotstore: writing snapshot file: %v", err)
	}

	return s.db.Update(func(tr *bolt.Tx) error {
		b := tr.Bucket(indexBucket)
		return b.Put(indexKey(ts, snap.BlockHeight()), []byte(path))
	})
}

// Range returns every snapshot indexed with a timestamp in [from, to],
// ascending by timestamp.
func (s *Store) Range(from, to time.Time) ([]snapshot.Snapshot, error) {
	var out []snapshot.Snapshot
	err := s.db.View(func(tr *bolt.Tx) error {
		b := tr.Bucket(indexBucket)
		c := b.Cursor()
		startKey, endKey := indexKey(from.UTC(), 0), indexKey(to.UTC(), 0xFFFFFFFF)
		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			data, err := os.ReadFile(string(v))
			if err != nil {
				return fmt.Errorf("snapshotstore: reading %s: %v", v, err)
			}
			var snap snapshot.Snapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return fmt.Errorf("snapshotstore: unmarshaling %s: %v", v, err)
			}
			out = append(out, snap)
		}
		return nil
	})
	return out, err
}

// indexKey returns a 12-byte big-endian key: Unix second followed by block
// height. Byte order matches numeric order, so Cursor.Seek range scans work
// directly; the height suffix keeps two snapshots sharing the same second
// (a slow poll, or two heights observed within one second) from colliding.
func indexKey(t time.Time, height uint32) []byte {
	k := make([]byte, 12)
	binary.BigEndian.PutUint64(k[:8], uint64(t.Unix()))
	binary.BigEndian.PutUint32(k[8:], height)
	return k
}

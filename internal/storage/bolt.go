package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"hybridserver/internal/document"
)

// BoltStore keeps documents in an embedded bolt file, one bucket per type.
// It survives restarts without an external database.
type BoltStore struct {
	db *bolt.DB
}

// boltRecord is the value stored under each document id.
type boltRecord struct {
	Content   string `json:"content"`
	SchemaRef string `json:"xsd,omitempty"`
}

// OpenBoltStore opens or creates the bolt file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create bolt directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt file: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, t := range document.All {
			if _, err := tx.CreateBucketIfNotExists([]byte(t.Table())); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Gateway returns the bucket gateway for t, or nil for an unknown type.
func (s *BoltStore) Gateway(t document.Type) Gateway {
	if _, ok := document.Parse(string(t)); !ok {
		return nil
	}
	return &boltBucket{db: s.db, typ: t, name: []byte(t.Table())}
}

// Close releases the bolt file lock.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

type boltBucket struct {
	db   *bolt.DB
	typ  document.Type
	name []byte
}

func (b *boltBucket) List(_ context.Context) (map[string]string, error) {
	out := make(map[string]string)
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(b.name).ForEach(func(k, v []byte) error {
			var rec boltRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out[string(k)] = rec.Content
			return nil
		})
	})
	if err != nil {
		return nil, storageErr("list", b.typ, err)
	}
	return out, nil
}

func (b *boltBucket) Get(_ context.Context, id string) (string, error) {
	rec, err := b.record("get", id)
	if err != nil {
		return "", err
	}
	return rec.Content, nil
}

func (b *boltBucket) SchemaRef(_ context.Context, id string) (string, error) {
	rec, err := b.record("schema ref", id)
	if err != nil {
		return "", err
	}
	return rec.SchemaRef, nil
}

func (b *boltBucket) record(op, id string) (*boltRecord, error) {
	var rec *boltRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(b.name).Get([]byte(id))
		if v == nil {
			return nil
		}
		rec = &boltRecord{}
		return json.Unmarshal(v, rec)
	})
	if err != nil {
		return nil, storageErr(op, b.typ, err)
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (b *boltBucket) Create(_ context.Context, id, content, schemaRef string) error {
	rec := boltRecord{Content: content}
	if b.typ.HasSchemaRef() {
		rec.SchemaRef = schemaRef
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return storageErr("create", b.typ, err)
	}

	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.name).Put([]byte(id), data)
	})
	if err != nil {
		return storageErr("create", b.typ, err)
	}
	return nil
}

func (b *boltBucket) Delete(_ context.Context, id string) (bool, error) {
	var removed bool
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(b.name)
		if bucket.Get([]byte(id)) == nil {
			return nil
		}
		removed = true
		return bucket.Delete([]byte(id))
	})
	if err != nil {
		return false, storageErr("delete", b.typ, err)
	}
	return removed, nil
}

func (b *boltBucket) Exists(_ context.Context, id string) (bool, error) {
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(b.name).Get([]byte(id)) != nil
		return nil
	})
	if err != nil {
		return false, storageErr("exists", b.typ, err)
	}
	return found, nil
}

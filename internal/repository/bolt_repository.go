package repository

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"stockchat/backend/internal/model"
)

type boltRepository struct {
	db *bolt.DB
}

// NewBoltRepository stores each thread in its own bucket, keyed by a
// big-endian sequence so iteration follows append order.
func NewBoltRepository(db *bolt.DB) ThreadRepository {
	return &boltRepository{db: db}
}

// OpenBolt opens (or creates) the bolt file at path.
func OpenBolt(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	return db, nil
}

func threadBucketName(threadID string) []byte {
	return []byte("thread-" + threadID)
}

func (r *boltRepository) GetThread(_ context.Context, threadID string) ([]model.ThreadMessage, error) {
	messages := []model.ThreadMessage{}
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(threadBucketName(threadID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var msg model.ThreadMessage
			if err := json.Unmarshal(v, &msg); err != nil {
				return fmt.Errorf("failed to unmarshal message: %w", err)
			}
			messages = append(messages, msg)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *boltRepository) AppendMessages(_ context.Context, threadID string, msgs ...model.ThreadMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(threadBucketName(threadID))
		if err != nil {
			return fmt.Errorf("failed to create thread bucket: %w", err)
		}
		for _, msg := range msgs {
			seq, err := b.NextSequence()
			if err != nil {
				return fmt.Errorf("failed to get next sequence: %w", err)
			}
			v, err := json.Marshal(msg)
			if err != nil {
				return fmt.Errorf("failed to marshal message: %w", err)
			}
			key := make([]byte, 8)
			binary.BigEndian.PutUint64(key, seq)
			if err := b.Put(key, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *boltRepository) DeleteThread(_ context.Context, threadID string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket(threadBucketName(threadID))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return ErrNotFound
		}
		return err
	})
}

package score

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// badgerCache is the embedded on-disk backend. It survives restarts and
// needs no external service; TTL expiry is handled by badger itself.
type badgerCache struct {
	db *badger.DB
}

func newBadgerCache(path string) (*badgerCache, error) {
	if path == "" {
		return nil, fmt.Errorf("badger score cache requires a directory path")
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache at %s: %w", path, err)
	}
	return &badgerCache{db: db}, nil
}

func (c *badgerCache) Get(ctx context.Context, key string) (int, bool, error) {
	var score int
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			n, err := strconv.Atoi(string(value))
			if err != nil {
				return fmt.Errorf("badger score entry %q is not a number: %w", value, err)
			}
			score = n
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("badger get: %w", err)
	}
	return score, true, nil
}

func (c *badgerCache) Set(ctx context.Context, key string, score int, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), []byte(strconv.Itoa(score))).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("badger set: %w", err)
	}
	return nil
}

func (c *badgerCache) Close() error {
	return c.db.Close()
}

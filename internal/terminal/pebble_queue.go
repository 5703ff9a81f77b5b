package terminal

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/Dimas0824/PayTo-sub001/internal/domain"
)

// PebbleQueue is the durable on-disk queue backing a terminal. Every write
// is synced through the WAL: a power cut right after checkout must not lose
// the transaction.
type PebbleQueue struct {
	mu     sync.Mutex
	db     *pebble.DB
	closed bool
}

func OpenPebbleQueue(dir string) (*PebbleQueue, error) {
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleQueue{db: db}, nil
}

func (q *PebbleQueue) Enqueue(txn domain.QueuedTransaction) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if txn.ClientTxnUUID == "" {
		return fmt.Errorf("queued transaction has no identifier")
	}

	payload, err := json.Marshal(txn)
	if err != nil {
		return err
	}
	return q.db.Set(queueKey(txn.ClientTxnUUID), payload, pebble.Sync)
}

func (q *PebbleQueue) ListPending() ([]domain.QueuedTransaction, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrQueueClosed
	}

	it, err := q.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(queueKeyPrefix),
		UpperBound: []byte(queueKeyPrefix + "\xff"),
	})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	pending := make([]domain.QueuedTransaction, 0, 32)
	for it.First(); it.Valid(); it.Next() {
		var txn domain.QueuedTransaction
		if err := json.Unmarshal(it.Value(), &txn); err != nil {
			return nil, fmt.Errorf("corrupt queue record %q: %w", it.Key(), err)
		}
		pending = append(pending, txn)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}

	sort.Slice(pending, func(i, j int) bool {
		if pending[i].EnqueuedAt.Equal(pending[j].EnqueuedAt) {
			return pending[i].ClientTxnUUID < pending[j].ClientTxnUUID
		}
		return pending[i].EnqueuedAt.Before(pending[j].EnqueuedAt)
	})
	return pending, nil
}

func (q *PebbleQueue) Remove(clientTxnUUID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	key := queueKey(clientTxnUUID)
	if _, closer, err := q.db.Get(key); err != nil {
		if err == pebble.ErrNotFound {
			return ErrNotQueued
		}
		return err
	} else {
		_ = closer.Close()
	}
	return q.db.Delete(key, pebble.Sync)
}

func (q *PebbleQueue) CountPending() (int, error) {
	pending, err := q.ListPending()
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}

func (q *PebbleQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	return q.db.Close()
}

const queueKeyPrefix = "txn:"

func queueKey(clientTxnUUID string) []byte {
	return []byte(queueKeyPrefix + clientTxnUUID)
}

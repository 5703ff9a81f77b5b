package terminal

import (
	"sort"
	"sync"

	"github.com/Dimas0824/PayTo-sub001/internal/domain"
)

// MemoryQueue is a non-durable Queue for tests.
type MemoryQueue struct {
	mu     sync.Mutex
	items  map[string]domain.QueuedTransaction
	closed bool
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{items: make(map[string]domain.QueuedTransaction)}
}

func (q *MemoryQueue) Enqueue(txn domain.QueuedTransaction) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.items[txn.ClientTxnUUID] = txn
	return nil
}

func (q *MemoryQueue) ListPending() ([]domain.QueuedTransaction, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrQueueClosed
	}

	pending := make([]domain.QueuedTransaction, 0, len(q.items))
	for _, txn := range q.items {
		pending = append(pending, txn)
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].EnqueuedAt.Equal(pending[j].EnqueuedAt) {
			return pending[i].ClientTxnUUID < pending[j].ClientTxnUUID
		}
		return pending[i].EnqueuedAt.Before(pending[j].EnqueuedAt)
	})
	return pending, nil
}

func (q *MemoryQueue) Remove(clientTxnUUID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if _, ok := q.items[clientTxnUUID]; !ok {
		return ErrNotQueued
	}
	delete(q.items, clientTxnUUID)
	return nil
}

func (q *MemoryQueue) CountPending() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0, ErrQueueClosed
	}
	return len(q.items), nil
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

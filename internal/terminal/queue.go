// Package terminal is the client side of the point of sale: a durable local
// transaction queue and the syncer that drains it to the server. A checkout
// taken offline is enqueued here and survives process restarts until the
// server reports a terminal outcome for it.
package terminal

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Dimas0824/PayTo-sub001/internal/domain"
)

var (
	ErrQueueClosed = errors.New("queue is closed")
	ErrNotQueued   = errors.New("transaction not in queue")
)

// Queue is the durable client-side transaction queue. Enqueue must persist
// before returning; a record only leaves the queue via Remove.
type Queue interface {
	Enqueue(txn domain.QueuedTransaction) error
	ListPending() ([]domain.QueuedTransaction, error)
	Remove(clientTxnUUID string) error
	CountPending() (int, error)
	Close() error
}

// NewQueuedTransaction stamps a checkout payload with its client-side
// identity. The identifier is minted exactly once, here; retries reuse it.
func NewQueuedTransaction(payload domain.CheckoutPayload) domain.QueuedTransaction {
	now := time.Now().UTC()
	if strings.TrimSpace(payload.ClientTxnUUID) == "" {
		payload.ClientTxnUUID = uuid.NewString()
	}
	if payload.OccurredAt.IsZero() {
		payload.OccurredAt = now
	}
	return domain.QueuedTransaction{
		ClientTxnUUID: payload.ClientTxnUUID,
		OccurredAt:    payload.OccurredAt,
		EnqueuedAt:    now,
		Payload:       payload,
	}
}

package terminal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Dimas0824/PayTo-sub001/internal/domain"
)

// FlushResult summarizes one flush attempt against the batch endpoint.
type FlushResult struct {
	Attempted  int
	Processed  int
	Duplicates int
	Rejected   int
	Pending    int
}

// Syncer drains the local queue to the server's batch endpoint. Transport
// failures leave the queue untouched; the next flush resubmits the same
// identifiers and the server's ledger sorts out the duplicates.
type Syncer struct {
	queue    Queue
	endpoint string
	client   *http.Client
	deviceID string
	token    string
	online   func() bool
}

func NewSyncer(queue Queue, endpoint string, deviceID string, token string, online func() bool) *Syncer {
	if online == nil {
		online = func() bool { return true }
	}
	return &Syncer{
		queue:    queue,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		deviceID: deviceID,
		token:    token,
		online:   online,
	}
}

// Flush submits every pending transaction in one batch and removes the ones
// the server reports as terminal (PROCESSED or DUPLICATE). Offline or with
// an empty queue it is a no-op.
func (s *Syncer) Flush(ctx context.Context) (FlushResult, error) {
	if !s.online() {
		// Trivial success: nothing is attempted, but the caller still
		// sees how much is waiting for connectivity.
		pending, err := s.queue.CountPending()
		if err != nil {
			return FlushResult{}, err
		}
		return FlushResult{Pending: pending}, nil
	}

	pending, err := s.queue.ListPending()
	if err != nil {
		return FlushResult{}, err
	}
	if len(pending) == 0 {
		return FlushResult{}, nil
	}

	req := domain.SyncBatchRequest{
		DeviceID:     s.deviceID,
		BatchUUID:    uuid.NewString(),
		Transactions: make([]domain.SyncTransaction, 0, len(pending)),
	}
	for _, txn := range pending {
		req.Transactions = append(req.Transactions, domain.SyncTransaction{
			ClientTxnUUID: txn.ClientTxnUUID,
			OccurredAt:    txn.OccurredAt,
			Checkout:      txn.Payload,
		})
	}

	result := FlushResult{Attempted: len(pending)}

	resp, err := s.submit(ctx, req)
	if err != nil {
		result.Pending = len(pending)
		return result, fmt.Errorf("sync batch %s: %w", req.BatchUUID, err)
	}

	for _, txnResult := range resp.Results {
		switch txnResult.Status {
		case domain.SyncStatusProcessed:
			result.Processed++
		case domain.SyncStatusDuplicate:
			result.Duplicates++
		case domain.SyncStatusRejected:
			// Stays queued for review; a corrected payload reuses the
			// same identifier.
			result.Rejected++
			log.Printf("[syncer] txn %s rejected: %s", txnResult.ClientTxnUUID, txnResult.Reason)
			continue
		default:
			log.Printf("[syncer] txn %s: unknown status %q, keeping queued", txnResult.ClientTxnUUID, txnResult.Status)
			continue
		}

		if err := s.queue.Remove(txnResult.ClientTxnUUID); err != nil && err != ErrNotQueued {
			return result, fmt.Errorf("remove %s from queue: %w", txnResult.ClientTxnUUID, err)
		}
	}

	remaining, err := s.queue.CountPending()
	if err != nil {
		return result, err
	}
	result.Pending = remaining
	return result, nil
}

func (s *Syncer) submit(ctx context.Context, batch domain.SyncBatchRequest) (domain.SyncBatchResponse, error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return domain.SyncBatchResponse{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.SyncBatchResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Device-ID", s.deviceID)
	if s.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.token)
	}

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		return domain.SyncBatchResponse{}, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return domain.SyncBatchResponse{}, fmt.Errorf("server returned %d: %s", httpResp.StatusCode, bytes.TrimSpace(body))
	}

	var resp domain.SyncBatchResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return domain.SyncBatchResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// Command terminal is the cashier-side companion to the server: it keeps a
// durable local queue of checkouts and flushes them to the batch sync
// endpoint when connectivity allows.
//
// Usage:
//
//	terminal enqueue < checkout.json
//	terminal pending
//	terminal flush
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/Dimas0824/PayTo-sub001/internal/domain"
	"github.com/Dimas0824/PayTo-sub001/internal/terminal"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[terminal] WARN: could not load .env: %v", err)
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	queueDir := getEnv("QUEUE_DIR", "pos-queue")
	queue, err := terminal.OpenPebbleQueue(queueDir)
	if err != nil {
		log.Fatalf("open queue at %s: %v", queueDir, err)
	}
	defer queue.Close()

	switch os.Args[1] {
	case "enqueue":
		runEnqueue(queue)
	case "pending":
		runPending(queue)
	case "flush":
		runFlush(queue)
	default:
		usage()
		os.Exit(2)
	}
}

func runEnqueue(queue terminal.Queue) {
	var payload domain.CheckoutPayload
	if err := json.NewDecoder(os.Stdin).Decode(&payload); err != nil {
		log.Fatalf("decode checkout payload from stdin: %v", err)
	}

	txn := terminal.NewQueuedTransaction(payload)
	if err := queue.Enqueue(txn); err != nil {
		log.Fatalf("enqueue: %v", err)
	}
	fmt.Printf("queued %s (occurred_at %s)\n", txn.ClientTxnUUID, txn.OccurredAt.Format(time.RFC3339))
}

func runPending(queue terminal.Queue) {
	pending, err := queue.ListPending()
	if err != nil {
		log.Fatalf("list pending: %v", err)
	}
	if len(pending) == 0 {
		fmt.Println("queue is empty")
		return
	}
	for _, txn := range pending {
		fmt.Printf("%s  %s  %s  items=%d\n", txn.ClientTxnUUID, txn.OccurredAt.Format(time.RFC3339), txn.Payload.PaymentMethod, len(txn.Payload.Items))
	}
	fmt.Printf("%d pending\n", len(pending))
}

func runFlush(queue terminal.Queue) {
	endpoint := getEnv("SYNC_ENDPOINT", "http://127.0.0.1:8080/api/v1/sync/batch")
	deviceID := getEnv("DEVICE_ID", "dev-terminal")
	token := os.Getenv("ACCESS_TOKEN")

	syncer := terminal.NewSyncer(queue, endpoint, deviceID, token, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	result, err := syncer.Flush(ctx)
	if err != nil {
		log.Fatalf("flush failed (queue untouched, retry later): %v", err)
	}
	fmt.Printf("attempted=%d processed=%d duplicates=%d rejected=%d pending=%d\n",
		result.Attempted, result.Processed, result.Duplicates, result.Rejected, result.Pending)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: terminal <enqueue|pending|flush>")
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

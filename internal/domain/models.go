package domain

import "time"

const (
	PaymentMethodCash    = "CASH"
	PaymentMethodEwallet = "EWALLET"
)

const (
	SaleStatusPaid        = "PAID"
	PaymentStatusCaptured = "CAPTURED"
)

// Per-transaction sync outcomes. PROCESSED and DUPLICATE are terminal:
// the client queue may discard the record. REJECTED is reviewable and the
// identifier stays resubmittable.
const (
	SyncStatusProcessed = "PROCESSED"
	SyncStatusDuplicate = "DUPLICATE"
	SyncStatusRejected  = "REJECTED"
)

const (
	BatchStatusCompleted = "COMPLETED"
	BatchStatusPartial   = "PARTIAL"
)

type Product struct {
	ID              string  `json:"product_id"`
	Name            string  `json:"name"`
	PriceCents      int64   `json:"price_cents"`
	DiscountPercent float64 `json:"discount_percent"`
	Active          bool    `json:"active"`
}

// CheckoutItem is one requested cart line. Qty is fractional to support
// weighed goods. DiscountCents, when positive, overrides the discount the
// catalog percent would produce for this line.
type CheckoutItem struct {
	ProductID     string  `json:"product_id"`
	Qty           float64 `json:"qty"`
	DiscountCents int64   `json:"discount_amount,omitempty"`
}

// CheckoutPayload is the client-to-server checkout request, used both for
// the direct online path and inside a sync batch. ClientTxnUUID is the sole
// correlation key between client and server state.
type CheckoutPayload struct {
	ClientTxnUUID     string         `json:"local_txn_uuid"`
	OccurredAt        time.Time      `json:"occurred_at"`
	PaymentMethod     string         `json:"payment_method"`
	CashReceivedCents int64          `json:"cash_received,omitempty"`
	Reference         string         `json:"reference,omitempty"`
	Items             []CheckoutItem `json:"items"`
}

// PricedLine is an immutable priced cart line. ProductName is snapshotted
// at price time so later catalog edits never rewrite history.
type PricedLine struct {
	ProductID      string  `json:"product_id"`
	ProductName    string  `json:"product_name"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	Qty            float64 `json:"qty"`
	DiscountCents  int64   `json:"discount_cents"`
	LineTotalCents int64   `json:"line_total_cents"`
	TaxCents       int64   `json:"tax_cents"`
}

type Totals struct {
	SubtotalCents   int64 `json:"subtotal"`
	DiscountCents   int64 `json:"discount_total"`
	TaxCents        int64 `json:"tax_total"`
	GrandTotalCents int64 `json:"grand_total"`
	PaidCents       int64 `json:"paid_total"`
	ChangeCents     int64 `json:"change_total"`
}

// SaleDraft is a successfully priced checkout ready for atomic persistence.
type SaleDraft struct {
	ClientTxnUUID   string
	DeviceID        string
	StoreID         string
	CashierUsername string
	PaymentMethod   string
	Reference       string
	OccurredAt      time.Time
	Synced          bool
	Lines           []PricedLine
	Totals          Totals
}

// Sale is the persisted record of one checkout. Immutable after creation
// except for the invoice number assigned inside the creating transaction
// and the sync timestamp.
type Sale struct {
	ID              int64      `json:"sale_id"`
	InvoiceNo       string     `json:"invoice_no"`
	ClientTxnUUID   string     `json:"local_txn_uuid"`
	DeviceID        string     `json:"device_id"`
	StoreID         string     `json:"store_id"`
	CashierUsername string     `json:"cashier_username"`
	PaymentMethod   string     `json:"payment_method"`
	Reference       string     `json:"reference,omitempty"`
	SubtotalCents   int64      `json:"subtotal_cents"`
	DiscountCents   int64      `json:"discount_cents"`
	TaxCents        int64      `json:"tax_cents"`
	GrandTotalCents int64      `json:"grand_total_cents"`
	PaidCents       int64      `json:"paid_cents"`
	ChangeCents     int64      `json:"change_cents"`
	Status          string     `json:"status"`
	OccurredAt      time.Time  `json:"occurred_at"`
	CreatedAt       time.Time  `json:"created_at"`
	SyncedAt        *time.Time `json:"synced_at,omitempty"`
	Items           []SaleItem `json:"items"`
	Payments        []Payment  `json:"payments"`
}

type SaleItem struct {
	SaleID         int64   `json:"sale_id"`
	ProductID      string  `json:"product_id"`
	ProductName    string  `json:"product_name"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	Qty            float64 `json:"qty"`
	DiscountCents  int64   `json:"discount_cents"`
	LineTotalCents int64   `json:"line_total_cents"`
	TaxCents       int64   `json:"tax_cents"`
}

type Payment struct {
	SaleID      int64     `json:"sale_id"`
	Method      string    `json:"method"`
	AmountCents int64     `json:"amount_cents"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// IdempotencyRecord marks a client transaction identifier as consumed.
// Created at most once per identifier, never updated.
type IdempotencyRecord struct {
	ClientTxnUUID string    `json:"local_txn_uuid"`
	SaleID        int64     `json:"sale_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// SyncBatchRecord is the informational audit row for one batch submission.
// Correctness rests on the per-transaction idempotency ledger, not on this.
type SyncBatchRecord struct {
	BatchUUID  string    `json:"batch_uuid"`
	DeviceID   string    `json:"device_id"`
	Processed  int       `json:"processed"`
	Duplicates int       `json:"duplicates"`
	Rejected   int       `json:"rejected"`
	Status     string    `json:"status"`
	ReceivedAt time.Time `json:"received_at"`
}

type CheckoutResponse struct {
	SaleID        int64        `json:"sale_id"`
	InvoiceNo     string       `json:"invoice_no"`
	Status        string       `json:"status"`
	PaymentMethod string       `json:"payment_method"`
	Items         []PricedLine `json:"items"`
	Totals        Totals       `json:"totals"`
	Duplicate     bool         `json:"duplicate"`
	CreatedAt     string       `json:"created_at"`
}

type SyncTransaction struct {
	ClientTxnUUID string          `json:"local_txn_uuid"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Checkout      CheckoutPayload `json:"checkout"`
}

type SyncBatchRequest struct {
	DeviceID     string            `json:"device_id"`
	BatchUUID    string            `json:"batch_uuid"`
	Transactions []SyncTransaction `json:"transactions"`
}

type SyncResult struct {
	ClientTxnUUID string `json:"local_txn_uuid"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	SaleID        int64  `json:"sale_id,omitempty"`
	InvoiceNo     string `json:"invoice_no,omitempty"`
}

type SyncBatchResponse struct {
	BatchUUID string       `json:"batch_uuid"`
	Results   []SyncResult `json:"results"`
}

// QueuedTransaction is the client-local durable record of a checkout that
// has not yet reached a terminal outcome on the server.
type QueuedTransaction struct {
	ClientTxnUUID string          `json:"local_txn_uuid"`
	OccurredAt    time.Time       `json:"occurred_at"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
	Payload       CheckoutPayload `json:"payload"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	StoreID       string    `json:"store_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dimas0824/PayTo-sub001/internal/domain"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateTxn   = errors.New("client transaction already recorded")
	ErrInvalidRequest = errors.New("invalid request")
)

// Repository is the server-side store of record for the sale graph and the
// idempotency ledger.
//
// CreateSale is the checkout persister: it inserts the sale row, derives and
// assigns the invoice number from the row's storage identity, inserts the
// sale items and the payment, and writes the idempotency ledger row for the
// draft's client transaction identifier — all in one atomic storage
// transaction. A replayed identifier surfaces as ErrDuplicateTxn with
// nothing written; the ledger's uniqueness constraint is the only
// serialization point, so concurrent batches cannot both win.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)

	CreateSale(ctx context.Context, draft domain.SaleDraft) (*domain.Sale, error)
	FindSaleByID(ctx context.Context, id int64) (*domain.Sale, error)
	FindSaleByClientTxn(ctx context.Context, clientTxnUUID string) (*domain.Sale, error)

	FindIdempotencyRecord(ctx context.Context, clientTxnUUID string) (*domain.IdempotencyRecord, error)

	CreateSyncBatch(ctx context.Context, record domain.SyncBatchRecord) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// InvoiceNo derives the invoice number for a newly created sale from its
// storage identity and creation date. Pure: the number is never guessed
// ahead of the insert that produced the identity.
func InvoiceNo(saleID int64, createdAt time.Time) string {
	return fmt.Sprintf("INV/%s/%06d", createdAt.UTC().Format("20060102"), saleID)
}

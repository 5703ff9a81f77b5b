package memory

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Dimas0824/PayTo-sub001/internal/domain"
	"github.com/Dimas0824/PayTo-sub001/internal/store"
)

// Store is an in-memory Repository used for dev mode and tests. It mirrors
// the postgres store's semantics, including first-writer-wins on the client
// transaction identifier.
type Store struct {
	mu         sync.RWMutex
	products   map[string]domain.Product
	salesByID  map[int64]domain.Sale
	saleIDByTx map[string]int64
	ledger     map[string]domain.IdempotencyRecord
	batches    []domain.SyncBatchRecord
	auditLogs  []domain.AuditLog
	users      map[string]domain.UserAccount
	nextSaleID int64
}

func New() *Store {
	return &Store{
		products:   make(map[string]domain.Product),
		salesByID:  make(map[int64]domain.Sale),
		saleIDByTx: make(map[string]int64),
		ledger:     make(map[string]domain.IdempotencyRecord),
		users:      make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD; if
// unset, hardcoded dev defaults are used with a warning. The in-memory
// store is never used in production (postgres is used when DATABASE_URL is
// set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()
	for _, p := range []domain.Product{
		{ID: "PRD-BERAS-01", Name: "Beras Premium 5kg", PriceCents: 45000, DiscountPercent: 0, Active: true},
		{ID: "PRD-MINYAK-01", Name: "Minyak Goreng 2L", PriceCents: 52000, DiscountPercent: 5, Active: true},
		{ID: "PRD-GULA-01", Name: "Gula Pasir 1kg", PriceCents: 17400, DiscountPercent: 0, Active: true},
		{ID: "PRD-KOPI-01", Name: "Kopi Bubuk 200g", PriceCents: 26000, DiscountPercent: 10, Active: true},
		{ID: "PRD-DAGING-01", Name: "Daging Sapi per kg", PriceCents: 120000, DiscountPercent: 0, Active: true},
		{ID: "PRD-LAMA-01", Name: "Produk Lama", PriceCents: 9900, DiscountPercent: 0, Active: false},
	} {
		s.products[p.ID] = p
	}
	s.users = seedUsers()
	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.Active {
			products = append(products, p)
		}
	}
	return products, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrInvalidRequest
	}
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) CreateSale(_ context.Context, draft domain.SaleDraft) (*domain.Sale, error) {
	if draft.ClientTxnUUID == "" || len(draft.Lines) == 0 {
		return nil, store.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ledger[draft.ClientTxnUUID]; exists {
		return nil, store.ErrDuplicateTxn
	}

	s.nextSaleID++
	id := s.nextSaleID
	createdAt := time.Now().UTC()

	sale := domain.Sale{
		ID:              id,
		InvoiceNo:       store.InvoiceNo(id, createdAt),
		ClientTxnUUID:   draft.ClientTxnUUID,
		DeviceID:        draft.DeviceID,
		StoreID:         draft.StoreID,
		CashierUsername: draft.CashierUsername,
		PaymentMethod:   draft.PaymentMethod,
		Reference:       draft.Reference,
		SubtotalCents:   draft.Totals.SubtotalCents,
		DiscountCents:   draft.Totals.DiscountCents,
		TaxCents:        draft.Totals.TaxCents,
		GrandTotalCents: draft.Totals.GrandTotalCents,
		PaidCents:       draft.Totals.PaidCents,
		ChangeCents:     draft.Totals.ChangeCents,
		Status:          domain.SaleStatusPaid,
		OccurredAt:      draft.OccurredAt.UTC(),
		CreatedAt:       createdAt,
	}
	if draft.Synced {
		syncedAt := createdAt
		sale.SyncedAt = &syncedAt
	}

	sale.Items = make([]domain.SaleItem, 0, len(draft.Lines))
	for _, line := range draft.Lines {
		sale.Items = append(sale.Items, domain.SaleItem{
			SaleID:         id,
			ProductID:      line.ProductID,
			ProductName:    line.ProductName,
			UnitPriceCents: line.UnitPriceCents,
			Qty:            line.Qty,
			DiscountCents:  line.DiscountCents,
			LineTotalCents: line.LineTotalCents,
			TaxCents:       line.TaxCents,
		})
	}
	sale.Payments = []domain.Payment{{
		SaleID:      id,
		Method:      draft.PaymentMethod,
		AmountCents: draft.Totals.PaidCents,
		Status:      domain.PaymentStatusCaptured,
		CreatedAt:   createdAt,
	}}

	s.salesByID[id] = sale
	s.saleIDByTx[draft.ClientTxnUUID] = id
	s.ledger[draft.ClientTxnUUID] = domain.IdempotencyRecord{
		ClientTxnUUID: draft.ClientTxnUUID,
		SaleID:        id,
		CreatedAt:     createdAt,
	}

	copied := cloneSale(sale)
	return &copied, nil
}

func (s *Store) FindSaleByID(_ context.Context, id int64) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := cloneSale(sale)
	return &copied, nil
}

func (s *Store) FindSaleByClientTxn(_ context.Context, clientTxnUUID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.saleIDByTx[clientTxnUUID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := cloneSale(s.salesByID[id])
	return &copied, nil
}

func (s *Store) FindIdempotencyRecord(_ context.Context, clientTxnUUID string) (*domain.IdempotencyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.ledger[clientTxnUUID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := record
	return &copied, nil
}

func (s *Store) CreateSyncBatch(_ context.Context, record domain.SyncBatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, record)
	return nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Username]; exists {
		return store.ErrInvalidRequest
	}
	s.users[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.users[username] = user
	return nil
}

func cloneSale(sale domain.Sale) domain.Sale {
	copied := sale
	copied.Items = append([]domain.SaleItem(nil), sale.Items...)
	copied.Payments = append([]domain.Payment(nil), sale.Payments...)
	if sale.SyncedAt != nil {
		at := *sale.SyncedAt
		copied.SyncedAt = &at
	}
	return copied
}

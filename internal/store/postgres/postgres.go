package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Dimas0824/PayTo-sub001/internal/domain"
	"github.com/Dimas0824/PayTo-sub001/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RunMigrations applies the SQL migrations in migrationsDirPath against the
// store's database.
func (s *Store) RunMigrations(migrationsDirPath string) error {
	driver, err := migratepg.WithInstance(s.db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price_cents, discount_percent, active
		FROM products
		WHERE active = true
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.DiscountPercent, &p.Active); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	if len(ids) == 0 {
		return map[string]domain.Product{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price_cents, discount_percent, active
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make(map[string]domain.Product, len(ids))
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.DiscountPercent, &p.Active); err != nil {
			return nil, err
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidRequest
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price_cents, discount_percent, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now(),now())
	`, product.ID, product.Name, product.PriceCents, product.DiscountPercent, product.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRequest
		}
		return nil, err
	}

	created := product
	return &created, nil
}

// CreateSale inserts the sale, assigns the invoice number derived from the
// storage-assigned id, inserts the sale items, the payment, and the
// idempotency ledger row in one serializable transaction. A unique
// violation on the client transaction identifier means another writer
// already finalized it; the caller observes ErrDuplicateTxn and nothing
// from this invocation is visible.
func (s *Store) CreateSale(ctx context.Context, draft domain.SaleDraft) (*domain.Sale, error) {
	if draft.ClientTxnUUID == "" || len(draft.Lines) == 0 {
		return nil, store.ErrInvalidRequest
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	createdAt := time.Now().UTC()
	var syncedAt sql.NullTime
	if draft.Synced {
		syncedAt = sql.NullTime{Time: createdAt, Valid: true}
	}

	var saleID int64
	err = pgTx.QueryRowContext(ctx, `
		INSERT INTO sales (
			client_txn_uuid, device_id, store_id, cashier_username, payment_method,
			reference, subtotal_cents, discount_cents, tax_cents, grand_total_cents,
			paid_cents, change_cents, status, occurred_at, created_at, synced_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING id
	`, draft.ClientTxnUUID, draft.DeviceID, draft.StoreID, draft.CashierUsername, draft.PaymentMethod,
		nullIfEmpty(draft.Reference), draft.Totals.SubtotalCents, draft.Totals.DiscountCents,
		draft.Totals.TaxCents, draft.Totals.GrandTotalCents, draft.Totals.PaidCents,
		draft.Totals.ChangeCents, domain.SaleStatusPaid, draft.OccurredAt.UTC(), createdAt, syncedAt,
	).Scan(&saleID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateTxn
		}
		return nil, err
	}

	invoiceNo := store.InvoiceNo(saleID, createdAt)
	if _, err := pgTx.ExecContext(ctx, `
		UPDATE sales SET invoice_no = $1 WHERE id = $2
	`, invoiceNo, saleID); err != nil {
		return nil, err
	}

	for _, line := range draft.Lines {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, product_name, unit_price_cents, qty, discount_cents, line_total_cents, tax_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, saleID, line.ProductID, line.ProductName, line.UnitPriceCents, line.Qty, line.DiscountCents, line.LineTotalCents, line.TaxCents)
		if err != nil {
			return nil, err
		}
	}

	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO payments (sale_id, method, amount_cents, status, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, saleID, draft.PaymentMethod, draft.Totals.PaidCents, domain.PaymentStatusCaptured, createdAt); err != nil {
		return nil, err
	}

	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO sync_ledger (client_txn_uuid, sale_id, created_at)
		VALUES ($1,$2,$3)
	`, draft.ClientTxnUUID, saleID, createdAt); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateTxn
		}
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateTxn
		}
		return nil, err
	}

	sale := domain.Sale{
		ID:              saleID,
		InvoiceNo:       invoiceNo,
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
	if syncedAt.Valid {
		at := syncedAt.Time
		sale.SyncedAt = &at
	}
	for _, line := range draft.Lines {
		sale.Items = append(sale.Items, domain.SaleItem{
			SaleID:         saleID,
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
		SaleID:      saleID,
		Method:      draft.PaymentMethod,
		AmountCents: draft.Totals.PaidCents,
		Status:      domain.PaymentStatusCaptured,
		CreatedAt:   createdAt,
	}}

	return &sale, nil
}

func (s *Store) FindSaleByID(ctx context.Context, id int64) (*domain.Sale, error) {
	return s.findSale(ctx, "id", id)
}

func (s *Store) FindSaleByClientTxn(ctx context.Context, clientTxnUUID string) (*domain.Sale, error) {
	return s.findSale(ctx, "client_txn_uuid", clientTxnUUID)
}

func (s *Store) findSale(ctx context.Context, column string, value any) (*domain.Sale, error) {
	if column != "id" && column != "client_txn_uuid" {
		return nil, fmt.Errorf("unsupported lookup column")
	}

	var sale domain.Sale
	var invoiceNo sql.NullString
	var reference sql.NullString
	var syncedAt sql.NullTime

	query := fmt.Sprintf(`
		SELECT id, invoice_no, client_txn_uuid, device_id, store_id, cashier_username,
			payment_method, reference, subtotal_cents, discount_cents, tax_cents,
			grand_total_cents, paid_cents, change_cents, status, occurred_at, created_at, synced_at
		FROM sales
		WHERE %s = $1
	`, column)

	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&sale.ID,
		&invoiceNo,
		&sale.ClientTxnUUID,
		&sale.DeviceID,
		&sale.StoreID,
		&sale.CashierUsername,
		&sale.PaymentMethod,
		&reference,
		&sale.SubtotalCents,
		&sale.DiscountCents,
		&sale.TaxCents,
		&sale.GrandTotalCents,
		&sale.PaidCents,
		&sale.ChangeCents,
		&sale.Status,
		&sale.OccurredAt,
		&sale.CreatedAt,
		&syncedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if invoiceNo.Valid {
		sale.InvoiceNo = invoiceNo.String
	}
	if reference.Valid {
		sale.Reference = reference.String
	}
	if syncedAt.Valid {
		at := syncedAt.Time.UTC()
		sale.SyncedAt = &at
	}
	sale.OccurredAt = sale.OccurredAt.UTC()
	sale.CreatedAt = sale.CreatedAt.UTC()

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, product_id, product_name, unit_price_cents, qty, discount_cents, line_total_cents, tax_cents
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id ASC
	`, sale.ID)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	items := make([]domain.SaleItem, 0, 8)
	for itemRows.Next() {
		var item domain.SaleItem
		if err := itemRows.Scan(&item.SaleID, &item.ProductID, &item.ProductName, &item.UnitPriceCents, &item.Qty, &item.DiscountCents, &item.LineTotalCents, &item.TaxCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}
	sale.Items = items

	paymentRows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, method, amount_cents, status, created_at
		FROM payments
		WHERE sale_id = $1
		ORDER BY id ASC
	`, sale.ID)
	if err != nil {
		return nil, err
	}
	defer paymentRows.Close()

	payments := make([]domain.Payment, 0, 1)
	for paymentRows.Next() {
		var p domain.Payment
		if err := paymentRows.Scan(&p.SaleID, &p.Method, &p.AmountCents, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		payments = append(payments, p)
	}
	if err := paymentRows.Err(); err != nil {
		return nil, err
	}
	sale.Payments = payments

	return &sale, nil
}

func (s *Store) FindIdempotencyRecord(ctx context.Context, clientTxnUUID string) (*domain.IdempotencyRecord, error) {
	var record domain.IdempotencyRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT client_txn_uuid, sale_id, created_at
		FROM sync_ledger
		WHERE client_txn_uuid = $1
	`, clientTxnUUID).Scan(&record.ClientTxnUUID, &record.SaleID, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	record.CreatedAt = record.CreatedAt.UTC()
	return &record, nil
}

func (s *Store) CreateSyncBatch(ctx context.Context, record domain.SyncBatchRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_batches (batch_uuid, device_id, processed, duplicates, rejected, status, received_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, record.BatchUUID, record.DeviceID, record.Processed, record.Duplicates, record.Rejected, record.Status, record.ReceivedAt.UTC())
	return err
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, store_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.StoreID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt.UTC())
	return err
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidRequest
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt.UTC())
	if err != nil && isUniqueViolation(err) {
		return store.ErrInvalidRequest
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $1 WHERE username = $2
	`, password, username)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullIfEmpty(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Dimas0824/PayTo-sub001/internal/cache"
	"github.com/Dimas0824/PayTo-sub001/internal/checkout"
	"github.com/Dimas0824/PayTo-sub001/internal/domain"
	"github.com/Dimas0824/PayTo-sub001/internal/metrics"
	"github.com/Dimas0824/PayTo-sub001/internal/store"
	"github.com/Dimas0824/PayTo-sub001/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo           store.Repository
	catalogCache   cache.CatalogCache
	calc           checkout.Calculator
	metrics        *metrics.Registry
	defaultStoreID string
	catalogTTL     time.Duration
}

func New(repo store.Repository, catalogCache cache.CatalogCache, calc checkout.Calculator, reg *metrics.Registry, defaultStoreID string, catalogTTL time.Duration) *Service {
	if catalogCache == nil {
		catalogCache = cache.NoopCatalogCache{}
	}
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	if defaultStoreID == "" {
		defaultStoreID = "main-store"
	}
	if catalogTTL <= 0 {
		catalogTTL = 5 * time.Minute
	}

	return &Service{
		repo:           repo,
		catalogCache:   catalogCache,
		calc:           calc,
		metrics:        reg,
		defaultStoreID: defaultStoreID,
		catalogTTL:     catalogTTL,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	product.ID = strings.ToUpper(strings.TrimSpace(product.ID))
	product.Name = strings.TrimSpace(product.Name)
	if product.ID == "" || product.Name == "" || product.PriceCents < 1 {
		return domain.Product{}, store.ErrInvalidRequest
	}
	if product.DiscountPercent < 0 || product.DiscountPercent > 100 {
		return domain.Product{}, store.ErrInvalidRequest
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, s.defaultStoreID, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%d", created.Name, created.PriceCents))
	return *created, nil
}

// Checkout prices and atomically persists one transaction. It serves both
// the direct online path and each transaction inside a sync batch; the only
// behavioral difference is the synced flag stamped on the sale.
func (s *Service) Checkout(ctx context.Context, payload domain.CheckoutPayload, deviceID string, synced bool) (domain.CheckoutResponse, error) {
	payload.ClientTxnUUID = strings.TrimSpace(payload.ClientTxnUUID)
	if payload.ClientTxnUUID == "" {
		// Online carts without a client identifier still get one so a
		// retried request cannot double-charge.
		payload.ClientTxnUUID = uuid.NewString()
	}
	if payload.OccurredAt.IsZero() {
		payload.OccurredAt = time.Now().UTC()
	}

	if record, err := s.repo.FindIdempotencyRecord(ctx, payload.ClientTxnUUID); err == nil {
		existing, lookupErr := s.repo.FindSaleByID(ctx, record.SaleID)
		if lookupErr != nil {
			return domain.CheckoutResponse{}, lookupErr
		}
		s.metrics.SalesDuplicate.Inc()
		return toCheckoutResponse(existing, true), nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.CheckoutResponse{}, err
	}

	catalog, err := s.catalogFor(ctx, payload.Items)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	lines, totals, err := s.calc.Price(payload, catalog)
	if err != nil {
		s.metrics.SalesRejected.Inc()
		return domain.CheckoutResponse{}, err
	}

	actor, _ := ActorFromContext(ctx)
	draft := domain.SaleDraft{
		ClientTxnUUID:   payload.ClientTxnUUID,
		DeviceID:        deviceID,
		StoreID:         s.defaultStoreID,
		CashierUsername: actor.Username,
		PaymentMethod:   payload.PaymentMethod,
		Reference:       strings.TrimSpace(payload.Reference),
		OccurredAt:      payload.OccurredAt,
		Synced:          synced,
		Lines:           lines,
		Totals:          totals,
	}

	sale, err := s.repo.CreateSale(ctx, draft)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateTxn) {
			// Lost the race against a concurrent submission of the same
			// identifier; the winner's sale is the answer.
			existing, lookupErr := s.repo.FindSaleByClientTxn(ctx, payload.ClientTxnUUID)
			if lookupErr != nil {
				return domain.CheckoutResponse{}, lookupErr
			}
			s.metrics.SalesDuplicate.Inc()
			return toCheckoutResponse(existing, true), nil
		}
		return domain.CheckoutResponse{}, err
	}

	s.metrics.SalesProcessed.Inc()
	s.logAudit(ctx, s.defaultStoreID, "checkout", "sale", sale.InvoiceNo, fmt.Sprintf("grand_total=%d,payment=%s,synced=%t", sale.GrandTotalCents, sale.PaymentMethod, synced))

	return toCheckoutResponse(sale, false), nil
}

// SyncBatch replays a device's queued transactions. Transactions are
// independent: one rejection never blocks the rest, and resubmitting the
// whole batch is always safe.
func (s *Service) SyncBatch(ctx context.Context, req domain.SyncBatchRequest) (domain.SyncBatchResponse, error) {
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	req.BatchUUID = strings.TrimSpace(req.BatchUUID)
	if req.DeviceID == "" || req.BatchUUID == "" {
		return domain.SyncBatchResponse{}, store.ErrInvalidRequest
	}

	started := time.Now()
	s.metrics.BatchesReceived.Inc()
	s.metrics.BatchTxns.Observe(float64(len(req.Transactions)))

	resp := domain.SyncBatchResponse{
		BatchUUID: req.BatchUUID,
		Results:   make([]domain.SyncResult, 0, len(req.Transactions)),
	}

	var processed, duplicates, rejected int
	for _, tx := range req.Transactions {
		payload := tx.Checkout
		if payload.ClientTxnUUID == "" {
			payload.ClientTxnUUID = tx.ClientTxnUUID
		}
		if payload.OccurredAt.IsZero() {
			payload.OccurredAt = tx.OccurredAt
		}

		result := domain.SyncResult{ClientTxnUUID: payload.ClientTxnUUID}
		if payload.ClientTxnUUID == "" {
			result.Status = domain.SyncStatusRejected
			result.Reason = "MISSING_TXN_UUID"
			rejected++
			resp.Results = append(resp.Results, result)
			continue
		}

		checkoutResp, err := s.Checkout(ctx, payload, req.DeviceID, true)
		if err != nil {
			if isRejection(err) {
				result.Status = domain.SyncStatusRejected
				result.Reason = checkout.ReasonCode(err)
				rejected++
				resp.Results = append(resp.Results, result)
				continue
			}
			// Infrastructure failure: abort so the client retries the
			// whole batch instead of recording a bogus rejection.
			return domain.SyncBatchResponse{}, err
		}

		if checkoutResp.Duplicate {
			result.Status = domain.SyncStatusDuplicate
			duplicates++
		} else {
			result.Status = domain.SyncStatusProcessed
			processed++
		}
		result.SaleID = checkoutResp.SaleID
		result.InvoiceNo = checkoutResp.InvoiceNo
		resp.Results = append(resp.Results, result)
	}

	batchStatus := domain.BatchStatusCompleted
	if rejected > 0 {
		batchStatus = domain.BatchStatusPartial
	}
	if err := s.repo.CreateSyncBatch(ctx, domain.SyncBatchRecord{
		BatchUUID:  req.BatchUUID,
		DeviceID:   req.DeviceID,
		Processed:  processed,
		Duplicates: duplicates,
		Rejected:   rejected,
		Status:     batchStatus,
		ReceivedAt: time.Now().UTC(),
	}); err != nil {
		log.Printf("[service] WARN: failed to record sync batch batch=%s device=%s: %v", req.BatchUUID, req.DeviceID, err)
	}

	s.metrics.BatchLatencySec.Observe(time.Since(started).Seconds())
	s.logAudit(ctx, s.defaultStoreID, "sync_batch", "sync_batch", req.BatchUUID, fmt.Sprintf("device=%s,processed=%d,duplicates=%d,rejected=%d", req.DeviceID, processed, duplicates, rejected))

	return resp, nil
}

func (s *Service) LookupByClientTxn(ctx context.Context, clientTxnUUID string) (domain.CheckoutResponse, error) {
	clientTxnUUID = strings.TrimSpace(clientTxnUUID)
	if clientTxnUUID == "" {
		return domain.CheckoutResponse{}, store.ErrInvalidRequest
	}

	sale, err := s.repo.FindSaleByClientTxn(ctx, clientTxnUUID)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	return toCheckoutResponse(sale, false), nil
}

// catalogFor resolves the catalog snapshot for a cart: cache first, then the
// repository for the misses, backfilling the cache on the way out. Inactive
// products are returned as-is; the calculator rejects them.
func (s *Service) catalogFor(ctx context.Context, items []domain.CheckoutItem) (map[string]domain.Product, error) {
	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, dup := seen[item.ProductID]; dup {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	catalog := make(map[string]domain.Product, len(ids))
	misses := make([]string, 0, len(ids))
	for _, id := range ids {
		product, found, err := s.catalogCache.Get(ctx, id)
		if err != nil {
			log.Printf("[service] WARN: catalog cache get failed product=%s: %v", id, err)
		}
		if found && product != nil {
			s.metrics.CatalogCacheHit.Inc()
			catalog[id] = *product
			continue
		}
		s.metrics.CatalogCacheMiss.Inc()
		misses = append(misses, id)
	}

	if len(misses) > 0 {
		fetched, err := s.repo.GetProductsByIDs(ctx, misses)
		if err != nil {
			return nil, err
		}
		for id, product := range fetched {
			catalog[id] = product
			if err := s.catalogCache.Set(ctx, product, s.catalogTTL); err != nil {
				log.Printf("[service] WARN: catalog cache set failed product=%s: %v", id, err)
			}
		}
	}

	return catalog, nil
}

func (s *Service) logAudit(ctx context.Context, storeID string, action string, entityType string, entityID string, detail string) {
	if storeID == "" {
		storeID = s.defaultStoreID
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		StoreID:       storeID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

// isRejection reports whether the error is the transaction's own fault
// (bad cart, bad payment) as opposed to an infrastructure failure.
func isRejection(err error) bool {
	return errors.Is(err, checkout.ErrEmptyCart) ||
		errors.Is(err, checkout.ErrProductNotFound) ||
		errors.Is(err, checkout.ErrInvalidQuantity) ||
		errors.Is(err, checkout.ErrDiscountExceedsSubtotal) ||
		errors.Is(err, checkout.ErrInsufficientPayment) ||
		errors.Is(err, checkout.ErrUnsupportedPaymentMethod) ||
		errors.Is(err, store.ErrInvalidRequest)
}

func toCheckoutResponse(sale *domain.Sale, duplicate bool) domain.CheckoutResponse {
	items := make([]domain.PricedLine, 0, len(sale.Items))
	for _, item := range sale.Items {
		items = append(items, domain.PricedLine{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			UnitPriceCents: item.UnitPriceCents,
			Qty:            item.Qty,
			DiscountCents:  item.DiscountCents,
			LineTotalCents: item.LineTotalCents,
			TaxCents:       item.TaxCents,
		})
	}

	return domain.CheckoutResponse{
		SaleID:        sale.ID,
		InvoiceNo:     sale.InvoiceNo,
		Status:        sale.Status,
		PaymentMethod: sale.PaymentMethod,
		Items:         items,
		Totals: domain.Totals{
			SubtotalCents:   sale.SubtotalCents,
			DiscountCents:   sale.DiscountCents,
			TaxCents:        sale.TaxCents,
			GrandTotalCents: sale.GrandTotalCents,
			PaidCents:       sale.PaidCents,
			ChangeCents:     sale.ChangeCents,
		},
		Duplicate: duplicate,
		CreatedAt: sale.CreatedAt.Format(time.RFC3339),
	}
}

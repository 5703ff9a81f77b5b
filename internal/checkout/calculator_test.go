package checkout

import (
	"errors"
	"testing"

	"github.com/Dimas0824/PayTo-sub001/internal/domain"
)

func testCatalog() map[string]domain.Product {
	return map[string]domain.Product{
		"PRD-A": {ID: "PRD-A", Name: "Produk A", PriceCents: 45000, DiscountPercent: 0, Active: true},
		"PRD-B": {ID: "PRD-B", Name: "Produk B", PriceCents: 52000, DiscountPercent: 5, Active: true},
		"PRD-X": {ID: "PRD-X", Name: "Produk Nonaktif", PriceCents: 10000, Active: false},
	}
}

func TestPriceWorkedExample(t *testing.T) {
	calc := New(11)

	lines, totals, err := calc.Price(domain.CheckoutPayload{
		PaymentMethod:     domain.PaymentMethodCash,
		CashReceivedCents: 160000,
		Items: []domain.CheckoutItem{
			{ProductID: "PRD-A", Qty: 2},
			{ProductID: "PRD-B", Qty: 1},
		},
	}, testCatalog())
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 priced lines, got %d", len(lines))
	}

	if lines[0].TaxCents != 9900 || lines[0].DiscountCents != 0 || lines[0].LineTotalCents != 90000 {
		t.Fatalf("line A mispriced: %+v", lines[0])
	}
	if lines[1].DiscountCents != 2600 || lines[1].LineTotalCents != 49400 || lines[1].TaxCents != 5434 {
		t.Fatalf("line B mispriced: %+v", lines[1])
	}

	if totals.SubtotalCents != 142000 {
		t.Fatalf("expected subtotal 142000, got %d", totals.SubtotalCents)
	}
	if totals.DiscountCents != 2600 {
		t.Fatalf("expected discount total 2600, got %d", totals.DiscountCents)
	}
	if totals.TaxCents != 15334 {
		t.Fatalf("expected tax total 15334, got %d", totals.TaxCents)
	}
	if totals.GrandTotalCents != 154734 {
		t.Fatalf("expected grand total 154734, got %d", totals.GrandTotalCents)
	}
	if totals.GrandTotalCents != totals.SubtotalCents-totals.DiscountCents+totals.TaxCents {
		t.Fatalf("totals do not balance: %+v", totals)
	}
	if totals.ChangeCents != 5266 {
		t.Fatalf("expected change 5266, got %d", totals.ChangeCents)
	}
}

func TestPriceInsufficientCash(t *testing.T) {
	calc := New(11)

	_, _, err := calc.Price(domain.CheckoutPayload{
		PaymentMethod:     domain.PaymentMethodCash,
		CashReceivedCents: 100000,
		Items: []domain.CheckoutItem{
			{ProductID: "PRD-A", Qty: 2},
			{ProductID: "PRD-B", Qty: 1},
		},
	}, testCatalog())
	if !errors.Is(err, ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}
}

func TestPriceEwalletForcesExactPayment(t *testing.T) {
	calc := New(11)

	_, totals, err := calc.Price(domain.CheckoutPayload{
		PaymentMethod: domain.PaymentMethodEwallet,
		Reference:     "EW-REF-001",
		Items: []domain.CheckoutItem{
			{ProductID: "PRD-A", Qty: 1},
		},
	}, testCatalog())
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	if totals.PaidCents != totals.GrandTotalCents {
		t.Fatalf("expected paid == grand total, got paid=%d grand=%d", totals.PaidCents, totals.GrandTotalCents)
	}
	if totals.ChangeCents != 0 {
		t.Fatalf("expected zero change, got %d", totals.ChangeCents)
	}
}

func TestPriceClampsStoredDiscountPercent(t *testing.T) {
	calc := New(0)
	catalog := map[string]domain.Product{
		"PRD-OVER":  {ID: "PRD-OVER", Name: "Over", PriceCents: 10000, DiscountPercent: 150, Active: true},
		"PRD-UNDER": {ID: "PRD-UNDER", Name: "Under", PriceCents: 10000, DiscountPercent: -10, Active: true},
	}

	lines, _, err := calc.Price(domain.CheckoutPayload{
		PaymentMethod: domain.PaymentMethodEwallet,
		Items: []domain.CheckoutItem{
			{ProductID: "PRD-OVER", Qty: 1},
			{ProductID: "PRD-UNDER", Qty: 1},
		},
	}, catalog)
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	if lines[0].DiscountCents != 10000 {
		t.Fatalf("expected 150%% clamped to 100%% (discount 10000), got %d", lines[0].DiscountCents)
	}
	if lines[1].DiscountCents != 0 {
		t.Fatalf("expected negative percent clamped to 0, got %d", lines[1].DiscountCents)
	}
}

func TestPriceRejectsUnknownOrInactiveProduct(t *testing.T) {
	calc := New(11)

	_, _, err := calc.Price(domain.CheckoutPayload{
		PaymentMethod: domain.PaymentMethodCash,
		Items:         []domain.CheckoutItem{{ProductID: "PRD-MISSING", Qty: 1}},
	}, testCatalog())
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound for unknown product, got %v", err)
	}

	_, _, err = calc.Price(domain.CheckoutPayload{
		PaymentMethod: domain.PaymentMethodCash,
		Items:         []domain.CheckoutItem{{ProductID: "PRD-X", Qty: 1}},
	}, testCatalog())
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound for inactive product, got %v", err)
	}
}

func TestPriceRejectsNonPositiveQuantity(t *testing.T) {
	calc := New(11)

	for _, qty := range []float64{0, -1.5} {
		_, _, err := calc.Price(domain.CheckoutPayload{
			PaymentMethod:     domain.PaymentMethodCash,
			CashReceivedCents: 100000,
			Items:             []domain.CheckoutItem{{ProductID: "PRD-A", Qty: qty}},
		}, testCatalog())
		if !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("expected ErrInvalidQuantity for qty %v, got %v", qty, err)
		}
	}
}

func TestPriceFractionalQuantityForWeighedGoods(t *testing.T) {
	calc := New(11)
	catalog := map[string]domain.Product{
		"PRD-KG": {ID: "PRD-KG", Name: "Daging per kg", PriceCents: 120000, Active: true},
	}

	lines, _, err := calc.Price(domain.CheckoutPayload{
		PaymentMethod: domain.PaymentMethodEwallet,
		Items:         []domain.CheckoutItem{{ProductID: "PRD-KG", Qty: 0.75}},
	}, catalog)
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	if lines[0].LineTotalCents != 90000 {
		t.Fatalf("expected 0.75kg line total 90000, got %d", lines[0].LineTotalCents)
	}
}

func TestPricePerLineDiscountOverride(t *testing.T) {
	calc := New(0)

	lines, _, err := calc.Price(domain.CheckoutPayload{
		PaymentMethod: domain.PaymentMethodEwallet,
		Items:         []domain.CheckoutItem{{ProductID: "PRD-A", Qty: 1, DiscountCents: 5000}},
	}, testCatalog())
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	if lines[0].DiscountCents != 5000 {
		t.Fatalf("expected override discount 5000, got %d", lines[0].DiscountCents)
	}

	_, _, err = calc.Price(domain.CheckoutPayload{
		PaymentMethod: domain.PaymentMethodEwallet,
		Items:         []domain.CheckoutItem{{ProductID: "PRD-A", Qty: 1, DiscountCents: 50000}},
	}, testCatalog())
	if !errors.Is(err, ErrDiscountExceedsSubtotal) {
		t.Fatalf("expected ErrDiscountExceedsSubtotal, got %v", err)
	}
}

func TestReasonCodes(t *testing.T) {
	cases := map[error]string{
		ErrProductNotFound:         "PRODUCT_NOT_FOUND",
		ErrInvalidQuantity:         "INVALID_QUANTITY",
		ErrDiscountExceedsSubtotal: "DISCOUNT_EXCEEDS_SUBTOTAL",
		ErrInsufficientPayment:     "INSUFFICIENT_PAYMENT",
		ErrEmptyCart:               "EMPTY_CART",
	}
	for err, want := range cases {
		if got := ReasonCode(err); got != want {
			t.Fatalf("reason code for %v: expected %s, got %s", err, want, got)
		}
	}
	if got := ReasonCode(errors.New("boom")); got != "INVALID_REQUEST" {
		t.Fatalf("expected fallback INVALID_REQUEST, got %s", got)
	}
}

package checkout

import (
	"errors"
	"fmt"
	"math"

	"github.com/Dimas0824/PayTo-sub001/internal/domain"
)

var (
	ErrEmptyCart                = errors.New("cart has no items")
	ErrProductNotFound          = errors.New("product not found")
	ErrInvalidQuantity          = errors.New("invalid quantity")
	ErrDiscountExceedsSubtotal  = errors.New("discount exceeds line subtotal")
	ErrInsufficientPayment      = errors.New("insufficient payment")
	ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")
)

// Calculator prices a cart against a catalog snapshot. It is pure: no I/O,
// safe to call speculatively for live totals without persisting anything.
type Calculator struct {
	TaxRatePercent float64
}

func New(taxRatePercent float64) Calculator {
	if taxRatePercent < 0 {
		taxRatePercent = 0
	}
	return Calculator{TaxRatePercent: taxRatePercent}
}

// Price turns the payload's cart lines into priced line items and totals.
// Tax is computed per line on the post-discount line total and summed, so
// the grand total reconciles line by line against a printed receipt.
func (c Calculator) Price(payload domain.CheckoutPayload, catalog map[string]domain.Product) ([]domain.PricedLine, domain.Totals, error) {
	if len(payload.Items) == 0 {
		return nil, domain.Totals{}, ErrEmptyCart
	}

	method := payload.PaymentMethod
	if method != domain.PaymentMethodCash && method != domain.PaymentMethodEwallet {
		return nil, domain.Totals{}, fmt.Errorf("%w: %q", ErrUnsupportedPaymentMethod, payload.PaymentMethod)
	}

	lines := make([]domain.PricedLine, 0, len(payload.Items))
	var totals domain.Totals

	for _, item := range payload.Items {
		if item.Qty <= 0 || math.IsNaN(item.Qty) || math.IsInf(item.Qty, 0) {
			return nil, domain.Totals{}, fmt.Errorf("%w: product %s qty %v", ErrInvalidQuantity, item.ProductID, item.Qty)
		}

		product, ok := catalog[item.ProductID]
		if !ok || !product.Active {
			return nil, domain.Totals{}, fmt.Errorf("%w: %s", ErrProductNotFound, item.ProductID)
		}

		lineSubtotal := int64(math.Round(item.Qty * float64(product.PriceCents)))

		discount := item.DiscountCents
		if discount <= 0 {
			discount = int64(math.Round(float64(lineSubtotal) * clampPercent(product.DiscountPercent) / 100))
		}
		if discount > lineSubtotal {
			return nil, domain.Totals{}, fmt.Errorf("%w: product %s discount %d subtotal %d", ErrDiscountExceedsSubtotal, item.ProductID, discount, lineSubtotal)
		}

		lineTotal := lineSubtotal - discount
		tax := int64(math.Round(float64(lineTotal) * c.TaxRatePercent / 100))

		lines = append(lines, domain.PricedLine{
			ProductID:      product.ID,
			ProductName:    product.Name,
			UnitPriceCents: product.PriceCents,
			Qty:            item.Qty,
			DiscountCents:  discount,
			LineTotalCents: lineTotal,
			TaxCents:       tax,
		})

		totals.SubtotalCents += lineSubtotal
		totals.DiscountCents += discount
		totals.TaxCents += tax
	}

	totals.GrandTotalCents = totals.SubtotalCents - totals.DiscountCents + totals.TaxCents

	switch method {
	case domain.PaymentMethodCash:
		if payload.CashReceivedCents < totals.GrandTotalCents {
			return nil, domain.Totals{}, fmt.Errorf("%w: received %d, need %d", ErrInsufficientPayment, payload.CashReceivedCents, totals.GrandTotalCents)
		}
		totals.PaidCents = payload.CashReceivedCents
		totals.ChangeCents = payload.CashReceivedCents - totals.GrandTotalCents
	default:
		// Non-cash tenders pay exactly the grand total.
		totals.PaidCents = totals.GrandTotalCents
		totals.ChangeCents = 0
	}

	return lines, totals, nil
}

// clampPercent bounds a stored discount percent to [0,100] before use, so a
// bad catalog value (e.g. 150 from stacked promotions) cannot produce a
// discount above the line subtotal.
func clampPercent(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// ReasonCode maps a pricing/validation error to the stable reason code
// reported in a batch sync response.
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrProductNotFound):
		return "PRODUCT_NOT_FOUND"
	case errors.Is(err, ErrInvalidQuantity):
		return "INVALID_QUANTITY"
	case errors.Is(err, ErrDiscountExceedsSubtotal):
		return "DISCOUNT_EXCEEDS_SUBTOTAL"
	case errors.Is(err, ErrInsufficientPayment):
		return "INSUFFICIENT_PAYMENT"
	case errors.Is(err, ErrEmptyCart):
		return "EMPTY_CART"
	case errors.Is(err, ErrUnsupportedPaymentMethod):
		return "UNSUPPORTED_PAYMENT_METHOD"
	default:
		return "INVALID_REQUEST"
	}
}

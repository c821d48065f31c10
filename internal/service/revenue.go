package service

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/you/academia-payments/internal/analytics"
	"github.com/you/academia-payments/internal/domain"
)

// RevenueTracker emits the analytics pair (completion event + charge) at most
// once per approved payment. Approval can be observed through both the
// webhook and the manual-review path; the revenue_tracked flag is the guard.
type RevenueTracker struct {
	payments PaymentStore
	catalog  CatalogStore
	tracker  analytics.Tracker
}

func NewRevenueTracker(payments PaymentStore, catalog CatalogStore, tracker analytics.Tracker) *RevenueTracker {
	return &RevenueTracker{payments: payments, catalog: catalog, tracker: tracker}
}

// Track never returns an error: analytics failure must not affect payment
// state. The flag stays unset on failure so a later approval-path invocation
// retries the emission.
func (r *RevenueTracker) Track(ctx context.Context, p *domain.Payment) {
	if p.RevenueTracked {
		return
	}

	amount, source := r.amountFor(ctx, p)
	props := map[string]any{
		"payment_id": p.ID,
		"currency":   p.Currency,
		"method":     p.PaymentMethod,
		"source":     source,
	}
	switch {
	case p.ForEvent():
		props["scope"] = "event"
		props["event_id"] = *p.EventID
	case p.ForAcademy():
		props["scope"] = "academy"
		props["academy_id"] = *p.AcademyID
	}

	if err := r.tracker.Track(ctx, "payment_completed", p.UserID, props); err != nil {
		log.Printf("[revenue] payment_completed emit failed for %s: %v", p.ID, err)
		return
	}
	if err := r.tracker.TrackCharge(ctx, p.UserID, amount, props); err != nil {
		log.Printf("[revenue] charge emit failed for %s: %v", p.ID, err)
		return
	}

	flipped, err := r.payments.MarkRevenueTracked(ctx, p.ID)
	if err != nil {
		log.Printf("[revenue] mark tracked failed for %s: %v", p.ID, err)
		return
	}
	if flipped {
		now := time.Now().UTC()
		p.RevenueTracked = true
		p.RevenueTrackedAt = &now
	}
}

// amountFor prefers the authoritative listing price over the gateway-reported
// transaction amount; organizers type prices freely, so parsing may fail.
func (r *RevenueTracker) amountFor(ctx context.Context, p *domain.Payment) (float64, string) {
	var listed string
	switch {
	case p.ForEvent():
		if e, err := r.catalog.EventByID(ctx, *p.EventID); err == nil {
			listed = e.Price
		}
	case p.ForAcademy():
		if a, err := r.catalog.AcademyByID(ctx, *p.AcademyID); err == nil {
			listed = a.Price
		}
	}
	if v, err := ParsePrice(listed); err == nil && v > 0 {
		return v, "listing_price"
	}
	return p.Amount, "transaction_amount"
}

// ParsePrice recovers a number from an organizer-entered price ("25000",
// "ARS 25000", "25000,50").
func ParsePrice(s string) (float64, error) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.Replace(b.String(), ",", ".", 1)
	return strconv.ParseFloat(cleaned, 64)
}

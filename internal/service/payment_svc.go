package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/you/academia-payments/internal/domain"
	"github.com/you/academia-payments/internal/events"
	"github.com/you/academia-payments/internal/gateway"
	"github.com/you/academia-payments/internal/repository"
)

// PaymentSvc owns payment resolution and the payment state machine. All of
// its steps are idempotent, which is the only defense against the gateway's
// at-least-once delivery and the webhook/manual-approval race.
type PaymentSvc struct {
	payments PaymentStore
	academy  AcademyMembershipUpdater
	eventers EventRosterUpdater
	revenue  *RevenueTracker
	pub      Publisher
}

func NewPaymentSvc(
	payments PaymentStore,
	academy AcademyMembershipUpdater,
	eventers EventRosterUpdater,
	revenue *RevenueTracker,
	pub Publisher,
) *PaymentSvc {
	return &PaymentSvc{
		payments: payments,
		academy:  academy,
		eventers: eventers,
		revenue:  revenue,
		pub:      pub,
	}
}

type CreateTransferInput struct {
	UserID     string
	EventID    string
	AcademyID  string
	Amount     float64
	Currency   string
	ReceiptURL string
}

// CreateTransfer records a bank-transfer payment awaiting manual review. The
// external reference is the structured pago_<id> form, so a gateway payment
// later created against it resolves without string surgery.
func (s *PaymentSvc) CreateTransfer(ctx context.Context, in CreateTransferInput) (*domain.Payment, error) {
	if (in.EventID == "") == (in.AcademyID == "") {
		return nil, ErrInvalidTarget
	}

	id := uuid.NewString()
	p := &domain.Payment{
		ID:                id,
		ExternalReference: "pago_" + id,
		UserID:            in.UserID,
		Amount:            in.Amount,
		Currency:          in.Currency,
		Status:            domain.PaymentPending,
		Kind:              domain.PayMethodTransfer,
		ReceiptURL:        in.ReceiptURL,
	}
	if in.EventID != "" {
		p.EventID = &in.EventID
	} else {
		p.AcademyID = &in.AcademyID
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Resolve maps a gateway payment id (plus optional external-reference string)
// to exactly one stored Payment, linking the gateway id on first sight.
// It never fabricates a Payment: the record must exist from the checkout flow
// that initiated it. Repeated calls with the same gateway id return the same
// Payment.
func (s *PaymentSvc) Resolve(ctx context.Context, gatewayID, externalRef string) (*domain.Payment, error) {
	if gatewayID == "" {
		return nil, ErrPaymentNotResolvable
	}

	p, err := s.payments.ByGatewayID(ctx, gatewayID)
	if err == nil {
		return p, nil
	}
	if !repository.IsNotFound(err) {
		return nil, err
	}

	ref := strings.TrimSpace(externalRef)
	if ref == "" {
		return nil, ErrPaymentNotResolvable
	}

	p, err = s.lookupByReference(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := s.payments.LinkGatewayID(ctx, p, gatewayID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PaymentSvc) lookupByReference(ctx context.Context, ref string) (*domain.Payment, error) {
	// exact match against the reference minted at checkout
	p, err := s.payments.PendingByExternalReference(ctx, ref)
	if err == nil {
		return p, nil
	}
	if !repository.IsNotFound(err) {
		return nil, err
	}

	// structured token: pago_<internal id>
	if id, ok := strings.CutPrefix(ref, "pago_"); ok && id != "" {
		p, err := s.payments.ByID(ctx, id)
		if err == nil {
			return p, nil
		}
		if !repository.IsNotFound(err) {
			return nil, err
		}
		return nil, ErrPaymentNotResolvable
	}

	// legacy form: <eventID>-<userID>
	if eventID, userID, ok := strings.Cut(ref, "-"); ok && eventID != "" && userID != "" {
		p, err := s.payments.PendingByEventUser(ctx, eventID, userID)
		if err == nil {
			return p, nil
		}
		if !repository.IsNotFound(err) {
			return nil, err
		}
	}
	return nil, ErrPaymentNotResolvable
}

// Apply runs the state machine for one gateway-reported status.
func (s *PaymentSvc) Apply(ctx context.Context, p *domain.Payment, info *gateway.PaymentInfo) error {
	switch info.Status {
	case gateway.StatusApproved:
		return s.applyApproved(ctx, p, info)

	case gateway.StatusRejected:
		alreadyRejected := p.Status == domain.PaymentRejected
		p.Status = domain.PaymentRejected
		p.StatusDetail = info.StatusDetail
		if err := s.payments.Save(ctx, p); err != nil {
			return err
		}
		// the roster entry's state is derived from the payment, so it is
		// rejected by this same write; no ticket or revenue side effects
		if !alreadyRejected {
			s.publishOutcome(ctx, p, events.RKPaymentRejected)
		}
		return nil

	case gateway.StatusPending:
		p.Status = domain.PaymentPending
		p.StatusDetail = info.StatusDetail
		return s.payments.Save(ctx, p)

	default:
		log.Printf("[payments] ignoring unknown gateway status %q for payment %s", info.Status, p.ID)
		return nil
	}
}

func (s *PaymentSvc) applyApproved(ctx context.Context, p *domain.Payment, info *gateway.PaymentInfo) error {
	if p.Approved() {
		// duplicate delivery: refresh metadata and give the revenue tracker
		// another chance; its revenue_tracked guard keeps it exactly-once
		s.refreshMeta(p, info)
		if err := s.payments.Save(ctx, p); err != nil {
			return err
		}
		s.revenue.Track(ctx, p)
		return nil
	}

	s.refreshMeta(p, info)

	// owning-side workflow runs before the status flip; if it fails the
	// payment stays pending and the next delivery retries the whole path
	var err error
	switch {
	case p.ForEvent():
		err = s.eventers.PaymentApproved(ctx, p)
	case p.ForAcademy():
		err = s.academy.PaymentApproved(ctx, p)
	default:
		log.Printf("[payments] payment %s has no owning entity", p.ID)
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	p.Status = domain.PaymentApproved
	p.WebhookProcessedAt = &now
	if err := s.payments.Save(ctx, p); err != nil {
		return err
	}

	s.revenue.Track(ctx, p)
	s.publishOutcome(ctx, p, events.RKPaymentApproved)
	return nil
}

func (s *PaymentSvc) refreshMeta(p *domain.Payment, info *gateway.PaymentInfo) {
	if info.TransactionAmount > 0 {
		p.Amount = info.TransactionAmount
	}
	if info.PaymentMethodID != "" {
		p.PaymentMethod = info.PaymentMethodID
	}
	p.StatusDetail = info.StatusDetail
}

func (s *PaymentSvc) publishOutcome(ctx context.Context, p *domain.Payment, key string) {
	if s.pub == nil {
		return
	}
	out := events.PaymentOutcome{
		PaymentID: p.ID,
		UserID:    p.UserID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Status:    p.Status,
		Method:    p.PaymentMethod,
	}
	if p.EventID != nil {
		out.EventID = *p.EventID
	}
	if p.AcademyID != nil {
		out.AcademyID = *p.AcademyID
	}
	if err := s.pub.PublishJSON(ctx, key, out); err != nil {
		log.Printf("[payments] publish %s for payment %s: %v", key, p.ID, err)
	}
}

// ManualUpdate is the organizer's reconciliation path (bank-transfer receipts
// reviewed by hand). It enters the same state machine as the webhook, so all
// idempotency guards apply to the race between the two.
func (s *PaymentSvc) ManualUpdate(ctx context.Context, paymentID, estado string) (*domain.Payment, error) {
	status, ok := map[string]string{
		"pendiente": gateway.StatusPending,
		"aprobado":  gateway.StatusApproved,
		"rechazado": gateway.StatusRejected,
	}[estado]
	if !ok {
		return nil, ErrInvalidStatus
	}

	p, err := s.payments.ByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	info := &gateway.PaymentInfo{
		Status:       status,
		StatusDetail: "manual_review",
	}
	if err := s.Apply(ctx, p, info); err != nil {
		return nil, err
	}
	return p, nil
}

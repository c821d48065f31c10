package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/you/academia-payments/internal/domain"
	"github.com/you/academia-payments/internal/email"
	"github.com/you/academia-payments/internal/repository"
)

// codeAlphabet deliberately drops 0, O, I and l so codes survive being read
// aloud or retyped from a printout.
const (
	codeAlphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
	codeLength   = 24
)

// TicketSvc owns ticket issuance, the one-shot confirmation email and the
// verify/redeem flow at the door. It implements EventRosterUpdater for the
// payment state machine.
type TicketSvc struct {
	tickets TicketStore
	roster  RosterStore
	users   UserStore
	catalog CatalogStore
	mailer  email.Mailer
	baseURL string
}

func NewTicketSvc(tickets TicketStore, roster RosterStore, users UserStore, catalog CatalogStore, mailer email.Mailer, baseURL string) *TicketSvc {
	return &TicketSvc{
		tickets: tickets,
		roster:  roster,
		users:   users,
		catalog: catalog,
		mailer:  mailer,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Issue returns the one ticket for (user, event), creating it on first call.
// The code never changes once minted; a lost insert race falls back to the
// winner's row.
func (s *TicketSvc) Issue(ctx context.Context, userID, eventID, paymentRef string) (*domain.Ticket, error) {
	t, err := s.tickets.ByUserEvent(ctx, userID, eventID)
	if err == nil {
		return t, nil
	}
	if !repository.IsNotFound(err) {
		return nil, err
	}

	code, err := newCode()
	if err != nil {
		return nil, err
	}
	t = &domain.Ticket{
		UserID:     userID,
		EventID:    eventID,
		PaymentRef: paymentRef,
		Code:       code,
		Status:     domain.TicketIssued,
		IssuedAt:   time.Now().UTC(),
	}
	if err := s.tickets.Create(ctx, t); err != nil {
		// concurrent approval paths race on the unique (user, event) index
		if existing, err2 := s.tickets.ByUserEvent(ctx, userID, eventID); err2 == nil {
			return existing, nil
		}
		return nil, err
	}
	return t, nil
}

// SendTicketEmail sends the confirmation at most once per ticket, gated on
// email_sent_at. Re-invocations after a successful send are no-ops.
func (s *TicketSvc) SendTicketEmail(ctx context.Context, t *domain.Ticket) error {
	if t.EmailSentAt != nil {
		return nil
	}

	u, err := s.users.ByID(ctx, t.UserID)
	if err != nil {
		return err
	}
	e, err := s.catalog.EventByID(ctx, t.EventID)
	if err != nil {
		return err
	}

	msgID, err := s.mailer.SendTicket(ctx, email.TicketMail{
		To:        u.Email,
		Name:      u.Name,
		EventName: e.Name,
		Code:      t.Code,
		RedeemURL: fmt.Sprintf("%s/r/%s", s.baseURL, t.Code),
	})
	if err != nil {
		return err
	}

	sent, err := s.tickets.MarkEmailSent(ctx, t.ID, msgID)
	if err != nil {
		return err
	}
	if sent {
		now := time.Now().UTC()
		t.EmailSentAt = &now
		t.EmailID = msgID
	}
	return nil
}

// PaymentApproved is the event path of the approved-payment workflow: ensure
// a roster entry exists, issue the ticket, send the email. Email failure is
// logged and absorbed; the ticket is already persisted and a later delivery
// retries the send.
func (s *TicketSvc) PaymentApproved(ctx context.Context, p *domain.Payment) error {
	if p.EventID == nil {
		return nil
	}
	eventID := *p.EventID

	if _, err := s.roster.ByEventUser(ctx, eventID, p.UserID); err != nil {
		if !repository.IsNotFound(err) {
			return err
		}
		m := &domain.EventMember{
			EventID:   eventID,
			UserID:    p.UserID,
			PaymentID: p.ID,
			JoinedAt:  time.Now().UTC(),
		}
		if err := s.roster.Create(ctx, m); err != nil {
			return err
		}
	}

	t, err := s.Issue(ctx, p.UserID, eventID, p.ID)
	if err != nil {
		return err
	}
	if err := s.SendTicketEmail(ctx, t); err != nil {
		log.Printf("[tickets] email for ticket %s failed: %v", t.ID, err)
	}
	return nil
}

// Verify looks a ticket up by code without changing it.
func (s *TicketSvc) Verify(ctx context.Context, code string) (*domain.Ticket, error) {
	return s.tickets.ByCode(ctx, code)
}

// Redeem consumes a ticket at the door. A second scan of the same code gets
// ErrAlreadyRedeemed, not a success.
func (s *TicketSvc) Redeem(ctx context.Context, code, staffID string) (*domain.Ticket, error) {
	t, err := s.tickets.ByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	ok, err := s.tickets.Redeem(ctx, code, staffID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyRedeemed
	}
	return s.tickets.ByCode(ctx, t.Code)
}

// newCode draws uniformly from codeAlphabet via rejection sampling so no
// character is favored.
func newCode() (string, error) {
	const max = byte(len(codeAlphabet)) // 58; reject bytes >= 232
	limit := byte(256 - (256 % int(max)))

	out := make([]byte, 0, codeLength)
	buf := make([]byte, 32)
	for len(out) < codeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, codeAlphabet[b%max])
			if len(out) == codeLength {
				break
			}
		}
	}
	return string(out), nil
}

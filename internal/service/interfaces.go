package service

import (
	"context"
	"time"

	"github.com/you/academia-payments/internal/domain"
)

// Store ports. The gorm repositories satisfy these; tests inject in-memory
// fakes. No component touches an ambient database handle.

type PaymentStore interface {
	ByID(ctx context.Context, id string) (*domain.Payment, error)
	ByGatewayID(ctx context.Context, gatewayID string) (*domain.Payment, error)
	PendingByExternalReference(ctx context.Context, ref string) (*domain.Payment, error)
	PendingByEventUser(ctx context.Context, eventID, userID string) (*domain.Payment, error)
	Create(ctx context.Context, p *domain.Payment) error
	Save(ctx context.Context, p *domain.Payment) error
	LinkGatewayID(ctx context.Context, p *domain.Payment, gatewayID string) error
	MarkRevenueTracked(ctx context.Context, id string) (bool, error)
}

type SubscriptionStore interface {
	ByID(ctx context.Context, id string) (*domain.Subscription, error)
	CurrentByUserAcademy(ctx context.Context, userID, academyID string, includePaused bool) (*domain.Subscription, error)
	Create(ctx context.Context, s *domain.Subscription) error
	Save(ctx context.Context, s *domain.Subscription) error
}

type AttendanceStore interface {
	ByUserGroupDay(ctx context.Context, userID, groupID string, day time.Time) (*domain.Attendance, error)
	RecordOnce(ctx context.Context, a *domain.Attendance) (created bool, out *domain.Attendance, err error)
}

type TicketStore interface {
	ByUserEvent(ctx context.Context, userID, eventID string) (*domain.Ticket, error)
	ByCode(ctx context.Context, code string) (*domain.Ticket, error)
	Create(ctx context.Context, t *domain.Ticket) error
	MarkEmailSent(ctx context.Context, id, emailID string) (bool, error)
	Redeem(ctx context.Context, code, staffID string) (bool, error)
}

type RosterStore interface {
	ByEventUser(ctx context.Context, eventID, userID string) (*domain.EventMember, error)
	Create(ctx context.Context, m *domain.EventMember) error
}

type UserStore interface {
	ByID(ctx context.Context, id string) (*domain.User, error)
	HasUsedTrialGlobal(ctx context.Context, userID string) (bool, error)
	HasUsedTrialAt(ctx context.Context, userID, academyID string) (bool, error)
	MarkTrialUsedGlobal(ctx context.Context, userID string) error
	MarkTrialUsedAt(ctx context.Context, userID, academyID string) error
}

type CatalogStore interface {
	EventByID(ctx context.Context, id string) (*domain.Event, error)
	AcademyByID(ctx context.Context, id string) (*domain.Academy, error)
	GroupByID(ctx context.Context, id string) (*domain.Group, error)
}

// Publisher is the best-effort side-effect channel (satisfied by mq.Publisher).
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// AcademyMembershipUpdater is the academy-side approved-payment workflow.
// Implemented by SubscriptionSvc; the payment state machine holds only this
// interface so the dependency never points back.
type AcademyMembershipUpdater interface {
	PaymentApproved(ctx context.Context, p *domain.Payment) error
}

// EventRosterUpdater is the event-side approved-payment workflow (ticket
// issue + email). Implemented by TicketSvc.
type EventRosterUpdater interface {
	PaymentApproved(ctx context.Context, p *domain.Payment) error
}

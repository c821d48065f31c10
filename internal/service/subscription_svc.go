package service

import (
	"context"
	"log"
	"time"

	"github.com/you/academia-payments/internal/domain"
	"github.com/you/academia-payments/internal/events"
	"github.com/you/academia-payments/internal/repository"
	"github.com/you/academia-payments/pkg/config"
)

type TrialConfig struct {
	Enabled    bool
	Scope      string // global|per-academy
	Days       int
	ClassLimit int
}

type BillingConfig struct {
	Currency string
	Every    int
	Unit     string
}

type Eligibility struct {
	Eligible    bool
	AlreadyUsed bool
	Reason      string
}

// SubscriptionSvc owns trial eligibility, trial consumption and the
// trial→active transition. It also implements AcademyMembershipUpdater for
// the payment state machine.
type SubscriptionSvc struct {
	trial   TrialConfig
	billing BillingConfig

	subs       SubscriptionStore
	users      UserStore
	attendance AttendanceStore
	catalog    CatalogStore
	pub        Publisher

	now func() time.Time
}

func NewSubscriptionSvc(
	trial TrialConfig,
	billing BillingConfig,
	subs SubscriptionStore,
	users UserStore,
	attendance AttendanceStore,
	catalog CatalogStore,
	pub Publisher,
) *SubscriptionSvc {
	return &SubscriptionSvc{
		trial:      trial,
		billing:    billing,
		subs:       subs,
		users:      users,
		attendance: attendance,
		catalog:    catalog,
		pub:        pub,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock. Test hook.
func (s *SubscriptionSvc) WithClock(now func() time.Time) *SubscriptionSvc {
	s.now = now
	return s
}

func (s *SubscriptionSvc) ByID(ctx context.Context, id string) (*domain.Subscription, error) {
	return s.subs.ByID(ctx, id)
}

func (s *SubscriptionSvc) CheckTrialEligibility(ctx context.Context, userID, academyID string) (Eligibility, error) {
	if !s.trial.Enabled {
		return Eligibility{Eligible: false, Reason: "trial disabled"}, nil
	}
	if s.trial.Scope == config.TrialScopeGlobal {
		used, err := s.users.HasUsedTrialGlobal(ctx, userID)
		if err != nil {
			return Eligibility{}, err
		}
		if used {
			return Eligibility{AlreadyUsed: true, Reason: "trial already used"}, nil
		}
		return Eligibility{Eligible: true}, nil
	}
	used, err := s.users.HasUsedTrialAt(ctx, userID, academyID)
	if err != nil {
		return Eligibility{}, err
	}
	if used {
		return Eligibility{AlreadyUsed: true, Reason: "trial already used at this academy"}, nil
	}
	return Eligibility{Eligible: true}, nil
}

// Create opens a subscription. Eligible users start in trial; everyone else
// starts active, and requiresPaymentSetup tells the caller to route them
// through out-of-band payment configuration.
func (s *SubscriptionSvc) Create(ctx context.Context, userID, academyID string, groupID *string, amount float64) (*domain.Subscription, bool, error) {
	elig, err := s.CheckTrialEligibility(ctx, userID, academyID)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	sub := &domain.Subscription{
		UserID:    userID,
		AcademyID: academyID,
		GroupID:   groupID,
		Billing: domain.Billing{
			Amount:    amount,
			Currency:  s.billing.Currency,
			Frequency: s.billing.Every,
			Unit:      s.billing.Unit,
		},
	}
	if elig.Eligible {
		end := now.AddDate(0, 0, s.trial.Days)
		sub.State = domain.SubTrial
		sub.Trial = domain.Trial{InTrial: true, Start: now, End: &end}
	} else {
		sub.State = domain.SubActive
		sub.Trial = domain.Trial{Start: now}
	}

	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, false, err
	}
	return sub, !elig.Eligible, nil
}

func (s *SubscriptionSvc) CanAttend(sub *domain.Subscription) bool {
	return sub.CanAttend(s.now(), s.trial.ClassLimit)
}

type RecordAttendanceInput struct {
	UserID       string
	GroupID      string
	Day          time.Time // zero value means "now"
	RegisteredBy string
}

type AttendanceResult struct {
	Attendance         *domain.Attendance
	Created            bool
	RequiresActivation bool
	Subscription       *domain.Subscription
}

// RecordAttendance registers one class visit. The same (user, group, day)
// twice returns the first record untouched; the trial counter moves by at
// most one per day. When the hybrid expiry condition becomes true the result
// flags it without blocking the write.
func (s *SubscriptionSvc) RecordAttendance(ctx context.Context, in RecordAttendanceInput) (*AttendanceResult, error) {
	g, err := s.catalog.GroupByID(ctx, in.GroupID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, NotEligible("group not found")
		}
		return nil, err
	}

	sub, err := s.subs.CurrentByUserAcademy(ctx, in.UserID, g.AcademyID, false)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, NotEligible("no active subscription for this academy")
		}
		return nil, err
	}

	now := s.now()
	if !sub.CanAttend(now, s.trial.ClassLimit) {
		if sub.State == domain.SubTrial {
			return nil, NotEligible("trial expired, activate your subscription")
		}
		return nil, NotEligible("subscription is not active")
	}

	day := in.Day
	if day.IsZero() {
		day = now
	}
	a := &domain.Attendance{
		UserID:         in.UserID,
		GroupID:        in.GroupID,
		AcademyID:      g.AcademyID,
		SubscriptionID: sub.ID,
		Day:            domain.NormalizeDay(day),
		Attended:       true,
		TrialVisit:     sub.State == domain.SubTrial,
		RegisteredBy:   in.RegisteredBy,
	}
	created, rec, err := s.attendance.RecordOnce(ctx, a)
	if err != nil {
		return nil, err
	}
	if created && rec.TrialVisit {
		sub.Trial.ClassesAttended++
	}

	res := &AttendanceResult{Attendance: rec, Created: created, Subscription: sub}
	if created && sub.State == domain.SubTrial && sub.TrialExpired(now, s.trial.ClassLimit) {
		res.RequiresActivation = true
		s.publishActivationRequired(ctx, sub)
	}
	return res, nil
}

// AttendanceOn returns the registered visit for a user, group and day, if
// any. A zero day means today.
func (s *SubscriptionSvc) AttendanceOn(ctx context.Context, userID, groupID string, day time.Time) (*domain.Attendance, error) {
	if day.IsZero() {
		day = s.now()
	}
	return s.attendance.ByUserGroupDay(ctx, userID, groupID, day)
}

func (s *SubscriptionSvc) publishActivationRequired(ctx context.Context, sub *domain.Subscription) {
	if s.pub == nil {
		return
	}
	evt := events.ActivationRequired{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		AcademyID:      sub.AcademyID,
	}
	if err := s.pub.PublishJSON(ctx, events.RKActivationRequired, evt); err != nil {
		log.Printf("[subscriptions] publish activation_required for %s: %v", sub.ID, err)
	}
}

// ActivatePostTrial moves trial→active and consumes the user's trial. The
// consumption happens here and only here: a trial abandoned before expiry
// never burns the user's one-time allowance.
func (s *SubscriptionSvc) ActivatePostTrial(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	sub, err := s.subs.ByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.State != domain.SubTrial {
		return nil, ErrNotInTrial
	}
	if err := s.activate(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *SubscriptionSvc) activate(ctx context.Context, sub *domain.Subscription) error {
	now := s.now()
	sub.State = domain.SubActive
	sub.Trial.InTrial = false
	sub.Trial.Used = true
	sub.ActivatedAt = &now
	if err := s.subs.Save(ctx, sub); err != nil {
		return err
	}

	if s.trial.Scope == config.TrialScopeGlobal {
		return s.users.MarkTrialUsedGlobal(ctx, sub.UserID)
	}
	return s.users.MarkTrialUsedAt(ctx, sub.UserID, sub.AcademyID)
}

func (s *SubscriptionSvc) Cancel(ctx context.Context, subscriptionID, reason string) (*domain.Subscription, error) {
	sub, err := s.subs.ByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	sub.State = domain.SubCancelled
	sub.CancelledAt = &now
	sub.CancelReason = reason
	if err := s.subs.Save(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *SubscriptionSvc) Pause(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	sub, err := s.subs.ByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	sub.State = domain.SubPaused
	sub.PausedAt = &now
	if err := s.subs.Save(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// PaymentApproved is the academy path of the approved-payment workflow.
// A trial subscription is activated (consuming the trial); a paused one
// resumes; an active one just records the payment date. A missing
// subscription is logged, not fatal: the payment may predate the
// subscription request.
func (s *SubscriptionSvc) PaymentApproved(ctx context.Context, p *domain.Payment) error {
	if p.AcademyID == nil {
		return nil
	}
	sub, err := s.subs.CurrentByUserAcademy(ctx, p.UserID, *p.AcademyID, true)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Printf("[subscriptions] no subscription for payment %s (user=%s academy=%s)", p.ID, p.UserID, *p.AcademyID)
			return nil
		}
		return err
	}

	now := s.now()
	switch sub.State {
	case domain.SubTrial:
		if err := s.activate(ctx, sub); err != nil {
			return err
		}
	case domain.SubPaused:
		sub.State = domain.SubActive
	}
	sub.LastPaidAt = &now
	return s.subs.Save(ctx, sub)
}

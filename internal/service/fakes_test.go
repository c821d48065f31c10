package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/you/academia-payments/internal/domain"
	"github.com/you/academia-payments/internal/email"
	"github.com/you/academia-payments/internal/repository"
)

// In-memory stores. They mirror the gorm repositories' contracts, including
// repository.ErrNotFound and the CAS semantics of the flag updates.

type fakePayments struct {
	mu   sync.Mutex
	rows map[string]*domain.Payment
}

func newFakePayments(ps ...*domain.Payment) *fakePayments {
	f := &fakePayments{rows: map[string]*domain.Payment{}}
	for _, p := range ps {
		cp := *p
		f.rows[p.ID] = &cp
	}
	return f
}

func (f *fakePayments) ByID(_ context.Context, id string) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.rows[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakePayments) ByGatewayID(_ context.Context, gatewayID string) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.rows {
		if p.GatewayID != nil && *p.GatewayID == gatewayID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakePayments) PendingByExternalReference(_ context.Context, ref string) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.rows {
		if p.ExternalReference == ref && p.Status == domain.PaymentPending {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakePayments) PendingByEventUser(_ context.Context, eventID, userID string) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.rows {
		if p.EventID != nil && *p.EventID == eventID && p.UserID == userID && p.Status == domain.PaymentPending {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakePayments) Create(_ context.Context, p *domain.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == "" {
		p.ID = fmt.Sprintf("pay-%d", len(f.rows)+1)
	}
	if p.Status == "" {
		p.Status = domain.PaymentPending
	}
	cp := *p
	f.rows[p.ID] = &cp
	return nil
}

func (f *fakePayments) Save(_ context.Context, p *domain.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.rows[p.ID] = &cp
	return nil
}

func (f *fakePayments) LinkGatewayID(_ context.Context, p *domain.Payment, gatewayID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if row.GatewayID == nil {
		g := gatewayID
		row.GatewayID = &g
		p.GatewayID = &g
	}
	return nil
}

func (f *fakePayments) MarkRevenueTracked(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.RevenueTracked {
		return false, nil
	}
	now := time.Now().UTC()
	row.RevenueTracked = true
	row.RevenueTrackedAt = &now
	return true, nil
}

type fakeSubs struct {
	mu   sync.Mutex
	rows map[string]*domain.Subscription
}

func newFakeSubs(subs ...*domain.Subscription) *fakeSubs {
	f := &fakeSubs{rows: map[string]*domain.Subscription{}}
	for _, s := range subs {
		cp := *s
		f.rows[s.ID] = &cp
	}
	return f
}

func (f *fakeSubs) ByID(_ context.Context, id string) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.rows[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeSubs) CurrentByUserAcademy(_ context.Context, userID, academyID string, includePaused bool) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.rows {
		if s.UserID != userID || s.AcademyID != academyID {
			continue
		}
		switch s.State {
		case domain.SubTrial, domain.SubActive:
			cp := *s
			return &cp, nil
		case domain.SubPaused:
			if includePaused {
				cp := *s
				return &cp, nil
			}
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeSubs) Create(_ context.Context, s *domain.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == "" {
		s.ID = fmt.Sprintf("sub-%d", len(f.rows)+1)
	}
	cp := *s
	f.rows[s.ID] = &cp
	return nil
}

func (f *fakeSubs) Save(_ context.Context, s *domain.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.rows[s.ID] = &cp
	return nil
}

type fakeAttendance struct {
	mu   sync.Mutex
	rows []*domain.Attendance
	subs *fakeSubs
}

func newFakeAttendance(subs *fakeSubs) *fakeAttendance {
	return &fakeAttendance{subs: subs}
}

func (f *fakeAttendance) ByUserGroupDay(_ context.Context, userID, groupID string, day time.Time) (*domain.Attendance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	day = domain.NormalizeDay(day)
	for _, a := range f.rows {
		if a.UserID == userID && a.GroupID == groupID && a.Day.Equal(day) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeAttendance) RecordOnce(_ context.Context, a *domain.Attendance) (bool, *domain.Attendance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ex := range f.rows {
		if ex.UserID == a.UserID && ex.GroupID == a.GroupID && ex.Day.Equal(a.Day) {
			cp := *ex
			return false, &cp, nil
		}
	}
	a.ID = fmt.Sprintf("att-%d", len(f.rows)+1)
	cp := *a
	f.rows = append(f.rows, &cp)
	if a.TrialVisit && f.subs != nil {
		f.subs.mu.Lock()
		if s, ok := f.subs.rows[a.SubscriptionID]; ok {
			s.Trial.ClassesAttended++
		}
		f.subs.mu.Unlock()
	}
	out := *a
	return true, &out, nil
}

type fakeTickets struct {
	mu   sync.Mutex
	rows map[string]*domain.Ticket // by id
}

func newFakeTickets() *fakeTickets { return &fakeTickets{rows: map[string]*domain.Ticket{}} }

func (f *fakeTickets) ByUserEvent(_ context.Context, userID, eventID string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.rows {
		if t.UserID == userID && t.EventID == eventID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeTickets) ByCode(_ context.Context, code string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.rows {
		if t.Code == code {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeTickets) Create(_ context.Context, t *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ex := range f.rows {
		if ex.UserID == t.UserID && ex.EventID == t.EventID {
			return fmt.Errorf("duplicate key idx_ticket_user_event")
		}
	}
	if t.ID == "" {
		t.ID = fmt.Sprintf("tkt-%d", len(f.rows)+1)
	}
	cp := *t
	f.rows[t.ID] = &cp
	return nil
}

func (f *fakeTickets) MarkEmailSent(_ context.Context, id, emailID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok || t.EmailSentAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	t.EmailSentAt = &now
	t.EmailID = emailID
	return true, nil
}

func (f *fakeTickets) Redeem(_ context.Context, code, staffID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.rows {
		if t.Code == code && t.Status == domain.TicketIssued {
			now := time.Now().UTC()
			t.Status = domain.TicketRedeemed
			t.RedeemedAt = &now
			t.RedeemedBy = &staffID
			return true, nil
		}
	}
	return false, nil
}

type fakeRoster struct {
	mu   sync.Mutex
	rows []*domain.EventMember
}

func newFakeRoster() *fakeRoster { return &fakeRoster{} }

func (f *fakeRoster) ByEventUser(_ context.Context, eventID, userID string) (*domain.EventMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.rows {
		if m.EventID == eventID && m.UserID == userID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRoster) Create(_ context.Context, m *domain.EventMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID == "" {
		m.ID = fmt.Sprintf("mem-%d", len(f.rows)+1)
	}
	cp := *m
	f.rows = append(f.rows, &cp)
	return nil
}

type fakeUsers struct {
	mu        sync.Mutex
	users     map[string]*domain.User
	perAcad   map[string]bool // userID|academyID
	globalSet map[string]bool
}

func newFakeUsers(us ...*domain.User) *fakeUsers {
	f := &fakeUsers{users: map[string]*domain.User{}, perAcad: map[string]bool{}, globalSet: map[string]bool{}}
	for _, u := range us {
		cp := *u
		f.users[u.ID] = &cp
		if u.TrialUsed {
			f.globalSet[u.ID] = true
		}
	}
	return f
}

func (f *fakeUsers) ByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) HasUsedTrialGlobal(_ context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.globalSet[userID], nil
}

func (f *fakeUsers) HasUsedTrialAt(_ context.Context, userID, academyID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.perAcad[userID+"|"+academyID], nil
}

func (f *fakeUsers) MarkTrialUsedGlobal(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.globalSet[userID] = true
	if u, ok := f.users[userID]; ok {
		u.TrialUsed = true
	}
	return nil
}

func (f *fakeUsers) MarkTrialUsedAt(_ context.Context, userID, academyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.perAcad[userID+"|"+academyID] = true
	return nil
}

type fakeCatalog struct {
	events    map[string]*domain.Event
	academies map[string]*domain.Academy
	groups    map[string]*domain.Group
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		events:    map[string]*domain.Event{},
		academies: map[string]*domain.Academy{},
		groups:    map[string]*domain.Group{},
	}
}

func (f *fakeCatalog) EventByID(_ context.Context, id string) (*domain.Event, error) {
	if e, ok := f.events[id]; ok {
		return e, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeCatalog) AcademyByID(_ context.Context, id string) (*domain.Academy, error) {
	if a, ok := f.academies[id]; ok {
		return a, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeCatalog) GroupByID(_ context.Context, id string) (*domain.Group, error) {
	if g, ok := f.groups[id]; ok {
		return g, nil
	}
	return nil, repository.ErrNotFound
}

type published struct {
	Key     string
	Payload any
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
	fail error
}

func (f *fakePublisher) PublishJSON(_ context.Context, key string, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, published{Key: key, Payload: v})
	return nil
}

func (f *fakePublisher) byKey(key string) []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []published
	for _, p := range f.sent {
		if p.Key == key {
			out = append(out, p)
		}
	}
	return out
}

type trackedCall struct {
	Event      string
	DistinctID string
	Amount     float64
}

type fakeTracker struct {
	mu      sync.Mutex
	events  []trackedCall
	charges []trackedCall
	fail    error
}

func (f *fakeTracker) Track(_ context.Context, event, distinctID string, _ map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.events = append(f.events, trackedCall{Event: event, DistinctID: distinctID})
	return nil
}

func (f *fakeTracker) TrackCharge(_ context.Context, distinctID string, amount float64, _ map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.charges = append(f.charges, trackedCall{DistinctID: distinctID, Amount: amount})
	return nil
}

type sentMail struct {
	To   string
	Code string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail error
	next int
}

func (f *fakeMailer) SendTicket(_ context.Context, m email.TicketMail) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return "", f.fail
	}
	f.sent = append(f.sent, sentMail{To: m.To, Code: m.Code})
	f.next++
	return fmt.Sprintf("msg-%d", f.next), nil
}

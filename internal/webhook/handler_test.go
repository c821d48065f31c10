package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/academia-payments/internal/domain"
	"github.com/you/academia-payments/internal/gateway"
	"github.com/you/academia-payments/internal/repository"
	"github.com/you/academia-payments/internal/service"
)

// Minimal in-memory implementations of the service ports, enough to drive the
// ingress end to end.

type memPayments struct {
	rows map[string]*domain.Payment
}

func (m *memPayments) ByID(_ context.Context, id string) (*domain.Payment, error) {
	if p, ok := m.rows[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memPayments) ByGatewayID(_ context.Context, gid string) (*domain.Payment, error) {
	for _, p := range m.rows {
		if p.GatewayID != nil && *p.GatewayID == gid {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memPayments) PendingByExternalReference(_ context.Context, ref string) (*domain.Payment, error) {
	for _, p := range m.rows {
		if p.ExternalReference == ref && p.Status == domain.PaymentPending {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memPayments) PendingByEventUser(_ context.Context, eventID, userID string) (*domain.Payment, error) {
	for _, p := range m.rows {
		if p.EventID != nil && *p.EventID == eventID && p.UserID == userID && p.Status == domain.PaymentPending {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memPayments) Create(_ context.Context, p *domain.Payment) error {
	cp := *p
	m.rows[p.ID] = &cp
	return nil
}

func (m *memPayments) Save(_ context.Context, p *domain.Payment) error {
	cp := *p
	m.rows[p.ID] = &cp
	return nil
}

func (m *memPayments) LinkGatewayID(_ context.Context, p *domain.Payment, gid string) error {
	if row, ok := m.rows[p.ID]; ok && row.GatewayID == nil {
		g := gid
		row.GatewayID = &g
		p.GatewayID = &g
	}
	return nil
}

func (m *memPayments) MarkRevenueTracked(_ context.Context, id string) (bool, error) {
	row, ok := m.rows[id]
	if !ok || row.RevenueTracked {
		return false, nil
	}
	row.RevenueTracked = true
	return true, nil
}

type memCatalog struct{}

func (memCatalog) EventByID(context.Context, string) (*domain.Event, error) {
	return nil, repository.ErrNotFound
}
func (memCatalog) AcademyByID(context.Context, string) (*domain.Academy, error) {
	return nil, repository.ErrNotFound
}
func (memCatalog) GroupByID(context.Context, string) (*domain.Group, error) {
	return nil, repository.ErrNotFound
}

type nullTracker struct{}

func (nullTracker) Track(context.Context, string, string, map[string]any) error { return nil }
func (nullTracker) TrackCharge(context.Context, string, float64, map[string]any) error {
	return nil
}

type countingUpdater struct{ calls int }

func (u *countingUpdater) PaymentApproved(context.Context, *domain.Payment) error {
	u.calls++
	return nil
}

type stubGateway struct {
	infos map[string]*gateway.PaymentInfo
}

func (s *stubGateway) GetPayment(_ context.Context, id string) (*gateway.PaymentInfo, error) {
	if info, ok := s.infos[id]; ok {
		return info, nil
	}
	return nil, fmt.Errorf("gateway: payment %s not found", id)
}

type ingressFixture struct {
	router   *gin.Engine
	payments *memPayments
	tickets  *countingUpdater
	academy  *countingUpdater
}

func newIngressFixture(t *testing.T, gw *stubGateway, payments *memPayments) *ingressFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	academy := &countingUpdater{}
	tickets := &countingUpdater{}
	revenue := service.NewRevenueTracker(payments, memCatalog{}, nullTracker{})
	svc := service.NewPaymentSvc(payments, academy, tickets, revenue, nil)

	h := NewHandler(NewVerifier(testSecret, false), gw, svc)
	r := gin.New()
	h.Register(r)
	return &ingressFixture{router: r, payments: payments, tickets: tickets, academy: academy}
}

func postNotification(t *testing.T, r *gin.Engine, dataID string, signed bool) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"type":   "payment",
		"action": "payment.updated",
		"data":   map[string]string{"id": dataID},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-request-id", "req-1")
	sig := sign(testSecret, "req-1", "1700000000")
	if !signed {
		sig = sign("wrong-secret", "req-1", "1700000000")
	}
	req.Header.Set("x-signature", fmt.Sprintf("ts=1700000000,v1=%s", sig))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIngressApprovedPaymentEndToEnd(t *testing.T) {
	payments := &memPayments{rows: map[string]*domain.Payment{
		"pay-1": {
			ID:                "pay-1",
			ExternalReference: "evt123-user9",
			UserID:            "user9",
			EventID:           func() *string { s := "evt123"; return &s }(),
			Amount:            25000,
			Currency:          "ARS",
			Status:            domain.PaymentPending,
		},
	}}
	gw := &stubGateway{infos: map[string]*gateway.PaymentInfo{
		"777": {
			ID:                json.Number("777"),
			Status:            gateway.StatusApproved,
			StatusDetail:      "accredited",
			TransactionAmount: 25000,
			PaymentMethodID:   "account_money",
			ExternalReference: "evt123-user9",
		},
	}}
	f := newIngressFixture(t, gw, payments)

	w := postNotification(t, f.router, "777", true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["processed"])
	assert.Equal(t, "pay-1", resp["paymentId"])
	assert.Equal(t, domain.PaymentApproved, resp["status"])

	stored := f.payments.rows["pay-1"]
	assert.Equal(t, domain.PaymentApproved, stored.Status)
	assert.Equal(t, domain.PayMethodGateway, stored.Kind)
	require.NotNil(t, stored.GatewayID)
	assert.Equal(t, "777", *stored.GatewayID)
	assert.True(t, stored.RevenueTracked)
	assert.Equal(t, 1, f.tickets.calls)
	assert.Equal(t, 0, f.academy.calls)

	// re-delivery is acknowledged without re-running the workflow
	w = postNotification(t, f.router, "777", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, f.tickets.calls)
}

func TestIngressRejectsBadSignature(t *testing.T) {
	payments := &memPayments{rows: map[string]*domain.Payment{}}
	f := newIngressFixture(t, &stubGateway{}, payments)

	w := postNotification(t, f.router, "777", false)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestIngressAcks200OnUnresolvablePayment(t *testing.T) {
	payments := &memPayments{rows: map[string]*domain.Payment{}}
	gw := &stubGateway{infos: map[string]*gateway.PaymentInfo{
		"777": {ID: json.Number("777"), Status: gateway.StatusApproved, ExternalReference: "ghost-ref"},
	}}
	f := newIngressFixture(t, gw, payments)

	w := postNotification(t, f.router, "777", true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["processed"])
	assert.Equal(t, "payment_not_found", resp["reason"])
}

func TestIngressAcks200OnGatewayFailure(t *testing.T) {
	payments := &memPayments{rows: map[string]*domain.Payment{}}
	f := newIngressFixture(t, &stubGateway{}, payments) // lookup always fails

	w := postNotification(t, f.router, "777", true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "gateway_unavailable", resp["reason"])
}

func TestIngressIgnoresNonPaymentTopics(t *testing.T) {
	payments := &memPayments{rows: map[string]*domain.Payment{}}
	f := newIngressFixture(t, &stubGateway{}, payments)

	body, _ := json.Marshal(map[string]any{
		"type": "merchant_order",
		"data": map[string]string{"id": "42"},
	})
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(body))
	req.Header.Set("x-request-id", "req-1")
	req.Header.Set("x-signature", fmt.Sprintf("ts=1700000000,v1=%s", sign(testSecret, "req-1", "1700000000")))

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_a_payment", resp["reason"])
}

func TestIngressLiveness(t *testing.T) {
	payments := &memPayments{rows: map[string]*domain.Payment{}}
	f := newIngressFixture(t, &stubGateway{}, payments)

	req := httptest.NewRequest(http.MethodGet, "/webhooks/payments", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

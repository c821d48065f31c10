package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/you/academia-payments/internal/domain"
	"github.com/you/academia-payments/internal/repository"
	"github.com/you/academia-payments/internal/service"
)

const roleAdmin = "admin"

func callerID(c *gin.Context) string {
	v, _ := c.Get("sub")
	id, _ := v.(string)
	return id
}

func callerRole(c *gin.Context) string {
	v, _ := c.Get("role")
	role, _ := v.(string)
	return role
}

func writeServiceError(c *gin.Context, err error) {
	switch {
	case service.IsNotEligible(err):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
	case errors.Is(err, service.ErrInvalidTarget):
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one of salidaId or academiaId is required"})
	case errors.Is(err, service.ErrNotInTrial):
		c.JSON(http.StatusConflict, gin.H{"error": "subscription is not in trial"})
	case errors.Is(err, service.ErrAlreadyRedeemed):
		c.JSON(http.StatusConflict, gin.H{"error": "ticket already redeemed"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case repository.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// CreatePayment records a bank-transfer payment awaiting review. Gateway
// payments never enter here; the checkout flow creates those.
func (s *Server) CreatePayment(c *gin.Context) {
	var body struct {
		EventID    string  `json:"salidaId"`
		AcademyID  string  `json:"academiaId"`
		Amount     float64 `json:"monto"`
		Currency   string  `json:"moneda"`
		ReceiptURL string  `json:"comprobanteUrl"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}

	p, err := s.payments.CreateTransfer(c.Request.Context(), service.CreateTransferInput{
		UserID:     callerID(c),
		EventID:    body.EventID,
		AcademyID:  body.AcademyID,
		Amount:     body.Amount,
		Currency:   body.Currency,
		ReceiptURL: body.ReceiptURL,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":                p.ID,
		"externalReference": p.ExternalReference,
		"status":            p.Status,
	})
}

// UpdatePaymentStatus is the manual-review path for bank-transfer receipts.
// Only the owner of the event or academy the payment targets (or an admin)
// may change it.
func (s *Server) UpdatePaymentStatus(c *gin.Context) {
	var body struct {
		Estado string `json:"estado" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "estado is required"})
		return
	}

	p, err := s.paymentStore.ByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if err := s.authorizePaymentReview(c, p); err != nil {
		writeServiceError(c, err)
		return
	}

	updated, err := s.payments.ManualUpdate(c.Request.Context(), p.ID, body.Estado)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":           updated.ID,
		"status":       updated.Status,
		"statusDetail": updated.StatusDetail,
	})
}

func (s *Server) authorizePaymentReview(c *gin.Context, p *domain.Payment) error {
	if callerRole(c) == roleAdmin {
		return nil
	}
	caller := callerID(c)
	switch {
	case p.ForEvent():
		e, err := s.catalog.EventByID(c.Request.Context(), *p.EventID)
		if err != nil {
			return err
		}
		if e.OwnerID == caller {
			return nil
		}
	case p.ForAcademy():
		a, err := s.catalog.AcademyByID(c.Request.Context(), *p.AcademyID)
		if err != nil {
			return err
		}
		if a.OwnerID == caller {
			return nil
		}
	}
	return service.ErrForbidden
}

// RecordAttendance registers a class visit. Staff (the group's teacher or the
// academy owner) may register any student; students may register themselves.
func (s *Server) RecordAttendance(c *gin.Context) {
	var body struct {
		GroupID string `json:"grupoId" binding:"required"`
		UserID  string `json:"userId"`
		Day     string `json:"fecha"` // YYYY-MM-DD, defaults to today
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "grupoId is required"})
		return
	}

	caller := callerID(c)
	userID := body.UserID
	if userID == "" {
		userID = caller
	}
	if userID != caller {
		ok, err := s.isGroupStaff(c, body.GroupID, caller)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		if !ok {
			writeServiceError(c, service.ErrForbidden)
			return
		}
	}

	var day time.Time
	if body.Day != "" {
		var err error
		day, err = time.Parse("2006-01-02", body.Day)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "fecha must be YYYY-MM-DD"})
			return
		}
	}

	res, err := s.subs.RecordAttendance(c.Request.Context(), service.RecordAttendanceInput{
		UserID:       userID,
		GroupID:      body.GroupID,
		Day:          day,
		RegisteredBy: caller,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"attendanceId":       res.Attendance.ID,
		"created":            res.Created,
		"trialVisit":         res.Attendance.TrialVisit,
		"requiresActivation": res.RequiresActivation,
	})
}

// GetAttendance answers whether a class visit is registered for a user, group
// and day. Staff may look up any student; students look up themselves.
func (s *Server) GetAttendance(c *gin.Context) {
	groupID := c.Query("grupoId")
	if groupID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "grupoId is required"})
		return
	}

	caller := callerID(c)
	userID := c.Query("userId")
	if userID == "" {
		userID = caller
	}
	if userID != caller {
		ok, err := s.isGroupStaff(c, groupID, caller)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		if !ok {
			writeServiceError(c, service.ErrForbidden)
			return
		}
	}

	var day time.Time
	if q := c.Query("fecha"); q != "" {
		var err error
		day, err = time.Parse("2006-01-02", q)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "fecha must be YYYY-MM-DD"})
			return
		}
	}

	a, err := s.subs.AttendanceOn(c.Request.Context(), userID, groupID, day)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"attendanceId": a.ID,
		"attended":     a.Attended,
		"trialVisit":   a.TrialVisit,
		"registeredBy": a.RegisteredBy,
	})
}

func (s *Server) isGroupStaff(c *gin.Context, groupID, caller string) (bool, error) {
	if callerRole(c) == roleAdmin {
		return true, nil
	}
	g, err := s.catalog.GroupByID(c.Request.Context(), groupID)
	if err != nil {
		return false, err
	}
	if g.TeacherID == caller {
		return true, nil
	}
	a, err := s.catalog.AcademyByID(c.Request.Context(), g.AcademyID)
	if err != nil {
		return false, err
	}
	return a.OwnerID == caller, nil
}

func (s *Server) CreateSubscription(c *gin.Context) {
	var body struct {
		AcademyID string  `json:"academiaId" binding:"required"`
		GroupID   *string `json:"grupoId"`
		Amount    float64 `json:"monto"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "academiaId is required"})
		return
	}

	sub, requiresPayment, err := s.subs.Create(c.Request.Context(), callerID(c), body.AcademyID, body.GroupID, body.Amount)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":                   sub.ID,
		"state":                sub.State,
		"trialEndsAt":          sub.Trial.End,
		"requiresPaymentSetup": requiresPayment,
	})
}

func (s *Server) TrialEligibility(c *gin.Context) {
	academyID := c.Query("academiaId")
	if academyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "academiaId is required"})
		return
	}
	elig, err := s.subs.CheckTrialEligibility(c.Request.Context(), callerID(c), academyID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"eligible":    elig.Eligible,
		"alreadyUsed": elig.AlreadyUsed,
		"reason":      elig.Reason,
	})
}

func (s *Server) ActivateSubscription(c *gin.Context) {
	sub, err := s.ownedSubscription(c)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out, err := s.subs.ActivatePostTrial(c.Request.Context(), sub.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": out.ID, "state": out.State})
}

func (s *Server) PauseSubscription(c *gin.Context) {
	sub, err := s.ownedSubscription(c)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out, err := s.subs.Pause(c.Request.Context(), sub.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": out.ID, "state": out.State})
}

func (s *Server) CancelSubscription(c *gin.Context) {
	var body struct {
		Reason string `json:"motivo"`
	}
	_ = c.ShouldBindJSON(&body)

	sub, err := s.ownedSubscription(c)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out, err := s.subs.Cancel(c.Request.Context(), sub.ID, body.Reason)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": out.ID, "state": out.State})
}

// ownedSubscription loads the :id subscription and checks the caller owns it
// (admins pass through).
func (s *Server) ownedSubscription(c *gin.Context) (*domain.Subscription, error) {
	sub, err := s.subs.ByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if callerRole(c) != roleAdmin && sub.UserID != callerID(c) {
		return nil, service.ErrForbidden
	}
	return sub, nil
}

func (s *Server) VerifyTicket(c *gin.Context) {
	t, err := s.tickets.Verify(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":       t.Code,
		"status":     t.Status,
		"eventId":    t.EventID,
		"userId":     t.UserID,
		"redeemedAt": t.RedeemedAt,
	})
}

func (s *Server) RedeemTicket(c *gin.Context) {
	var body struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}
	t, err := s.tickets.Redeem(c.Request.Context(), body.Code, callerID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":       t.Code,
		"status":     t.Status,
		"redeemedAt": t.RedeemedAt,
	})
}

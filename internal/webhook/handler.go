package webhook

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/you/academia-payments/internal/domain"
	"github.com/you/academia-payments/internal/gateway"
	"github.com/you/academia-payments/internal/service"
)

// PaymentFetcher is the gateway lookup (satisfied by gateway.Client).
type PaymentFetcher interface {
	GetPayment(ctx context.Context, id string) (*gateway.PaymentInfo, error)
}

// Handler is the gateway-facing ingress. Policy: 403 on a bad signature,
// 200 on everything else, including internal failures, so the gateway's
// retry loop does not hammer a notification we cannot ever process.
type Handler struct {
	verifier *Verifier
	gateway  PaymentFetcher
	payments *service.PaymentSvc
}

func NewHandler(verifier *Verifier, gw PaymentFetcher, payments *service.PaymentSvc) *Handler {
	return &Handler{verifier: verifier, gateway: gw, payments: payments}
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/webhooks/payments", h.Liveness)
	r.POST("/webhooks/payments", h.Receive)
}

// Liveness answers the gateway's endpoint validation ping.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type notification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (h *Handler) Receive(c *gin.Context) {
	var n notification
	if err := c.ShouldBindJSON(&n); err != nil {
		c.JSON(http.StatusOK, gin.H{"received": true, "processed": false, "reason": "malformed_body"})
		return
	}

	sig := c.GetHeader("x-signature")
	reqID := c.GetHeader("x-request-id")
	if err := h.verifier.Verify(sig, reqID); err != nil {
		log.Printf("[webhook] signature rejected (request-id=%s): %v", reqID, err)
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	}

	if n.Type != "payment" || n.Data.ID == "" {
		c.JSON(http.StatusOK, gin.H{"received": true, "processed": false, "reason": "not_a_payment"})
		return
	}

	info, err := h.gateway.GetPayment(c.Request.Context(), n.Data.ID)
	if err != nil {
		log.Printf("[webhook] gateway lookup for %s failed: %v", n.Data.ID, err)
		c.JSON(http.StatusOK, gin.H{"received": true, "processed": false, "reason": "gateway_unavailable"})
		return
	}

	p, err := h.payments.Resolve(c.Request.Context(), info.ID.String(), info.ExternalReference)
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotResolvable) {
			log.Printf("[webhook] payment %s not resolvable (ref=%q)", n.Data.ID, info.ExternalReference)
			c.JSON(http.StatusOK, gin.H{"received": true, "processed": false, "reason": "payment_not_found"})
			return
		}
		log.Printf("[webhook] resolve %s: %v", n.Data.ID, err)
		c.JSON(http.StatusOK, gin.H{"received": true, "processed": false, "reason": "internal_error"})
		return
	}

	p.Kind = domain.PayMethodGateway
	if err := h.payments.Apply(c.Request.Context(), p, info); err != nil {
		log.Printf("[webhook] apply %s to payment %s: %v", info.Status, p.ID, err)
		c.JSON(http.StatusOK, gin.H{"received": true, "processed": false, "reason": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received":  true,
		"processed": true,
		"paymentId": p.ID,
		"status":    p.Status,
	})
}

package http

import (
	"github.com/gin-gonic/gin"

	"github.com/you/academia-payments/internal/service"
	"github.com/you/academia-payments/internal/webhook"
	"github.com/you/academia-payments/pkg/auth"
)

// Server groups the authenticated API surface. The webhook ingress is mounted
// separately because the gateway cannot carry a bearer token.
type Server struct {
	payments     *service.PaymentSvc
	paymentStore service.PaymentStore
	subs         *service.SubscriptionSvc
	tickets      *service.TicketSvc
	catalog      service.CatalogStore
}

func NewServer(
	payments *service.PaymentSvc,
	paymentStore service.PaymentStore,
	subs *service.SubscriptionSvc,
	tickets *service.TicketSvc,
	catalog service.CatalogStore,
) *Server {
	return &Server{
		payments:     payments,
		paymentStore: paymentStore,
		subs:         subs,
		tickets:      tickets,
		catalog:      catalog,
	}
}

func NewRouter(s *Server, wh *webhook.Handler, jwtSecret string) *gin.Engine {
	r := gin.Default()

	wh.Register(r)

	api := r.Group("/api", auth.JWTAuth(jwtSecret))
	{
		api.POST("/payments", s.CreatePayment)
		api.PATCH("/payments/:id", s.UpdatePaymentStatus)

		api.POST("/attendances", s.RecordAttendance)
		api.GET("/attendances", s.GetAttendance)

		api.POST("/subscriptions", s.CreateSubscription)
		api.GET("/subscriptions/eligibility", s.TrialEligibility)
		api.POST("/subscriptions/:id/activate", s.ActivateSubscription)
		api.POST("/subscriptions/:id/pause", s.PauseSubscription)
		api.POST("/subscriptions/:id/cancel", s.CancelSubscription)

		api.GET("/tickets/verify/:code", s.VerifyTicket)
		api.POST("/tickets/redeem", s.RedeemTicket)
	}

	return r
}

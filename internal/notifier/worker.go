package notifier

import (
	"context"
	"errors"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/you/academia-payments/internal/domain"
	"github.com/you/academia-payments/internal/events"
)

// NotificationStore is the slice of the repository the worker needs.
type NotificationStore interface {
	Create(ctx context.Context, n *domain.Notification) error
	ActiveTokens(ctx context.Context, userID string) ([]domain.PushToken, error)
	DeactivateToken(ctx context.Context, id string) error
	TouchToken(ctx context.Context, id string) error
}

type Source interface {
	Deliveries(ctx context.Context) (<-chan amqp.Delivery, error)
}

// OwnerSource resolves the organizer behind an event or academy. nil disables
// owner notifications.
type OwnerSource interface {
	EventByID(ctx context.Context, id string) (*domain.Event, error)
	AcademyByID(ctx context.Context, id string) (*domain.Academy, error)
}

// Worker consumes payment and subscription outcomes and turns them into
// in-app notification rows plus best-effort push. Everything downstream of
// the payer's row insert is absorbed: a dead push relay never nacks a message.
type Worker struct {
	src     Source
	store   NotificationStore
	owners  OwnerSource
	push    PushSender
	baseURL string
}

func NewWorker(src Source, store NotificationStore, owners OwnerSource, push PushSender, baseURL string) *Worker {
	return &Worker{src: src, store: store, owners: owners, push: push, baseURL: baseURL}
}

func (w *Worker) Run(ctx context.Context) error {
	deliveries, err := w.src.Deliveries(ctx)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	log.Printf("[notifier] consuming")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			if err := w.handle(ctx, d); err != nil {
				log.Printf("[notifier] %s: %v", d.RoutingKey, err)
				_ = d.Nack(false, false) // dead-letter, do not requeue
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (w *Worker) handle(ctx context.Context, d amqp.Delivery) error {
	switch d.RoutingKey {
	case events.RKPaymentApproved, events.RKPaymentRejected:
		out, err := events.MustUnmarshal[events.PaymentOutcome](d.Body)
		if err != nil {
			return err
		}
		return w.paymentOutcome(ctx, out)
	case events.RKActivationRequired:
		evt, err := events.MustUnmarshal[events.ActivationRequired](d.Body)
		if err != nil {
			return err
		}
		return w.activationRequired(ctx, evt)
	default:
		log.Printf("[notifier] ignoring routing key %s", d.RoutingKey)
		return nil
	}
}

func (w *Worker) paymentOutcome(ctx context.Context, out events.PaymentOutcome) error {
	n := &domain.Notification{
		UserID: out.UserID,
		Type:   "payment_" + out.Status,
	}
	switch {
	case out.EventID != "":
		n.EventID = &out.EventID
		n.ActionURL = fmt.Sprintf("%s/social/%s", w.baseURL, out.EventID)
	case out.AcademyID != "":
		n.AcademyID = &out.AcademyID
		n.ActionURL = fmt.Sprintf("%s/academias/%s", w.baseURL, out.AcademyID)
	}

	switch out.Status {
	case domain.PaymentApproved:
		n.Message = fmt.Sprintf("¡Pago aprobado! %.2f %s", out.Amount, out.Currency)
	case domain.PaymentRejected:
		n.Message = "Tu pago fue rechazado. Revisá el medio de pago e intentá de nuevo."
	default:
		n.Message = fmt.Sprintf("Tu pago está %s.", out.Status)
	}

	if err := w.store.Create(ctx, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	w.pushToUser(ctx, out.UserID, PushMessage{
		Title: "Pagos",
		Body:  n.Message,
		URL:   n.ActionURL,
	})

	if out.Status == domain.PaymentApproved {
		w.notifyOwner(ctx, out)
	}
	return nil
}

// notifyOwner tells the organizer money came in. Best-effort: the payer's
// row is already written, so a failed owner lookup only logs.
func (w *Worker) notifyOwner(ctx context.Context, out events.PaymentOutcome) {
	if w.owners == nil {
		return
	}

	n := &domain.Notification{
		Type:       "payment_received",
		FromUserID: out.UserID,
	}
	switch {
	case out.EventID != "":
		e, err := w.owners.EventByID(ctx, out.EventID)
		if err != nil {
			log.Printf("[notifier] load event %s: %v", out.EventID, err)
			return
		}
		n.UserID = e.OwnerID
		n.EventID = &out.EventID
		n.ActionURL = fmt.Sprintf("%s/social/%s", w.baseURL, out.EventID)
		n.Message = fmt.Sprintf("Recibiste un pago de %.2f %s por %s.", out.Amount, out.Currency, e.Name)
	case out.AcademyID != "":
		a, err := w.owners.AcademyByID(ctx, out.AcademyID)
		if err != nil {
			log.Printf("[notifier] load academy %s: %v", out.AcademyID, err)
			return
		}
		n.UserID = a.OwnerID
		n.AcademyID = &out.AcademyID
		n.ActionURL = fmt.Sprintf("%s/academias/%s", w.baseURL, out.AcademyID)
		n.Message = fmt.Sprintf("Recibiste un pago de %.2f %s en %s.", out.Amount, out.Currency, a.Name)
	default:
		return
	}

	if err := w.store.Create(ctx, n); err != nil {
		log.Printf("[notifier] insert owner notification for payment %s: %v", out.PaymentID, err)
		return
	}
	w.pushToUser(ctx, n.UserID, PushMessage{
		Title: "Pagos",
		Body:  n.Message,
		URL:   n.ActionURL,
	})
}

func (w *Worker) activationRequired(ctx context.Context, evt events.ActivationRequired) error {
	n := &domain.Notification{
		UserID:    evt.UserID,
		AcademyID: &evt.AcademyID,
		Type:      "trial_expired",
		Message:   "Tu clase de prueba terminó. Activá tu suscripción para seguir entrenando.",
		ActionURL: fmt.Sprintf("%s/academias/%s/suscripcion", w.baseURL, evt.AcademyID),
	}
	if err := w.store.Create(ctx, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	w.pushToUser(ctx, evt.UserID, PushMessage{
		Title: "Suscripción",
		Body:  n.Message,
		URL:   n.ActionURL,
	})
	return nil
}

// pushToUser fans a message out to every active token. Failures are logged;
// invalid tokens are deactivated so they stop accumulating.
func (w *Worker) pushToUser(ctx context.Context, userID string, msg PushMessage) {
	tokens, err := w.store.ActiveTokens(ctx, userID)
	if err != nil {
		log.Printf("[notifier] load tokens for %s: %v", userID, err)
		return
	}
	for _, t := range tokens {
		if err := w.push.Send(ctx, t.Token, msg); err != nil {
			if errors.Is(err, ErrTokenInvalid) {
				_ = w.store.DeactivateToken(ctx, t.ID)
				continue
			}
			log.Printf("[notifier] push to token %s: %v", t.ID, err)
			continue
		}
		_ = w.store.TouchToken(ctx, t.ID)
	}
}

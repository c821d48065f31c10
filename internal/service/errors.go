package service

import "errors"

var (
	// ErrPaymentNotResolvable: the notification references a payment this
	// system never created. The ingress acknowledges it anyway (200) so the
	// gateway does not retry forever.
	ErrPaymentNotResolvable = errors.New("payment_not_resolvable")

	ErrInvalidStatus   = errors.New("invalid_status")
	ErrInvalidTarget   = errors.New("payment_needs_one_target")
	ErrNotInTrial      = errors.New("subscription_not_in_trial")
	ErrAlreadyRedeemed = errors.New("ticket_already_redeemed")
	ErrForbidden       = errors.New("forbidden")
)

// NotEligibleError carries the user-facing reason an attendance or trial
// request was refused ("trial expired, activate your subscription"), so the
// caller sees why instead of a generic failure.
type NotEligibleError struct {
	Reason string
}

func (e *NotEligibleError) Error() string { return e.Reason }

func NotEligible(reason string) error { return &NotEligibleError{Reason: reason} }

func IsNotEligible(err error) bool {
	var ne *NotEligibleError
	return errors.As(err, &ne)
}

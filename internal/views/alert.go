package views

import (
	"errors"

	"github.com/waggishPlayer/hot-wax/internal/gateway"
)

// MsgConnection is the generic transport failure text.
const MsgConnection = "Connection error"

// Alert is a one-shot, blocking message for the user. Unauthorized errors are
// never wrapped in an Alert; they end the session instead.
type Alert struct {
	Message string
	Err     error
}

func (a *Alert) Error() string { return a.Message }
func (a *Alert) Unwrap() error { return a.Err }

// alertFor turns a gateway failure into an Alert. With generic set the
// backend's message is ignored.
func alertFor(err error, fallback string, generic bool) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gateway.ErrUnauthorized):
		return err
	case generic:
		return &Alert{Message: fallback, Err: err}
	case gateway.IsConnection(err):
		return &Alert{Message: MsgConnection, Err: err}
	default:
		return &Alert{Message: gateway.Message(err, fallback), Err: err}
	}
}

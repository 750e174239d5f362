package session

import (
	"context"
	"log/slog"

	"github.com/waggishPlayer/hot-wax/internal/gateway"
)

// MsgConnection is shown when the backend cannot be reached during sign-in.
const MsgConnection = "Connection error. Please try again."

// Mode selects between the two sign-in forms.
type Mode string

// Sign-in modes
const (
	ModeLogin    Mode = "login"
	ModeRegister Mode = "register"
)

// Authenticator issues tokens; gateway.Client implements it.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*gateway.AuthResponse, error)
	Register(ctx context.Context, username, password string) (*gateway.AuthResponse, error)
}

// AuthFailure carries the message to show under the sign-in form.
type AuthFailure struct {
	Message string
	Err     error
}

func (e *AuthFailure) Error() string { return e.Message }
func (e *AuthFailure) Unwrap() error { return e.Err }

// SignIn logs in or registers and stores the issued credential in creds.
func SignIn(ctx context.Context, auth Authenticator, creds *Credentials, mode Mode, username, password string) error {
	call, fallback := auth.Login, gateway.MsgLoginFailed
	if mode == ModeRegister {
		call, fallback = auth.Register, gateway.MsgRegisterFailed
	}

	resp, err := call(ctx, username, password)
	if err != nil {
		if gateway.IsConnection(err) {
			return &AuthFailure{Message: MsgConnection, Err: err}
		}
		slog.Info("sign-in rejected", "mode", mode, "username", username, "error", err)
		return &AuthFailure{Message: gateway.Message(err, fallback), Err: err}
	}

	name := resp.Username
	if name == "" {
		name = username
	}
	creds.Set(resp.Token, name)
	slog.Info("signed in", "mode", mode, "username", name)
	return nil
}

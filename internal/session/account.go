package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aryanfhm/tgsnap/internal/auth"
	"github.com/aryanfhm/tgsnap/internal/tg"
)

// ErrInvalidStep is returned when a login step is submitted out of order,
// e.g. a password before any code was requested.
var ErrInvalidStep = errors.New("login step not expected in current state")

// AccountSession binds one account's client handle to its authentication
// state. Login steps arrive as independent external calls, so everything a
// later step needs (including the pending code hash) is kept here.
type AccountSession struct {
	ID        string
	Client    tg.Client
	Auth      *auth.Machine
	CreatedAt time.Time

	mu       sync.Mutex
	codeHash string
}

// Authorize checks stored credentials without starting a login flow: no
// code is requested, so the account holder gets no surprise SMS. Moves to
// Authenticated when the platform session is valid, otherwise leaves the
// state untouched.
func (s *AccountSession) Authorize(ctx context.Context) (auth.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.Auth.Current()
	if cur != auth.Unauthenticated {
		return cur, nil
	}
	authorized, err := s.Client.IsAuthorized(ctx)
	if err != nil {
		return cur, fmt.Errorf("check authorization: %w", err)
	}
	if !authorized {
		return cur, nil
	}
	if err := s.Auth.Transition(auth.Authenticated); err != nil {
		return s.Auth.Current(), err
	}
	return auth.Authenticated, nil
}

// InitiateLogin checks existing authorization and requests a verification
// code when none is present. Returns the resulting auth state.
func (s *AccountSession) InitiateLogin(ctx context.Context) (auth.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.Auth.Current() {
	case auth.Authenticated:
		return auth.Authenticated, nil
	case auth.AwaitingPassword:
		return auth.AwaitingPassword, nil
	case auth.Failed:
		return auth.Failed, fmt.Errorf("session failed: %s", s.Auth.FailureReason())
	}

	authorized, err := s.Client.IsAuthorized(ctx)
	if err != nil {
		_ = s.Auth.Fail(err.Error())
		return auth.Failed, fmt.Errorf("check authorization: %w", err)
	}
	if authorized {
		if err := s.Auth.Transition(auth.Authenticated); err != nil {
			return s.Auth.Current(), err
		}
		return auth.Authenticated, nil
	}

	hash, err := s.Client.RequestCode(ctx, s.ID)
	if err != nil {
		_ = s.Auth.Fail(err.Error())
		return auth.Failed, fmt.Errorf("request code: %w", err)
	}
	s.codeHash = hash
	if err := s.Auth.Transition(auth.CodeRequested); err != nil {
		return s.Auth.Current(), err
	}
	return auth.CodeRequested, nil
}

// SubmitCode attempts sign-in with the verification code. A platform
// rejection keeps the session in CodeRequested so the caller may retry;
// connection-level errors move it to Failed.
func (s *AccountSession) SubmitCode(ctx context.Context, code string) (auth.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.Auth.Current() {
	case auth.Authenticated:
		// Idempotent no-op.
		return auth.Authenticated, nil
	case auth.CodeRequested:
	default:
		return s.Auth.Current(), fmt.Errorf("%w: submit code in state %s", ErrInvalidStep, s.Auth.Current())
	}

	err := s.Client.SignInWithCode(ctx, s.ID, code, s.codeHash)
	switch {
	case err == nil:
		if terr := s.Auth.Transition(auth.Authenticated); terr != nil {
			return s.Auth.Current(), terr
		}
		return auth.Authenticated, nil
	case errors.Is(err, tg.ErrPasswordRequired):
		if terr := s.Auth.Transition(auth.AwaitingPassword); terr != nil {
			return s.Auth.Current(), terr
		}
		return auth.AwaitingPassword, nil
	case errors.Is(err, tg.ErrAuthRejected):
		// Fails-soft: stay in CodeRequested.
		return auth.CodeRequested, err
	default:
		_ = s.Auth.Fail(err.Error())
		return auth.Failed, err
	}
}

// SubmitPassword completes 2FA sign-in. A wrong password keeps the session
// in AwaitingPassword; connection-level errors move it to Failed.
func (s *AccountSession) SubmitPassword(ctx context.Context, password string) (auth.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.Auth.Current() {
	case auth.Authenticated:
		// Idempotent no-op.
		return auth.Authenticated, nil
	case auth.AwaitingPassword:
	default:
		return s.Auth.Current(), fmt.Errorf("%w: submit password in state %s", ErrInvalidStep, s.Auth.Current())
	}

	err := s.Client.SignInWithPassword(ctx, password)
	switch {
	case err == nil:
		if terr := s.Auth.Transition(auth.Authenticated); terr != nil {
			return s.Auth.Current(), terr
		}
		return auth.Authenticated, nil
	case errors.Is(err, tg.ErrAuthRejected):
		// Fails-soft: stay in AwaitingPassword.
		return auth.AwaitingPassword, err
	default:
		_ = s.Auth.Fail(err.Error())
		return auth.Failed, err
	}
}

package api

import (
	"context"
	"fmt"
	"os"

	"github.com/aryanfhm/tgsnap/internal/auth"
	"github.com/aryanfhm/tgsnap/internal/session"
	"go.uber.org/zap"
)

// LoginStatus is the caller-facing status of a login flow step.
type LoginStatus string

const (
	StatusNotLoggedIn     LoginStatus = "NOT_LOGGED_IN"
	StatusWaitingForCode  LoginStatus = "WAITING_FOR_CODE"
	StatusAlreadyLoggedIn LoginStatus = "ALREADY_LOGGED_IN"
	StatusNeedPassword    LoginStatus = "NEED_PASSWORD"
	StatusLoggedIn        LoginStatus = "LOGGED_IN"
	StatusError           LoginStatus = "ERROR"
)

// LoginResult is the outcome of one login flow step. AccountID carries the
// normalized phone number so callers learn the canonical form.
type LoginResult struct {
	AccountID string
	Status    LoginStatus
	Error     string
}

// LoginService drives the multi-step login flow on top of the session
// registry. Each step is an independent call: the flow may span processes
// as long as the same daemon holds the sessions.
type LoginService struct {
	registry    *session.Registry
	countryCode string
	logger      *zap.Logger
}

// NewLoginService creates a login service.
func NewLoginService(registry *session.Registry, countryCode string, logger *zap.Logger) *LoginService {
	return &LoginService{registry: registry, countryCode: countryCode, logger: logger}
}

// InitiateLogin normalizes the phone number, ensures a connected session and
// requests a verification code unless the account is already authorized.
func (s *LoginService) InitiateLogin(ctx context.Context, rawPhone string) (LoginResult, error) {
	accountID, err := session.NormalizePhone(rawPhone, s.countryCode)
	if err != nil {
		return LoginResult{Status: StatusError, Error: err.Error()}, err
	}

	sess, err := s.registry.GetOrCreate(ctx, accountID)
	if err != nil {
		return LoginResult{AccountID: accountID, Status: StatusError, Error: err.Error()}, err
	}

	state, err := sess.InitiateLogin(ctx)
	res := s.result(accountID, state, err)
	if res.Status == StatusLoggedIn {
		// InitiateLogin on an authorized account means no code round trip happened.
		res.Status = StatusAlreadyLoggedIn
	}
	return res, err
}

// EnsureAuthorized connects the account and reports whether its stored
// session is already authorized. Unlike InitiateLogin it never requests a
// verification code, so it is safe for unattended callers.
func (s *LoginService) EnsureAuthorized(ctx context.Context, rawPhone string) (LoginResult, error) {
	accountID, err := session.NormalizePhone(rawPhone, s.countryCode)
	if err != nil {
		return LoginResult{Status: StatusError, Error: err.Error()}, err
	}
	sess, err := s.registry.GetOrCreate(ctx, accountID)
	if err != nil {
		return LoginResult{AccountID: accountID, Status: StatusError, Error: err.Error()}, err
	}
	state, err := sess.Authorize(ctx)
	res := s.result(accountID, state, err)
	if res.Status == StatusLoggedIn {
		res.Status = StatusAlreadyLoggedIn
	}
	return res, err
}

// SubmitCode advances a pending login with the verification code. A rejected
// code leaves the flow open: the result carries the error and the status
// stays WAITING_FOR_CODE so the caller may retry.
func (s *LoginService) SubmitCode(ctx context.Context, rawPhone, code string) (LoginResult, error) {
	accountID, sess, err := s.lookup(rawPhone)
	if err != nil {
		return LoginResult{AccountID: accountID, Status: StatusError, Error: err.Error()}, err
	}
	state, err := sess.SubmitCode(ctx, code)
	return s.result(accountID, state, err), err
}

// SubmitPassword completes a login that requires the account's 2FA password.
func (s *LoginService) SubmitPassword(ctx context.Context, rawPhone, password string) (LoginResult, error) {
	accountID, sess, err := s.lookup(rawPhone)
	if err != nil {
		return LoginResult{AccountID: accountID, Status: StatusError, Error: err.Error()}, err
	}
	state, err := sess.SubmitPassword(ctx, password)
	return s.result(accountID, state, err), err
}

// Status reports the current auth state of an account without touching the
// platform.
func (s *LoginService) Status(rawPhone string) (LoginResult, error) {
	accountID, sess, err := s.lookup(rawPhone)
	if err != nil {
		return LoginResult{AccountID: accountID, Status: StatusError, Error: err.Error()}, err
	}
	res := s.result(accountID, sess.Auth.Current(), nil)
	if res.Status == StatusError {
		res.Error = sess.Auth.FailureReason()
	}
	return res, nil
}

// Logout revokes the account's authorization, evicts the session and removes
// the stored session file so the next login starts from scratch.
func (s *LoginService) Logout(ctx context.Context, rawPhone string) error {
	accountID, sess, err := s.lookup(rawPhone)
	if err != nil {
		return err
	}

	if err := sess.Client.Logout(ctx); err != nil {
		// Best-effort: the local state is dropped regardless.
		s.logger.Warn("platform logout failed", zap.String("account", accountID), zap.Error(err))
	}
	s.registry.Remove(accountID)

	if err := os.Remove(session.SessionFile(accountID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	s.logger.Info("logged out", zap.String("account", accountID))
	return nil
}

// lookup normalizes the phone and fetches its live session.
func (s *LoginService) lookup(rawPhone string) (string, *session.AccountSession, error) {
	accountID, err := session.NormalizePhone(rawPhone, s.countryCode)
	if err != nil {
		return "", nil, err
	}
	sess, ok := s.registry.Get(accountID)
	if !ok {
		return accountID, nil, fmt.Errorf("no session for %s, initiate login first", accountID)
	}
	return accountID, sess, nil
}

// result maps an auth state plus step error onto the caller-facing status.
func (s *LoginService) result(accountID string, state auth.State, err error) LoginResult {
	res := LoginResult{AccountID: accountID}
	if err != nil {
		res.Error = err.Error()
	}
	switch state {
	case auth.Unauthenticated:
		res.Status = StatusNotLoggedIn
	case auth.CodeRequested:
		res.Status = StatusWaitingForCode
	case auth.AwaitingPassword:
		res.Status = StatusNeedPassword
	case auth.Authenticated:
		res.Status = StatusLoggedIn
	default:
		res.Status = StatusError
	}
	return res
}

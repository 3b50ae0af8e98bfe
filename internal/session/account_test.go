package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aryanfhm/tgsnap/internal/auth"
	"github.com/aryanfhm/tgsnap/internal/tg"
)

func testSession(client *fakeClient) *AccountSession {
	return &AccountSession{
		ID:        testAccount,
		Client:    client,
		Auth:      auth.NewMachine(testAccount, nil),
		CreatedAt: time.Now(),
	}
}

func TestInitiateLoginAlreadyAuthorized(t *testing.T) {
	s := testSession(&fakeClient{authorized: true})

	state, err := s.InitiateLogin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if state != auth.Authenticated {
		t.Errorf("state = %s, want AUTHENTICATED", state)
	}
}

func TestInitiateLoginRequestsCode(t *testing.T) {
	client := &fakeClient{codeHash: "h1"}
	s := testSession(client)

	state, err := s.InitiateLogin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if state != auth.CodeRequested {
		t.Fatalf("state = %s, want CODE_REQUESTED", state)
	}

	// The stored code hash must be replayed on SubmitCode.
	if _, err := s.SubmitCode(context.Background(), "12345"); err != nil {
		t.Fatal(err)
	}
	if client.hashSeen != "h1" {
		t.Errorf("code hash = %q, want h1", client.hashSeen)
	}
	if client.codeSeen != "12345" {
		t.Errorf("code = %q, want 12345", client.codeSeen)
	}
}

func TestInitiateLoginConnectionErrorFails(t *testing.T) {
	s := testSession(&fakeClient{authorizedErr: errors.New("connection reset")})

	state, err := s.InitiateLogin(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if state != auth.Failed {
		t.Errorf("state = %s, want FAILED", state)
	}
	if s.Auth.FailureReason() == "" {
		t.Error("failure reason not recorded")
	}
}

func TestSubmitCodeWrongCodeStaysRetryable(t *testing.T) {
	client := &fakeClient{}
	s := testSession(client)
	if _, err := s.InitiateLogin(context.Background()); err != nil {
		t.Fatal(err)
	}

	client.codeErr = fmt.Errorf("%w: PHONE_CODE_INVALID", tg.ErrAuthRejected)
	state, err := s.SubmitCode(context.Background(), "00000")
	if !errors.Is(err, tg.ErrAuthRejected) {
		t.Fatalf("error = %v, want ErrAuthRejected", err)
	}
	if state != auth.CodeRequested {
		t.Fatalf("state = %s, want CODE_REQUESTED (fails-soft)", state)
	}

	// Retrying the same step with the right code succeeds.
	client.codeErr = nil
	state, err = s.SubmitCode(context.Background(), "12345")
	if err != nil {
		t.Fatal(err)
	}
	if state != auth.Authenticated {
		t.Errorf("state = %s, want AUTHENTICATED", state)
	}
}

func TestSubmitCodeNeedsPassword(t *testing.T) {
	client := &fakeClient{codeErr: tg.ErrPasswordRequired}
	s := testSession(client)
	if _, err := s.InitiateLogin(context.Background()); err != nil {
		t.Fatal(err)
	}

	state, err := s.SubmitCode(context.Background(), "12345")
	if err != nil {
		t.Fatal(err)
	}
	if state != auth.AwaitingPassword {
		t.Fatalf("state = %s, want AWAITING_PASSWORD", state)
	}

	// Wrong password stays in AwaitingPassword.
	client.passwordErr = fmt.Errorf("%w: PASSWORD_HASH_INVALID", tg.ErrAuthRejected)
	state, err = s.SubmitPassword(context.Background(), "bad")
	if !errors.Is(err, tg.ErrAuthRejected) {
		t.Fatalf("error = %v, want ErrAuthRejected", err)
	}
	if state != auth.AwaitingPassword {
		t.Fatalf("state = %s, want AWAITING_PASSWORD (fails-soft)", state)
	}

	client.passwordErr = nil
	state, err = s.SubmitPassword(context.Background(), "correct horse")
	if err != nil {
		t.Fatal(err)
	}
	if state != auth.Authenticated {
		t.Errorf("state = %s, want AUTHENTICATED", state)
	}
}

func TestSubmitCodeConnectionErrorFails(t *testing.T) {
	client := &fakeClient{}
	s := testSession(client)
	if _, err := s.InitiateLogin(context.Background()); err != nil {
		t.Fatal(err)
	}

	client.codeErr = errors.New("EOF")
	state, err := s.SubmitCode(context.Background(), "12345")
	if err == nil {
		t.Fatal("expected error")
	}
	if state != auth.Failed {
		t.Errorf("state = %s, want FAILED", state)
	}
}

func TestStepsIdempotentWhenAuthenticated(t *testing.T) {
	s := testSession(&fakeClient{authorized: true})
	if _, err := s.InitiateLogin(context.Background()); err != nil {
		t.Fatal(err)
	}

	for name, step := range map[string]func() (auth.State, error){
		"InitiateLogin":  func() (auth.State, error) { return s.InitiateLogin(context.Background()) },
		"SubmitCode":     func() (auth.State, error) { return s.SubmitCode(context.Background(), "12345") },
		"SubmitPassword": func() (auth.State, error) { return s.SubmitPassword(context.Background(), "pw") },
	} {
		state, err := step()
		if err != nil {
			t.Errorf("%s after auth: error = %v", name, err)
		}
		if state != auth.Authenticated {
			t.Errorf("%s after auth: state = %s, want AUTHENTICATED", name, state)
		}
	}
}

func TestSubmitOutOfOrder(t *testing.T) {
	s := testSession(&fakeClient{})

	if _, err := s.SubmitCode(context.Background(), "12345"); !errors.Is(err, ErrInvalidStep) {
		t.Errorf("SubmitCode before InitiateLogin: error = %v, want ErrInvalidStep", err)
	}
	if _, err := s.SubmitPassword(context.Background(), "pw"); !errors.Is(err, ErrInvalidStep) {
		t.Errorf("SubmitPassword before code: error = %v, want ErrInvalidStep", err)
	}
}

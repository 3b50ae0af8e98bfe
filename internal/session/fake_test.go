package session

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/aryanfhm/tgsnap/internal/tg"
)

// fakeClient is a scriptable in-memory Client for registry and login tests.
type fakeClient struct {
	connectErr    error
	authorized    bool
	authorizedErr error
	codeHash      string
	requestErr    error
	codeErr       error
	passwordErr   error

	connects    atomic.Int32
	disconnects atomic.Int32
	codeSeen    string
	hashSeen    string
}

func (f *fakeClient) Connect(_ context.Context) error {
	f.connects.Add(1)
	return f.connectErr
}

func (f *fakeClient) Disconnect() {
	f.disconnects.Add(1)
}

func (f *fakeClient) IsAuthorized(_ context.Context) (bool, error) {
	return f.authorized, f.authorizedErr
}

func (f *fakeClient) RequestCode(_ context.Context, _ string) (string, error) {
	if f.requestErr != nil {
		return "", f.requestErr
	}
	if f.codeHash == "" {
		return "hash", nil
	}
	return f.codeHash, nil
}

func (f *fakeClient) SignInWithCode(_ context.Context, _, code, codeHash string) error {
	f.codeSeen = code
	f.hashSeen = codeHash
	return f.codeErr
}

func (f *fakeClient) SignInWithPassword(_ context.Context, _ string) error {
	return f.passwordErr
}

func (f *fakeClient) Logout(_ context.Context) error { return nil }

func (f *fakeClient) ListConversations(_ context.Context, _ int) ([]tg.Conversation, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeClient) Conversation(_ context.Context, _ int64) (tg.Conversation, error) {
	return tg.Conversation{}, fmt.Errorf("not implemented")
}

func (f *fakeClient) FetchMessages(_ context.Context, _ tg.Conversation, _ int) ([]tg.Message, error) {
	return nil, fmt.Errorf("not implemented")
}

// gateClient blocks inside Connect until released, so a test can hold one
// caller mid-connect while others queue up behind it.
type gateClient struct {
	*fakeClient
	started chan struct{}
	release chan struct{}
}

func (g *gateClient) Connect(ctx context.Context) error {
	close(g.started)
	<-g.release
	return g.fakeClient.Connect(ctx)
}

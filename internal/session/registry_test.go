package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aryanfhm/tgsnap/internal/tg"
	"go.uber.org/zap"
)

const testAccount = "+989123456789"

func testRegistry(factory Factory) *Registry {
	return NewRegistry(factory, nil, zap.NewNop())
}

func TestGetOrCreateReturnsSameSession(t *testing.T) {
	var built atomic.Int32
	reg := testRegistry(func(string) (tg.Client, error) {
		built.Add(1)
		return &fakeClient{}, nil
	})

	first, err := reg.GetOrCreate(context.Background(), testAccount)
	if err != nil {
		t.Fatal(err)
	}
	second, err := reg.GetOrCreate(context.Background(), testAccount)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("GetOrCreate returned different sessions for the same account")
	}
	if built.Load() != 1 {
		t.Errorf("built %d clients, want 1", built.Load())
	}
}

func TestGetOrCreateConcurrentSameAccount(t *testing.T) {
	var built atomic.Int32
	reg := testRegistry(func(string) (tg.Client, error) {
		built.Add(1)
		return &fakeClient{}, nil
	})

	const callers = 16
	sessions := make([]*AccountSession, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := reg.GetOrCreate(context.Background(), testAccount)
			if err != nil {
				t.Error(err)
				return
			}
			sessions[i] = s
		}(i)
	}
	wg.Wait()

	if built.Load() != 1 {
		t.Fatalf("built %d clients under concurrent calls, want 1", built.Load())
	}
	for i := 1; i < callers; i++ {
		if sessions[i] != sessions[0] {
			t.Fatalf("caller %d got a different session object", i)
		}
	}
}

func TestGetOrCreateIndependentAccounts(t *testing.T) {
	var built atomic.Int32
	reg := testRegistry(func(string) (tg.Client, error) {
		built.Add(1)
		return &fakeClient{}, nil
	})

	a, err := reg.GetOrCreate(context.Background(), "+989123456789")
	if err != nil {
		t.Fatal(err)
	}
	b, err := reg.GetOrCreate(context.Background(), "+15550000000")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("different accounts share a session")
	}
	if built.Load() != 2 {
		t.Errorf("built %d clients, want 2", built.Load())
	}
}

func TestGetOrCreateConnectFailureNotRegistered(t *testing.T) {
	connectErr := errors.New("network down")
	fails := true
	reg := testRegistry(func(string) (tg.Client, error) {
		if fails {
			return &fakeClient{connectErr: connectErr}, nil
		}
		return &fakeClient{}, nil
	})

	_, err := reg.GetOrCreate(context.Background(), testAccount)
	if !errors.Is(err, connectErr) {
		t.Fatalf("error = %v, want wrapped connect failure", err)
	}
	if _, ok := reg.Get(testAccount); ok {
		t.Error("failed creation left an entry registered")
	}

	// A later attempt succeeds cleanly.
	fails = false
	if _, err := reg.GetOrCreate(context.Background(), testAccount); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestGetOrCreateFailedPeerDoesNotOrphanWaiter(t *testing.T) {
	connectErr := errors.New("network down")
	gate := &gateClient{
		fakeClient: &fakeClient{connectErr: connectErr},
		started:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	var built atomic.Int32
	reg := testRegistry(func(string) (tg.Client, error) {
		if built.Add(1) == 1 {
			return gate, nil
		}
		return &fakeClient{}, nil
	})

	firstErr := make(chan error, 1)
	go func() {
		_, err := reg.GetOrCreate(context.Background(), testAccount)
		firstErr <- err
	}()
	<-gate.started

	// Queue a second caller on the shared entry while the first is still
	// mid-connect.
	type outcome struct {
		sess *AccountSession
		err  error
	}
	secondDone := make(chan outcome, 1)
	go func() {
		s, err := reg.GetOrCreate(context.Background(), testAccount)
		secondDone <- outcome{s, err}
	}()

	// Give the second caller time to park on the entry mutex, then let the
	// first connect fail and evict the entry.
	time.Sleep(20 * time.Millisecond)
	close(gate.release)

	if err := <-firstErr; !errors.Is(err, connectErr) {
		t.Fatalf("first caller error = %v, want wrapped connect failure", err)
	}
	second := <-secondDone
	if second.err != nil {
		t.Fatalf("second caller: %v", second.err)
	}

	// The survivor's session must be the one the registry serves.
	got, ok := reg.Get(testAccount)
	if !ok {
		t.Fatal("registry lost the session created after the failed attempt")
	}
	if got != second.sess {
		t.Error("Get returned a different session than the surviving caller's")
	}

	third, err := reg.GetOrCreate(context.Background(), testAccount)
	if err != nil {
		t.Fatal(err)
	}
	if third != second.sess {
		t.Error("later call built a new session instead of reusing the live one")
	}
	if built.Load() != 2 {
		t.Errorf("built %d clients, want 2", built.Load())
	}
}

func TestGetOrCreateRejectsBadAccountID(t *testing.T) {
	reg := testRegistry(func(string) (tg.Client, error) {
		t.Fatal("factory should not run for invalid account id")
		return nil, nil
	})
	if _, err := reg.GetOrCreate(context.Background(), "not-a-phone"); err == nil {
		t.Error("expected error for invalid account id")
	}
}

func TestRemoveDisconnects(t *testing.T) {
	client := &fakeClient{}
	reg := testRegistry(func(string) (tg.Client, error) { return client, nil })

	if _, err := reg.GetOrCreate(context.Background(), testAccount); err != nil {
		t.Fatal(err)
	}
	reg.Remove(testAccount)

	if client.disconnects.Load() != 1 {
		t.Errorf("disconnects = %d, want 1", client.disconnects.Load())
	}
	if _, ok := reg.Get(testAccount); ok {
		t.Error("session still present after Remove")
	}

	// Removing again is a no-op.
	reg.Remove(testAccount)
	if client.disconnects.Load() != 1 {
		t.Errorf("second Remove disconnected again")
	}
}

func TestCloseEvictsAll(t *testing.T) {
	reg := testRegistry(func(string) (tg.Client, error) { return &fakeClient{}, nil })

	for _, id := range []string{"+989123456789", "+15550000000"} {
		if _, err := reg.GetOrCreate(context.Background(), id); err != nil {
			t.Fatal(err)
		}
	}
	reg.Close()
	if got := len(reg.Accounts()); got != 0 {
		t.Errorf("accounts after Close = %d, want 0", got)
	}
}

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aryanfhm/tgsnap/internal/auth"
	"github.com/aryanfhm/tgsnap/internal/bus"
	"github.com/aryanfhm/tgsnap/internal/tg"
	"go.uber.org/zap"
)

// Factory constructs a disconnected client for an account.
type Factory func(accountID string) (tg.Client, error)

// Registry is the process-wide map from account ID to its live session.
// Creation is mutually exclusive per account: two concurrent GetOrCreate
// calls for the same phone number never construct two clients.
type Registry struct {
	factory Factory
	bus     *bus.Bus
	logger  *zap.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// entry serializes creation for one account ID. The per-entry mutex is held
// across the (potentially slow) connect so the registry mutex is not.
type entry struct {
	mu   sync.Mutex
	sess *AccountSession
}

// NewRegistry creates an empty registry.
func NewRegistry(factory Factory, b *bus.Bus, logger *zap.Logger) *Registry {
	return &Registry{
		factory: factory,
		bus:     b,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// GetOrCreate returns the existing session for accountID, or constructs and
// connects a new client. On connect failure nothing is registered.
func (r *Registry) GetOrCreate(ctx context.Context, accountID string) (*AccountSession, error) {
	if err := ValidateAccountID(accountID); err != nil {
		return nil, err
	}

	for {
		r.mu.Lock()
		e, ok := r.entries[accountID]
		if !ok {
			e = &entry{}
			r.entries[accountID] = e
		}
		r.mu.Unlock()

		e.mu.Lock()
		// The entry may have been evicted while this caller waited on its
		// mutex: a peer whose connect failed drops the empty entry, and
		// Remove evicts populated ones. Populating an evicted entry would
		// detach the session from the registry, so look the entry up again.
		if !r.tracks(accountID, e) {
			e.mu.Unlock()
			continue
		}
		sess, err := r.populate(ctx, accountID, e)
		e.mu.Unlock()
		return sess, err
	}
}

// populate returns the entry's session, creating and connecting one when the
// entry is empty. Caller holds e.mu and has verified the entry is tracked.
func (r *Registry) populate(ctx context.Context, accountID string, e *entry) (*AccountSession, error) {
	if e.sess != nil {
		return e.sess, nil
	}

	client, err := r.factory(accountID)
	if err != nil {
		r.dropEmpty(accountID, e)
		return nil, fmt.Errorf("build client for %s: %w", accountID, err)
	}
	if err := client.Connect(ctx); err != nil {
		r.dropEmpty(accountID, e)
		return nil, fmt.Errorf("connect %s: %w", accountID, err)
	}

	e.sess = &AccountSession{
		ID:        accountID,
		Client:    client,
		Auth:      auth.NewMachine(accountID, r.bus),
		CreatedAt: time.Now(),
	}
	r.logger.Info("session created", zap.String("account", accountID))
	r.publish(bus.KindSessionCreated, accountID)
	return e.sess, nil
}

// tracks reports whether e is still the registered entry for accountID.
func (r *Registry) tracks(accountID string, e *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[accountID] == e
}

// Get returns the session for accountID if one exists.
func (r *Registry) Get(accountID string) (*AccountSession, bool) {
	r.mu.Lock()
	e, ok := r.entries[accountID]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return nil, false
	}
	return e.sess, true
}

// Remove disconnects the account's client (best-effort) and evicts the entry.
func (r *Registry) Remove(accountID string) {
	r.mu.Lock()
	e, ok := r.entries[accountID]
	if ok {
		delete(r.entries, accountID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	sess := e.sess
	e.sess = nil
	e.mu.Unlock()

	if sess != nil {
		sess.Client.Disconnect()
		r.logger.Info("session removed", zap.String("account", accountID))
		r.publish(bus.KindSessionRemoved, accountID)
	}
}

// Accounts returns the IDs of all live sessions.
func (r *Registry) Accounts() []string {
	r.mu.Lock()
	entries := make(map[string]*entry, len(r.entries))
	for id, e := range r.entries {
		entries[id] = e
	}
	r.mu.Unlock()

	ids := make([]string, 0, len(entries))
	for id, e := range entries {
		e.mu.Lock()
		live := e.sess != nil
		e.mu.Unlock()
		if live {
			ids = append(ids, id)
		}
	}
	return ids
}

// Close disconnects and evicts every session. Used at process teardown.
func (r *Registry) Close() {
	for _, id := range r.Accounts() {
		r.Remove(id)
	}
}

// dropEmpty removes a never-populated entry so a failed creation leaves no trace.
func (r *Registry) dropEmpty(accountID string, e *entry) {
	r.mu.Lock()
	if cur, ok := r.entries[accountID]; ok && cur == e && e.sess == nil {
		delete(r.entries, accountID)
	}
	r.mu.Unlock()
}

// publish emits a session lifecycle event if a bus is attached.
func (r *Registry) publish(kind, accountID string) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: accountID})
}

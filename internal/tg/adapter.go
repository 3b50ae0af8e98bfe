package tg

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"
)

// AdapterConfig holds what is needed to build a Telegram client for one account.
type AdapterConfig struct {
	APIID       int
	APIHash     string
	SessionFile string
	Logger      *zap.Logger
}

// Adapter implements Client on top of the gotd MTProto client.
// The connection lives in a background goroutine started by Connect;
// Disconnect cancels it and waits for shutdown.
type Adapter struct {
	client *telegram.Client
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error
}

var _ Client = (*Adapter)(nil)

// NewAdapter creates a disconnected adapter. Session material is persisted
// to cfg.SessionFile so later processes reuse the authorization.
func NewAdapter(cfg AdapterConfig) *Adapter {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	client := telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: cfg.SessionFile},
		Logger:         logger.Named("mtproto"),
	})
	return &Adapter{
		client: client,
		logger: logger,
	}
}

// Connect starts the client loop and waits until it is ready for API calls.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- a.client.Run(runCtx, func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	select {
	case <-ready:
		a.cancel = cancel
		a.done = done
		a.logger.Info("telegram connection established")
		return nil
	case err := <-done:
		cancel()
		return fmt.Errorf("connect: %w", err)
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// Disconnect stops the client loop and waits for it to exit.
func (a *Adapter) Disconnect() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel == nil {
		return
	}
	a.cancel()
	<-a.done
	a.cancel = nil
	a.done = nil
	a.logger.Info("telegram connection closed")
}

// IsAuthorized reports whether the persisted session is still signed in.
func (a *Adapter) IsAuthorized(ctx context.Context) (bool, error) {
	status, err := a.client.Auth().Status(ctx)
	if err != nil {
		return false, fmt.Errorf("auth status: %w", err)
	}
	return status.Authorized, nil
}

// RequestCode asks Telegram to deliver a verification code to the account.
func (a *Adapter) RequestCode(ctx context.Context, phone string) (string, error) {
	sent, err := a.client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return "", fmt.Errorf("send code: %w", err)
	}
	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		return "", fmt.Errorf("send code: unexpected response %T", sent)
	}
	return code.PhoneCodeHash, nil
}

// SignInWithCode attempts sign-in with the delivered verification code.
func (a *Adapter) SignInWithCode(ctx context.Context, phone, code, codeHash string) error {
	_, err := a.client.Auth().SignIn(ctx, phone, code, codeHash)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrPasswordAuthNeeded):
		return ErrPasswordRequired
	case tgerr.Is(err, "PHONE_CODE_INVALID", "PHONE_CODE_EXPIRED", "PHONE_CODE_EMPTY"):
		return fmt.Errorf("%w: %v", ErrAuthRejected, err)
	default:
		return fmt.Errorf("sign in: %w", err)
	}
}

// SignInWithPassword completes 2FA sign-in.
func (a *Adapter) SignInWithPassword(ctx context.Context, password string) error {
	_, err := a.client.Auth().Password(ctx, password)
	switch {
	case err == nil:
		return nil
	case tgerr.Is(err, "PASSWORD_HASH_INVALID"):
		return fmt.Errorf("%w: %v", ErrAuthRejected, err)
	default:
		return fmt.Errorf("password sign in: %w", err)
	}
}

// Logout invalidates the stored credentials.
func (a *Adapter) Logout(ctx context.Context) error {
	if _, err := a.client.API().AuthLogOut(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// ListConversations returns up to limit dialogs in platform order.
func (a *Adapter) ListConversations(ctx context.Context, limit int) ([]Conversation, error) {
	resp, err := a.client.API().MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("get dialogs: %w", err)
	}
	dialogs, ok := resp.AsModified()
	if !ok {
		return nil, fmt.Errorf("get dialogs: unexpected response %T", resp)
	}

	users := indexUsers(dialogs.GetUsers())

	var convs []Conversation
	for _, dc := range dialogs.GetDialogs() {
		dialog, ok := dc.(*tg.Dialog)
		if !ok {
			continue
		}
		conv := Conversation{UnreadCount: dialog.UnreadCount}
		switch peer := dialog.Peer.(type) {
		case *tg.PeerUser:
			conv.ID = peer.UserID
			if u, ok := users[peer.UserID]; ok {
				conv.AccessHash = u.AccessHash
				conv.DisplayName = userDisplayName(u)
				conv.IsPrivate = !u.Deleted
				conv.IsBot = u.Bot
			}
		case *tg.PeerChat:
			conv.ID = peer.ChatID
		case *tg.PeerChannel:
			conv.ID = peer.ChannelID
		}
		convs = append(convs, conv)
		if limit > 0 && len(convs) >= limit {
			break
		}
	}
	return convs, nil
}

// Conversation resolves a single private dialog by user ID.
func (a *Adapter) Conversation(ctx context.Context, id int64) (Conversation, error) {
	resp, err := a.client.API().UsersGetUsers(ctx, []tg.InputUserClass{
		&tg.InputUser{UserID: id},
	})
	if err != nil {
		return Conversation{}, fmt.Errorf("get user %d: %w", id, err)
	}
	for _, uc := range resp {
		u, ok := uc.(*tg.User)
		if !ok || u.ID != id {
			continue
		}
		return Conversation{
			ID:          u.ID,
			AccessHash:  u.AccessHash,
			DisplayName: userDisplayName(u),
			IsPrivate:   !u.Deleted,
			IsBot:       u.Bot,
		}, nil
	}
	return Conversation{}, fmt.Errorf("get user %d: not found", id)
}

// FetchMessages returns up to limit messages from the conversation, newest first.
func (a *Adapter) FetchMessages(ctx context.Context, conv Conversation, limit int) ([]Message, error) {
	resp, err := a.client.API().MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:  &tg.InputPeerUser{UserID: conv.ID, AccessHash: conv.AccessHash},
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("get history for %d: %w", conv.ID, err)
	}
	history, ok := resp.AsModified()
	if !ok {
		return nil, fmt.Errorf("get history for %d: unexpected response %T", conv.ID, resp)
	}

	users := indexUsers(history.GetUsers())

	var msgs []Message
	for _, mc := range history.GetMessages() {
		m, ok := mc.(*tg.Message)
		if !ok {
			// Service and empty messages carry no text.
			continue
		}
		msgs = append(msgs, Message{
			ID:     m.ID,
			Sender: resolveSender(m, conv, users),
			Text:   m.Message,
			SentAt: time.Unix(int64(m.Date), 0).UTC(),
		})
	}
	return msgs, nil
}

func indexUsers(list []tg.UserClass) map[int64]*tg.User {
	users := make(map[int64]*tg.User, len(list))
	for _, uc := range list {
		if u, ok := uc.(*tg.User); ok {
			users[u.ID] = u
		}
	}
	return users
}

func userDisplayName(u *tg.User) string {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return name
}

// resolveSender maps a raw message origin to the tagged Sender variant.
// Private dialog messages without an explicit FromID come from the peer
// itself unless they are outgoing.
func resolveSender(m *tg.Message, conv Conversation, users map[int64]*tg.User) Sender {
	fromID, ok := m.GetFromID()
	if !ok {
		if !m.Out {
			if u, found := users[conv.ID]; found {
				return Sender{Kind: SenderUser, FirstName: u.FirstName, LastName: u.LastName}
			}
		}
		return Sender{Kind: SenderUnknown}
	}
	switch peer := fromID.(type) {
	case *tg.PeerUser:
		if u, found := users[peer.UserID]; found {
			return Sender{Kind: SenderUser, FirstName: u.FirstName, LastName: u.LastName}
		}
		return Sender{Kind: SenderUnknown}
	case *tg.PeerChannel:
		return Sender{Kind: SenderChannel, Title: conv.DisplayName}
	default:
		return Sender{Kind: SenderUnknown}
	}
}

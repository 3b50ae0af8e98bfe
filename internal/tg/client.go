package tg

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Client is the Telegram connection bound to one account. The engine drives
// it through the auth steps and the dialog traversal; implementations own
// the wire protocol and session persistence.
type Client interface {
	// Connect establishes the connection. Must be called before any other method.
	Connect(ctx context.Context) error
	// Disconnect tears the connection down. Safe to call more than once.
	Disconnect()

	// IsAuthorized reports whether the stored session already has valid credentials.
	IsAuthorized(ctx context.Context) (bool, error)
	// RequestCode asks the platform to send a verification code to the account.
	// The returned code hash must be passed back to SignInWithCode.
	RequestCode(ctx context.Context, phone string) (codeHash string, err error)
	// SignInWithCode attempts sign-in with a verification code. Returns
	// ErrPasswordRequired when the account has 2FA enabled, or an error
	// wrapping ErrAuthRejected when the platform refuses the code.
	SignInWithCode(ctx context.Context, phone, code, codeHash string) error
	// SignInWithPassword completes 2FA sign-in. Returns an error wrapping
	// ErrAuthRejected when the password is wrong.
	SignInWithPassword(ctx context.Context, password string) error
	// Logout invalidates the stored session credentials.
	Logout(ctx context.Context) error

	// ListConversations returns up to limit dialogs in platform order
	// (most recently active first).
	ListConversations(ctx context.Context, limit int) ([]Conversation, error)
	// Conversation resolves a single dialog by its peer ID.
	Conversation(ctx context.Context, id int64) (Conversation, error)
	// FetchMessages returns up to limit messages from a conversation,
	// newest first, with senders resolved.
	FetchMessages(ctx context.Context, conv Conversation, limit int) ([]Message, error)
}

// Sentinel errors surfaced by Client implementations.
var (
	// ErrPasswordRequired signals that code sign-in succeeded but the account
	// needs its 2FA password. It is a state transition, not a failure.
	ErrPasswordRequired = errors.New("password required")

	// ErrAuthRejected marks a recoverable rejection (wrong code or password);
	// the caller may retry the same step.
	ErrAuthRejected = errors.New("authentication rejected")
)

// Conversation is a read-only view of one dialog, fetched fresh each run.
type Conversation struct {
	ID          int64
	AccessHash  int64
	DisplayName string
	IsPrivate   bool
	IsBot       bool
	UnreadCount int
}

// SenderKind tags the resolved sender shape.
type SenderKind int

const (
	SenderUnknown SenderKind = iota
	SenderUser
	SenderChannel
)

// Sender is the resolved origin of a message.
type Sender struct {
	Kind      SenderKind
	FirstName string
	LastName  string
	Title     string
}

// DisplayName returns the human-readable sender name: first and last name
// joined for users, the title for channels, empty when unresolved.
func (s Sender) DisplayName() string {
	switch s.Kind {
	case SenderUser:
		return strings.TrimSpace(strings.TrimSpace(s.FirstName) + " " + strings.TrimSpace(s.LastName))
	case SenderChannel:
		return strings.TrimSpace(s.Title)
	default:
		return ""
	}
}

// Message is one fetched message. Immutable once fetched.
type Message struct {
	ID     int
	Sender Sender
	Text   string
	SentAt time.Time
}

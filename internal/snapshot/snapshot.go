package snapshot

import "time"

// MessageRecord is one retained message. Within a conversation's sequence,
// index 0 is the oldest retained message and the last index is the newest.
type MessageRecord struct {
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"date"`
}

// Messages groups the two independently bounded collections per conversation.
type Messages struct {
	MostRecent map[string][]MessageRecord `json:"most_recent"`
	Unread     map[string][]MessageRecord `json:"unread"`
}

// Snapshot is the complete result of one ingestion run for an account.
// It is replaced as a unit; readers never see a partially written snapshot.
type Snapshot struct {
	AccountID   string    `json:"account_id"`
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Messages    Messages  `json:"messages"`
}

// New creates an empty snapshot for the given account with initialized mappings.
func New(accountID string) *Snapshot {
	return &Snapshot{
		AccountID: accountID,
		Messages: Messages{
			MostRecent: make(map[string][]MessageRecord),
			Unread:     make(map[string][]MessageRecord),
		},
	}
}

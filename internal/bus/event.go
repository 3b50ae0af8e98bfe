package bus

import "time"

// Event kinds published by the engine. Subscribers filter on the dotted
// namespace prefix, e.g. "ingest." receives every ingestion event.
const (
	KindAuthStateChanged = "auth.state_changed"

	KindSessionCreated = "session.created"
	KindSessionRemoved = "session.removed"

	KindIngestStarted             = "ingest.started"
	KindIngestConversationSkipped = "ingest.conversation_skipped"
	KindIngestCompleted           = "ingest.completed"

	KindSnapshotWritten = "snapshot.written"
)

// Event is one occurrence published on the bus. Payload shape depends on the
// kind: account IDs for session and snapshot events, structured records for
// auth transitions and ingestion results.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

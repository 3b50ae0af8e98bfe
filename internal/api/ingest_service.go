package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aryanfhm/tgsnap/internal/auth"
	"github.com/aryanfhm/tgsnap/internal/bus"
	"github.com/aryanfhm/tgsnap/internal/ingest"
	"github.com/aryanfhm/tgsnap/internal/session"
	"github.com/aryanfhm/tgsnap/internal/snapshot"
	"github.com/aryanfhm/tgsnap/internal/store"
	"go.uber.org/zap"
)

// ErrNotAuthenticated is returned when an ingestion run is requested for an
// account whose session has not completed login.
var ErrNotAuthenticated = errors.New("account not authenticated")

// IngestService runs ingestion jobs and persists their snapshots. Reads go
// straight to the store so a snapshot survives daemon restarts.
type IngestService struct {
	registry *session.Registry
	db       *store.DB
	job      *ingest.Job
	bus      *bus.Bus
	logger   *zap.Logger
}

// NewIngestService creates an ingest service.
func NewIngestService(registry *session.Registry, db *store.DB, b *bus.Bus, logger *zap.Logger) *IngestService {
	return &IngestService{
		registry: registry,
		db:       db,
		job:      ingest.NewJob(b, logger),
		bus:      b,
		logger:   logger,
	}
}

// Run executes one ingestion run for the account and atomically replaces its
// persisted snapshot. The previous snapshot is left untouched when the run
// fails before producing one.
func (s *IngestService) Run(ctx context.Context, accountID string, opts ingest.Options) (*snapshot.Snapshot, *ingest.Report, error) {
	sess, ok := s.registry.Get(accountID)
	if !ok {
		return nil, nil, fmt.Errorf("no session for %s", accountID)
	}
	if state := sess.Auth.Current(); state != auth.Authenticated {
		return nil, nil, fmt.Errorf("%w: %s is %s", ErrNotAuthenticated, accountID, state)
	}

	snap, report, err := s.job.Run(ctx, sess.Client, accountID, opts)
	if err != nil {
		return nil, report, err
	}

	if err := s.db.WriteSnapshot(snap); err != nil {
		return nil, report, fmt.Errorf("persist snapshot: %w", err)
	}
	if s.bus != nil {
		s.bus.Publish(bus.Event{Kind: bus.KindSnapshotWritten, Timestamp: time.Now(), Payload: accountID})
	}
	s.logger.Info("snapshot written",
		zap.String("account", accountID),
		zap.String("run_id", snap.RunID),
		zap.Int("visited", report.Visited),
		zap.Bool("truncated", report.TruncatedByDeadline))
	return snap, report, nil
}

// Snapshot returns the latest persisted snapshot for the account.
func (s *IngestService) Snapshot(accountID string) (*snapshot.Snapshot, error) {
	return s.db.ReadSnapshot(accountID)
}

// Conversation returns one conversation's recent messages from the latest
// persisted snapshot.
func (s *IngestService) Conversation(accountID, conversationKey string) ([]snapshot.MessageRecord, error) {
	return s.db.ReadConversation(accountID, conversationKey)
}

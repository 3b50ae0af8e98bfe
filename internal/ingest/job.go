package ingest

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aryanfhm/tgsnap/internal/bus"
	"github.com/aryanfhm/tgsnap/internal/snapshot"
	"github.com/aryanfhm/tgsnap/internal/tg"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options bound one ingestion run.
type Options struct {
	MaxConversations int
	MaxUnread        int
	MaxRecent        int

	// TargetConversationID, when set, skips enumeration and re-ingests
	// only that conversation's recent messages.
	TargetConversationID int64
}

// SkipReason explains why a visited conversation is absent from the snapshot.
type SkipReason string

const (
	SkipNotPrivate  SkipReason = "not_private"
	SkipBot         SkipReason = "bot"
	SkipFetchFailed SkipReason = "fetch_failed"
)

// ConversationResult is the per-conversation outcome of a run. Skipped
// conversations are recorded here, never in the snapshot itself.
type ConversationResult struct {
	ConversationID int64
	DisplayName    string
	Key            string
	Skipped        bool
	Reason         SkipReason
	UnreadKept     int
	RecentKept     int
}

// Report describes how a run went, alongside the snapshot it produced.
type Report struct {
	RunID               string
	Visited             int
	Results             []ConversationResult
	TruncatedByDeadline bool
}

// Job traverses one account's conversations and builds a snapshot.
// Traversal is sequential: one outstanding fetch at a time per account.
type Job struct {
	bus    *bus.Bus
	logger *zap.Logger
}

// NewJob creates an ingestion job runner.
func NewJob(b *bus.Bus, logger *zap.Logger) *Job {
	return &Job{bus: b, logger: logger}
}

// Run builds a snapshot for the account using the given client. A failure
// on a single conversation is logged and recorded, never propagated; the
// run aborts only when enumeration itself fails. When the context deadline
// expires mid-traversal the snapshot built so far is returned.
func (j *Job) Run(ctx context.Context, client tg.Client, accountID string, opts Options) (*snapshot.Snapshot, *Report, error) {
	report := &Report{RunID: uuid.New().String()}
	snap := snapshot.New(accountID)
	snap.RunID = report.RunID
	logger := j.logger.With(zap.String("account", accountID), zap.String("run_id", report.RunID))

	j.publish(bus.KindIngestStarted, accountID)

	if opts.TargetConversationID != 0 {
		if err := j.runSingle(ctx, client, snap, report, opts, logger); err != nil {
			return nil, report, err
		}
		snap.GeneratedAt = time.Now().UTC()
		j.publish(bus.KindIngestCompleted, accountID)
		return snap, report, nil
	}

	convs, err := client.ListConversations(ctx, opts.MaxConversations)
	if err != nil {
		return nil, report, fmt.Errorf("list conversations: %w", err)
	}

	keys := snapshot.NewKeySet()
	for _, conv := range convs {
		if report.Visited >= opts.MaxConversations {
			break
		}
		if ctx.Err() != nil {
			report.TruncatedByDeadline = true
			logger.Warn("deadline expired, returning partial snapshot",
				zap.Int("visited", report.Visited))
			break
		}
		report.Visited++
		result := j.processConversation(ctx, client, snap, keys, conv, opts, logger)
		report.Results = append(report.Results, result)
		if result.Skipped {
			j.publish(bus.KindIngestConversationSkipped, result)
		}
	}

	snap.GeneratedAt = time.Now().UTC()
	logger.Info("ingestion run finished",
		zap.Int("visited", report.Visited),
		zap.Int("most_recent", len(snap.Messages.MostRecent)),
		zap.Int("unread", len(snap.Messages.Unread)),
		zap.Bool("truncated", report.TruncatedByDeadline))
	j.publish(bus.KindIngestCompleted, accountID)
	return snap, report, nil
}

// runSingle handles the focused single-conversation mode.
func (j *Job) runSingle(ctx context.Context, client tg.Client, snap *snapshot.Snapshot, report *Report, opts Options, logger *zap.Logger) error {
	conv, err := client.Conversation(ctx, opts.TargetConversationID)
	if err != nil {
		return fmt.Errorf("resolve conversation %d: %w", opts.TargetConversationID, err)
	}
	report.Visited = 1

	msgs, err := client.FetchMessages(ctx, conv, opts.MaxRecent)
	if err != nil {
		return fmt.Errorf("fetch conversation %d: %w", conv.ID, err)
	}

	key := snapshot.NewKeySet().Assign(convKey(conv))
	records := toRecords(msgs, opts.MaxRecent)
	if len(records) > 0 {
		snap.Messages.MostRecent[key] = records
	}
	report.Results = append(report.Results, ConversationResult{
		ConversationID: conv.ID,
		DisplayName:    conv.DisplayName,
		Key:            key,
		RecentKept:     len(records),
	})
	logger.Info("single conversation ingested", zap.Int64("conversation", conv.ID), zap.Int("kept", len(records)))
	return nil
}

// processConversation applies the selection policy and fetches both message
// collections. Any error is contained here: the conversation is skipped and
// the traversal continues.
func (j *Job) processConversation(ctx context.Context, client tg.Client, snap *snapshot.Snapshot, keys *snapshot.KeySet, conv tg.Conversation, opts Options, logger *zap.Logger) ConversationResult {
	result := ConversationResult{
		ConversationID: conv.ID,
		DisplayName:    conv.DisplayName,
	}

	if !conv.IsPrivate {
		result.Skipped = true
		result.Reason = SkipNotPrivate
		return result
	}
	if conv.IsBot {
		result.Skipped = true
		result.Reason = SkipBot
		return result
	}

	// Stage both collections before committing either, so a failed fetch
	// skips the whole conversation instead of leaving half of it behind.
	var unread []snapshot.MessageRecord
	if conv.UnreadCount > 0 {
		limit := min(conv.UnreadCount, opts.MaxUnread)
		msgs, err := client.FetchMessages(ctx, conv, limit)
		if err != nil {
			logger.Warn("unread fetch failed, skipping conversation",
				zap.Int64("conversation", conv.ID), zap.Error(err))
			result.Skipped = true
			result.Reason = SkipFetchFailed
			return result
		}
		unread = toRecords(msgs, limit)
	}

	msgs, err := client.FetchMessages(ctx, conv, opts.MaxRecent)
	if err != nil {
		logger.Warn("recent fetch failed, skipping conversation",
			zap.Int64("conversation", conv.ID), zap.Error(err))
		result.Skipped = true
		result.Reason = SkipFetchFailed
		return result
	}
	recent := toRecords(msgs, opts.MaxRecent)

	if len(unread) == 0 && len(recent) == 0 {
		// No eligible messages: simply absent from the snapshot.
		return result
	}

	key := keys.Assign(convKey(conv))
	result.Key = key
	if len(unread) > 0 {
		snap.Messages.Unread[key] = unread
		result.UnreadKept = len(unread)
	}
	if len(recent) > 0 {
		snap.Messages.MostRecent[key] = recent
		result.RecentKept = len(recent)
	}
	return result
}

// toRecords converts platform-order (newest first) messages into stored
// records: sanitized, empty texts dropped, reversed to chronological order,
// capped at limit.
func toRecords(msgs []tg.Message, limit int) []snapshot.MessageRecord {
	var kept []snapshot.MessageRecord
	for _, m := range msgs {
		if limit > 0 && len(kept) >= limit {
			break
		}
		text := sanitizeText(m.Text)
		if text == "" {
			continue
		}
		kept = append(kept, snapshot.MessageRecord{
			Sender: sanitizeText(m.Sender.DisplayName()),
			Text:   text,
			SentAt: m.SentAt,
		})
	}
	// Reverse in place: index 0 becomes the oldest retained message.
	for i, jj := 0, len(kept)-1; i < jj; i, jj = i+1, jj-1 {
		kept[i], kept[jj] = kept[jj], kept[i]
	}
	return kept
}

func convKey(conv tg.Conversation) string {
	return snapshot.Key(conv.DisplayName, strconv.FormatInt(conv.ID, 10))
}

func (j *Job) publish(kind string, payload any) {
	if j.bus == nil {
		return
	}
	j.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

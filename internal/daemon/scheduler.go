package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/aryanfhm/tgsnap/internal/api"
	"github.com/aryanfhm/tgsnap/internal/config"
	"github.com/aryanfhm/tgsnap/internal/ingest"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// refreshTimeout bounds one whole refresh pass. A pass that overruns it
// leaves partial snapshots behind, which beats blocking the next tick.
const refreshTimeout = 5 * time.Minute

// Scheduler refreshes snapshots for the configured accounts on a cron
// schedule. Passes never overlap: a tick that fires while the previous
// pass still runs is skipped.
type Scheduler struct {
	cfg    *config.Config
	login  *api.LoginService
	ingest *api.IngestService
	logger *zap.Logger

	cron *cron.Cron
	mu   sync.Mutex
	wg   sync.WaitGroup
}

// NewScheduler creates a scheduler for the configured accounts.
func NewScheduler(cfg *config.Config, login *api.LoginService, ingestSvc *api.IngestService, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		login:  login,
		ingest: ingestSvc,
		logger: logger,
	}
}

// Start registers the cron entry and runs one refresh pass immediately.
func (s *Scheduler) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.cfg.Ingest.Schedule, s.RefreshAll); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("refresh schedule registered",
		zap.String("schedule", s.cfg.Ingest.Schedule),
		zap.Strings("accounts", s.cfg.Accounts))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RefreshAll()
	}()
	return nil
}

// Stop halts the cron loop and waits for running passes to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.wg.Wait()
}

// RefreshAll runs one refresh pass over every configured account.
func (s *Scheduler) RefreshAll() {
	if !s.mu.TryLock() {
		s.logger.Warn("previous refresh pass still running, skipping tick")
		return
	}
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	for _, account := range s.cfg.Accounts {
		s.refreshAccount(ctx, account)
	}
}

// refreshAccount ingests one account if its stored session is still
// authorized. Accounts needing interactive login are skipped, never prompted.
func (s *Scheduler) refreshAccount(ctx context.Context, account string) {
	logger := s.logger.With(zap.String("account", account))

	res, err := s.login.EnsureAuthorized(ctx, account)
	if err != nil {
		logger.Warn("session unavailable, skipping refresh", zap.Error(err))
		return
	}
	if res.Status != api.StatusAlreadyLoggedIn {
		logger.Warn("account not logged in, skipping refresh",
			zap.String("status", string(res.Status)))
		return
	}

	_, report, err := s.ingest.Run(ctx, res.AccountID, ingest.Options{
		MaxConversations: s.cfg.Ingest.MaxConversations,
		MaxUnread:        s.cfg.Ingest.MaxUnread,
		MaxRecent:        s.cfg.Ingest.MaxRecent,
	})
	if err != nil {
		logger.Error("scheduled refresh failed", zap.Error(err))
		return
	}
	logger.Info("scheduled refresh complete",
		zap.Int("visited", report.Visited),
		zap.Bool("truncated", report.TruncatedByDeadline))
}

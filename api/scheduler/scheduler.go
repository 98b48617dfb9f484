package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/consulthub/consulthub-api/models"
)

// jobTimeout bounds every job run
const jobTimeout = 30 * time.Second

// Gateway is the part of the chat gateway the periodic jobs drive
type Gateway interface {
	Stats(ctx context.Context) (models.ChatStats, error)
	RefreshPresence(ctx context.Context) (int, error)
}

// Scheduler handles periodic background jobs for the chat gateway
type Scheduler struct {
	cron       *cron.Cron
	Gateway    Gateway
	instanceID string

	statsSpec   string
	refreshSpec string
}

// NewScheduler creates a new scheduler instance. statsSpec is a cron spec for
// the stats report; presenceTTL > 0 also schedules a presence refresh often
// enough that live entries never expire.
func NewScheduler(gateway Gateway, statsSpec string, presenceTTL time.Duration) *Scheduler {
	// Generate a unique instance ID for this pod
	instanceID := os.Getenv("DYNO") // Heroku sets this to "web.1", "web.2", etc.
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	s := &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		Gateway:    gateway,
		instanceID: instanceID,
		statsSpec:  statsSpec,
	}
	if presenceTTL > 0 {
		every := presenceTTL / 3
		if every < time.Second {
			every = time.Second
		}
		s.refreshSpec = "@every " + every.String()
	}
	return s
}

// Start registers the jobs and begins the scheduler
func (s *Scheduler) Start() error {
	if s.statsSpec != "" {
		if _, err := s.cron.AddFunc(s.statsSpec, s.ReportStats); err != nil {
			return fmt.Errorf("register stats job %q: %w", s.statsSpec, err)
		}
	}
	if s.refreshSpec != "" {
		if _, err := s.cron.AddFunc(s.refreshSpec, s.RefreshPresence); err != nil {
			return fmt.Errorf("register presence job %q: %w", s.refreshSpec, err)
		}
	}

	s.cron.Start()
	zap.S().Infow("Chat scheduler started",
		"instance", s.instanceID,
		"jobs", len(s.cron.Entries()))
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("Chat scheduler stopped")
}

// ReportStats logs a snapshot of the gateway
func (s *Scheduler) ReportStats() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	stats, err := s.Gateway.Stats(ctx)
	if err != nil {
		zap.S().Errorw("failed to collect chat stats", "error", err)
		return
	}
	zap.S().Infow("chat gateway stats",
		"instance", s.instanceID,
		"rooms", stats.Rooms,
		"members", stats.Members,
		"onlineUsers", stats.OnlineUsers,
		"connections", stats.Connections)
}

// RefreshPresence renews the shared presence entry of every online user
func (s *Scheduler) RefreshPresence() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.Gateway.RefreshPresence(ctx)
	if err != nil {
		zap.S().Errorw("failed to refresh presence", "error", err)
		return
	}
	zap.S().Debugw("presence refreshed", "users", n)
}

package scheduler

import (
	"context"
	"sync"
	"time"

	"supportdesk-backend/internal/email/usecase"

	"go.uber.org/zap"
)

const defaultInterval = 5 * time.Minute

// Config controls the periodic fetch
type Config struct {
	Enabled    bool
	Interval   time.Duration
	BatchLimit int
}

// TickResult is what one fetch-and-process run did
type TickResult struct {
	Fetch      *usecase.FetchResult `json:"fetch,omitempty"`
	FetchError string               `json:"fetchError,omitempty"`
	Processed  []usecase.JobOutcome `json:"processed"`
	Skipped    bool                 `json:"skipped,omitempty"`
}

// FetchScheduler periodically pulls new mail and runs pending support
// emails through the pipeline.
type FetchScheduler struct {
	fetcher usecase.Fetcher
	batch   usecase.BatchRunner
	cfg     Config
	logger  *zap.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}

	// tickMu keeps ticks from overlapping, including RunOnce calls from other triggers
	tickMu sync.Mutex
}

// NewFetchScheduler creates a new scheduler
func NewFetchScheduler(fetcher usecase.Fetcher, batch usecase.BatchRunner, cfg Config, logger *zap.Logger) *FetchScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FetchScheduler{
		fetcher: fetcher,
		batch:   batch,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start runs one tick immediately and then one per interval.
// It does nothing when disabled or already running.
func (s *FetchScheduler) Start() {
	if !s.cfg.Enabled {
		s.logger.Info("auto fetch disabled, use the fetch endpoint to pull mail manually")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Info("fetch scheduler already running")
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})

	s.logger.Info("fetch scheduler started", zap.Duration("interval", s.cfg.Interval))
	go s.loop(s.stopChan)
}

func (s *FetchScheduler) loop(stop <-chan struct{}) {
	// Run immediately on start
	s.tick()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			s.tick()
		case <-stop:
			s.logger.Info("fetch scheduler stopped")
			return
		}
	}
}

// Stop prevents further ticks. A tick already in progress runs to completion.
func (s *FetchScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.stopChan)
	s.running = false
}

// Running reports whether the periodic loop is active
func (s *FetchScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *FetchScheduler) tick() {
	// The tick is not tied to Stop; in-flight work always finishes.
	if _, err := s.RunOnce(context.Background()); err != nil {
		s.logger.Warn("scheduled fetch failed", zap.Error(err))
	}
}

// RunOnce fetches new mail and then processes pending support emails.
// A fetch failure is reported in the result and does not skip processing.
// When another run is in progress the call returns immediately with Skipped set.
func (s *FetchScheduler) RunOnce(ctx context.Context) (*TickResult, error) {
	if !s.tickMu.TryLock() {
		s.logger.Info("fetch already in progress, skipping")
		return &TickResult{Skipped: true, Processed: []usecase.JobOutcome{}}, nil
	}
	defer s.tickMu.Unlock()

	result := &TickResult{Processed: []usecase.JobOutcome{}}
	if s.fetcher != nil {
		fetched, err := s.fetcher.FetchAndStore(ctx)
		if err != nil {
			s.logger.Warn("fetching emails failed", zap.Error(err))
			result.FetchError = err.Error()
		}
		result.Fetch = fetched
	}

	if s.batch == nil {
		return result, nil
	}
	outcomes, err := s.batch.ProcessPendingFiltered(ctx, s.cfg.BatchLimit)
	if err != nil {
		return result, err
	}
	result.Processed = outcomes
	if len(outcomes) > 0 {
		s.logger.Info("processed pending emails", zap.Int("count", len(outcomes)))
	}
	return result, nil
}

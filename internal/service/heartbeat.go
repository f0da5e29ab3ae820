package service

import (
	"fmt"
	"runtime"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Heartbeat periodically logs that the worker is alive.
type Heartbeat struct {
	cron     *cron.Cron
	interval time.Duration
	started  time.Time
	now      func() time.Time
	logger   *zap.Logger
}

// NewHeartbeat creates a heartbeat firing every interval.
func NewHeartbeat(interval time.Duration, logger *zap.Logger) *Heartbeat {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Heartbeat{
		cron:     cron.New(),
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// Schedule returns the cron schedule for the configured interval.
func (h *Heartbeat) Schedule() string {
	return fmt.Sprintf("@every %s", h.interval)
}

// Start schedules the heartbeat.
func (h *Heartbeat) Start() error {
	if h.interval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %s", h.interval)
	}
	h.started = h.now()
	if _, err := h.cron.AddFunc(h.Schedule(), h.beat); err != nil {
		return fmt.Errorf("schedule heartbeat: %w", err)
	}
	h.cron.Start()
	h.logger.Info("heartbeat scheduled", zap.String("schedule", h.Schedule()))
	return nil
}

// Stop halts the schedule and waits for a running beat to return.
func (h *Heartbeat) Stop() {
	<-h.cron.Stop().Done()
}

func (h *Heartbeat) beat() {
	h.logger.Info("heartbeat",
		zap.Duration("uptime", h.now().Sub(h.started).Round(time.Second)),
		zap.Int("goroutines", runtime.NumGoroutine()),
	)
}

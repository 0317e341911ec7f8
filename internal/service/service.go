package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/subhash0x/agentnet/internal/alerting"
	"github.com/subhash0x/agentnet/internal/config"
	"github.com/subhash0x/agentnet/internal/dispatch"
	"github.com/subhash0x/agentnet/internal/scheduler"
	"github.com/subhash0x/agentnet/internal/storage"
)

// Service orchestrates scheduled dispatch passes: it serialises passes
// behind an advisory lock, runs the monitor, and mirrors fired signals
// to the optional operator channel.
type Service struct {
	scheduler *scheduler.Scheduler
	monitor   *dispatch.Monitor
	notifier  alerting.Notifier
	logger    zerolog.Logger

	locker  storage.AdvisoryLocker
	lockKey int64
}

// New constructs the dispatch service.
func New(cfg *config.Config, sched *scheduler.Scheduler, monitor *dispatch.Monitor, notifier alerting.Notifier, locker storage.AdvisoryLocker, logger zerolog.Logger) *Service {
	return &Service{
		scheduler: sched,
		monitor:   monitor,
		notifier:  notifier,
		logger:    logger.With().Str("component", "service").Logger(),
		locker:    locker,
		lockKey:   cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the scheduled dispatch loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessPass)
}

// ProcessPass executes one dispatch pass under the advisory lock. When
// another instance holds the lock the pass is skipped, which keeps two
// overlapping passes from both claiming the same firing.
func (s *Service) ProcessPass(ctx context.Context, tick time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("tick", tick).Msg("skip pass because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	result, err := s.monitor.RunPass(ctx)
	if err != nil {
		return err
	}

	for _, failure := range result.Failures {
		s.logger.Error().Err(failure.Err).Str("alert_id", failure.AlertID).Msg("alert failed this pass; retried next pass")
	}

	s.mirrorFirings(ctx, result.Firings)
	return nil
}

// mirrorFirings forwards fired signals to the operator channel. Mirror
// failures are logged only; the topic publish already succeeded.
func (s *Service) mirrorFirings(ctx context.Context, firings []dispatch.Firing) {
	if s.notifier == nil {
		return
	}

	for _, firing := range firings {
		note := alerting.Notification{
			AlertID:       firing.Alert.ID,
			Kind:          firing.Signal.Kind,
			Action:        firing.Alert.Action,
			Amount:        firing.Alert.Amount,
			TriggerType:   firing.Alert.TriggerType,
			TriggerValue:  firing.Alert.TriggerValue,
			BaselinePrice: firing.Alert.BaselinePrice,
			CurrentPrice:  firing.Signal.CurrentPrice,
			TopicID:       firing.TopicID,
			Sequence:      firing.Sequence,
			FiredAt:       time.Now().UTC(),
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			s.logger.Error().Err(err).Str("alert_id", firing.Alert.ID).Msg("failed to mirror signal")
		}
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

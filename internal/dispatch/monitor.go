package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/subhash0x/agentnet/internal/config"
	"github.com/subhash0x/agentnet/internal/oracle"
	"github.com/subhash0x/agentnet/internal/storage"
)

// AlertRepository is the narrow persistence surface the monitor needs.
type AlertRepository interface {
	ListActive(ctx context.Context) ([]storage.Alert, error)
	UpdateFired(ctx context.Context, id, topicID string, sequence uint64, firedAt time.Time, prevNotifiedAt *time.Time) error
}

// SignalPublisher submits payloads to an append-only topic and can
// provision a topic when none exists yet.
type SignalPublisher interface {
	EnsureTopic(ctx context.Context, memo string) (string, error)
	Publish(ctx context.Context, topicID string, payload []byte) (uint64, error)
}

// SignalRecorder keeps an audit trail of published signals. Recording
// is best effort and never fails a pass.
type SignalRecorder interface {
	InsertSignal(ctx context.Context, record storage.SignalRecord) (storage.SignalRecord, error)
}

// Failure ties a per-alert error to the alert it belongs to.
type Failure struct {
	AlertID string
	Err     error
}

// Firing describes one successfully published signal in a pass.
type Firing struct {
	Alert    storage.Alert
	Signal   Signal
	TopicID  string
	Sequence uint64
}

// Result aggregates one dispatch pass.
type Result struct {
	Evaluated int
	Fired     int
	Failures  []Failure
	Firings   []Firing
}

// Options tune the monitor.
type Options struct {
	Topics             config.TopicsConfig
	Workers            int
	DefaultCooldown    time.Duration
	PublishTimeout     time.Duration
	RepositoryTimeout  time.Duration
	TopicProvisionMemo string
	// Clock overrides time.Now, used by tests.
	Clock func() time.Time
}

// Monitor runs one evaluation pass over all active alerts: one shared
// price fetch, trigger and cooldown gating per alert, publish and
// persist per eligible alert. Delivery is at-least-once: a persist
// failure after a successful publish leaves the alert eligible on the
// next pass and can therefore produce a duplicate signal, never a
// missed one. A fired buy/sell alert stays active and keeps re-firing
// on later crossings, cooldown-gated; there is deliberately no
// completion transition.
type Monitor struct {
	repo      AlertRepository
	source    oracle.PriceSource
	publisher SignalPublisher
	recorder  SignalRecorder
	opts      Options
	logger    zerolog.Logger
	now       func() time.Time
}

// NewMonitor constructs the dispatch monitor. The recorder may be nil.
func NewMonitor(repo AlertRepository, source oracle.PriceSource, publisher SignalPublisher, recorder SignalRecorder, opts Options, logger zerolog.Logger) *Monitor {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.DefaultCooldown <= 0 {
		opts.DefaultCooldown = time.Hour
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		repo:      repo,
		source:    source,
		publisher: publisher,
		recorder:  recorder,
		opts:      opts,
		logger:    logger.With().Str("component", "monitor").Logger(),
		now:       now,
	}
}

// RunPass executes one complete dispatch pass. An unusable quote is a
// quiet no-op: nothing is evaluated and no error is returned. A listing
// failure is fatal for the pass. Per-alert failures are collected in
// the result and never abort the remaining alerts.
func (m *Monitor) RunPass(ctx context.Context) (Result, error) {
	listCtx, cancel := m.repositoryContext(ctx)
	alerts, err := m.repo.ListActive(listCtx)
	cancel()
	if err != nil {
		return Result{}, fmt.Errorf("list active alerts: %w", err)
	}

	quote, err := m.source.Latest(ctx)
	if err != nil || !quote.Usable() {
		m.logger.Warn().Err(err).Msg("no usable quote; skipping pass")
		return Result{}, nil
	}

	now := m.now().UTC()
	result := Result{Evaluated: len(alerts)}
	if len(alerts) == 0 {
		return result, nil
	}

	workers := m.opts.Workers
	if workers > len(alerts) {
		workers = len(alerts)
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan storage.Alert)
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for alert := range jobs {
				firing, fired, alertErr := m.processAlert(ctx, alert, quote, now)
				mu.Lock()
				if alertErr != nil {
					result.Failures = append(result.Failures, Failure{AlertID: alert.ID, Err: alertErr})
				} else if fired {
					result.Fired++
					result.Firings = append(result.Firings, firing)
				}
				mu.Unlock()
			}
		}()
	}

	for _, alert := range alerts {
		select {
		case <-ctx.Done():
			// Stop starting new per-alert work; in-flight work runs to
			// completion or failure.
		case jobs <- alert:
			continue
		}
		break
	}
	close(jobs)
	wg.Wait()

	m.logger.Info().
		Int("evaluated", result.Evaluated).
		Int("fired", result.Fired).
		Int("failures", len(result.Failures)).
		Float64("price_usd", quote.ValueUSD).
		Str("price_source", quote.Source).
		Msg("dispatch pass complete")

	return result, nil
}

func (m *Monitor) processAlert(ctx context.Context, alert storage.Alert, quote oracle.Quote, now time.Time) (Firing, bool, error) {
	if !Eligible(alert.LastNotifiedAt, alert.Cooldown(m.opts.DefaultCooldown), now) {
		return Firing{}, false, nil
	}
	if !Evaluate(alert.TriggerType, alert.TriggerValue, alert.BaselinePrice, quote.ValueUSD) {
		return Firing{}, false, nil
	}

	topicID, err := m.resolveTopic(ctx, alert)
	if err != nil {
		return Firing{}, false, fmt.Errorf("resolve topic: %w", err)
	}

	signal := BuildSignal(alert, quote.ValueUSD, now)
	payload, err := signal.Encode()
	if err != nil {
		return Firing{}, false, fmt.Errorf("encode signal: %w", err)
	}

	publishCtx, cancel := m.publishContext(ctx)
	sequence, err := m.publisher.Publish(publishCtx, topicID, payload)
	cancel()
	if err != nil {
		return Firing{}, false, fmt.Errorf("publish signal: %w", err)
	}

	persistCtx, cancel := m.repositoryContext(ctx)
	err = m.repo.UpdateFired(persistCtx, alert.ID, topicID, sequence, now, alert.LastNotifiedAt)
	cancel()
	if err != nil {
		// The signal is already on the topic. The alert stays eligible
		// and the next pass may publish a duplicate; that is the
		// at-least-once contract, so the error is surfaced, not hidden.
		return Firing{}, false, fmt.Errorf("persist fired state after publish: %w", err)
	}

	m.recordSignal(ctx, alert, signal, topicID, sequence, now)

	m.logger.Info().
		Str("alert_id", alert.ID).
		Str("action", alert.Action).
		Str("topic_id", topicID).
		Uint64("sequence", sequence).
		Float64("current_price", quote.ValueUSD).
		Msg("signal fired")

	return Firing{Alert: alert, Signal: signal, TopicID: topicID, Sequence: sequence}, true, nil
}

// resolveTopic picks the destination topic: a statically configured
// per-action topic wins, then the alert's previously stored topic, then
// a freshly provisioned one.
func (m *Monitor) resolveTopic(ctx context.Context, alert storage.Alert) (string, error) {
	if topicID := m.opts.Topics.TopicFor(alert.Action); topicID != "" {
		return topicID, nil
	}
	if alert.TopicID != "" {
		return alert.TopicID, nil
	}

	provisionCtx, cancel := m.publishContext(ctx)
	defer cancel()
	return m.publisher.EnsureTopic(provisionCtx, m.opts.TopicProvisionMemo)
}

func (m *Monitor) recordSignal(ctx context.Context, alert storage.Alert, signal Signal, topicID string, sequence uint64, now time.Time) {
	if m.recorder == nil {
		return
	}

	recordCtx, cancel := m.repositoryContext(ctx)
	defer cancel()

	_, err := m.recorder.InsertSignal(recordCtx, storage.SignalRecord{
		AlertID:       alert.ID,
		TopicID:       topicID,
		Sequence:      sequence,
		Kind:          signal.Kind,
		Action:        alert.Action,
		Amount:        alert.Amount,
		TriggerType:   alert.TriggerType,
		TriggerValue:  alert.TriggerValue,
		BaselinePrice: alert.BaselinePrice,
		CurrentPrice:  signal.CurrentPrice,
		PublishedAt:   now,
	})
	if err != nil {
		m.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to record signal audit entry")
	}
}

func (m *Monitor) publishContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opts.PublishTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.opts.PublishTimeout)
}

func (m *Monitor) repositoryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opts.RepositoryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.opts.RepositoryTimeout)
}

package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/subhash0x/agentnet/internal/oracle"
	"github.com/subhash0x/agentnet/internal/storage"
)

// SimulatePass runs one dispatch pass against a fixed price without
// touching the database or the consensus service: active alerts are
// copied into an in-memory store and payloads go to the log instead of
// a topic.
func (a *App) SimulatePass(ctx context.Context, price float64) error {
	memory := storage.NewMemoryStore()

	alerts, err := a.loadAlertsForSimulation(ctx)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		a.Logger.Warn().Msg("no active alerts; simulating against a sample drop alert")
		alerts = []storage.Alert{sampleAlert(price)}
	}
	for _, alert := range alerts {
		if err := memory.CreateAlert(ctx, alert); err != nil {
			return err
		}
	}

	source := staticPriceSource{price: price}
	publisher := &logPublisher{logger: a.Logger}

	monitor := a.newMonitor(memory, source, publisher, memory)
	result, err := monitor.RunPass(ctx)
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

// loadAlertsForSimulation fetches the live active set when a database
// is configured, and otherwise returns none.
func (a *App) loadAlertsForSimulation(ctx context.Context) ([]storage.Alert, error) {
	if a.Config.Database.DSN == "" {
		return nil, nil
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer closeStore()

	return store.ListActive(ctx)
}

func sampleAlert(price float64) storage.Alert {
	now := time.Now().UTC()
	return storage.Alert{
		ID:              uuid.NewString(),
		SourceAccount:   "0.0.0",
		Amount:          decimal.Zero,
		Action:          storage.ActionNotify,
		TriggerType:     storage.TriggerPercentDrop,
		TriggerValue:    10,
		BaselinePrice:   price * 1.2,
		CooldownSeconds: 3600,
		Status:          storage.StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

type staticPriceSource struct {
	price float64
}

func (s staticPriceSource) Latest(ctx context.Context) (oracle.Quote, error) {
	return oracle.Quote{ValueUSD: s.price, FetchedAt: time.Now().UTC(), Source: "simulated"}, nil
}

// logPublisher writes payloads to the log and hands out fake sequences.
type logPublisher struct {
	logger zerolog.Logger
	mu     sync.Mutex
	seqs   map[string]uint64
}

func (p *logPublisher) EnsureTopic(ctx context.Context, memo string) (string, error) {
	return "0.0.0-simulated", nil
}

func (p *logPublisher) Publish(ctx context.Context, topicID string, payload []byte) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seqs == nil {
		p.seqs = make(map[string]uint64)
	}
	p.seqs[topicID]++
	seq := p.seqs[topicID]
	p.logger.Info().Str("topic_id", topicID).Uint64("sequence", seq).RawJSON("payload", payload).Msg("simulated publish")
	return seq, nil
}

var _ oracle.PriceSource = staticPriceSource{}

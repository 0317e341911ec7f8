package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/subhash0x/agentnet/internal/config"
	"github.com/subhash0x/agentnet/internal/oracle"
	"github.com/subhash0x/agentnet/internal/storage"
)

type staticSource struct {
	quote oracle.Quote
	err   error
	calls int
	mu    sync.Mutex
}

func (s *staticSource) Latest(ctx context.Context) (oracle.Quote, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.quote, s.err
}

type published struct {
	topicID string
	payload []byte
}

type fakePublisher struct {
	mu          sync.Mutex
	nextTopic   int
	nextSeq     map[string]uint64
	published   []published
	failPublish map[string]error
	ensureErr   error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{nextSeq: make(map[string]uint64), failPublish: make(map[string]error)}
}

func (f *fakePublisher) EnsureTopic(ctx context.Context, memo string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ensureErr != nil {
		return "", f.ensureErr
	}
	f.nextTopic++
	return fmt.Sprintf("0.0.%d", 9000+f.nextTopic), nil
}

func (f *fakePublisher) Publish(ctx context.Context, topicID string, payload []byte) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failPublish[topicID]; ok {
		return 0, err
	}
	f.nextSeq[topicID]++
	f.published = append(f.published, published{topicID: topicID, payload: payload})
	return f.nextSeq[topicID], nil
}

func (f *fakePublisher) messages() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]published, len(f.published))
	copy(out, f.published)
	return out
}

type failingRepo struct {
	storage.AlertStore
	listErr error
}

func (r *failingRepo) ListActive(ctx context.Context) ([]storage.Alert, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.AlertStore.ListActive(ctx)
}

func (r *failingRepo) UpdateFired(ctx context.Context, id, topicID string, sequence uint64, firedAt time.Time, prev *time.Time) error {
	return r.AlertStore.UpdateFired(ctx, id, topicID, sequence, firedAt, prev)
}

func testAlert(id string, mutate func(*storage.Alert)) storage.Alert {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	alert := storage.Alert{
		ID:              id,
		SourceAccount:   "0.0.1234",
		Amount:          decimal.NewFromInt(50),
		Action:          storage.ActionBuy,
		TriggerType:     storage.TriggerPercentDrop,
		TriggerValue:    10,
		BaselinePrice:   100,
		CooldownSeconds: 3600,
		Status:          storage.StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if mutate != nil {
		mutate(&alert)
	}
	return alert
}

func newTestMonitor(t *testing.T, repo AlertRepository, source oracle.PriceSource, pub SignalPublisher, recorder SignalRecorder, clock func() time.Time, topics config.TopicsConfig) *Monitor {
	t.Helper()
	return NewMonitor(repo, source, pub, recorder, Options{
		Topics:             topics,
		Workers:            4,
		DefaultCooldown:    time.Hour,
		TopicProvisionMemo: "test signals",
		Clock:              clock,
	}, zerolog.Nop())
}

func TestRunPassFiresAndPersists(t *testing.T) {
	store := storage.NewMemoryStore()
	alert := testAlert("a1", nil)
	if err := store.CreateAlert(context.Background(), alert); err != nil {
		t.Fatal(err)
	}

	pub := newFakePublisher()
	source := &staticSource{quote: oracle.Quote{ValueUSD: 89.99, Source: "test", FetchedAt: time.Now()}}
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	mon := newTestMonitor(t, store, source, pub, store, func() time.Time { return now }, config.TopicsConfig{})

	result, err := mon.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if result.Evaluated != 1 || result.Fired != 1 || len(result.Failures) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}

	updated, err := store.GetAlert(context.Background(), "a1")
	if err != nil {
		t.Fatal(err)
	}
	if updated.LastNotifiedAt == nil || !updated.LastNotifiedAt.Equal(now) {
		t.Fatalf("lastNotifiedAt not persisted: %v", updated.LastNotifiedAt)
	}
	if updated.LastSequence != 1 {
		t.Fatalf("expected sequence 1, got %d", updated.LastSequence)
	}
	if updated.TopicID == "" {
		t.Fatal("provisioned topic should be persisted onto the alert")
	}

	records, err := store.ListRecentSignals(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].AlertID != "a1" {
		t.Fatalf("expected one audit record, got %+v", records)
	}
}

func TestRunPassCooldownThenRefire(t *testing.T) {
	store := storage.NewMemoryStore()
	if err := store.CreateAlert(context.Background(), testAlert("a1", nil)); err != nil {
		t.Fatal(err)
	}

	pub := newFakePublisher()
	source := &staticSource{quote: oracle.Quote{ValueUSD: 89.99, Source: "test"}}

	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	mon := newTestMonitor(t, store, source, pub, nil, func() time.Time { return now }, config.TopicsConfig{})

	result, err := mon.RunPass(context.Background())
	if err != nil || result.Fired != 1 {
		t.Fatalf("first pass should fire: %+v %v", result, err)
	}

	// Ten seconds later, same price: cooldown blocks it.
	now = now.Add(10 * time.Second)
	result, err = mon.RunPass(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Fired != 0 {
		t.Fatalf("cooldown should block the second firing: %+v", result)
	}

	// Past the cooldown: fires again with a new sequence.
	now = now.Add(3601 * time.Second)
	result, err = mon.RunPass(context.Background())
	if err != nil || result.Fired != 1 {
		t.Fatalf("third pass should fire again: %+v %v", result, err)
	}

	updated, _ := store.GetAlert(context.Background(), "a1")
	if updated.LastSequence != 2 {
		t.Fatalf("expected sequence 2 after refire, got %d", updated.LastSequence)
	}
}

func TestRunPassUnusableQuote(t *testing.T) {
	store := storage.NewMemoryStore()
	if err := store.CreateAlert(context.Background(), testAlert("a1", nil)); err != nil {
		t.Fatal(err)
	}

	pub := newFakePublisher()
	source := &staticSource{quote: oracle.Quote{ValueUSD: 0}}
	mon := newTestMonitor(t, store, source, pub, nil, time.Now, config.TopicsConfig{})

	result, err := mon.RunPass(context.Background())
	if err != nil {
		t.Fatalf("unusable quote must be a quiet no-op, got %v", err)
	}
	if result.Evaluated != 0 || result.Fired != 0 {
		t.Fatalf("unusable quote must evaluate nothing: %+v", result)
	}

	updated, _ := store.GetAlert(context.Background(), "a1")
	if updated.LastNotifiedAt != nil {
		t.Fatal("no alert may be mutated on a bad quote")
	}
	if len(pub.messages()) != 0 {
		t.Fatal("nothing may be published on a bad quote")
	}
}

func TestRunPassInactiveAlertUntouched(t *testing.T) {
	store := storage.NewMemoryStore()
	paused := testAlert("p1", func(a *storage.Alert) { a.Status = storage.StatusPaused })
	if err := store.CreateAlert(context.Background(), paused); err != nil {
		t.Fatal(err)
	}

	pub := newFakePublisher()
	source := &staticSource{quote: oracle.Quote{ValueUSD: 1}}
	mon := newTestMonitor(t, store, source, pub, nil, time.Now, config.TopicsConfig{})

	result, err := mon.RunPass(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Evaluated != 0 {
		t.Fatalf("paused alerts must not be evaluated: %+v", result)
	}

	after, _ := store.GetAlert(context.Background(), "p1")
	if after.LastNotifiedAt != nil || after.TopicID != "" || after.LastSequence != 0 {
		t.Fatalf("paused alert mutated: %+v", after)
	}
}

func TestRunPassKindByAction(t *testing.T) {
	store := storage.NewMemoryStore()
	notify := testAlert("n1", func(a *storage.Alert) {
		a.Action = storage.ActionNotify
		a.Amount = decimal.Zero
	})
	buy := testAlert("b1", nil)
	for _, a := range []storage.Alert{notify, buy} {
		if err := store.CreateAlert(context.Background(), a); err != nil {
			t.Fatal(err)
		}
	}

	pub := newFakePublisher()
	source := &staticSource{quote: oracle.Quote{ValueUSD: 80, Source: "test"}}
	mon := newTestMonitor(t, store, source, pub, nil, time.Now, config.TopicsConfig{})

	result, err := mon.RunPass(context.Background())
	if err != nil || result.Fired != 2 {
		t.Fatalf("both alerts should fire: %+v %v", result, err)
	}

	kinds := map[string]string{}
	for _, msg := range pub.messages() {
		var sig Signal
		if err := json.Unmarshal(msg.payload, &sig); err != nil {
			t.Fatal(err)
		}
		kinds[sig.AlertID] = sig.Kind
	}
	if kinds["n1"] != KindPriceAlert {
		t.Fatalf("notify alert must publish kind %q, got %q", KindPriceAlert, kinds["n1"])
	}
	if kinds["b1"] != KindTradeSignal {
		t.Fatalf("buy alert must publish kind %q, got %q", KindTradeSignal, kinds["b1"])
	}
}

func TestRunPassSharedQuoteAcrossAlerts(t *testing.T) {
	store := storage.NewMemoryStore()
	for i := 0; i < 5; i++ {
		if err := store.CreateAlert(context.Background(), testAlert(fmt.Sprintf("a%d", i), nil)); err != nil {
			t.Fatal(err)
		}
	}

	pub := newFakePublisher()
	source := &staticSource{quote: oracle.Quote{ValueUSD: 85.5, Source: "test"}}
	mon := newTestMonitor(t, store, source, pub, nil, time.Now, config.TopicsConfig{})

	result, err := mon.RunPass(context.Background())
	if err != nil || result.Fired != 5 {
		t.Fatalf("all alerts should fire: %+v %v", result, err)
	}
	if source.calls != 1 {
		t.Fatalf("price must be fetched exactly once per pass, got %d fetches", source.calls)
	}
	for _, msg := range pub.messages() {
		var sig Signal
		if err := json.Unmarshal(msg.payload, &sig); err != nil {
			t.Fatal(err)
		}
		if sig.CurrentPrice != 85.5 {
			t.Fatalf("all payloads must carry the shared price, got %v", sig.CurrentPrice)
		}
	}
}

func TestRunPassPerAlertFailureIsolation(t *testing.T) {
	store := storage.NewMemoryStore()
	good := testAlert("good", func(a *storage.Alert) { a.TopicID = "0.0.100" })
	bad := testAlert("bad", func(a *storage.Alert) { a.TopicID = "0.0.200" })
	for _, a := range []storage.Alert{good, bad} {
		if err := store.CreateAlert(context.Background(), a); err != nil {
			t.Fatal(err)
		}
	}

	pub := newFakePublisher()
	pub.failPublish["0.0.200"] = errors.New("topic unreachable")
	source := &staticSource{quote: oracle.Quote{ValueUSD: 80, Source: "test"}}
	mon := newTestMonitor(t, store, source, pub, nil, time.Now, config.TopicsConfig{})

	result, err := mon.RunPass(context.Background())
	if err != nil {
		t.Fatalf("per-alert failure must not fail the pass: %v", err)
	}
	if result.Fired != 1 {
		t.Fatalf("healthy alert should still fire: %+v", result)
	}
	if len(result.Failures) != 1 || result.Failures[0].AlertID != "bad" {
		t.Fatalf("failure should be attributed to the broken alert: %+v", result.Failures)
	}

	// The failed alert keeps its state and stays eligible for the next pass.
	after, _ := store.GetAlert(context.Background(), "bad")
	if after.LastNotifiedAt != nil {
		t.Fatal("failed alert must keep its persisted state untouched")
	}
}

func TestRunPassListFailureIsFatal(t *testing.T) {
	repo := &failingRepo{AlertStore: storage.NewMemoryStore(), listErr: errors.New("db down")}
	source := &staticSource{quote: oracle.Quote{ValueUSD: 80}}
	mon := newTestMonitor(t, repo, source, newFakePublisher(), nil, time.Now, config.TopicsConfig{})

	if _, err := mon.RunPass(context.Background()); err == nil {
		t.Fatal("listing failure must surface as a pass-level error")
	}
}

func TestRunPassTopicPrecedence(t *testing.T) {
	store := storage.NewMemoryStore()
	// Alert with a stored topic, but a configured topic for its action.
	routed := testAlert("routed", func(a *storage.Alert) { a.TopicID = "0.0.111" })
	// Alert reusing its previously stored topic.
	sticky := testAlert("sticky", func(a *storage.Alert) {
		a.Action = storage.ActionSell
		a.TopicID = "0.0.222"
	})
	for _, a := range []storage.Alert{routed, sticky} {
		if err := store.CreateAlert(context.Background(), a); err != nil {
			t.Fatal(err)
		}
	}

	pub := newFakePublisher()
	source := &staticSource{quote: oracle.Quote{ValueUSD: 80, Source: "test"}}
	mon := newTestMonitor(t, store, source, pub, nil, time.Now, config.TopicsConfig{Buy: "0.0.999"})

	result, err := mon.RunPass(context.Background())
	if err != nil || result.Fired != 2 {
		t.Fatalf("both alerts should fire: %+v %v", result, err)
	}

	topicsByAlert := map[string]string{}
	for _, msg := range pub.messages() {
		var sig Signal
		if err := json.Unmarshal(msg.payload, &sig); err != nil {
			t.Fatal(err)
		}
		topicsByAlert[sig.AlertID] = msg.topicID
	}
	if topicsByAlert["routed"] != "0.0.999" {
		t.Fatalf("configured per-action topic must take precedence, got %q", topicsByAlert["routed"])
	}
	if topicsByAlert["sticky"] != "0.0.222" {
		t.Fatalf("stored topic must be reused, got %q", topicsByAlert["sticky"])
	}
}

func TestBuildSignalPayloadFields(t *testing.T) {
	alert := testAlert("a1", func(a *storage.Alert) { a.Owner = "wallet-1" })
	now := time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)

	signal := BuildSignal(alert, 89.99, now)
	payload, err := signal.Encode()
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"kind", "action", "amount", "triggerType", "triggerValue", "baselinePrice", "currentPrice", "alertId", "owner", "ts"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("payload missing contract field %q", key)
		}
	}
	if decoded["alertId"] != "a1" || decoded["owner"] != "wallet-1" {
		t.Fatalf("unexpected identity fields: %+v", decoded)
	}
	if decoded["ts"] != "2025-06-02T10:30:00Z" {
		t.Fatalf("unexpected timestamp %v", decoded["ts"])
	}
}

func TestBuildSignalOwnerNull(t *testing.T) {
	alert := testAlert("a1", nil)
	payload, err := BuildSignal(alert, 1, time.Now()).Encode()
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatal(err)
	}
	if v, ok := decoded["owner"]; !ok || v != nil {
		t.Fatalf("ownerless alert must publish owner null, got %v", v)
	}
}

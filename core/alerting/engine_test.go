package alerting

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"coldwatch/config"
	"coldwatch/core/store"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []TelegramMessage
}

func (s *recordingSender) Send(_ context.Context, msg TelegramMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) messages() []TelegramMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TelegramMessage(nil), s.sent...)
}

type engineEnv struct {
	engine    *Engine
	readings  store.ReadingsStore
	incidents store.IncidentsStore
	sender    *recordingSender
}

func newEngineEnv(t *testing.T) *engineEnv {
	t.Helper()
	cfg := &config.AppConfig{
		DBDriver: "sqlite",
		DBPath:   filepath.Join(t.TempDir(), "alerting_test.db"),
	}
	db, err := store.NewDB(cfg, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, nil); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	readings := store.NewReadingsStore(db)
	incidents := store.NewIncidentsStore(db)
	thresholds := store.NewThresholdsStore(db, 2.0, 8.0)
	audits := store.NewAuditStore(db)
	sender := &recordingSender{}
	alertCfg := config.AlertingConfig{
		Enabled:        true,
		TelegramToken:  "token",
		TelegramChatID: "chat",
		CounterMax:     9,
		TickSpacingSec: 10,
	}
	engine := NewEngine(readings, incidents, thresholds, audits, sender, alertCfg, nil)
	return &engineEnv{engine: engine, readings: readings, incidents: incidents, sender: sender}
}

func TestEvaluateOpensIncident(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()

	r := &store.Reading{Temperature: 12.5, Humidity: 61, RecordedAt: time.Now().UTC()}
	if err := env.engine.Evaluate(ctx, r); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	active, err := env.incidents.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active == nil {
		t.Fatal("incident should have opened")
	}
	if active.Counter != 1 {
		t.Fatalf("counter should start at 1, got %d", active.Counter)
	}
	if active.Temperature == nil || *active.Temperature != 12.5 {
		t.Fatalf("opening reading not snapshotted: %+v", active.Temperature)
	}

	msgs := env.sender.messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0].Text, "Incident temperature ouvert") {
		t.Fatalf("opening notification missing: %+v", msgs)
	}
}

func TestEvaluateInBandWithoutIncidentIsNoop(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()

	r := &store.Reading{Temperature: 5, Humidity: 50, RecordedAt: time.Now().UTC()}
	if err := env.engine.Evaluate(ctx, r); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	active, _ := env.incidents.Active(ctx)
	if active != nil {
		t.Fatalf("no incident should open in band, got %+v", active)
	}
	if len(env.sender.messages()) != 0 {
		t.Fatal("no notification expected")
	}
}

func TestEvaluateEscalationSpacing(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()

	hot := &store.Reading{Temperature: 14, Humidity: 55, RecordedAt: time.Now().UTC()}
	if err := env.engine.Evaluate(ctx, hot); err != nil {
		t.Fatalf("open: %v", err)
	}
	active, _ := env.incidents.Active(ctx)

	// A second out-of-band reading inside the spacing window must not tick.
	if err := env.engine.Evaluate(ctx, hot); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	got, _ := env.incidents.Get(ctx, active.ID)
	if got.Counter != 1 {
		t.Fatalf("counter ticked inside spacing window: %d", got.Counter)
	}

	// Backdate the last increment past the spacing window, then the tick lands.
	past := time.Now().UTC().Add(-time.Minute)
	if err := env.incidents.UpdateCounter(ctx, active.ID, 1, past, 14, 55); err != nil {
		t.Fatalf("backdate: %v", err)
	}
	if err := env.engine.Evaluate(ctx, hot); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	got, _ = env.incidents.Get(ctx, active.ID)
	if got.Counter != 2 {
		t.Fatalf("counter should have ticked to 2, got %d", got.Counter)
	}

	msgs := env.sender.messages()
	if len(msgs) != 2 || !strings.Contains(msgs[1].Text, "niveau 2") {
		t.Fatalf("tick notification missing: %+v", msgs)
	}
}

func TestEvaluateCounterCap(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()

	hot := &store.Reading{Temperature: 14, Humidity: 55, RecordedAt: time.Now().UTC()}
	if err := env.engine.Evaluate(ctx, hot); err != nil {
		t.Fatalf("open: %v", err)
	}
	active, _ := env.incidents.Active(ctx)
	past := time.Now().UTC().Add(-time.Minute)
	if err := env.incidents.UpdateCounter(ctx, active.ID, 9, past, 14, 55); err != nil {
		t.Fatalf("force counter: %v", err)
	}

	if err := env.engine.Evaluate(ctx, hot); err != nil {
		t.Fatalf("evaluate at cap: %v", err)
	}
	got, _ := env.incidents.Get(ctx, active.ID)
	if got.Counter != 9 {
		t.Fatalf("counter must stay at the cap, got %d", got.Counter)
	}
}

func TestEvaluateClosesAndArchives(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()

	hot := &store.Reading{Temperature: 14, Humidity: 55, RecordedAt: time.Now().UTC()}
	if err := env.engine.Evaluate(ctx, hot); err != nil {
		t.Fatalf("open: %v", err)
	}
	active, _ := env.incidents.Active(ctx)

	cool := &store.Reading{Temperature: 5, Humidity: 50, RecordedAt: time.Now().UTC()}
	if err := env.engine.Evaluate(ctx, cool); err != nil {
		t.Fatalf("close: %v", err)
	}

	if still, _ := env.incidents.Active(ctx); still != nil {
		t.Fatalf("incident should have closed, got %+v", still)
	}
	archived, err := env.incidents.ListArchived(ctx, 10)
	if err != nil {
		t.Fatalf("list archived: %v", err)
	}
	if len(archived) != 1 || archived[0].IncidentID != active.ID {
		t.Fatalf("incident not archived: %+v", archived)
	}

	msgs := env.sender.messages()
	if len(msgs) != 2 || !strings.Contains(msgs[1].Text, "revenue dans la plage") {
		t.Fatalf("closing notification missing: %+v", msgs)
	}
}

func TestNotifyDisabled(t *testing.T) {
	env := newEngineEnv(t)
	env.engine.cfg.Enabled = false
	ctx := context.Background()

	hot := &store.Reading{Temperature: 14, Humidity: 55, RecordedAt: time.Now().UTC()}
	if err := env.engine.Evaluate(ctx, hot); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if active, _ := env.incidents.Active(ctx); active == nil {
		t.Fatal("incident lifecycle must run even with notifications off")
	}
	if len(env.sender.messages()) != 0 {
		t.Fatal("no telegram message expected when alerting is disabled")
	}
}

func TestBuildAlertMessage(t *testing.T) {
	at := time.Date(2026, 8, 15, 9, 30, 0, 0, time.UTC)
	msg := buildAlertMessage("tick", 12.34, 56.78, 3, at)
	for _, want := range []string{"niveau 3", "Temperature: 12.3 °C", "Humidite: 56.8 %", "15.08.2026 09:30"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

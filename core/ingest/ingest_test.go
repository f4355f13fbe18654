package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"coldwatch/config"
	"coldwatch/core/incident"
	"coldwatch/core/store"
)

type countingEvaluator struct {
	calls int
	last  *store.Reading
}

func (e *countingEvaluator) Evaluate(_ context.Context, r *store.Reading) error {
	e.calls++
	e.last = r
	return nil
}

func newIngestEnv(t *testing.T) (*Service, store.ReadingsStore, *countingEvaluator) {
	t.Helper()
	cfg := &config.AppConfig{
		DBDriver: "sqlite",
		DBPath:   filepath.Join(t.TempDir(), "ingest_test.db"),
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
	eval := &countingEvaluator{}
	return NewService(readings, eval, nil), readings, eval
}

func TestHandleMessageStoresAndEvaluates(t *testing.T) {
	svc, readings, eval := newIngestEnv(t)
	ctx := context.Background()

	raw := []byte(`{"temp": 6.2, "hum": 48.5, "dt": "2026-08-15T09:00:00Z"}`)
	if err := svc.HandleMessage(ctx, raw); err != nil {
		t.Fatalf("handle message: %v", err)
	}

	latest, err := readings.Latest(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil || latest.Temperature != 6.2 || latest.Humidity != 48.5 {
		t.Fatalf("reading not stored: %+v", latest)
	}
	want := time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)
	if !latest.RecordedAt.Equal(want) {
		t.Fatalf("payload timestamp not honored: %v", latest.RecordedAt)
	}
	if eval.calls != 1 || eval.last == nil || eval.last.Temperature != 6.2 {
		t.Fatalf("evaluation not triggered: calls=%d last=%+v", eval.calls, eval.last)
	}
}

func TestHandleMessageDefaultsTimestamp(t *testing.T) {
	svc, readings, _ := newIngestEnv(t)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	if err := svc.HandleMessage(ctx, []byte(`{"temp": 4.0, "hum": 55}`)); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	latest, _ := readings.Latest(ctx)
	if latest == nil || latest.RecordedAt.Before(before) {
		t.Fatalf("receive time should stamp the reading: %+v", latest)
	}
}

func TestHandleMessageRejectsImplausibleHumidity(t *testing.T) {
	svc, readings, eval := newIngestEnv(t)
	ctx := context.Background()

	err := svc.HandleMessage(ctx, []byte(`{"temp": 5, "hum": 999}`))
	if !errors.Is(err, incident.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if latest, _ := readings.Latest(ctx); latest != nil {
		t.Fatalf("rejected payload must not be stored: %+v", latest)
	}
	if eval.calls != 0 {
		t.Fatal("rejected payload must not be evaluated")
	}
}

func TestHandleMessageRejectsMalformedPayload(t *testing.T) {
	svc, readings, _ := newIngestEnv(t)
	ctx := context.Background()

	if err := svc.HandleMessage(ctx, []byte(`{"temp": "hot"`)); err == nil {
		t.Fatal("malformed json must be rejected")
	}
	if err := svc.HandleMessage(ctx, []byte(`{"temp": 5, "hum": 50, "dt": "yesterday"}`)); err == nil {
		t.Fatal("malformed timestamp must be rejected")
	}
	if latest, _ := readings.Latest(ctx); latest != nil {
		t.Fatalf("nothing should be stored: %+v", latest)
	}
}

func TestFakeSourceCollectsErrors(t *testing.T) {
	svc, _, _ := newIngestEnv(t)
	src := NewFakeSource(svc)
	ctx := context.Background()

	if err := src.Push(ctx, []byte(`{"temp": 5, "hum": 50}`)); err != nil {
		t.Fatalf("valid push: %v", err)
	}
	if err := src.Push(ctx, []byte(`not json`)); err == nil {
		t.Fatal("invalid push should error")
	}
	if len(src.Errors) != 1 {
		t.Fatalf("expected 1 collected error, got %d", len(src.Errors))
	}
}

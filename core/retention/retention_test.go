package retention

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"coldwatch/config"
	"coldwatch/core/store"
)

func newRetentionEnv(t *testing.T) (*Janitor, store.ReadingsStore, store.IncidentsStore, store.SessionsStore) {
	t.Helper()
	cfg := &config.AppConfig{
		DBDriver: "sqlite",
		DBPath:   filepath.Join(t.TempDir(), "retention_test.db"),
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
	sessions := store.NewSessionsStore(db)
	j := NewJanitor(config.RetentionConfig{
		Enabled:      true,
		ReadingsDays: 365,
		ArchiveDays:  730,
	}, readings, incidents, sessions, nil)
	return j, readings, incidents, sessions
}

func archiveIncidentAt(t *testing.T, incidents store.IncidentsStore, started, ended time.Time) {
	t.Helper()
	ctx := context.Background()
	inc := &store.Incident{StartedAt: started, Counter: 1, LastIncrementAt: &started}
	if _, err := incidents.Create(ctx, inc); err != nil {
		t.Fatalf("create incident: %v", err)
	}
	if _, err := incidents.CloseAndArchive(ctx, inc.ID, ended); err != nil {
		t.Fatalf("close incident: %v", err)
	}
}

func TestRunOncePrunesBeyondHorizons(t *testing.T) {
	j, readings, incidents, sessions := newRetentionEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Readings on both sides of the 365-day horizon.
	for _, age := range []int{400, 370, 100} {
		r := &store.Reading{Temperature: 5, Humidity: 50, RecordedAt: now.AddDate(0, 0, -age)}
		if _, err := readings.Add(ctx, r); err != nil {
			t.Fatalf("add reading: %v", err)
		}
	}

	// Archived incidents on both sides of the 730-day horizon.
	archiveIncidentAt(t, incidents, now.AddDate(0, 0, -801), now.AddDate(0, 0, -800))
	archiveIncidentAt(t, incidents, now.AddDate(0, 0, -11), now.AddDate(0, 0, -10))

	// One expired and one live session.
	if err := sessions.Save(ctx, &store.SessionRecord{
		ID: "expired", UserID: 1, Username: "a", Role: "visiteur", CSRFToken: "t",
		CreatedAt: now.Add(-2 * time.Hour), LastSeenAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("save session: %v", err)
	}
	if err := sessions.Save(ctx, &store.SessionRecord{
		ID: "live", UserID: 2, Username: "b", Role: "visiteur", CSRFToken: "t",
		CreatedAt: now, LastSeenAt: now, ExpiresAt: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("save session: %v", err)
	}

	if err := j.RunOnce(ctx, now); err != nil {
		t.Fatalf("run once: %v", err)
	}

	rest, err := readings.ListAll(ctx, 0)
	if err != nil {
		t.Fatalf("list readings: %v", err)
	}
	if len(rest) != 1 {
		t.Fatalf("expected 1 reading inside the horizon, got %d", len(rest))
	}

	archived, err := incidents.ListArchived(ctx, 0)
	if err != nil {
		t.Fatalf("list archived: %v", err)
	}
	if len(archived) != 1 {
		t.Fatalf("expected 1 archived incident inside the horizon, got %d", len(archived))
	}

	if rec, _ := sessions.Get(ctx, "expired"); rec != nil {
		t.Fatal("expired session should have been pruned")
	}
	if rec, _ := sessions.Get(ctx, "live"); rec == nil {
		t.Fatal("live session should survive the sweep")
	}
}

func TestRunOnceZeroWindowsKeepData(t *testing.T) {
	j, readings, incidents, _ := newRetentionEnv(t)
	j.cfg.ReadingsDays = 0
	j.cfg.ArchiveDays = 0
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := readings.Add(ctx, &store.Reading{Temperature: 5, Humidity: 50, RecordedAt: now.AddDate(-3, 0, 0)}); err != nil {
		t.Fatalf("add reading: %v", err)
	}
	archiveIncidentAt(t, incidents, now.AddDate(-3, 0, -1), now.AddDate(-3, 0, 0))

	if err := j.RunOnce(ctx, now); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if rest, _ := readings.ListAll(ctx, 0); len(rest) != 1 {
		t.Fatalf("zero window must keep readings, got %d", len(rest))
	}
	if archived, _ := incidents.ListArchived(ctx, 0); len(archived) != 1 {
		t.Fatalf("zero window must keep archives, got %d", len(archived))
	}
}

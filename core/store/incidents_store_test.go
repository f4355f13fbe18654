package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func openIncident(t *testing.T, s IncidentsStore, at time.Time) *Incident {
	t.Helper()
	temp, hum := 12.5, 60.0
	inc := &Incident{
		StartedAt:       at,
		Counter:         1,
		LastIncrementAt: &at,
		Temperature:     &temp,
		Humidity:        &hum,
	}
	if _, err := s.Create(context.Background(), inc); err != nil {
		t.Fatalf("create incident: %v", err)
	}
	return inc
}

func TestIncidentsStoreCreateAndActive(t *testing.T) {
	db := newTestDB(t)
	s := NewIncidentsStore(db)
	ctx := context.Background()

	active, err := s.Active(ctx)
	if err != nil {
		t.Fatalf("active on empty table: %v", err)
	}
	if active != nil {
		t.Fatalf("expected no active incident, got %+v", active)
	}

	started := time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)
	inc := openIncident(t, s, started)

	active, err = s.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active == nil || active.ID != inc.ID {
		t.Fatalf("active incident not found: %+v", active)
	}
	if active.Counter != 1 || !active.Active || active.Status != IncidentStatusOngoing {
		t.Fatalf("unexpected initial state: %+v", active)
	}
	if active.Temperature == nil || *active.Temperature != 12.5 {
		t.Fatalf("temperature snapshot missing: %+v", active.Temperature)
	}
}

func TestIncidentsStoreUpdateCounter(t *testing.T) {
	db := newTestDB(t)
	s := NewIncidentsStore(db)
	ctx := context.Background()

	started := time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)
	inc := openIncident(t, s, started)

	tick := started.Add(15 * time.Second)
	if err := s.UpdateCounter(ctx, inc.ID, 2, tick, 13.1, 58); err != nil {
		t.Fatalf("update counter: %v", err)
	}
	got, err := s.Get(ctx, inc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Counter != 2 {
		t.Fatalf("counter not incremented: %d", got.Counter)
	}
	if got.LastIncrementAt == nil || !got.LastIncrementAt.Equal(tick) {
		t.Fatalf("last increment not recorded: %v", got.LastIncrementAt)
	}
	if *got.Temperature != 13.1 {
		t.Fatalf("temperature snapshot not refreshed: %v", *got.Temperature)
	}

	if err := s.UpdateCounter(ctx, 9999, 2, tick, 13.1, 58); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict for unknown incident, got %v", err)
	}
}

func TestIncidentsStoreUpdateOperation(t *testing.T) {
	db := newTestDB(t)
	s := NewIncidentsStore(db)
	ctx := context.Background()

	inc := openIncident(t, s, time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC))

	checked := true
	comment := "compresseur redémarré"
	at := time.Date(2026, 8, 15, 9, 5, 0, 0, time.UTC)
	err := s.UpdateOperation(ctx, inc.ID, 2, OperationUpdate{
		Checked:  &checked,
		Comment:  &comment,
		Operator: "operateur2",
		At:       at,
	})
	if err != nil {
		t.Fatalf("update operation: %v", err)
	}

	got, err := s.Get(ctx, inc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	op := got.Ops[1]
	if !op.Checked || op.Comment != comment {
		t.Fatalf("op2 not updated: %+v", op)
	}
	if op.Operator == nil || *op.Operator != "operateur2" {
		t.Fatalf("operator not stamped: %+v", op.Operator)
	}
	if op.UpdatedAt == nil || !op.UpdatedAt.Equal(at) {
		t.Fatalf("update time not stamped: %+v", op.UpdatedAt)
	}
	if got.Ops[0].Checked || got.Ops[2].Checked {
		t.Fatal("other operations must stay untouched")
	}

	// Comment-only update leaves the checked state and operator alone.
	note := "surveillance en cours"
	if err := s.UpdateOperation(ctx, inc.ID, 1, OperationUpdate{Comment: &note}); err != nil {
		t.Fatalf("comment-only update: %v", err)
	}
	got, _ = s.Get(ctx, inc.ID)
	if got.Ops[0].Checked || got.Ops[0].Comment != note || got.Ops[0].Operator != nil {
		t.Fatalf("comment-only update wrong: %+v", got.Ops[0])
	}

	if err := s.UpdateOperation(ctx, inc.ID, 4, OperationUpdate{Comment: &note}); err == nil {
		t.Fatal("op 4 must be rejected")
	}
}

func TestIncidentsStoreAcknowledgement(t *testing.T) {
	db := newTestDB(t)
	s := NewIncidentsStore(db)
	ctx := context.Background()

	inc := openIncident(t, s, time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC))
	at := time.Date(2026, 8, 15, 9, 2, 0, 0, time.UTC)
	if err := s.SetAcknowledgement(ctx, inc.ID, true, "operateur1", at); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	got, err := s.Get(ctx, inc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Acknowledged || got.AckOperator == nil || *got.AckOperator != "operateur1" {
		t.Fatalf("acknowledgement not recorded: %+v", got)
	}
	if got.AckAt == nil || !got.AckAt.Equal(at) {
		t.Fatalf("ack time not recorded: %v", got.AckAt)
	}
}

func TestIncidentsStoreComments(t *testing.T) {
	db := newTestDB(t)
	s := NewIncidentsStore(db)
	ctx := context.Background()

	inc := openIncident(t, s, time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC))
	first := &IncidentComment{IncidentID: inc.ID, Author: "operateur1", Content: "porte ouverte trouvée"}
	if _, err := s.AddComment(ctx, first); err != nil {
		t.Fatalf("add comment: %v", err)
	}
	second := &IncidentComment{IncidentID: inc.ID, Author: "admin", Content: "maintenance prévenue", CreatedAt: first.CreatedAt.Add(time.Minute)}
	if _, err := s.AddComment(ctx, second); err != nil {
		t.Fatalf("add comment: %v", err)
	}

	list, err := s.ListComments(ctx, inc.ID)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(list))
	}
	if list[0].Author != "operateur1" || list[1].Author != "admin" {
		t.Fatalf("comments out of order: %+v", list)
	}
}

func TestIncidentsStoreCloseAndArchive(t *testing.T) {
	db := newTestDB(t)
	s := NewIncidentsStore(db)
	ctx := context.Background()

	started := time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)
	inc := openIncident(t, s, started)
	checked := true
	comment := "ventilation relancée"
	if err := s.UpdateOperation(ctx, inc.ID, 1, OperationUpdate{
		Checked: &checked, Comment: &comment, Operator: "operateur1", At: started.Add(time.Minute),
	}); err != nil {
		t.Fatalf("update op: %v", err)
	}

	ended := started.Add(30 * time.Minute)
	arch, err := s.CloseAndArchive(ctx, inc.ID, ended)
	if err != nil {
		t.Fatalf("close and archive: %v", err)
	}
	if arch == nil || arch.IncidentID != inc.ID {
		t.Fatalf("archive row missing: %+v", arch)
	}
	if arch.Status != IncidentStatusFinished || !arch.EndedAt.Equal(ended) {
		t.Fatalf("archive final state wrong: %+v", arch)
	}
	if !arch.Ops[0].Checked || arch.Ops[0].Comment != comment {
		t.Fatalf("operation state not copied to archive: %+v", arch.Ops[0])
	}

	closed, err := s.Get(ctx, inc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if closed.Active || closed.Status != IncidentStatusFinished {
		t.Fatalf("incident still active after close: %+v", closed)
	}

	active, err := s.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active != nil {
		t.Fatalf("no incident should be active, got %+v", active)
	}

	if _, err := s.CloseAndArchive(ctx, inc.ID, ended); !errors.Is(err, ErrConflict) {
		t.Fatalf("second close should conflict, got %v", err)
	}

	list, err := s.ListArchived(ctx, 10)
	if err != nil {
		t.Fatalf("list archived: %v", err)
	}
	if len(list) != 1 || list[0].ID != arch.ID {
		t.Fatalf("archive listing wrong: %+v", list)
	}
}

func TestIncidentsStoreDeleteArchivedBefore(t *testing.T) {
	db := newTestDB(t)
	s := NewIncidentsStore(db)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		inc := openIncident(t, s, base.AddDate(0, i, 0))
		if _, err := s.CloseAndArchive(ctx, inc.ID, base.AddDate(0, i, 1)); err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
	}
	n, err := s.DeleteArchivedBefore(ctx, base.AddDate(0, 1, 15))
	if err != nil {
		t.Fatalf("delete archived: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 archived rows deleted, got %d", n)
	}
	rest, err := s.ListArchived(ctx, 0)
	if err != nil {
		t.Fatalf("list archived: %v", err)
	}
	if len(rest) != 1 {
		t.Fatalf("expected 1 remaining archive row, got %d", len(rest))
	}
}

func TestIncidentsStoreOperationUpdateAfterClose(t *testing.T) {
	db := newTestDB(t)
	s := NewIncidentsStore(db)
	ctx := context.Background()

	inc := openIncident(t, s, time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC))
	if _, err := s.CloseAndArchive(ctx, inc.ID, time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("close: %v", err)
	}
	checked := true
	err := s.UpdateOperation(ctx, inc.ID, 1, OperationUpdate{Checked: &checked, Operator: "admin", At: time.Now().UTC()})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("update on closed incident should conflict, got %v", err)
	}
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Threshold struct {
	ID        int64
	MinTemp   float64
	MaxTemp   float64
	UpdatedAt time.Time
	UpdatedBy *int64
}

type ThresholdsStore interface {
	// Get returns the temperature band, creating the default row on first use.
	Get(ctx context.Context) (*Threshold, error)
	Update(ctx context.Context, minTemp, maxTemp float64, updatedBy int64) (*Threshold, error)
}

type thresholdsStore struct {
	db         *DB
	defaultMin float64
	defaultMax float64
}

func NewThresholdsStore(db *DB, defaultMin, defaultMax float64) ThresholdsStore {
	return &thresholdsStore{db: db, defaultMin: defaultMin, defaultMax: defaultMax}
}

func (s *thresholdsStore) Get(ctx context.Context) (*Threshold, error) {
	t, err := s.get(ctx)
	if err != nil || t != nil {
		return t, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO temperature_thresholds(min_temp, max_temp, updated_at) VALUES(?,?,?)`,
		s.defaultMin, s.defaultMax, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return s.get(ctx)
}

func (s *thresholdsStore) get(ctx context.Context) (*Threshold, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, min_temp, max_temp, updated_at, updated_by
		FROM temperature_thresholds ORDER BY id ASC LIMIT 1`)
	var t Threshold
	err := row.Scan(&t.ID, &t.MinTemp, &t.MaxTemp, &t.UpdatedAt, &t.UpdatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *thresholdsStore) Update(ctx context.Context, minTemp, maxTemp float64, updatedBy int64) (*Threshold, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE temperature_thresholds SET min_temp=?, max_temp=?, updated_at=?, updated_by=? WHERE id=?`,
		minTemp, maxTemp, time.Now().UTC(), updatedBy, current.ID)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx)
}

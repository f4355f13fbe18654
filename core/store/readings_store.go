package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Reading struct {
	ID          int64
	Temperature float64
	Humidity    float64
	RecordedAt  time.Time
}

type ReadingsStore interface {
	Add(ctx context.Context, r *Reading) (int64, error)
	Latest(ctx context.Context) (*Reading, error)
	ListSince(ctx context.Context, since time.Time) ([]Reading, error)
	ListAll(ctx context.Context, limit int) ([]Reading, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

type readingsStore struct {
	db *DB
}

func NewReadingsStore(db *DB) ReadingsStore {
	return &readingsStore{db: db}
}

func (s *readingsStore) Add(ctx context.Context, r *Reading) (int64, error) {
	if r.RecordedAt.IsZero() {
		r.RecordedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO readings(temp, hum, dt) VALUES(?,?,?)`,
		r.Temperature, r.Humidity, r.RecordedAt)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	r.ID = id
	return id, nil
}

func (s *readingsStore) Latest(ctx context.Context) (*Reading, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, temp, hum, dt FROM readings ORDER BY dt DESC, id DESC LIMIT 1`)
	return scanReading(row)
}

func (s *readingsStore) ListSince(ctx context.Context, since time.Time) ([]Reading, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, temp, hum, dt FROM readings WHERE dt>=? ORDER BY dt ASC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReadings(rows)
}

func (s *readingsStore) ListAll(ctx context.Context, limit int) ([]Reading, error) {
	query := `SELECT id, temp, hum, dt FROM readings ORDER BY dt ASC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, query+` LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReadings(rows)
}

func (s *readingsStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM readings WHERE dt<?`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanReading(row rowScanner) (*Reading, error) {
	var r Reading
	err := row.Scan(&r.ID, &r.Temperature, &r.Humidity, &r.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func collectReadings(rows *sql.Rows) ([]Reading, error) {
	var res []Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		if r != nil {
			res = append(res, *r)
		}
	}
	return res, rows.Err()
}

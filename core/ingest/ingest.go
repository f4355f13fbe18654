// Package ingest consumes sensor readings from the MQTT broker and hands
// them to storage and incident evaluation.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"coldwatch/core/incident"
	"coldwatch/core/store"
	"coldwatch/core/utils"
)

// Payload is the wire format sensors publish on the readings topic.
type Payload struct {
	Temp float64 `json:"temp"`
	Hum  float64 `json:"hum"`
	// RFC3339; defaults to receive time when absent.
	DT string `json:"dt,omitempty"`
}

// Evaluator applies one stored reading to the incident state machine.
type Evaluator interface {
	Evaluate(ctx context.Context, r *store.Reading) error
}

type Service struct {
	readings store.ReadingsStore
	eval     Evaluator
	logger   *utils.Logger
}

func NewService(readings store.ReadingsStore, eval Evaluator, logger *utils.Logger) *Service {
	return &Service{readings: readings, eval: eval, logger: logger}
}

// HandleMessage parses, validates and stores one sensor payload. Malformed
// or implausible payloads are dropped with an error, never stored.
func (s *Service) HandleMessage(ctx context.Context, raw []byte) error {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	recordedAt := utils.NowUTC()
	if p.DT != "" {
		parsed, err := time.Parse(time.RFC3339, p.DT)
		if err != nil {
			return fmt.Errorf("decode payload timestamp: %w", err)
		}
		recordedAt = parsed.UTC()
	}
	_, err := s.Ingest(ctx, p.Temp, p.Hum, recordedAt)
	return err
}

// Ingest stores one validated reading and runs incident evaluation on it.
func (s *Service) Ingest(ctx context.Context, temp, hum float64, recordedAt time.Time) (*store.Reading, error) {
	if err := incident.ValidateManualReading(temp, hum); err != nil {
		return nil, err
	}
	r := &store.Reading{Temperature: temp, Humidity: hum, RecordedAt: recordedAt}
	if _, err := s.readings.Add(ctx, r); err != nil {
		return nil, fmt.Errorf("store reading: %w", err)
	}
	if s.eval != nil {
		if err := s.eval.Evaluate(ctx, r); err != nil {
			s.logger.Errorf("ingest evaluate: %v", err)
		}
	}
	return r, nil
}

package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"coldwatch/config"
	"coldwatch/core/store"
	"coldwatch/core/utils"
)

// Engine watches readings against the configured temperature band and drives
// the incident lifecycle: open on the first out-of-band reading, escalate the
// counter while the excursion lasts, close and archive once a reading lands
// back inside the band.
type Engine struct {
	readings   store.ReadingsStore
	incidents  store.IncidentsStore
	thresholds store.ThresholdsStore
	audits     store.AuditStore
	sender     TelegramSender
	cfg        config.AlertingConfig
	logger     *utils.Logger
	cancel     context.CancelFunc
	running    bool
	wg         sync.WaitGroup
	mu         sync.Mutex
}

func NewEngine(readings store.ReadingsStore, incidents store.IncidentsStore, thresholds store.ThresholdsStore, audits store.AuditStore, sender TelegramSender, cfg config.AlertingConfig, logger *utils.Logger) *Engine {
	return &Engine{
		readings:   readings,
		incidents:  incidents,
		thresholds: thresholds,
		audits:     audits,
		sender:     sender,
		cfg:        cfg,
		logger:     logger,
	}
}

func (e *Engine) Start() {
	e.StartWithContext(context.Background())
}

func (e *Engine) StartWithContext(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.wg.Add(1)
	e.mu.Unlock()
	go e.loop(runCtx)
}

func (e *Engine) Stop() {
	_ = e.StopWithContext(context.Background())
}

func (e *Engine) StopWithContext(ctx context.Context) error {
	e.mu.Lock()
	if e.cancel == nil || !e.running {
		e.mu.Unlock()
		return nil
	}
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()
	cancel()
	waitDone := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// The loop re-evaluates the latest reading on every tick so a stuck sensor
// that stopped sending still escalates an open incident.
func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			latest, err := e.readings.Latest(ctx)
			if err != nil {
				e.logger.Errorf("alerting latest reading: %v", err)
				continue
			}
			if latest == nil {
				continue
			}
			if err := e.Evaluate(ctx, latest); err != nil {
				e.logger.Errorf("alerting evaluate: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Evaluate applies one reading to the incident state machine. Safe to call
// both from the background loop and inline on ingest.
func (e *Engine) Evaluate(ctx context.Context, r *store.Reading) error {
	band, err := e.thresholds.Get(ctx)
	if err != nil {
		return err
	}
	active, err := e.incidents.Active(ctx)
	if err != nil {
		return err
	}
	inBand := r.Temperature >= band.MinTemp && r.Temperature <= band.MaxTemp
	if inBand {
		if active == nil {
			return nil
		}
		return e.closeIncident(ctx, active, r)
	}
	if active == nil {
		return e.openIncident(ctx, r)
	}
	return e.escalate(ctx, active, r)
}

func (e *Engine) openIncident(ctx context.Context, r *store.Reading) error {
	now := utils.NowUTC()
	temp, hum := r.Temperature, r.Humidity
	inc := &store.Incident{
		StartedAt:       now,
		Counter:         1,
		LastIncrementAt: &now,
		Temperature:     &temp,
		Humidity:        &hum,
	}
	id, err := e.incidents.Create(ctx, inc)
	if err != nil {
		return err
	}
	e.audit(ctx, "incident.open", fmt.Sprintf("incident=%d temp=%.1f hum=%.1f", id, temp, hum))
	e.notify(ctx, "open", temp, hum, 1, now)
	return nil
}

func (e *Engine) escalate(ctx context.Context, inc *store.Incident, r *store.Reading) error {
	if inc.Counter >= e.counterMax() {
		return nil
	}
	now := utils.NowUTC()
	if inc.LastIncrementAt != nil && now.Sub(*inc.LastIncrementAt) < e.cfg.TickSpacing() {
		return nil
	}
	counter := inc.Counter + 1
	if err := e.incidents.UpdateCounter(ctx, inc.ID, counter, now, r.Temperature, r.Humidity); err != nil {
		return err
	}
	e.audit(ctx, "incident.escalate", fmt.Sprintf("incident=%d counter=%d", inc.ID, counter))
	e.notify(ctx, "tick", r.Temperature, r.Humidity, counter, now)
	return nil
}

func (e *Engine) closeIncident(ctx context.Context, inc *store.Incident, r *store.Reading) error {
	now := utils.NowUTC()
	arch, err := e.incidents.CloseAndArchive(ctx, inc.ID, now)
	if err != nil {
		return err
	}
	if arch != nil {
		e.audit(ctx, "incident.close", fmt.Sprintf("incident=%d archive=%d", inc.ID, arch.ID))
	}
	e.notify(ctx, "close", r.Temperature, r.Humidity, inc.Counter, now)
	return nil
}

func (e *Engine) counterMax() int {
	if e.cfg.CounterMax > 0 {
		return e.cfg.CounterMax
	}
	return 9
}

func (e *Engine) audit(ctx context.Context, action, details string) {
	if e.audits == nil {
		return
	}
	if err := e.audits.Log(ctx, "system", action, details); err != nil {
		e.logger.Errorf("alerting audit: %v", err)
	}
}

func (e *Engine) notify(ctx context.Context, kind string, temperature, humidity float64, counter int, at time.Time) {
	if e.sender == nil || !e.cfg.Enabled {
		return
	}
	msg := TelegramMessage{
		Token:  e.cfg.TelegramToken,
		ChatID: e.cfg.TelegramChatID,
		Text:   buildAlertMessage(kind, temperature, humidity, counter, at),
	}
	if err := e.sender.Send(ctx, msg); err != nil {
		e.logger.Errorf("alerting telegram send: %v", err)
	}
}

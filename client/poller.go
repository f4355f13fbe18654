package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"coldwatch/core/utils"
)

// PollerConfig sets the three refresh cadences of the dashboard.
type PollerConfig struct {
	ReadingInterval time.Duration
	StatusInterval  time.Duration
	StatsInterval   time.Duration
}

func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		ReadingInterval: 10 * time.Second,
		StatusInterval:  5 * time.Second,
		StatsInterval:   30 * time.Second,
	}
}

// Snapshot is the dashboard's entire view of the server at one instant.
// The poller publishes a fresh one atomically; readers never see a
// half-updated mix of old and new data.
type Snapshot struct {
	Reading   *Reading
	Status    *IncidentStatus
	Stats     *Stats
	Connected bool
	FetchedAt time.Time
}

// Poller drives the periodic refresh loops. Each fetch failure degrades the
// published snapshot to disconnected and keeps polling; there is no backoff
// or retry beyond the regular cadence.
type Poller struct {
	client  *Client
	cfg     PollerConfig
	logger  *utils.Logger
	current atomic.Pointer[Snapshot]
	cancel  context.CancelFunc
	running bool
	mu      sync.Mutex
	wg      sync.WaitGroup
}

func NewPoller(c *Client, cfg PollerConfig, logger *utils.Logger) *Poller {
	if cfg.ReadingInterval <= 0 {
		cfg.ReadingInterval = 10 * time.Second
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = 5 * time.Second
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = 30 * time.Second
	}
	p := &Poller{client: c, cfg: cfg, logger: logger}
	p.current.Store(&Snapshot{})
	return p
}

// Current returns the latest published snapshot. Never nil.
func (p *Poller) Current() *Snapshot {
	return p.current.Load()
}

func (p *Poller) StartWithContext(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.wg.Add(3)
	p.mu.Unlock()

	p.refreshAll(runCtx)
	go p.loop(runCtx, p.cfg.ReadingInterval, p.refreshReading)
	go p.loop(runCtx, p.cfg.StatusInterval, p.refreshStatus)
	go p.loop(runCtx, p.cfg.StatsInterval, p.refreshStats)
}

func (p *Poller) StopWithContext(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel == nil || !p.running {
		p.mu.Unlock()
		return nil
	}
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	cancel()
	waitDone := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller) loop(ctx context.Context, interval time.Duration, refresh func(context.Context)) {
	defer p.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			refresh(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) refreshAll(ctx context.Context) {
	p.refreshReading(ctx)
	p.refreshStatus(ctx)
	p.refreshStats(ctx)
}

func (p *Poller) refreshReading(ctx context.Context) {
	reading, err := p.client.FetchLatestReading(ctx)
	if err != nil {
		p.logger.Warnf("poll latest reading: %v", err)
		p.publish(func(s *Snapshot) { s.Connected = false })
		return
	}
	p.publish(func(s *Snapshot) {
		s.Reading = reading
		s.Connected = true
	})
}

func (p *Poller) refreshStatus(ctx context.Context) {
	status, err := p.client.FetchIncidentStatus(ctx)
	if err != nil {
		p.logger.Warnf("poll incident status: %v", err)
		p.publish(func(s *Snapshot) { s.Connected = false })
		return
	}
	p.publish(func(s *Snapshot) {
		s.Status = status
		s.Connected = true
	})
}

func (p *Poller) refreshStats(ctx context.Context) {
	stats, err := p.client.FetchStats(ctx)
	if err != nil {
		p.logger.Warnf("poll stats: %v", err)
		p.publish(func(s *Snapshot) { s.Connected = false })
		return
	}
	p.publish(func(s *Snapshot) {
		s.Stats = stats
		s.Connected = true
	})
}

// publish copies the current snapshot, applies the mutation and swaps the
// pointer. Concurrent readers keep the old snapshot until the swap.
func (p *Poller) publish(mutate func(*Snapshot)) {
	old := p.current.Load()
	next := *old
	mutate(&next)
	next.FetchedAt = time.Now().UTC()
	p.current.Store(&next)
}

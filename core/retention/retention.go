// Package retention prunes old readings and archived incidents on a cron
// schedule.
package retention

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"coldwatch/config"
	"coldwatch/core/store"
	"coldwatch/core/utils"
)

type Janitor struct {
	cfg       config.RetentionConfig
	readings  store.ReadingsStore
	incidents store.IncidentsStore
	sessions  store.SessionsStore
	logger    *utils.Logger
	cron      *cron.Cron
}

func NewJanitor(cfg config.RetentionConfig, readings store.ReadingsStore, incidents store.IncidentsStore, sessions store.SessionsStore, logger *utils.Logger) *Janitor {
	return &Janitor{
		cfg:       cfg,
		readings:  readings,
		incidents: incidents,
		sessions:  sessions,
		logger:    logger,
	}
}

func (j *Janitor) Start(ctx context.Context) error {
	if j == nil || !j.cfg.Enabled {
		return nil
	}
	c := cron.New()
	spec := j.cfg.CronSpec
	if spec == "" {
		spec = "0 3 * * *"
	}
	if _, err := c.AddFunc(spec, func() {
		if err := j.RunOnce(ctx, time.Now().UTC()); err != nil {
			j.logger.Errorf("retention run: %v", err)
		}
	}); err != nil {
		return err
	}
	j.cron = c
	c.Start()
	j.logger.Infof("retention scheduled: %s", spec)
	return nil
}

func (j *Janitor) Stop() {
	if j == nil || j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

// RunOnce performs one cleanup sweep. Expired sessions are always pruned;
// readings and archives only when a positive retention window is set.
func (j *Janitor) RunOnce(ctx context.Context, now time.Time) error {
	if n, err := j.sessions.DeleteExpired(ctx, now); err != nil {
		return err
	} else if n > 0 {
		j.logger.Infof("retention: removed %d expired sessions", n)
	}
	if j.cfg.ReadingsDays > 0 {
		before := now.Add(-time.Duration(j.cfg.ReadingsDays) * 24 * time.Hour)
		n, err := j.readings.DeleteBefore(ctx, before)
		if err != nil {
			return err
		}
		if n > 0 {
			j.logger.Infof("retention: removed %d readings older than %s", n, before.Format(time.DateOnly))
		}
	}
	if j.cfg.ArchiveDays > 0 {
		before := now.Add(-time.Duration(j.cfg.ArchiveDays) * 24 * time.Hour)
		n, err := j.incidents.DeleteArchivedBefore(ctx, before)
		if err != nil {
			return err
		}
		if n > 0 {
			j.logger.Infof("retention: removed %d archived incidents older than %s", n, before.Format(time.DateOnly))
		}
	}
	return nil
}

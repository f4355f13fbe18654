// Package appbootstrap wires configuration, storage, background workers and
// the HTTP server into a runnable application.
package appbootstrap

import (
	"context"

	"coldwatch/api"
	"coldwatch/config"
	"coldwatch/core/alerting"
	"coldwatch/core/auth"
	"coldwatch/core/ingest"
	"coldwatch/core/rbac"
	"coldwatch/core/retention"
	"coldwatch/core/store"
	"coldwatch/core/utils"
)

type composition struct {
	server   *api.Server
	engine   *alerting.Engine
	janitor  *retention.Janitor
	mqtt     *ingest.Subscriber
	users    store.UsersStore
	sessions store.SessionsStore
}

func compose(ctx context.Context, cfg *config.AppConfig, db *store.DB, logger *utils.Logger) (*composition, error) {
	users := store.NewUsersStore(db)
	sessions := store.NewSessionsStore(db)
	audits := store.NewAuditStore(db)
	readings := store.NewReadingsStore(db)
	incidents := store.NewIncidentsStore(db)
	thresholds := store.NewThresholdsStore(db, cfg.Thresholds.DefaultMin, cfg.Thresholds.DefaultMax)

	policy := rbac.NewPolicy(rbac.DefaultRoles())
	sessionManager := auth.NewSessionManager(sessions, cfg, logger)

	engine := alerting.NewEngine(readings, incidents, thresholds, audits,
		alerting.NewHTTPTelegramSender(), cfg.Alerting, logger)
	ingestSvc := ingest.NewService(readings, engine, logger)

	var mqttSub *ingest.Subscriber
	if cfg.MQTT.Enabled {
		sub, err := ingest.NewSubscriber(cfg.MQTT, ingestSvc, logger)
		if err != nil {
			return nil, err
		}
		mqttSub = sub
	}

	janitor := retention.NewJanitor(cfg.Retention, readings, incidents, sessions, logger)

	server := api.NewServer(api.Deps{
		Cfg:            cfg,
		Logger:         logger,
		Users:          users,
		Audits:         audits,
		Readings:       readings,
		Incidents:      incidents,
		Thresholds:     thresholds,
		Policy:         policy,
		SessionManager: sessionManager,
		IngestSvc:      ingestSvc,
	})

	if err := ensureDefaultAdmin(ctx, users, cfg, logger); err != nil {
		return nil, err
	}

	return &composition{
		server:   server,
		engine:   engine,
		janitor:  janitor,
		mqtt:     mqttSub,
		users:    users,
		sessions: sessions,
	}, nil
}

// ensureDefaultAdmin seeds the first account so a fresh install can log in.
func ensureDefaultAdmin(ctx context.Context, users store.UsersStore, cfg *config.AppConfig, logger *utils.Logger) error {
	count, err := users.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, salt, err := auth.HashPassword(cfg.Bootstrap.AdminPassword, cfg.Pepper)
	if err != nil {
		return err
	}
	_, err = users.Create(ctx, &store.User{
		Username:     cfg.Bootstrap.AdminUsername,
		PasswordHash: hash,
		Salt:         salt,
		FullName:     "Administrateur",
		Role:         rbac.RoleAdmin,
		Active:       true,
	})
	if err != nil {
		return err
	}
	logger.Infof("seeded default admin account %q", cfg.Bootstrap.AdminUsername)
	return nil
}

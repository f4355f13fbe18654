package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"coldwatch/api/handlers"
	"coldwatch/config"
	"coldwatch/core/auth"
	"coldwatch/core/ingest"
	"coldwatch/core/rbac"
	"coldwatch/core/store"
	"coldwatch/core/utils"
)

type Server struct {
	cfg             *config.AppConfig
	logger          *utils.Logger
	users           store.UsersStore
	audits          store.AuditStore
	readings        store.ReadingsStore
	incidents       store.IncidentsStore
	thresholds      store.ThresholdsStore
	policy          *rbac.Policy
	sessionManager  *auth.SessionManager
	ingestSvc       *ingest.Service
	activityTracker *sessionActivity
	httpServer      *http.Server
}

type Deps struct {
	Cfg            *config.AppConfig
	Logger         *utils.Logger
	Users          store.UsersStore
	Audits         store.AuditStore
	Readings       store.ReadingsStore
	Incidents      store.IncidentsStore
	Thresholds     store.ThresholdsStore
	Policy         *rbac.Policy
	SessionManager *auth.SessionManager
	IngestSvc      *ingest.Service
}

func NewServer(d Deps) *Server {
	return &Server{
		cfg:             d.Cfg,
		logger:          d.Logger,
		users:           d.Users,
		audits:          d.Audits,
		readings:        d.Readings,
		incidents:       d.Incidents,
		thresholds:      d.Thresholds,
		policy:          d.Policy,
		sessionManager:  d.SessionManager,
		ingestSvc:       d.IngestSvc,
		activityTracker: newSessionActivity(),
	}
}

type routeHandlers struct {
	auth       *handlers.AuthHandler
	readings   *handlers.ReadingsHandler
	incidents  *handlers.IncidentsHandler
	thresholds *handlers.ThresholdsHandler
}

func (s *Server) newRouteHandlers() routeHandlers {
	return routeHandlers{
		auth:       handlers.NewAuthHandler(s.cfg, s.users, s.sessionManager, s.audits, s.logger),
		readings:   handlers.NewReadingsHandler(s.readings, s.ingestSvc, s.audits, s.logger),
		incidents:  handlers.NewIncidentsHandler(s.incidents, s.audits, s.logger),
		thresholds: handlers.NewThresholdsHandler(s.thresholds, s.audits, s.logger),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)

	h := s.newRouteHandlers()
	withSession := s.withSession
	require := s.requirePermission

	r.MethodFunc(http.MethodPost, "/auth/login/", s.rateLimitMiddleware(h.auth.Login))
	r.MethodFunc(http.MethodPost, "/auth/logout/", withSession(h.auth.Logout))

	r.MethodFunc(http.MethodGet, "/latest/", withSession(require(rbac.PermReadingsView)(h.readings.Latest)))
	r.MethodFunc(http.MethodGet, "/chart-data/", withSession(require(rbac.PermReadingsView)(h.readings.ChartData)))
	r.MethodFunc(http.MethodGet, "/chart-data-jour/", withSession(require(rbac.PermReadingsView)(h.readings.ChartDataDay)))
	r.MethodFunc(http.MethodGet, "/chart-data-semaine/", withSession(require(rbac.PermReadingsView)(h.readings.ChartDataWeek)))
	r.MethodFunc(http.MethodGet, "/chart-data-mois/", withSession(require(rbac.PermReadingsView)(h.readings.ChartDataMonth)))
	r.MethodFunc(http.MethodGet, "/download/csv/", withSession(require(rbac.PermReadingsView)(h.readings.DownloadCSV)))

	// Sensor push endpoint; devices carry no session.
	r.MethodFunc(http.MethodPost, "/api/", h.readings.Ingest)
	r.MethodFunc(http.MethodGet, "/api/", withSession(require(rbac.PermReadingsView)(h.readings.List)))
	r.MethodFunc(http.MethodPost, "/api/readings/", withSession(require(rbac.PermReadingsIngest)(h.readings.Ingest)))
	r.MethodFunc(http.MethodPost, "/api/manual-entry/", withSession(require(rbac.PermReadingsManual)(h.readings.ManualEntry)))

	r.MethodFunc(http.MethodGet, "/incident-status/", withSession(require(rbac.PermIncidentsView)(h.incidents.Status)))
	r.MethodFunc(http.MethodPost, "/update-incident/", withSession(require(rbac.PermIncidentsView)(h.incidents.Update)))
	r.MethodFunc(http.MethodPost, "/incident/{id:[0-9]+}/comment/", withSession(require(rbac.PermIncidentsComment)(h.incidents.AddComment)))
	r.MethodFunc(http.MethodGet, "/incidents/archive/", withSession(require(rbac.PermArchiveView)(h.incidents.ArchiveList)))
	r.MethodFunc(http.MethodGet, "/incidents/archive/{id:[0-9]+}/", withSession(require(rbac.PermArchiveView)(h.incidents.ArchiveDetail)))

	r.MethodFunc(http.MethodGet, "/threshold/", withSession(require(rbac.PermReadingsView)(h.thresholds.Get)))
	r.MethodFunc(http.MethodPut, "/threshold/", withSession(require(rbac.PermThresholdsManage)(h.thresholds.Update)))

	return r
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Infof("http server listening on %s", s.cfg.ListenAddr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

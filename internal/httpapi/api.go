// Package httpapi is the REST surface: routing, middleware, request decoding
// and the mapping from service errors to HTTP statuses. Handlers stay thin;
// every rule lives in the services.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/TaherBala2507/mini-crm/internal/auth"
	"github.com/TaherBala2507/mini-crm/internal/crm"
	"github.com/TaherBala2507/mini-crm/internal/obs"
)

// ReadyProbe reports readiness by pinging the database when one is wired.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options carries the service graph and tunables into the API.
type Options struct {
	Auth        *auth.Service
	Roles       *auth.RoleService
	Leads       *crm.LeadService
	Projects    *crm.ProjectService
	Tasks       *crm.TaskService
	Notes       *crm.NoteService
	Attachments *crm.AttachmentService
	Analytics   *crm.AnalyticsService

	Ready        ReadyProbe
	Limiter      *RateLimiter
	Log          *logrus.Logger
	Version      string
	MaxBodyBytes int64
}

// API is the HTTP layer.
type API struct {
	router *mux.Router

	auth        *auth.Service
	roles       *auth.RoleService
	leads       *crm.LeadService
	projects    *crm.ProjectService
	tasks       *crm.TaskService
	notes       *crm.NoteService
	attachments *crm.AttachmentService
	analytics   *crm.AnalyticsService

	ready   ReadyProbe
	limiter *RateLimiter
	log     *logrus.Logger
	version string
	maxBody int64
}

// New builds the router. The service graph must be fully wired.
func New(opts Options) *API {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}
	a := &API{
		router:      mux.NewRouter(),
		auth:        opts.Auth,
		roles:       opts.Roles,
		leads:       opts.Leads,
		projects:    opts.Projects,
		tasks:       opts.Tasks,
		notes:       opts.Notes,
		attachments: opts.Attachments,
		analytics:   opts.Analytics,
		ready:       opts.Ready,
		limiter:     opts.Limiter,
		log:         opts.Log,
		version:     opts.Version,
		maxBody:     opts.MaxBodyBytes,
	}
	a.routes()
	return a
}

func (a *API) routes() {
	r := a.router

	// public
	r.HandleFunc("/healthz", a.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", a.handleReadyz).Methods(http.MethodGet)
	r.HandleFunc("/v1/info", a.handleInfo).Methods(http.MethodGet)
	r.Handle("/metrics", obs.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/v1/auth/register", a.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/login", a.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/refresh", a.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/password/forgot", a.handleForgotPassword).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/password/reset", a.handleResetPassword).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/verify-email", a.handleVerifyEmail).Methods(http.MethodPost)

	// authenticated
	p := r.NewRoute().Subrouter()
	p.Use(a.withAuth)

	p.HandleFunc("/v1/auth/logout", a.handleLogout).Methods(http.MethodPost)
	p.HandleFunc("/v1/auth/password/change", a.handleChangePassword).Methods(http.MethodPost)
	p.HandleFunc("/v1/auth/me", a.handleMe).Methods(http.MethodGet)

	p.HandleFunc("/v1/org", a.handleGetOrg).Methods(http.MethodGet)
	p.HandleFunc("/v1/org", a.handleUpdateOrg).Methods(http.MethodPatch)

	p.HandleFunc("/v1/users", a.handleInviteUser).Methods(http.MethodPost)
	p.HandleFunc("/v1/users", a.handleListUsers).Methods(http.MethodGet)
	p.HandleFunc("/v1/users/{id}", a.handleGetUser).Methods(http.MethodGet)
	p.HandleFunc("/v1/users/{id}", a.handleUpdateUser).Methods(http.MethodPatch)
	p.HandleFunc("/v1/users/{id}", a.handleDeactivateUser).Methods(http.MethodDelete)

	p.HandleFunc("/v1/roles", a.handleCreateRole).Methods(http.MethodPost)
	p.HandleFunc("/v1/roles", a.handleListRoles).Methods(http.MethodGet)
	p.HandleFunc("/v1/roles/{id}", a.handleGetRole).Methods(http.MethodGet)
	p.HandleFunc("/v1/roles/{id}", a.handleUpdateRole).Methods(http.MethodPatch)
	p.HandleFunc("/v1/roles/{id}", a.handleDeleteRole).Methods(http.MethodDelete)
	p.HandleFunc("/v1/permissions", a.handleListPermissions).Methods(http.MethodGet)

	p.HandleFunc("/v1/leads", a.handleCreateLead).Methods(http.MethodPost)
	p.HandleFunc("/v1/leads", a.handleListLeads).Methods(http.MethodGet)
	p.HandleFunc("/v1/leads/{id}", a.handleGetLead).Methods(http.MethodGet)
	p.HandleFunc("/v1/leads/{id}", a.handleUpdateLead).Methods(http.MethodPatch)
	p.HandleFunc("/v1/leads/{id}", a.handleDeleteLead).Methods(http.MethodDelete)

	p.HandleFunc("/v1/projects", a.handleCreateProject).Methods(http.MethodPost)
	p.HandleFunc("/v1/projects", a.handleListProjects).Methods(http.MethodGet)
	p.HandleFunc("/v1/projects/{id}", a.handleGetProject).Methods(http.MethodGet)
	p.HandleFunc("/v1/projects/{id}", a.handleUpdateProject).Methods(http.MethodPatch)
	p.HandleFunc("/v1/projects/{id}", a.handleDeleteProject).Methods(http.MethodDelete)

	p.HandleFunc("/v1/tasks", a.handleCreateTask).Methods(http.MethodPost)
	p.HandleFunc("/v1/tasks", a.handleListTasks).Methods(http.MethodGet)
	p.HandleFunc("/v1/tasks/{id}", a.handleGetTask).Methods(http.MethodGet)
	p.HandleFunc("/v1/tasks/{id}", a.handleUpdateTask).Methods(http.MethodPatch)
	p.HandleFunc("/v1/tasks/{id}", a.handleDeleteTask).Methods(http.MethodDelete)

	p.HandleFunc("/v1/notes", a.handleCreateNote).Methods(http.MethodPost)
	p.HandleFunc("/v1/notes", a.handleListNotes).Methods(http.MethodGet)
	p.HandleFunc("/v1/notes/{id}", a.handleUpdateNote).Methods(http.MethodPatch)
	p.HandleFunc("/v1/notes/{id}", a.handleDeleteNote).Methods(http.MethodDelete)

	p.HandleFunc("/v1/attachments", a.handleUploadAttachment).Methods(http.MethodPost)
	p.HandleFunc("/v1/attachments", a.handleListAttachments).Methods(http.MethodGet)
	p.HandleFunc("/v1/attachments/{id}", a.handleGetAttachment).Methods(http.MethodGet)
	p.HandleFunc("/v1/attachments/{id}/download", a.handleDownloadAttachment).Methods(http.MethodGet)
	p.HandleFunc("/v1/attachments/{id}", a.handleDeleteAttachment).Methods(http.MethodDelete)

	p.HandleFunc("/v1/analytics/overview", a.handleAnalyticsOverview).Methods(http.MethodGet)
	p.HandleFunc("/v1/audit", a.handleListAudit).Methods(http.MethodGet)
}

// Handler assembles the middleware chain around the router.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = Logging(h, a.log)
	h = obs.Instrument(h, a.routePattern)
	if a.limiter != nil {
		h = a.limiter.Middleware(h)
	}
	h = MaxBodyBytes(h, a.maxBody)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = RequestID(h)
	h = Recover(h, a.log)
	return h
}

// routePattern resolves the mux template for metric labels so ids do not
// explode cardinality.
func (a *API) routePattern(r *http.Request) string {
	var match mux.RouteMatch
	if a.router.Match(r, &match) && match.Route != nil {
		if tpl, err := match.Route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return ""
}

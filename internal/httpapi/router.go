// Package httpapi exposes the engine over JSON/HTTP for hmsauth-server.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	hmsAuth "github.com/MrEthical07/hmsAuth"
	"github.com/MrEthical07/hmsAuth/internal/rate"
	"github.com/MrEthical07/hmsAuth/middleware"
)

const defaultMaxBodyBytes = 64 << 10

// Options wires the router.
type Options struct {
	Engine *hmsAuth.Engine
	Logger *zap.Logger
	// Limiter throttles the unauthenticated auth routes per client IP. Nil
	// disables throttling.
	Limiter rate.Limiter
	// Metrics is mounted at MetricsPath when non-nil.
	Metrics      http.Handler
	MetricsPath  string
	MaxBodyBytes int64
}

// NewRouter returns the full route table:
//
//	GET    /healthz
//	POST   /v1/auth/register
//	POST   /v1/auth/verify-email
//	POST   /v1/auth/resend-verification
//	POST   /v1/auth/admin/login
//	POST   /v1/auth/staff/login
//	GET    /v1/auth/me                      (session)
//	POST   /v1/auth/logout                  (session)
//	POST   /v1/auth/password                (session)
//	GET    /v1/authorize?module=&action=    (session)
//	GET    /v1/roles/{role}/permissions     (session)
//	POST   /v1/staff                        (admin)
//	PATCH  /v1/staff/{id}                   (admin)
//	DELETE /v1/staff/{id}                   (admin)
//	POST   /v1/staff/{id}/reset-password    (admin)
func NewRouter(opts Options) *mux.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBytes := opts.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBodyBytes
	}
	h := &handler{engine: opts.Engine, logger: logger}

	r := mux.NewRouter()
	r.Use(requestID, recoverer(logger), accessLog(logger))

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, opts.Metrics).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(maxBody(maxBytes))

	public := func(route string, fn http.HandlerFunc) http.Handler {
		return throttle(opts.Limiter, route, logger)(fn)
	}
	auth := api.PathPrefix("/auth").Subrouter()
	auth.Handle("/register", public("register", h.register)).Methods(http.MethodPost)
	auth.Handle("/verify-email", public("verify", h.verifyEmail)).Methods(http.MethodPost)
	auth.Handle("/resend-verification", public("resend", h.resendVerification)).Methods(http.MethodPost)
	auth.Handle("/admin/login", public("login", h.loginAdmin)).Methods(http.MethodPost)
	auth.Handle("/staff/login", public("login", h.loginStaff)).Methods(http.MethodPost)

	session := api.NewRoute().Subrouter()
	session.Use(middleware.Guard(opts.Engine))
	session.HandleFunc("/auth/me", h.me).Methods(http.MethodGet)
	session.HandleFunc("/auth/logout", h.logout).Methods(http.MethodPost)
	session.HandleFunc("/auth/password", h.changePassword).Methods(http.MethodPost)
	session.HandleFunc("/authorize", h.authorize).Methods(http.MethodGet)
	session.HandleFunc("/roles/{role}/permissions", h.roleTemplate).Methods(http.MethodGet)

	staff := session.PathPrefix("/staff").Subrouter()
	staff.Use(middleware.RequireAdmin())
	staff.HandleFunc("", h.createStaff).Methods(http.MethodPost)
	staff.HandleFunc("/{id}", h.updateStaff).Methods(http.MethodPatch)
	staff.HandleFunc("/{id}", h.deleteStaff).Methods(http.MethodDelete)
	staff.HandleFunc("/{id}/reset-password", h.resetStaffPassword).Methods(http.MethodPost)

	return r
}

package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/inkwellhq/inkwell/internal/auth/service"
	"github.com/inkwellhq/inkwell/internal/auth/store"
	"github.com/inkwellhq/inkwell/pkg/httpx"
	"github.com/inkwellhq/inkwell/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	secure       bool

	store           store.Store
	AuthService     *service.AuthService
	MFAService      *service.MFAService
	SessionService  *service.SessionService
	RememberService *service.RememberService
}

func NewRouter(buildVersion string, secure bool, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		secure:       secure,
		store:        st,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerMFA()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// secured wraps a handler with the session middleware plus any extras, so a
// valid session cookie (or remember-me fallback) is required.
func (r *Router) secured(h http.Handler, extra ...httpx.Middleware) http.Handler {
	mws := append([]httpx.Middleware{
		SessionMiddleware(r.SessionService, r.RememberService, r.secure),
	}, extra...)
	return httpx.Chain(h, mws...)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		AuthService:    r.AuthService,
		SessionService: r.SessionService,
		Remember:       r.RememberService,
		Secure:         r.secure,
	}

	// Public endpoints. Login and the second-factor step take the strict
	// limit since they process credentials; registration gets the moderate
	// one to keep signup abuse down.
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/2fa",
		httpx.Chain(http.HandlerFunc(h.HandleTwoFactor),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Session-bound endpoints.
	r.Mux.Handle("GET /v1/auth/session",
		r.secured(http.HandlerFunc(h.HandleSession),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /v1/auth/csrf",
		r.secured(http.HandlerFunc(h.HandleCSRFToken),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/logout",
		r.secured(http.HandlerFunc(h.HandleLogout),
			CSRFMiddleware(r.SessionService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/password",
		r.secured(http.HandlerFunc(h.HandleChangePassword),
			CSRFMiddleware(r.SessionService),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerMFA() {
	h := &MFAHandler{
		MFAService:  r.MFAService,
		AuthService: r.AuthService,
	}

	csrf := CSRFMiddleware(r.SessionService)

	r.Mux.Handle("POST /v1/mfa/totp/enroll",
		r.secured(http.HandlerFunc(h.HandleEnroll), csrf,
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/mfa/totp/enable",
		r.secured(http.HandlerFunc(h.HandleEnable), csrf,
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/mfa/totp/disable",
		r.secured(http.HandlerFunc(h.HandleDisable), csrf,
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/mfa/backup-codes",
		r.secured(http.HandlerFunc(h.HandleRegenerateBackupCodes), csrf,
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("GET /v1/mfa/status",
		r.secured(http.HandlerFunc(h.HandleStatus),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.SessionService.Sessions))
}

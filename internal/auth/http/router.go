package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jewelbox/backoffice/internal/auth/domain"
	"github.com/jewelbox/backoffice/internal/auth/revocation"
	"github.com/jewelbox/backoffice/internal/auth/service"
	"github.com/jewelbox/backoffice/internal/auth/store"
	"github.com/jewelbox/backoffice/pkg/httpx"
	"github.com/jewelbox/backoffice/pkg/slogx"

	_ "github.com/jewelbox/backoffice/api/backoffice" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	denylist revocation.Denylist

	LoginService     *service.LoginService
	SessionService   *service.SessionService
	PrincipalService *service.PrincipalService
	BootstrapService *service.BootstrapService
}

func NewRouter(
	buildVersion string,
	st store.Store,
	denylist revocation.Denylist,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		denylist:     denylist,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recover(func(req *http.Request, v any) {
			slogx.FromContext(req.Context()).Error("panic serving request", "panic", v)
		}),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUsers()
	r.registerSystem()
	r.registerBootstrap()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Back Office Authentication API
//	@version		0.1.0
//	@description	Sign-in for the jewellery back office: password, then a six-digit code sent by email, then a session token.
//	@description
//	@description				Session tokens are HS256 JWTs. Send them as "Authorization: Bearer {token}".
//
//	@contact.name				Back Office Team
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// guarded wraps h with the Access Guard, an optional role check and a
// per-user rate limit.
func (r *Router) guarded(h http.HandlerFunc, limit httpx.RateLimitConfig, roles ...domain.Role) http.Handler {
	mws := []httpx.Middleware{Guard(r.SessionService)}
	if len(roles) > 0 {
		mws = append(mws, RequireRole(roles...))
	}
	mws = append(mws, httpx.RateLimitBySubject(limit))
	return httpx.Chain(h, mws...)
}

func (r *Router) registerAuth() {
	login := &LoginHandler{LoginService: r.LoginService}

	// Rate limited by IP + email so one address cannot spray many accounts
	// and one account cannot be hammered from many requests.
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(login.HandleLogin),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
		),
	)

	// Six digits are guessable without a tight limit.
	r.Mux.Handle("POST /v1/auth/2fa/verify",
		httpx.Chain(http.HandlerFunc(login.HandleVerify),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/2fa/resend",
		httpx.Chain(http.HandlerFunc(login.HandleResend),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	session := &SessionHandler{SessionService: r.SessionService}
	r.Mux.Handle("GET /v1/auth/me", r.guarded(session.HandleMe, httpx.LenientLimit))
	r.Mux.Handle("POST /v1/auth/logout", r.guarded(session.HandleLogout, httpx.ModerateLimit))
}

func (r *Router) registerUsers() {
	h := &UsersHandler{PrincipalService: r.PrincipalService}

	readers := []domain.Role{domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleManager}
	writers := []domain.Role{domain.RoleSuperAdmin, domain.RoleAdmin}

	r.Mux.Handle("GET /v1/users", r.guarded(h.HandleList, httpx.ModerateLimit, readers...))
	r.Mux.Handle("POST /v1/users", r.guarded(h.HandleCreate, httpx.ModerateLimit, writers...))
	r.Mux.Handle("POST /v1/users/{id}/unlock", r.guarded(h.HandleUnlock, httpx.ModerateLimit, writers...))
	r.Mux.Handle("PATCH /v1/users/{id}/active", r.guarded(h.HandleSetActive, httpx.ModerateLimit, writers...))
}

func (r *Router) registerBootstrap() {
	// POST /bootstrap - very strict rate limit by IP (one-time setup endpoint)
	bootstrapHandler := &BootstrapHandler{BootstrapService: r.BootstrapService}
	r.Mux.Handle("POST /v1/bootstrap",
		httpx.Chain(bootstrapHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.denylist),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

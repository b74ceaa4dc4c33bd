package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/harborview-digital/showcase/internal/auth/cache"
	"github.com/harborview-digital/showcase/internal/auth/service"
	"github.com/harborview-digital/showcase/internal/auth/store"
	"github.com/harborview-digital/showcase/pkg/httpx"
	"github.com/harborview-digital/showcase/pkg/slogx"

	_ "github.com/harborview-digital/showcase/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     httpx.AccessVerifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store
	cache cache.Cache

	Sessions *service.SessionService
}

func NewRouter(
	sessions *service.SessionService,
	st store.Store,
	c cache.Cache,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     &Verifier{Sessions: sessions},
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		cache:        c,
		Sessions:     sessions,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerPasswordFlows()
	r.registerTwoFactor()
	r.registerMe()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
//
//	@title			Showcase Auth API
//	@version		0.1.0
//	@description	Authentication and session service for the Showcase platform.
//	@description
//	@description				Access tokens are HS256 JWTs presented as bearer credentials; refresh
//	@description				tokens are single-use and rotated on every refresh.
//
//	@contact.name				Harborview Digital
//	@contact.url				https://github.com/harborview-digital/showcase
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
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	// Anonymous credential endpoints get the strict limit: they are the
	// brute-force surface.
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(&RegisterHandler{Sessions: r.Sessions},
			httpx.RateLimitMiddleware(httpx.StrictLimit, httpx.IPKeyExtractor),
		),
	)

	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(&LoginHandler{Sessions: r.Sessions},
			httpx.RateLimitMiddleware(httpx.StrictLimit, httpx.IPKeyExtractor),
		),
	)

	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(&RefreshHandler{Sessions: r.Sessions},
			httpx.RateLimitMiddleware(httpx.ModerateLimit, httpx.IPKeyExtractor),
		),
	)

	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(&LogoutHandler{Sessions: r.Sessions},
			httpx.RateLimitMiddleware(httpx.ModerateLimit, httpx.IPKeyExtractor),
		),
	)
}

func (r *Router) registerPasswordFlows() {
	r.Mux.Handle("POST /v1/auth/forgot-password",
		httpx.Chain(&ForgotPasswordHandler{Sessions: r.Sessions},
			httpx.RateLimitMiddleware(httpx.StrictLimit, httpx.IPKeyExtractor),
		),
	)

	r.Mux.Handle("POST /v1/auth/reset-password",
		httpx.Chain(&ResetPasswordHandler{Sessions: r.Sessions},
			httpx.RateLimitMiddleware(httpx.StrictLimit, httpx.IPKeyExtractor),
		),
	)

	r.Mux.Handle("POST /v1/auth/verify-email",
		httpx.Chain(&VerifyEmailHandler{Sessions: r.Sessions},
			httpx.RateLimitMiddleware(httpx.ModerateLimit, httpx.IPKeyExtractor),
		),
	)

	r.Mux.Handle("POST /v1/auth/resend-verification",
		httpx.Chain(&ResendVerificationHandler{Sessions: r.Sessions},
			httpx.RateLimitMiddleware(httpx.StrictLimit, httpx.IPKeyExtractor),
		),
	)

	r.Mux.Handle("POST /v1/auth/change-password",
		httpx.Chain(&ChangePasswordHandler{Sessions: r.Sessions},
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitMiddleware(httpx.ModerateLimit, httpx.IPKeyExtractor),
		),
	)
}

func (r *Router) registerTwoFactor() {
	h := &TwoFactorHandler{Sessions: r.Sessions}

	secured := func(next http.Handler) http.Handler {
		return httpx.Chain(next,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitMiddleware(httpx.ModerateLimit, httpx.IPKeyExtractor),
		)
	}

	r.Mux.Handle("GET /v1/auth/2fa", secured(http.HandlerFunc(h.HandleStatus)))
	r.Mux.Handle("POST /v1/auth/2fa/setup", secured(http.HandlerFunc(h.HandleSetup)))
	r.Mux.Handle("POST /v1/auth/2fa/verify", secured(http.HandlerFunc(h.HandleVerify)))
	r.Mux.Handle("POST /v1/auth/2fa/disable", secured(http.HandlerFunc(h.HandleDisable)))
}

func (r *Router) registerMe() {
	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(&MeHandler{Sessions: r.Sessions},
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitMiddleware(httpx.ModerateLimit, httpx.IPKeyExtractor),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.cache))
}

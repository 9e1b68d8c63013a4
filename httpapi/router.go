package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/accountauth"
	"github.com/MrEthical07/accountauth/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Options configures the router.
type Options struct {
	Engine *accountauth.Engine
	Logger *zerolog.Logger

	// CookieSecure marks token cookies Secure. Enable it behind HTTPS.
	CookieSecure   bool
	AllowedOrigins []string
	// TrustProxy reads the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool

	// Metrics, when set, is mounted at GET /metrics.
	Metrics http.Handler
}

// Handler holds the HTTP handlers.
type Handler struct {
	engine       *accountauth.Engine
	logger       *zerolog.Logger
	validate     *validator.Validate
	cookieSecure bool
}

func NewHandler(engine *accountauth.Engine, logger *zerolog.Logger, cookieSecure bool) *Handler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Handler{
		engine:       engine,
		logger:       logger,
		validate:     newValidator(),
		cookieSecure: cookieSecure,
	}
}

// NewRouter mounts every route on a new chi router.
func NewRouter(opts Options) http.Handler {
	h := NewHandler(opts.Engine, opts.Logger, opts.CookieSecure)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if opts.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	r.Use(h.requestLogger)
	r.Use(middleware.ClientIP)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: len(opts.AllowedOrigins) > 0,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/auth", func(api chi.Router) {
		api.Post("/register", h.Register)
		api.Post("/verify-email", h.VerifyEmail)
		api.Post("/login", h.Login)
		api.Post("/verify-mfa", h.VerifyMFA)
		api.Post("/resend-verification", h.ResendVerification)
		api.Post("/resend-otp", h.ResendOTP)
		api.Post("/request-password-reset", h.RequestPasswordReset)
		api.Post("/verify-password-reset-otp", h.VerifyPasswordResetOTP)
		api.Post("/reset-password", h.ResetPassword)
		api.Post("/refresh-token", h.RefreshToken)
		api.Post("/logout", h.Logout)

		api.Get("/user/{id}", h.GetUserByID)
		api.Get("/get-user-by-email/{email}", h.GetUserByEmail)

		api.Group(func(g chi.Router) {
			g.Use(middleware.Guard(opts.Engine, h.writeError))
			g.Get("/me", h.Me)
			g.Patch("/update-profile", h.UpdateProfile)
			g.Patch("/change-password", h.ChangePassword)
			g.Patch("/update-recovery-email", h.UpdateRecoveryEmail)
			g.Patch("/upload-profile-image", h.UploadProfileImage)
			g.Get("/download-profile-image", h.DownloadProfileImage)
		})
	})

	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", chimw.GetReqID(r.Context())).
			Msg("request")
	})
}

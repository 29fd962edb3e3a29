package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/oauthkit/devicegrant/cmd/devicegrantd/handlers/device"
	"github.com/oauthkit/devicegrant/cmd/devicegrantd/handlers/health"
	"github.com/oauthkit/devicegrant/cmd/devicegrantd/handlers/token"
	"github.com/oauthkit/devicegrant/cmd/devicegrantd/handlers/verify"
	"github.com/oauthkit/devicegrant/internal/csrf"
	"github.com/oauthkit/devicegrant/internal/devicegrant"
	"github.com/oauthkit/devicegrant/internal/ratelimit"
	"github.com/oauthkit/devicegrant/internal/templates"
)

type server struct {
	cfg    Config
	router *chi.Mux
	flow   *devicegrant.Flow
	logger zerolog.Logger
}

func newServer(cfg Config, flow *devicegrant.Flow, csrfManager *csrf.Manager, logger zerolog.Logger) (*server, error) {
	tmpls, err := templates.Load()
	if err != nil {
		return nil, err
	}

	srv := &server{
		cfg:    cfg,
		router: chi.NewRouter(),
		flow:   flow,
		logger: logger,
	}

	srv.router.Use(middleware.Recoverer)
	srv.router.Use(middleware.RealIP)
	srv.router.Use(middleware.Timeout(30 * time.Second))
	srv.router.Use(requestLogger(logger))

	limiter := ratelimit.New(cfg.RateLimitPerSecond, cfg.RateLimitBurst)

	deviceHandler := device.New(flow)
	tokenHandler := token.New(flow)
	verifyHandler := verify.New(verify.Config{
		Flow:      flow,
		Templates: tmpls,
		CSRF:      csrfManager,
		Subject:   subjectFromHeader(cfg.SubjectHeader),
	})
	healthHandler := health.New(Version, map[string]health.Checker{
		"device_flow": flow,
		"csrf":        csrfManager,
	})

	srv.router.Get("/health", healthHandler.ServeHTTP)

	srv.router.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Post("/oauth/device/code", deviceHandler.ServeHTTP)
		r.Post("/oauth/token", tokenHandler.ServeHTTP)
	})

	srv.router.Get("/device", verifyHandler.HandleForm)
	srv.router.Post("/device/verify", verifyHandler.HandleSubmit)

	return srv, nil
}

// subjectFromHeader extracts the authenticated end-user identity injected
// by the fronting auth proxy. End-user authentication itself is not this
// service's job.
func subjectFromHeader(name string) func(r *http.Request) string {
	return func(r *http.Request) string {
		return r.Header.Get(name)
	}
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

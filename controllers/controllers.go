package controllers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"queryrouter/services"
)

// Controller exposes the assistant over HTTP
type Controller struct {
	assistant      *services.Assistant
	discordService *services.DiscordService
	startTime      time.Time
	logger         zerolog.Logger

	// allowModelOverride lets /api/classify callers name their own model endpoint.
	allowModelOverride bool
}

// NewController creates a new controller instance. discordService may be nil.
func NewController(assistant *services.Assistant, discordService *services.DiscordService, logger zerolog.Logger) *Controller {
	return &Controller{
		assistant:      assistant,
		discordService: discordService,
		startTime:      time.Now(),
		logger:         logger.With().Str("component", "http").Logger(),
	}
}

// AllowModelOverride permits requests to carry their own model endpoint.
// Off by default.
func (c *Controller) AllowModelOverride(allowed bool) {
	c.allowModelOverride = allowed
}

// Router registers every endpoint.
func (c *Controller) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(c.requestLogger)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/classify", c.ClassifyHandler).Methods(http.MethodPost)
	api.HandleFunc("/search", c.SearchHandler).Methods(http.MethodPost)
	api.HandleFunc("/fetch", c.FetchHandler).Methods(http.MethodPost)
	api.HandleFunc("/ask", c.AskHandler).Methods(http.MethodPost)

	router.HandleFunc("/health", c.HealthHandler).Methods(http.MethodGet)
	return router
}

// Handler wraps the router with CORS for the given origins.
func (c *Controller) Handler(allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{requestIDHeader},
	}).Handler(c.Router())
}

// StartServices starts background services (the Discord bot).
func (c *Controller) StartServices(enableDiscord bool) error {
	switch {
	case c.discordService == nil || !enableDiscord:
		c.logger.Info().Msg("Discord service disabled")
	case !c.discordService.IsEnabled():
		c.logger.Warn().Msg("Discord service requested but not configured (missing bot token)")
	default:
		if err := c.discordService.Start(); err != nil {
			c.logger.Error().Err(err).Msg("failed to start Discord service")
			return err
		}
	}
	return nil
}

// StopServices stops all background services
func (c *Controller) StopServices() error {
	if c.discordService != nil {
		return c.discordService.Stop()
	}
	return nil
}

func (c *Controller) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		c.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

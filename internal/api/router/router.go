package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/confidohealth/voice-receptionist/internal/clinic"
	"github.com/confidohealth/voice-receptionist/internal/http/handlers"
	httpmiddleware "github.com/confidohealth/voice-receptionist/internal/http/middleware"
	"github.com/confidohealth/voice-receptionist/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *handlers.ConversationHandler
	VoiceSocketHandler  *handlers.VoiceSocketHandler
	ClinicHandler       *clinic.Handler
	MetricsHandler      http.Handler
	AdminAuthSecret     string
	CORSAllowedOrigins  []string

	// TurnRateLimit caps turns per second per IP; 0 disables limiting.
	TurnRateLimit float64
	TurnRateBurst int
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.ConversationHandler != nil {
			api.Group(func(turns chi.Router) {
				if cfg.TurnRateLimit > 0 {
					turns.Use(httpmiddleware.RateLimit(cfg.TurnRateLimit, cfg.TurnRateBurst))
				}
				turns.Post("/conversation/turn", cfg.ConversationHandler.HandleTurn)
			})
		}
		if cfg.ClinicHandler != nil {
			api.Post("/appointments/book", cfg.ClinicHandler.BookAppointment)
			api.Post("/insurance/verify", cfg.ClinicHandler.VerifyInsurance)
			api.Get("/clinic/info", cfg.ClinicHandler.GetInfo)
		}
	})

	if cfg.VoiceSocketHandler != nil {
		r.Get("/ws/voice", cfg.VoiceSocketHandler.HandleVoice)
	}

	if cfg.AdminAuthSecret != "" && cfg.ConversationHandler != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/conversations/{sessionID}/transcript", cfg.ConversationHandler.HandleTranscript)
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"chatdrop/internal/config"
	chathandler "chatdrop/internal/handler/chat"
	uploadhandler "chatdrop/internal/handler/upload"
	"chatdrop/internal/middleware"
	chatservice "chatdrop/internal/service/chat"
	"chatdrop/internal/service/ingest"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg *config.Config, registry *chatservice.Registry, bus *chatservice.Bus, sink *ingest.Sink, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		log.Trace().Msg("get /")
		_, _ = w.Write([]byte("Hello World"))
	})

	chatHandler := chathandler.New(registry, bus, cfg.Chat, log.With().Str("component", "chat").Logger())
	chatHandler.RegisterRoutes(r)

	uploadHandler := uploadhandler.New(sink, cfg.Upload.MaxBytes, log.With().Str("component", "upload").Logger())
	uploadHandler.RegisterRoutes(r)

	return r
}

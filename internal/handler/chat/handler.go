// Package chat upgrades HTTP requests to websocket chat sessions.
package chat

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"chatdrop/internal/config"
	chatservice "chatdrop/internal/service/chat"
)

//go:embed chat.html
var chatPage []byte

// Handler serves the chat page and the websocket endpoint.
type Handler struct {
	registry *chatservice.Registry
	bus      *chatservice.Bus
	cfg      config.ChatConfig
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// New creates the chat handler.
func New(registry *chatservice.Registry, bus *chatservice.Bus, cfg config.ChatConfig, log zerolog.Logger) *Handler {
	return &Handler{
		registry: registry,
		bus:      bus,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: log,
	}
}

// RegisterRoutes registers the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat", h.handlePage)
	r.Get("/websocket", h.handleWebsocket)
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(chatPage)
}

// handleWebsocket upgrades the connection and runs one session to
// completion. The handler blocks for the lifetime of the connection.
func (h *Handler) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	var limiter *rate.Limiter
	if h.cfg.MessagesPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(h.cfg.MessagesPerSec), h.cfg.MessagesPerSec)
	}

	sess := &session{
		conn:     conn,
		registry: h.registry,
		bus:      h.bus,
		limiter:  limiter,
		idle:     h.cfg.IdleTimeout,
		log:      h.log.With().Str("session_id", uuid.NewString()).Logger(),
	}
	sess.run(r.Context())
}

package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	chatservice "chatdrop/internal/service/chat"
)

// writeWait bounds a single outbound frame write.
const writeWait = 10 * time.Second

// session binds one websocket connection to one registry claim and one bus
// subscription. It moves through Connecting, AwaitingName, Active and
// Closed; whichever pump stops first cancels the other, and the registry
// claim is released on every exit path.
type session struct {
	conn     *websocket.Conn
	registry *chatservice.Registry
	bus      *chatservice.Bus
	limiter  *rate.Limiter
	idle     time.Duration
	log      zerolog.Logger
}

func (s *session) run(ctx context.Context) {
	defer s.conn.Close()

	name, err := s.awaitName()
	if err != nil {
		s.log.Debug().Err(err).Msg("session ended before joining")
		return
	}
	defer s.registry.Release(name)

	sub := s.bus.Subscribe()
	defer s.bus.Publish(name + " left.")
	defer sub.Close()

	s.log.Info().Str("participant", name).Msg("participant joined")
	s.bus.Publish(name + " joined.")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		s.readPump(name)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		s.writePump(ctx, sub)
	}()
	wg.Wait()

	s.log.Info().Str("participant", name).Msg("participant left")
}

// awaitName reads frames until one carries a claimable display name. Empty
// or taken names re-prompt on the same connection; the peer retries as
// often as it wants without reconnecting.
func (s *session) awaitName() (string, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.idle)); err != nil {
		return "", err
	}

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		if mt != websocket.TextMessage {
			continue
		}

		name := strings.TrimSpace(string(data))
		if name == "" {
			if err := s.send("Name cannot be empty."); err != nil {
				return "", err
			}
			continue
		}
		if !s.registry.TryClaim(name) {
			if err := s.send("Name already taken, pick another."); err != nil {
				return "", err
			}
			continue
		}
		return name, nil
	}
}

// readPump relays inbound frames to the bus as "{name}: {content}" until
// the connection fails or closes.
func (s *session) readPump(name string) {
	_ = s.conn.SetReadDeadline(time.Now().Add(s.idle))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.idle))
	})

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Msg("read pump stopped")
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		if s.limiter != nil && !s.limiter.Allow() {
			s.log.Warn().Str("participant", name).Msg("rate limit exceeded, frame dropped")
			continue
		}
		s.bus.Publish(name + ": " + string(data))
	}
}

// writePump forwards bus messages to the connection and keeps the peer
// alive with periodic pings. Closing the connection on exit unblocks the
// read pump.
func (s *session) writePump(ctx context.Context, sub *chatservice.Subscription) {
	ticker := time.NewTicker(s.pingPeriod())
	defer ticker.Stop()
	defer s.conn.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			if err := s.send(msg); err != nil {
				s.log.Debug().Err(err).Msg("write pump stopped")
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *session) send(msg string) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

// pingPeriod must fire well inside the idle window so answered pongs keep
// extending the read deadline.
func (s *session) pingPeriod() time.Duration {
	period := s.idle * 9 / 10
	if period < time.Second {
		period = time.Second
	}
	return period
}

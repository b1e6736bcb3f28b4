package server

import (
	"context"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// writeWait bounds a single websocket frame write.
const writeWait = 10 * time.Second

// handleEvents upgrades the request to a websocket and streams the event
// feed as JSON text frames until the client goes away or the hub shuts
// down. The feed is write-only; incoming frames are discarded.
func (s *Server) handleEvents(c echo.Context) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), s.acceptOptions())
	if err != nil {
		s.log.Debug("Websocket upgrade failed.", zap.Error(err))
		return nil
	}
	defer conn.CloseNow()

	id, events := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)

	// CloseRead keeps control frames flowing and cancels the context when
	// the peer disconnects.
	ctx := conn.CloseRead(c.Request().Context())
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return nil
		case frame, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return nil
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := conn.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				s.log.Debug("Websocket write failed, dropping subscriber.",
					zap.Int("subscriber", id), zap.Error(err))
				return nil
			}
		}
	}
}

// acceptOptions maps the CORS origin list onto websocket origin checking.
// A "*" entry allows any origin, matching the REST middleware's behavior.
func (s *Server) acceptOptions() *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{}
	for _, origin := range s.cfg.AllowOrigins {
		if origin == "*" {
			return &websocket.AcceptOptions{InsecureSkipVerify: true}
		}
		pattern := strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://")
		opts.OriginPatterns = append(opts.OriginPatterns, pattern)
	}
	return opts
}

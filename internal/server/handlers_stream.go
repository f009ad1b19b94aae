package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/accounthub/internal/domain"
	"github.com/pscheid92/accounthub/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local daemon, clients are trusted processes
	},
}

func (s *Server) handleAccountStream(c echo.Context) error {
	initialState := c.QueryParam("initial_state") == "true"

	events, cancel, err := s.app.OnAccountStateChanged(c.Request().Context(), initialState)
	if err != nil {
		return err
	}
	return s.streamEvents(c, events, cancel)
}

func (s *Server) handleSessionStream(c echo.Context) error {
	initialState := c.QueryParam("initial_state") == "true"

	events, cancel, err := s.app.OnSessionStateChanged(c.Request().Context(), initialState)
	if err != nil {
		return err
	}
	return s.streamEvents(c, events, cancel)
}

// streamEvents pumps bus events to one WebSocket client until the client
// disconnects or falls behind. A client whose send buffer fills up is
// evicted - the in-process overflow policy is fatal, its remote equivalent
// is a disconnect.
func (s *Server) streamEvents(c echo.Context, events <-chan domain.AccountEvent, cancel func()) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	writer := newClientWriter(conn, s.clock)
	metrics.StreamConnectedClients.Inc()
	defer metrics.StreamConnectedClients.Dec()

	go pumpEvents(events, writer, cancel, c.Path())

	// Read pump - blocks until the connection closes. Inbound frames are
	// ignored, the streams are one-way.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	writer.stop()
	return nil
}

// streamSender is the writer surface pumpEvents needs.
type streamSender interface {
	send(msg []byte) bool
	stop()
	stopGraceful(reason string)
}

// pumpEvents forwards bus events to one client writer. On eviction the bus
// subscription is cancelled too, so the dead client cannot keep filling its
// buffer and trip the publisher's overflow error.
func pumpEvents(events <-chan domain.AccountEvent, writer streamSender, cancel func(), path string) {
	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			slog.Error("Failed to marshal stream event", "event_id", event.ID, "error", err)
			continue
		}
		if !writer.send(payload) {
			metrics.StreamSlowClientsEvicted.Inc()
			slog.Warn("Evicting slow stream client", "path", path)
			cancel()
			writer.stop()
			return
		}
	}
	writer.stopGraceful("stream closed")
}

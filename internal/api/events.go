package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/terra-clan/contest-client/internal/session"
)

const (
	eventBuffer  = 32
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleEvents streams session events to a websocket client.
// The current session, submission and leaderboard are sent first.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	subscriberID := uuid.NewString()
	slog.Info("event stream connected", "subscriber_id", subscriberID)

	events := make(chan session.Event, eventBuffer)
	unsubscribe := s.session.Subscribe(func(e session.Event) {
		select {
		case events <- e:
		default:
			slog.Debug("dropping event for slow subscriber", "subscriber_id", subscriberID, "kind", e.Kind)
		}
	})
	defer unsubscribe()

	for _, e := range s.initialEvents() {
		if err := sendEvent(conn, e); err != nil {
			return
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	// Session -> WebSocket
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-events:
				if err := sendEvent(conn, e); err != nil {
					return
				}
			}
		}
	}()

	// Reads only detect the client going away
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("websocket read error", "error", err)
				}
				return
			}
		}
	}()

	<-ctx.Done()
	conn.Close()
	wg.Wait()
	slog.Info("event stream disconnected", "subscriber_id", subscriberID)
}

func (s *Server) initialEvents() []session.Event {
	events := []session.Event{{Kind: session.EventSession, Payload: s.session.State()}}

	if view, ok := s.session.Submission(); ok {
		events = append(events, session.Event{Kind: session.EventSubmission, Payload: view})
	}
	if view, err := s.session.Leaderboard(); err == nil {
		events = append(events, session.Event{Kind: session.EventLeaderboard, Payload: view})
	}

	return events
}

func sendEvent(conn *websocket.Conn, e session.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Error("failed to marshal event", "error", err)
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("failed to send event", "error", err)
		return err
	}
	return nil
}

package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/steveyegge/gitpulse/internal/eventbus"
	"github.com/steveyegge/gitpulse/internal/events"
)

// streamBuffer is how many events a slow stream client may fall behind before
// events are dropped for it.
const streamBuffer = 64

type wsWriter interface {
	Write(ctx context.Context, msgType websocket.MessageType, data []byte) error
}

// handleStream upgrades to a websocket and forwards domain events as JSON.
// The optional "types" parameter is a comma-separated list of prefixes,
// e.g. "suggestion.,milestone.".
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	// subscribe before the upgrade so nothing published after the handshake is missed
	ch, unsubscribe := s.subscribe(splitComma(r.URL.Query().Get("types")))
	defer unsubscribe()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	// reads are never expected; CloseRead cancels ctx when the client goes away
	ctx := conn.CloseRead(r.Context())
	if err := streamEvents(ctx, ch, conn); err != nil && ctx.Err() == nil {
		s.Logger.Warn("event stream ended", slog.String("error", err.Error()))
		_ = conn.Close(websocket.StatusInternalError, "stream error")
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "done")
}

// subscribe attaches a non-blocking bus handler feeding a buffered channel.
// A client that falls behind loses events rather than stalling the pipeline.
func (s *Server) subscribe(prefixes []string) (<-chan events.DomainEvent, func()) {
	ch := make(chan events.DomainEvent, streamBuffer)
	sub := s.Pipeline.Attach(eventbus.NewHandler("stream-"+uuid.NewString(), func(_ context.Context, de events.DomainEvent) error {
		if !wanted(prefixes, de.EventType()) {
			return nil
		}
		select {
		case ch <- de:
		default:
			s.Logger.Debug("stream client behind, dropping event", slog.String("event_type", de.EventType()))
		}
		return nil
	}))
	return ch, sub.Unsubscribe
}

func streamEvents(ctx context.Context, ch <-chan events.DomainEvent, writer wsWriter) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case de := <-ch:
			payload, err := json.Marshal(de)
			if err != nil {
				return err
			}
			if err := writer.Write(ctx, websocket.MessageText, payload); err != nil {
				return err
			}
		}
	}
}

func wanted(prefixes []string, eventType string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(eventType, p) {
			return true
		}
	}
	return false
}

func splitComma(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/blackscorpionster/rubits/metrics"
	"github.com/blackscorpionster/rubits/pkg/winfeed"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	EventTypeConnected = "connected"
	EventTypeWin       = "win"
	EventTypeHeartbeat = "heartbeat"
)

// FeedEvent is one message on the win feed socket
type FeedEvent struct {
	Type      string        `json:"type"`
	Timestamp int64         `json:"timestamp"`
	Win       *winfeed.Win  `json:"win,omitempty"`
	Recent    []winfeed.Win `json:"recent,omitempty"`
}

// WinFeedHandler streams validated wins to websocket listeners
type WinFeedHandler struct {
	feed            *winfeed.Feed
	metrics         *metrics.Metrics
	logger          zerolog.Logger
	heartbeatPeriod time.Duration
	pingPeriod      time.Duration
	writeDeadline   time.Duration
	upgrader        websocket.Upgrader
}

// NewWinFeedHandler creates a win feed handler. m may be nil.
func NewWinFeedHandler(feed *winfeed.Feed, m *metrics.Metrics, logger zerolog.Logger) *WinFeedHandler {
	return &WinFeedHandler{
		feed:            feed,
		metrics:         m,
		logger:          logger.With().Str("handler", "winfeed").Logger(),
		heartbeatPeriod: 30 * time.Second,
		pingPeriod:      30 * time.Second,
		writeDeadline:   10 * time.Second,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Stream godoc
// @Summary      Live win feed
// @Description  Websocket stream of validated wins. Sends a connected event with recent wins, then one win event per validated win and periodic heartbeats.
// @Tags         feed
// @Success      101
// @Router       /ws/wins [get]
func (h *WinFeedHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade to WebSocket")
		return
	}
	defer conn.Close() //nolint:errcheck

	if h.metrics != nil {
		defer h.metrics.FeedListenerConnected()()
	}

	done := make(chan struct{})

	// Detect connection close; the feed is write-only so any read ends it
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(10 * time.Minute)) //nolint:errcheck
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Warn().Err(err).Msg("WebSocket connection closed unexpectedly")
				} else {
					h.logger.Debug().Err(err).Msg("WebSocket closed")
				}
				return
			}
		}
	}()

	pingTicker := time.NewTicker(h.pingPeriod)
	go func() {
		defer pingTicker.Stop()
		for {
			select {
			case <-done:
				return
			case <-pingTicker.C:
				deadline := time.Now().Add(5 * time.Second)
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
					h.logger.Debug().Err(err).Msg("Failed to send ping")
					return
				}
			}
		}
	}()

	sender := &wsSender{
		conn:          conn,
		done:          done,
		logger:        h.logger,
		writeDeadline: h.writeDeadline,
	}
	h.stream(c.Request.Context(), done, sender)
}

func (h *WinFeedHandler) stream(ctx context.Context, done <-chan struct{}, sender messageSender) {
	wins, cancel := h.feed.Listen(ctx)
	defer cancel()

	if err := sender.Send(&FeedEvent{
		Type:      EventTypeConnected,
		Timestamp: time.Now().Unix(),
		Recent:    h.feed.Recent(),
	}); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to send connected event, stopping stream")
		return
	}

	heartbeat := time.NewTicker(h.heartbeatPeriod)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			h.logger.Debug().Msg("WebSocket connection closed, stopping stream")
			return
		case <-heartbeat.C:
			if err := sender.Send(&FeedEvent{Type: EventTypeHeartbeat, Timestamp: time.Now().Unix()}); err != nil {
				h.logger.Warn().Err(err).Msg("Failed to send heartbeat, stopping stream")
				return
			}
		case win, ok := <-wins:
			if !ok {
				return
			}
			if err := sender.Send(&FeedEvent{Type: EventTypeWin, Timestamp: time.Now().Unix(), Win: &win}); err != nil {
				h.logger.Warn().Err(err).Str("ticket_id", win.TicketID).Msg("Failed to send win, stopping stream")
				return
			}
		}
	}
}

type messageSender interface {
	Send(*FeedEvent) error
}

// wsSender writes feed events to one websocket connection
type wsSender struct {
	conn          *websocket.Conn
	done          <-chan struct{}
	logger        zerolog.Logger
	writeDeadline time.Duration
}

func (s *wsSender) Send(event *FeedEvent) error {
	select {
	case <-s.done:
		return io.EOF
	default:
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeDeadline)); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to set write deadline")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", event.Type).Msg("Failed to marshal event")
		return err
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		if stderrors.Is(err, io.EOF) || stderrors.Is(err, io.ErrUnexpectedEOF) {
			s.logger.Warn().Err(err).Str("event_type", event.Type).Msg("WebSocket write failed: connection closed")
		} else {
			s.logger.Warn().Err(err).Str("event_type", event.Type).Int("payload_size", len(payload)).Msg("WebSocket write failed")
		}
		return err
	}
	return nil
}

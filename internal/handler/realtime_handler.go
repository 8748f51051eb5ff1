package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ibaf-upi/ibaf-api/internal/models"
	"github.com/ibaf-upi/ibaf-api/pkg/middleware/cors"
	"github.com/ibaf-upi/ibaf-api/pkg/realtime"
)

const (
	defaultPingInterval = 25 * time.Second
	defaultWriteTimeout = 10 * time.Second
	outboxSize          = 64
)

type connectionGauge interface {
	RealtimeConnected(delta int64)
}

// RealtimeConfig tunes websocket keepalive.
type RealtimeConfig struct {
	AllowedOrigins []string
	PingInterval   time.Duration
	WriteTimeout   time.Duration
}

// RealtimeHandler streams change events to signed-in clients over websockets.
type RealtimeHandler struct {
	subscriber   realtime.Subscriber
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeTimeout time.Duration
	gauge        connectionGauge
	logger       *zap.Logger
}

// NewRealtimeHandler creates a realtime handler.
func NewRealtimeHandler(subscriber realtime.Subscriber, cfg RealtimeConfig, gauge connectionGauge, logger *zap.Logger) *RealtimeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	origins := cors.OriginSet(cfg.AllowedOrigins)
	return &RealtimeHandler{
		subscriber: subscriber,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || cors.Allowed(origins, origin)
			},
		},
		pingInterval: cfg.PingInterval,
		writeTimeout: cfg.WriteTimeout,
		gauge:        gauge,
		logger:       logger,
	}
}

// SessionTopics lists the topics a session may follow. Admins also follow
// the user and message collections.
func SessionTopics(session *models.Session) []string {
	id := session.UserID()
	topics := []string{
		realtime.TopicUser(id),
		realtime.TopicWorkoutLogs(id),
		realtime.TopicUserMessages(id),
		realtime.TopicAnnouncements,
	}
	if session.IsAdmin() {
		topics = append(topics, realtime.TopicUsers, realtime.TopicMessages)
	}
	return topics
}

// Stream godoc
// @Summary Subscribe to change events
// @Description Websocket stream of JSON events {topic, type, id, at}. Pass the access token as access_token.
// @Tags Realtime
// @Param access_token query string true "Access token"
// @Success 101
// @Router /ws [get]
func (h *RealtimeHandler) Stream(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	outbox := make(chan realtime.Event, outboxSize)
	done := make(chan struct{})
	topics := SessionTopics(session)
	cancels := make([]func(), 0, len(topics))
	for _, topic := range topics {
		cancels = append(cancels, h.subscriber.Subscribe(topic, func(evt realtime.Event) {
			select {
			case outbox <- evt:
			case <-done:
			default:
				h.logger.Warn("realtime client too slow, dropping event",
					zap.String("user_id", session.UserID()), zap.String("topic", evt.Topic))
			}
		}))
	}
	if h.gauge != nil {
		h.gauge.RealtimeConnected(1)
	}

	defer func() {
		for _, cancel := range cancels {
			cancel()
		}
		close(done)
		_ = conn.Close()
		if h.gauge != nil {
			h.gauge.RealtimeConnected(-1)
		}
	}()

	closed := make(chan struct{})
	go h.readLoop(conn, closed)
	h.writeLoop(conn, outbox, closed)
}

// readLoop drains client frames so control messages are processed. It closes
// closed once the client goes away.
func (h *RealtimeHandler) readLoop(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(h.writeTimeout))
			return
		}
	}
}

func (h *RealtimeHandler) writeLoop(conn *websocket.Conn, outbox <-chan realtime.Event, closed <-chan struct{}) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case evt := <-outbox:
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout)); err != nil {
				return
			}
		}
	}
}

package ws

import (
	"net/http"
	"time"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/events"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/registry"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	eventBuffer    = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced by the HTTP middleware
	},
}

// ClientMessage is a frame sent by the browser
type ClientMessage struct {
	Type string `json:"type"`
}

// Handler manages WebSocket connections
type Handler struct {
	bus     *events.Bus
	store   *registry.Store
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(bus *events.Bus, store *registry.Store, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		bus:     bus,
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

// HandleConnection upgrades the request and streams events until either
// side closes
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	filter := c.Query("module")
	stream, unsubscribe := h.bus.Subscribe(eventBuffer)
	defer unsubscribe()

	// the reader owns no writes; replies go through the writer loop
	pings := make(chan struct{}, 1)
	closed := make(chan struct{})
	go h.readLoop(conn, pings, closed)

	var revision uint64
	if h.store != nil {
		revision = h.store.Revision()
	}
	if err := h.send(conn, gin.H{
		"type":      "system",
		"message":   "Connected to module event stream",
		"revision":  revision,
		"timestamp": time.Now().Unix(),
	}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return

		case <-c.Request.Context().Done():
			return

		case evt, ok := <-stream:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if filter != "" && evt.ModuleID != filter {
				continue
			}
			if err := h.sendEvent(conn, evt); err != nil {
				return
			}

		case <-pings:
			if err := h.send(conn, gin.H{"type": "pong", "timestamp": time.Now().Unix()}); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) readLoop(conn *websocket.Conn, pings chan<- struct{}, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg ClientMessage
		if err := sonic.Unmarshal(data, &msg); err != nil || msg.Type != "ping" {
			// unknown frames are ignored; the stream is one-way
			continue
		}
		h.recordMessage("in", msg.Type)
		select {
		case pings <- struct{}{}:
		default:
		}
	}
}

func (h *Handler) sendEvent(conn *websocket.Conn, evt types.Event) error {
	data, err := sonic.Marshal(evt)
	if err != nil {
		h.logger.Warn("Failed to encode event", zap.Error(err))
		return nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	h.recordMessage("out", string(evt.Type))
	return nil
}

func (h *Handler) send(conn *websocket.Conn, data interface{}) error {
	encoded, err := sonic.Marshal(data)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, encoded); err != nil {
		return err
	}
	if m, ok := data.(gin.H); ok {
		if t, ok := m["type"].(string); ok {
			h.recordMessage("out", t)
		}
	}
	return nil
}

func (h *Handler) recordMessage(direction, msgType string) {
	if h.metrics != nil {
		h.metrics.RecordWSMessage(direction, msgType)
	}
}

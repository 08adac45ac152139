package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/widgetkit/internal/domain/widget"
	"github.com/GriffinCanCode/widgetkit/internal/infrastructure/logging"
	"github.com/GriffinCanCode/widgetkit/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/widgetkit/internal/shared/id"
	"github.com/GriffinCanCode/widgetkit/internal/shared/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 << 10
)

// ClientMessage is a message sent by the client
type ClientMessage struct {
	Type     string       `json:"type"`
	Event    *types.Event `json:"event,omitempty"`
	Size     *types.Size  `json:"size,omitempty"`
	Selector string       `json:"selector,omitempty"`
	Phase    string       `json:"phase,omitempty"`
}

// Handler streams widget updates to WebSocket clients
type Handler struct {
	manager  *widget.Manager
	metrics  *monitoring.Metrics
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a stream handler. metrics may be nil.
func NewHandler(manager *widget.Manager, metrics *monitoring.Metrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		manager: manager,
		metrics: metrics,
		logger:  logger.Named("ws"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// conn serializes writes; gorilla allows one concurrent writer
type conn struct {
	ws      *websocket.Conn
	mu      sync.Mutex
	metrics *monitoring.Metrics
}

func (c *conn) send(msgType string, v interface{}) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.RecordWSMessage("out", msgType)
	}
	return nil
}

func (c *conn) sendError(msg string) error {
	return c.send("error", gin.H{"type": "error", "message": msg})
}

// HandleStream upgrades the request and streams the widget named by :id
func (h *Handler) HandleStream(c *gin.Context) {
	mid, err := id.ParseMountID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mount, ok := h.manager.Get(mid)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": widget.ErrNotFound.Error()})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()
	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	// Subscribe before the snapshot so no update falls between them
	box, unsubscribe := mount.Subscribe()
	defer unsubscribe()

	cn := &conn{ws: ws, metrics: h.metrics}
	if err := cn.send("snapshot", snapshot(mount)); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		defer cancel()
		h.readLoop(cn, mid)
	}()
	go h.pingLoop(ctx, cn)

	for {
		u, ok := box.Get(ctx)
		if !ok {
			break
		}
		if err := cn.send(string(u.Type), u); err != nil {
			h.logger.Debug("WebSocket write failed", zap.String("id", mid.String()), zap.Error(err))
			return
		}
	}

	cn.mu.Lock()
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "widget closed"),
		time.Now().Add(writeWait))
	cn.mu.Unlock()
}

func (h *Handler) readLoop(cn *conn, mid id.MountID) {
	ws := cn.ws
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("WebSocket read error", zap.String("id", mid.String()), zap.Error(err))
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		var msg ClientMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			_ = cn.sendError("malformed message")
			continue
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", msg.Type)
		}
		if err := h.handle(cn, mid, msg); err != nil {
			_ = cn.sendError(err.Error())
		}
	}
}

func (h *Handler) handle(cn *conn, mid id.MountID, msg ClientMessage) error {
	switch msg.Type {
	case "ping":
		return cn.send("pong", gin.H{"type": "pong"})
	case "event":
		if msg.Event == nil || msg.Event.Type == "" {
			return errMessage("event requires a type")
		}
		h.manager.Publish(*msg.Event)
		return nil
	case "resize":
		if msg.Size == nil {
			return errMessage("resize requires a size")
		}
		_, err := h.manager.Resize(mid, *msg.Size)
		return err
	case "transition":
		return h.transition(mid, msg.Selector, msg.Phase)
	default:
		return errMessage("unknown message type")
	}
}

func (h *Handler) transition(mid id.MountID, selector, phase string) error {
	mount, ok := h.manager.Get(mid)
	if !ok {
		return widget.ErrNotFound
	}
	ctrl := mount.Controller()
	if ctrl == nil {
		return widget.ErrNotActive
	}
	s := ctrl.Surface()
	switch phase {
	case "run":
		s.TransitionRun(selector)
	case "end":
		s.TransitionEnd(selector)
	case "cancel":
		s.TransitionCancel(selector)
	default:
		return errMessage("transition phase must be run, end or cancel")
	}
	return nil
}

func (h *Handler) pingLoop(ctx context.Context, cn *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := cn.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

type errMessage string

func (e errMessage) Error() string { return string(e) }

// snapshot describes the widget as it is now
func snapshot(mount *widget.Mount) gin.H {
	out := gin.H{"type": "snapshot"}
	ctrl := mount.Controller()
	if ctrl == nil {
		return out
	}
	if markup, err := ctrl.Surface().HTML(); err == nil {
		out["html"] = markup
	}
	out["style"] = ctrl.Surface().Style()
	out["state"] = ctrl.State()
	return out
}

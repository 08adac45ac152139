package http

import (
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/widgetkit/internal/domain/widget"
	"github.com/GriffinCanCode/widgetkit/internal/infrastructure/logging"
	"github.com/GriffinCanCode/widgetkit/internal/shared/types"
)

const version = "1.0.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	manager *widget.Manager
	metrics *HandlerMetrics
	logger  *logging.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(manager *widget.Manager, metrics *HandlerMetrics, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{manager: manager, metrics: metrics, logger: logger}
}

// WidgetView is a mounted widget with its rendered output
type WidgetView struct {
	widget.Info
	HTML            string      `json:"html"`
	Style           string      `json:"style"`
	State           interface{} `json:"state"`
	PendingRemovals int         `json:"pending_removals"`
}

// ResizeRequest is the body of a resize call
type ResizeRequest struct {
	Width  float64 `json:"width" binding:"gte=0"`
	Height float64 `json:"height" binding:"gte=0"`
}

// EventRequest is the body of a publish call
type EventRequest struct {
	ID        string      `json:"id"`
	Type      string      `json:"type" binding:"required"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// TransitionRequest reports an exit transition phase for matching
// elements
type TransitionRequest struct {
	Selector string `json:"selector" binding:"required"`
	Phase    string `json:"phase" binding:"required,oneof=run end cancel"`
}

// Root reports the service identity
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "widgetkit",
		"version": version,
	})
}

// Health reports liveness and widget counts
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"widgets": h.manager.Stats(),
	})
}

// ListWidgets lists every mounted widget
func (h *Handlers) ListWidgets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"widgets": h.manager.List(),
		"stats":   h.manager.Stats(),
	})
}

// MountWidget loads a bundle and starts it in a new container
func (h *Handlers) MountWidget(c *gin.Context) {
	done := h.metrics.Track("mount")

	var req widget.MountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validateBundlePath(req.Path); err != nil {
		abortWithError(c, err)
		return
	}

	info, err := h.manager.Mount(c.Request.Context(), req)
	done(err)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

// GetWidget returns a widget's info and rendered output. With
// ?format=html the whole surface document is returned instead.
func (h *Handlers) GetWidget(c *gin.Context) {
	mid, err := mountID(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	info, ok := h.manager.Info(mid)
	mount, found := h.manager.Get(mid)
	if !ok || !found {
		abortWithError(c, widget.ErrNotFound)
		return
	}

	view := WidgetView{Info: info}
	ctrl := mount.Controller()
	if ctrl != nil {
		s := ctrl.Surface()
		if c.Query("format") == "html" {
			doc, err := s.Document()
			if err != nil {
				abortWithError(c, err)
				return
			}
			c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc))
			return
		}
		if view.HTML, err = s.HTML(); err != nil {
			abortWithError(c, err)
			return
		}
		view.Style = s.Style()
		view.State = ctrl.State()
		view.PendingRemovals = s.Pending()
	}
	c.JSON(http.StatusOK, view)
}

// QueryWidget matches ?selector= (CSS) or ?xpath= against the widget
// document and returns the outer markup of each match.
func (h *Handlers) QueryWidget(c *gin.Context) {
	ctrl, ok := h.activeController(c)
	if !ok {
		return
	}
	s := ctrl.Surface()

	if expr := c.Query("xpath"); expr != "" {
		matches, err := s.XPath(expr)
		if err != nil {
			abortWithError(c, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"matches": matches})
		return
	}

	selector := c.Query("selector")
	if selector == "" {
		abortWithError(c, fmt.Errorf("%w: selector or xpath is required", errBadRequest))
		return
	}
	matches := []string{}
	s.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		if markup, err := goquery.OuterHtml(sel); err == nil {
			matches = append(matches, markup)
		}
	})
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

// ResizeWidget changes a widget's container size
func (h *Handlers) ResizeWidget(c *gin.Context) {
	done := h.metrics.Track("resize")
	mid, err := mountID(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	var req ResizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	size := types.Size{Width: req.Width, Height: req.Height}
	changed, err := h.manager.Resize(mid, size)
	done(err)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed, "size": size})
}

// PersistWidget takes a persist snapshot now
func (h *Handlers) PersistWidget(c *gin.Context) {
	done := h.metrics.Track("persist")
	ctrl, ok := h.activeController(c)
	if !ok {
		return
	}
	state, changed, err := ctrl.Persist(c.Request.Context())
	done(err)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state, "changed": changed})
}

// TransitionWidget reports exit transition progress for elements that
// are being removed
func (h *Handlers) TransitionWidget(c *gin.Context) {
	ctrl, ok := h.activeController(c)
	if !ok {
		return
	}
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s := ctrl.Surface()
	var matched int
	switch req.Phase {
	case "run":
		matched = s.TransitionRun(req.Selector)
	case "end":
		matched = s.TransitionEnd(req.Selector)
	case "cancel":
		matched = s.TransitionCancel(req.Selector)
	}
	c.JSON(http.StatusOK, gin.H{"matched": matched, "pending_removals": s.Pending()})
}

// CloseWidget unmounts a widget
func (h *Handlers) CloseWidget(c *gin.Context) {
	done := h.metrics.Track("close")
	mid, err := mountID(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	closed := h.manager.Close(mid)
	if !closed {
		done(widget.ErrNotFound)
		abortWithError(c, widget.ErrNotFound)
		return
	}
	done(nil)
	c.JSON(http.StatusOK, gin.H{"success": true, "id": mid})
}

// PublishEvent delivers an event to every mounted widget
func (h *Handlers) PublishEvent(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validateEventType(req.Type); err != nil {
		abortWithError(c, err)
		return
	}

	event := h.manager.Publish(types.Event{
		ID:        req.ID,
		Type:      req.Type,
		Timestamp: req.Timestamp,
		Data:      req.Data,
	})
	c.JSON(http.StatusAccepted, event)
}

// activeController resolves :id to a running controller, writing the
// error response when there is none
func (h *Handlers) activeController(c *gin.Context) (*widget.Controller, bool) {
	mid, err := mountID(c)
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	mount, ok := h.manager.Get(mid)
	if !ok {
		abortWithError(c, widget.ErrNotFound)
		return nil, false
	}
	ctrl := mount.Controller()
	if ctrl == nil || ctrl.Phase() != widget.PhaseActive {
		abortWithError(c, widget.ErrNotActive)
		return nil, false
	}
	return ctrl, true
}

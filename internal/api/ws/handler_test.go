package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/widgetkit/internal/domain/bus"
	"github.com/GriffinCanCode/widgetkit/internal/domain/widget"
	"github.com/GriffinCanCode/widgetkit/internal/providers/bundle"
	"github.com/GriffinCanCode/widgetkit/internal/providers/storage"
	"github.com/GriffinCanCode/widgetkit/internal/providers/template"
	"github.com/GriffinCanCode/widgetkit/internal/shared/id"
	"github.com/GriffinCanCode/widgetkit/internal/shared/types"
)

const counterJS = `
EKG.registerWidget({
	name: 'Counter',
	initialState: { counter: 0 },
	handleEvent(event, state) {
		if (event.type === 'ekg.chat.sent') return { counter: state.counter + 1 }
		return state
	},
})`

type staticLoader struct{ b *bundle.Bundle }

func (l staticLoader) Load(_ context.Context, _ string, settings types.Settings) (*bundle.Bundle, error) {
	return l.b.WithSettings(settings), nil
}

func newStreamServer(t *testing.T) (*widget.Manager, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	host := &widget.Host{
		Engine: template.NewEngine(),
		Bus:    bus.New(nil),
		Store:  storage.NewMemory(),
	}
	host.Config = widget.DefaultConfig()
	host.Config.PersistInterval = time.Hour
	manager := widget.NewManager(host, staticLoader{&bundle.Bundle{
		Manifest: bundle.Manifest{Name: "counter"},
		Template: `<span class="count">{{.counter}}</span>`,
		JS:       counterJS,
	}})

	router := gin.New()
	router.GET("/widgets/:id/stream", NewHandler(manager, nil, nil).HandleStream)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		manager.Shutdown()
		host.Bus.Dispose()
	})
	return manager, srv
}

func mountCounter(t *testing.T, m *widget.Manager) id.MountID {
	t.Helper()
	info, err := m.Mount(context.Background(), widget.MountRequest{Path: "counter", Size: types.Size{Width: 100, Height: 50}})
	require.NoError(t, err)

	// Persist queues behind the init message, so the first render is done
	// once it returns
	mount, _ := m.Get(info.ID)
	_, _, err = mount.Controller().Persist(context.Background())
	require.NoError(t, err)
	return info.ID
}

func dial(t *testing.T, srv *httptest.Server, mid id.MountID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/widgets/" + mid.String() + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

// readUntil reads messages until one of type want arrives
func readUntil(t *testing.T, conn *websocket.Conn, want string) map[string]interface{} {
	t.Helper()
	for {
		var msg map[string]interface{}
		require.NoError(t, conn.ReadJSON(&msg))
		if msg["type"] == want {
			return msg
		}
	}
}

func TestStream(t *testing.T) {
	m, srv := newStreamServer(t)
	mid := mountCounter(t, m)
	conn := dial(t, srv, mid)

	snap := readUntil(t, conn, "snapshot")
	assert.Equal(t, `<div><span class="count">0</span></div>`, snap["html"])
	assert.Equal(t, map[string]interface{}{"counter": float64(0)}, snap["state"])

	require.NoError(t, conn.WriteJSON(ClientMessage{
		Type:  "event",
		Event: &types.Event{Type: "ekg.chat.sent", Data: map[string]interface{}{"message": []interface{}{}}},
	}))
	state := readUntil(t, conn, "state")
	assert.Equal(t, map[string]interface{}{"counter": float64(1)}, state["state"])
	patch := readUntil(t, conn, "patch")
	assert.NotEmpty(t, patch["ops"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "ping"}))
	readUntil(t, conn, "pong")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "resize", Size: &types.Size{Width: 10, Height: 10}}))
	assert.Eventually(t, func() bool {
		info, _ := m.Info(mid)
		return info.Size == types.Size{Width: 10, Height: 10}
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "bogus"}))
	errMsg := readUntil(t, conn, "error")
	assert.Equal(t, "unknown message type", errMsg["message"])

	require.True(t, m.Close(mid))
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
			break
		}
	}
}

func TestStreamRejectsUnknownWidgets(t *testing.T) {
	_, srv := newStreamServer(t)

	tests := []struct {
		name string
		path string
		code int
	}{
		{"malformed id", "/widgets/nope/stream", http.StatusBadRequest},
		{"unknown id", "/widgets/" + id.NewMountID().String() + "/stream", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.code, resp.StatusCode)
		})
	}
}

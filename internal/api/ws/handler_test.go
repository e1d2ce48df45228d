package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/events"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/registry"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, bus *events.Bus, query string) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/events", NewHandler(bus, registry.NewStore(nil), monitoring.NewMetrics(), nil).HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// greeting arrives after the subscription is registered
	greeting := read(t, conn)
	require.Equal(t, "system", greeting["type"])
	return conn
}

func read(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestStreamsEvents(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()
	conn := dial(t, bus, "")

	bus.Publish(types.Event{
		Type:     types.EventTransition,
		ModuleID: "inventory",
		From:     types.StateValidated,
		State:    types.StateActive,
	})

	msg := read(t, conn)
	assert.Equal(t, "transition", msg["type"])
	assert.Equal(t, "inventory", msg["module_id"])
	assert.Equal(t, "active", msg["state"])
	assert.NotEmpty(t, msg["at"])
}

func TestModuleFilter(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()
	conn := dial(t, bus, "?module=reports")

	bus.Publish(types.Event{Type: types.EventImported, ModuleID: "inventory", State: types.StateValidated})
	bus.Publish(types.Event{Type: types.EventImported, ModuleID: "reports", State: types.StateValidated})

	msg := read(t, conn)
	assert.Equal(t, "reports", msg["module_id"])
}

func TestPingPong(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()
	conn := dial(t, bus, "")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "ping"}))
	msg := read(t, conn)
	assert.Equal(t, "pong", msg["type"])
}

func TestBusCloseEndsStream(t *testing.T) {
	bus := events.NewBus(nil)
	conn := dial(t, bus, "")

	bus.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
}

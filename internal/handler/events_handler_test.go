package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat-go/internal/notify"
)

func TestEventsHandler_StreamsBroadcasts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := notify.NewHub(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := gin.New()
	r.GET("/ws", NewEventsHandler(ctx, hub).Handle)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(notify.EventDocumentDeleted, map[string]string{"id": "d1"})
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"documentDeleted","data":{"id":"d1"}}`, string(msg))
}

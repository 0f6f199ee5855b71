package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"docchat-go/internal/notify"
	"docchat-go/pkg/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// EventsHandler 把文档状态事件推送给 WebSocket 客户端。
type EventsHandler struct {
	hub *notify.Hub
	// ctx 结束时关闭所有连接，通常是服务的生命周期
	ctx context.Context
}

// NewEventsHandler 创建一个新的 EventsHandler。
func NewEventsHandler(ctx context.Context, hub *notify.Hub) *EventsHandler {
	return &EventsHandler{hub: hub, ctx: ctx}
}

// Handle 升级连接并持续推送事件，直到客户端断开。
func (h *EventsHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("WebSocket 升级失败: %v", err)
		return
	}
	log.Infof("WebSocket 客户端已连接: %s", c.ClientIP())
	h.hub.ServeConn(h.ctx, conn)
	log.Infof("WebSocket 客户端已断开: %s", c.ClientIP())
}

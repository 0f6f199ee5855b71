package notify

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"docchat-go/pkg/log"
)

const (
	defaultClientBuffer = 64
	writeWait           = 10 * time.Second
	pongWait            = 60 * time.Second
	pingPeriod          = pongWait * 9 / 10
)

// Hub 在本进程内把事件扇出给所有 WebSocket 订阅者。
// 每个订阅者有独立的缓冲队列，队列满时丢弃该订阅者的这条事件。
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
	buffer  int
}

// NewHub 创建 Hub，buffer 是每个订阅者的队列长度。
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultClientBuffer
	}
	return &Hub{clients: make(map[chan []byte]struct{}), buffer: buffer}
}

// Broadcast 实现 Notifier。
func (h *Hub) Broadcast(event string, payload any) {
	if frame, ok := encodeFrame(event, payload); ok {
		h.publish(frame)
	}
}

// publish 非阻塞地把已编码的帧投递给每个订阅者。
func (h *Hub) publish(frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- frame:
		default:
			log.Warnf("[Notify] 订阅者队列已满，丢弃一条事件")
		}
	}
}

// Subscribe 注册一个订阅者，返回其消息通道和取消函数。取消后通道会被关闭。
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, h.buffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, ch)
			close(ch)
			h.mu.Unlock()
		})
	}
}

// ClientCount 返回当前订阅者数量。
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeConn 把事件写入一个已升级的 WebSocket 连接，直到连接断开或 ctx 结束。
// 客户端发来的消息会被忽略。
func (h *Hub) ServeConn(ctx context.Context, conn *websocket.Conn) {
	frames, cancel := h.Subscribe()
	defer cancel()
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		case <-closed:
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Warnf("[Notify] 写入 WebSocket 失败: %v", err)
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

// Package notify 负责把文档状态变化推送给订阅者。
// 推送是尽力而为的：没有订阅者或订阅者过慢时，事件直接丢弃，不会阻塞调用方。
package notify

import (
	"encoding/json"

	"docchat-go/pkg/log"
)

// 事件名称
const (
	EventDocumentCreated     = "documentCreated"
	EventDocumentUpdate      = "documentUpdate"
	EventDocumentDeleted     = "documentDeleted"
	EventAllDocumentsDeleted = "allDocumentsDeleted"
)

// Frame 是推送给客户端的一帧消息。
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Notifier 广播一个事件，必须立即返回。
type Notifier interface {
	Broadcast(event string, payload any)
}

// Nop 丢弃所有事件。
type Nop struct{}

func (Nop) Broadcast(string, any) {}

func encodeFrame(event string, payload any) ([]byte, bool) {
	b, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		log.Errorw("[Notify] 事件序列化失败", "event", event, "error", err)
		return nil, false
	}
	return b, true
}

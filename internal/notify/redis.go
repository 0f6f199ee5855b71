package notify

import (
	"context"
	"sync"

	"github.com/go-redis/redis/v8"

	"docchat-go/pkg/log"
)

// RedisPublisher 把事件发布到 Redis 频道，供多个实例的 Hub 订阅转发。
// 发布在后台协程中进行，Broadcast 只负责入队。
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	queue   chan []byte
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewRedisPublisher 创建发布者并启动后台发布协程。
func NewRedisPublisher(rdb *redis.Client, channel string, buffer int) *RedisPublisher {
	if buffer <= 0 {
		buffer = defaultClientBuffer
	}
	p := &RedisPublisher{rdb: rdb, channel: channel, queue: make(chan []byte, buffer)}
	p.wg.Add(1)
	go p.loop()
	return p
}

func (p *RedisPublisher) loop() {
	defer p.wg.Done()
	for frame := range p.queue {
		if err := p.rdb.Publish(context.Background(), p.channel, frame).Err(); err != nil {
			log.Warnf("[Notify] 发布事件到 Redis 失败: %v", err)
		}
	}
}

// Broadcast 实现 Notifier。队列满时丢弃事件。
func (p *RedisPublisher) Broadcast(event string, payload any) {
	frame, ok := encodeFrame(event, payload)
	if !ok {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- frame:
	default:
		log.Warnf("[Notify] Redis 发布队列已满，丢弃事件 %s", event)
	}
}

// Close 停止接收新事件，并等待队列中的事件发布完毕。之后的 Broadcast 被忽略。
func (p *RedisPublisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// RelayFromRedis 订阅 Redis 频道并把收到的帧转交给本地 Hub，直到 ctx 结束。
func RelayFromRedis(ctx context.Context, rdb *redis.Client, channel string, hub *Hub) error {
	sub := rdb.Subscribe(ctx, channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	log.Infof("[Notify] 已订阅 Redis 频道 %s", channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			hub.publish([]byte(msg.Payload))
		}
	}
}

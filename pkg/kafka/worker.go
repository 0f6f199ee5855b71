package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"docchat-go/internal/errs"
	"docchat-go/pkg/log"
	"docchat-go/pkg/tasks"
)

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.IngestionTask) error
}

// AttemptCounter 记录每个文档的失败次数。
type AttemptCounter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

// RedisAttempts 使用 Redis INCR 计数，键在 ttl 后过期。
type RedisAttempts struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisAttempts(rdb *redis.Client) *RedisAttempts {
	return &RedisAttempts{rdb: rdb, ttl: 24 * time.Hour}
}

func (a *RedisAttempts) Incr(ctx context.Context, key string) (int64, error) {
	n, err := a.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = a.rdb.Expire(ctx, key, a.ttl).Err()
	return n, nil
}

func (a *RedisAttempts) Reset(ctx context.Context, key string) error {
	return a.rdb.Del(ctx, key).Err()
}

// Outcome 是一次任务处理的结果。
type Outcome int

const (
	OutcomeDone Outcome = iota
	OutcomeRequeued
	OutcomeGaveUp
	OutcomeInterrupted
)

// Worker 处理单个任务，并在失败时决定是否重新入队。
type Worker struct {
	processor   TaskProcessor
	attempts    AttemptCounter
	maxAttempts int64
	requeue     func(ctx context.Context, task tasks.IngestionTask) error
}

// NewWorker 创建 Worker。requeue 为 nil 时使用全局生产者重新投递。
func NewWorker(processor TaskProcessor, attempts AttemptCounter, maxAttempts int, requeue func(context.Context, tasks.IngestionTask) error) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if requeue == nil {
		requeue = ProduceIngestionTask
	}
	return &Worker{processor: processor, attempts: attempts, maxAttempts: int64(maxAttempts), requeue: requeue}
}

func attemptsKey(documentID string) string {
	return fmt.Sprintf("ingest:attempts:%s", documentID)
}

// Handle 同步处理任务。
func (w *Worker) Handle(ctx context.Context, task tasks.IngestionTask) Outcome {
	log.Infof("开始处理摄取任务: DocumentID=%s, FileName=%s", task.DocumentID, task.FileName)
	key := attemptsKey(task.DocumentID)

	err := w.processor.Process(ctx, task)
	if err == nil {
		log.Infof("摄取任务处理成功: DocumentID=%s", task.DocumentID)
		_ = w.attempts.Reset(context.Background(), key)
		return OutcomeDone
	}
	if ctx.Err() != nil {
		log.Warnf("摄取任务被中断: DocumentID=%s", task.DocumentID)
		return OutcomeInterrupted
	}
	log.Errorw("处理摄取任务失败", "document_id", task.DocumentID, "error", err)

	// 输入本身有问题时重试没有意义
	if errors.Is(err, errs.ErrInvalidInput) {
		_ = w.attempts.Reset(context.Background(), key)
		return OutcomeGaveUp
	}

	attempts, incErr := w.attempts.Incr(ctx, key)
	if incErr != nil {
		// 无法计数时不再重试，避免无限重新投递
		log.Errorf("记录失败次数失败，终止重试: DocumentID=%s, Error: %v", task.DocumentID, incErr)
		return OutcomeGaveUp
	}
	if attempts >= w.maxAttempts {
		log.Errorf("摄取任务多次失败(>=%d)，终止重试: DocumentID=%s", w.maxAttempts, task.DocumentID)
		_ = w.attempts.Reset(context.Background(), key)
		return OutcomeGaveUp
	}
	if err := w.requeue(ctx, task); err != nil {
		log.Errorf("重新投递摄取任务失败: DocumentID=%s, Error: %v", task.DocumentID, err)
		return OutcomeGaveUp
	}
	log.Infof("摄取任务已重新投递 (第 %d 次失败): DocumentID=%s", attempts, task.DocumentID)
	return OutcomeRequeued
}

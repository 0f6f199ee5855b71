// Package tracker 是 Document 状态机的唯一写入方。
//
// 状态只能按 PENDING -> PROCESSING -> {DONE, FAILED} 前进，进度在非终态内单调不减，
// 终态之后拒绝任何修改。每次持久化成功后再尽力广播，广播失败不影响已写入的状态。
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"docchat-go/internal/errs"
	"docchat-go/internal/model"
	"docchat-go/internal/notify"
	"docchat-go/internal/repository"
	"docchat-go/internal/vectorstore"
	"docchat-go/pkg/log"
)

// Tracker 管理文档生命周期。同一文档的写操作串行执行。
type Tracker struct {
	docs     repository.DocumentRepository
	store    vectorstore.Store
	notifier notify.Notifier
	locks    *keyedMutex
}

// New 创建 Tracker。notifier 为 nil 时不广播。
func New(docs repository.DocumentRepository, store vectorstore.Store, notifier notify.Notifier) *Tracker {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Tracker{docs: docs, store: store, notifier: notifier, locks: newKeyedMutex()}
}

// Create 以 PENDING/0 创建文档并广播 documentCreated。id 为空时自动生成。
func (t *Tracker) Create(ctx context.Context, id, name, objectKey string) (*model.Document, error) {
	if name == "" {
		return nil, fmt.Errorf("document name is empty: %w", errs.ErrInvalidInput)
	}
	if id == "" {
		id = uuid.NewString()
	}
	doc := &model.Document{
		ID:        id,
		Name:      name,
		Status:    model.StatusPending,
		Progress:  0,
		ObjectKey: objectKey,
		CreatedAt: time.Now(),
	}
	if err := t.docs.Create(ctx, doc); err != nil {
		return nil, err
	}
	log.Infof("[Tracker] 文档已创建, id: %s, name: %s", doc.ID, doc.Name)
	t.notifier.Broadcast(notify.EventDocumentCreated, doc)
	return doc, nil
}

// Get 返回文档的当前快照。
func (t *Tracker) Get(ctx context.Context, id string) (*model.Document, error) {
	return t.docs.FindByID(ctx, id)
}

// List 按创建时间倒序返回全部文档。
func (t *Tracker) List(ctx context.Context) ([]model.Document, error) {
	return t.docs.FindAll(ctx)
}

// Advance 把文档推进到给定进度和状态。
//
// 低于当前值的进度会被抬到当前值；PROCESSING 不会退回 PENDING。
// 文档不存在返回 ErrNotFound，已处于终态返回 ErrTerminal 且不做任何修改。
func (t *Tracker) Advance(ctx context.Context, id string, progress int, status model.DocumentStatus) error {
	if progress < 0 || progress > 100 {
		return fmt.Errorf("progress %d out of range [0,100]: %w", progress, errs.ErrInvalidInput)
	}
	if !status.Valid() {
		return fmt.Errorf("unknown status %q: %w", status, errs.ErrInvalidInput)
	}

	unlock := t.locks.Lock(id)
	defer unlock()

	doc, err := t.docs.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if doc.Status.IsTerminal() {
		log.Warnw("[Tracker] 忽略终态文档上的更新", "id", id, "status", doc.Status, "requested", status, "progress", progress)
		return fmt.Errorf("document %s is %s: %w", id, doc.Status, errs.ErrTerminal)
	}
	if progress < doc.Progress {
		progress = doc.Progress
	}
	if status == model.StatusPending && doc.Status == model.StatusProcessing {
		status = model.StatusProcessing
	}

	updated, err := t.docs.UpdateProgress(ctx, id, status, progress)
	if err != nil {
		return err
	}
	if !updated {
		// MySQL 在值未变化时 RowsAffected 为 0，需要重新读取来区分原因
		current, err := t.docs.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if current.Status.IsTerminal() {
			return fmt.Errorf("document %s is %s: %w", id, current.Status, errs.ErrTerminal)
		}
	}

	t.notifier.Broadcast(notify.EventDocumentUpdate, model.StatusPayload{ID: id, Status: status, Progress: progress})
	return nil
}

// Fail 把文档置为 FAILED，进度保持在最后一个检查点。
func (t *Tracker) Fail(ctx context.Context, id string) error {
	return t.Advance(ctx, id, 0, model.StatusFailed)
}

// Restart 把 FAILED 文档重置为 PENDING/0，以便重新摄取。其他状态返回 false。
func (t *Tracker) Restart(ctx context.Context, id string) (bool, error) {
	unlock := t.locks.Lock(id)
	defer unlock()

	ok, err := t.docs.Reset(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	log.Infof("[Tracker] 文档 %s 已重置为 PENDING", id)
	t.notifier.Broadcast(notify.EventDocumentUpdate, model.StatusPayload{ID: id, Status: model.StatusPending, Progress: 0})
	return true, nil
}

// Delete 删除文档及其分块，返回被删除的文档。
func (t *Tracker) Delete(ctx context.Context, id string) (*model.Document, error) {
	unlock := t.locks.Lock(id)
	defer unlock()

	doc, err := t.docs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	found, err := t.docs.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("document %s: %w", id, errs.ErrNotFound)
	}
	if err := t.store.DeleteByDocument(ctx, id); err != nil {
		log.Errorw("[Tracker] 删除文档向量失败", "id", id, "error", err)
	}
	log.Infof("[Tracker] 文档已删除, id: %s", id)
	t.notifier.Broadcast(notify.EventDocumentDeleted, map[string]string{"id": id})
	return doc, nil
}

// DeleteAll 删除全部文档及其分块，返回删除前的文档列表。
func (t *Tracker) DeleteAll(ctx context.Context) ([]model.Document, error) {
	docs, err := t.docs.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	n, err := t.docs.DeleteAll(ctx)
	if err != nil {
		return nil, err
	}
	var storeErr error
	for _, d := range docs {
		if err := t.store.DeleteByDocument(ctx, d.ID); err != nil {
			storeErr = errors.Join(storeErr, err)
		}
	}
	if storeErr != nil {
		log.Errorw("[Tracker] 清理向量失败", "error", storeErr)
	}
	log.Infof("[Tracker] 已删除全部文档, count: %d", n)
	t.notifier.Broadcast(notify.EventAllDocumentsDeleted, map[string]int64{"count": n})
	return docs, nil
}

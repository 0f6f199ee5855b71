// Package errs 定义了文档摄取与问答流程中共享的错误类型。
// 调用方统一通过 errors.Is 判断错误类别。
package errs

import "errors"

var (
	// ErrInvalidInput 表示输入为空或格式不合法（例如空文本、非法的分块参数）。
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmbeddingUnavailable 表示 Embedding 服务调用失败（网络、配额、非法输入）。
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrStoreUnavailable 表示持久化层读写失败。
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrGenerationUnavailable 表示大模型生成调用失败。
	ErrGenerationUnavailable = errors.New("generation unavailable")
	// ErrNotFound 表示文档 ID 不存在。
	ErrNotFound = errors.New("document not found")
	// ErrNotReady 表示文档尚未处理完成（PENDING、PROCESSING 或 FAILED）。
	ErrNotReady = errors.New("document not ready")
	// ErrTerminal 表示文档已处于终态（DONE 或 FAILED），拒绝后续的进度更新。
	ErrTerminal = errors.New("document already in terminal status")
	// ErrDimensionMismatch 表示向量维度与存储配置不一致，属于配置错误。
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

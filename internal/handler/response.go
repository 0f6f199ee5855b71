// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat-go/internal/errs"
	"docchat-go/pkg/log"
)

// StatusFor 把领域错误映射为 HTTP 状态码。
func StatusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrNotReady), errors.Is(err, errs.ErrTerminal):
		return http.StatusConflict
	case errors.Is(err, errs.ErrEmbeddingUnavailable), errors.Is(err, errs.ErrGenerationUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, errs.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, gin.H{
		"code":    status,
		"message": message,
		"data":    data,
	})
}

// respondError 4xx 返回具体原因，5xx 只返回概括信息并记录日志。
func respondError(c *gin.Context, op string, err error) {
	status := StatusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		log.Errorw(op+" failed", "path", c.Request.URL.Path, "error", err)
		message = http.StatusText(status)
	}
	respond(c, status, message, nil)
}

package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat-go/internal/errs"
	"docchat-go/internal/service"
)

// DocumentHandler 负责处理所有与文档管理和问答相关的 API 请求。
type DocumentHandler struct {
	docs           service.DocumentService
	answers        service.AnswerService
	maxUploadBytes int64
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(docs service.DocumentService, answers service.AnswerService, maxUploadMB int64) *DocumentHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 50
	}
	return &DocumentHandler{docs: docs, answers: answers, maxUploadBytes: maxUploadMB << 20}
}

// List 按创建时间倒序返回全部文档。
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.docs.List(c.Request.Context())
	if err != nil {
		respondError(c, "ListDocuments", err)
		return
	}
	respond(c, http.StatusOK, "获取文档列表成功", docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.docs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "GetDocument", err)
		return
	}
	respond(c, http.StatusOK, "获取文档成功", doc)
}

// Upload 接收 multipart 表单中的 file 字段，只接受 PDF。
func (h *DocumentHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond(c, http.StatusRequestEntityTooLarge, "文件过大", nil)
			return
		}
		respondError(c, "UploadDocument", fmt.Errorf("missing file field: %w", errs.ErrInvalidInput))
		return
	}
	if fh.Size > h.maxUploadBytes {
		respond(c, http.StatusRequestEntityTooLarge, "文件过大", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, "UploadDocument", err)
		return
	}
	defer f.Close()

	doc, err := h.docs.Upload(c.Request.Context(), fh.Filename, f, fh.Size)
	if err != nil {
		respondError(c, "UploadDocument", err)
		return
	}
	respond(c, http.StatusCreated, "文件上传成功，正在处理", doc)
}

type chatRequest struct {
	Question string `json:"question" binding:"required"`
}

// Chat 基于指定文档回答问题。
func (h *DocumentHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, "Chat", fmt.Errorf("invalid request body: %w", errs.ErrInvalidInput))
		return
	}
	answer, err := h.answers.Answer(c.Request.Context(), c.Param("id"), req.Question)
	if err != nil {
		respondError(c, "Chat", err)
		return
	}
	respond(c, http.StatusOK, "success", gin.H{"answer": answer})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.docs.Delete(c.Request.Context(), id); err != nil {
		respondError(c, "DeleteDocument", err)
		return
	}
	respond(c, http.StatusOK, "文档删除成功", gin.H{"id": id})
}

func (h *DocumentHandler) DeleteAll(c *gin.Context) {
	n, err := h.docs.DeleteAll(c.Request.Context())
	if err != nil {
		respondError(c, "DeleteAllDocuments", err)
		return
	}
	respond(c, http.StatusOK, "全部文档已删除", gin.H{"count": n})
}

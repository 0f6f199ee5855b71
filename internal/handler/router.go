package handler

import "github.com/gin-gonic/gin"

// RegisterRoutes 注册文档 API 与状态推送路由。
func RegisterRoutes(r *gin.Engine, docs *DocumentHandler, events *EventsHandler) {
	apiV1 := r.Group("/api/v1")
	{
		documents := apiV1.Group("/documents")
		{
			documents.GET("", docs.List)
			documents.GET("/:id", docs.Get)
			documents.POST("/upload", docs.Upload)
			documents.POST("/:id/chat", docs.Chat)
			documents.DELETE("/:id", docs.Delete)
			documents.DELETE("", docs.DeleteAll)
		}
	}
	r.GET("/ws", events.Handle)
}

package chat

import (
	"DiaBot/controllers"

	"github.com/gin-gonic/gin"
)

// RegisterOptional registers chat routes open to anonymous clients. The group
// must carry the session and optional auth middleware.
func RegisterOptional(g *gin.RouterGroup, h *controllers.Handler) {
	g.GET("/chat", h.ChatState())
	if h.Limiter != nil {
		g.POST("/chat", h.Limiter.RateLimit(), h.PostChat())
	} else {
		g.POST("/chat", h.PostChat())
	}
	g.GET("/chat/history", h.ChatSummaries())
}

// RegisterProtected registers chat routes that need a bearer token.
func RegisterProtected(g *gin.RouterGroup, h *controllers.Handler) {
	g.GET("/get-chat-history", h.ChatTranscripts())
	g.PUT("/update-chat/:chat_id", h.UpdateChat())
}

package websocket

import (
	"DiaBot/controllers"

	"github.com/gin-gonic/gin"
)

func Register(r *gin.Engine, h *controllers.Handler) {
	if h.Limiter != nil {
		r.GET("/ws/chat", h.Limiter.RateLimit(), h.ChatWS())
		return
	}
	r.GET("/ws/chat", h.ChatWS())
}

package auth

import (
	"DiaBot/controllers"

	"github.com/gin-gonic/gin"
)

// RegisterPublic registers public auth routes: /register, /login
func RegisterPublic(g *gin.RouterGroup, h *controllers.Handler) {
	g.POST("/register", h.Register())
	g.POST("/login", h.Login())
}

// RegisterOptional registers /logout; anonymous callers just drop the session.
func RegisterOptional(g *gin.RouterGroup, h *controllers.Handler) {
	g.POST("/logout", h.Logout())
}

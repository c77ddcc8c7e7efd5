package routes

import (
	"net/http"

	"DiaBot/controllers"
	"DiaBot/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authRoutes "DiaBot/routes/auth"
	chatRoutes "DiaBot/routes/chat"
	profileRoutes "DiaBot/routes/profile"
	websocketRoutes "DiaBot/routes/websocket"
)

// RegisterRoutes wires every endpoint onto r. secureCookie marks the session
// cookie Secure.
func RegisterRoutes(r *gin.Engine, h *controllers.Handler, secureCookie bool) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "DiaBot chat backend running"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	websocketRoutes.Register(r, h)

	// chat and auth endpoints share the server-side session
	sessioned := r.Group("/")
	sessioned.Use(middleware.Session(h.Sessions, secureCookie))
	authRoutes.RegisterPublic(sessioned, h)

	optional := sessioned.Group("/")
	optional.Use(h.Auth.Optional())
	authRoutes.RegisterOptional(optional, h)
	chatRoutes.RegisterOptional(optional, h)

	protected := r.Group("/")
	protected.Use(h.Auth.Required())
	chatRoutes.RegisterProtected(protected, h)
	profileRoutes.Register(protected, h)
}

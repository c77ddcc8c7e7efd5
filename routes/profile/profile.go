package profile

import (
	"DiaBot/controllers"

	"github.com/gin-gonic/gin"
)

// Register registers protected profile routes on supplied router group
// expects the group to already have auth middleware applied
func Register(g *gin.RouterGroup, h *controllers.Handler) {
	g.GET("/users", h.ListUsers())
	g.GET("/user/:id", h.GetUser())
	g.PUT("/user/:id", h.UpdateUser())
}

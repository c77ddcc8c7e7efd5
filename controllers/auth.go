package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"DiaBot/middleware"
	"DiaBot/models"
	"DiaBot/pkg/chat"
	"DiaBot/pkg/metrics"
	"DiaBot/pkg/store"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Register handler
func (h *Handler) Register() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			FullName string `json:"full_name"`
		}
		if err := c.ShouldBindJSON(&body); err != nil ||
			strings.TrimSpace(body.Email) == "" || body.Password == "" || strings.TrimSpace(body.FullName) == "" {
			metrics.RecordAuth("register", "invalid")
			c.JSON(http.StatusBadRequest, gin.H{"message": "Missing data in registration request!"})
			return
		}

		hash, err := models.HashPassword(body.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to set password"})
			return
		}
		user, err := h.Users.Create(c.Request.Context(), body.Email, hash, strings.TrimSpace(body.FullName))
		if errors.Is(err, store.ErrEmailExists) {
			metrics.RecordAuth("register", "duplicate")
			c.JSON(http.StatusBadRequest, gin.H{"message": "User with this email already exists!"})
			return
		}
		if err != nil {
			metrics.RecordAuth("register", "error")
			log.Error().Err(err).Msg("[auth] create user failed")
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to create user"})
			return
		}

		middleware.CurrentSession(c).Reset()
		metrics.RecordAuth("register", "ok")
		log.Info().Uint("user_id", user.ID).Msg("[auth] user registered")
		c.JSON(http.StatusOK, gin.H{"message": "User registered successfully!", "redirect_url": h.redirectURL()})
	}
}

// Login handler
func (h *Handler) Login() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Email) == "" || body.Password == "" {
			metrics.RecordAuth("login", "invalid")
			c.JSON(http.StatusBadRequest, gin.H{"message": "Email and password are required"})
			return
		}

		ctx := c.Request.Context()
		user, err := h.Users.Verify(ctx, body.Email, body.Password)
		if err != nil {
			metrics.RecordAuth("login", "error")
			log.Error().Err(err).Msg("[auth] verify failed")
			c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
			return
		}
		if user == nil {
			metrics.RecordAuth("login", "denied")
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Login failed!"})
			return
		}

		tokenStr, err := h.Auth.Issue(chat.Identity{UserID: user.ID, Email: user.Email})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to create token"})
			return
		}
		if err := h.Users.RecordLogin(ctx, user.ID, time.Now().UTC()); err != nil {
			metrics.RecordAuth("login", "error")
			log.Error().Err(err).Uint("user_id", user.ID).Msg("[auth] record login failed")
			c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
			return
		}

		middleware.CurrentSession(c).Reset()
		metrics.RecordAuth("login", "ok")
		c.JSON(http.StatusOK, gin.H{
			"access_token": tokenStr,
			"user_id":      user.ID,
			"redirect_url": h.redirectURL(),
		})
	}
}

// Logout revokes the bearer token, if any, and drops the server-side session.
func (h *Handler) Logout() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.Auth.Revoke(c)
		middleware.CloseSession(c)
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

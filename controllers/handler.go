package controllers

import (
	"errors"
	"net/http"

	"DiaBot/middleware"
	"DiaBot/pkg/chat"
	"DiaBot/pkg/session"
	"DiaBot/pkg/store"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Handler carries the collaborators shared by every route.
type Handler struct {
	Users    store.UserStore
	Convs    store.ConversationStore
	Chat     *chat.Reconciler
	Auth     *middleware.Authenticator
	Limiter  *middleware.Limiter
	Sessions *session.Store
	// RedirectURL is the page clients go to after register or login.
	RedirectURL string
}

func (h *Handler) redirectURL() string {
	if h.RedirectURL == "" {
		return "/main"
	}
	return h.RedirectURL
}

// abortWithError maps reconciler and store errors to a status and message.
func abortWithError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, chat.ErrValidation):
		status, msg = http.StatusBadRequest, "Invalid request: missing query"
	case errors.Is(err, store.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, chat.ErrUpstream):
		msg = "Request could not be processed."
	}
	if status >= 500 {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("[http] request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"message": msg})
}

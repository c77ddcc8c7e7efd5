package middleware

import (
	"net/http"

	"DiaBot/pkg/session"

	"github.com/gin-gonic/gin"
)

const (
	SessionCookie     = "chat_session"
	SessionHeader     = "X-Session-Id"
	ContextSessionKey = "current_session"
)

// Session loads the caller's chat state before the handler and saves it after.
// The id comes from the X-Session-Id header or the session cookie and is
// echoed back on both.
func Session(store *session.Store, secureCookie bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(SessionHeader)
		if id == "" {
			id, _ = c.Cookie(SessionCookie)
		}
		st := store.Load(id)

		c.Header(SessionHeader, st.ID)
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookie, st.ID, 0, "/", "", secureCookie, true)
		c.Set(ContextSessionKey, st)

		c.Next()

		if c.GetBool(contextSessionClosed) {
			store.Delete(st.ID)
			return
		}
		store.Save(st)
	}
}

const contextSessionClosed = "session_closed"

// CurrentSession returns the state loaded by Session. Handlers registered
// without the middleware get a throwaway state.
func CurrentSession(c *gin.Context) *session.State {
	if v, ok := c.Get(ContextSessionKey); ok {
		if st, ok := v.(*session.State); ok {
			return st
		}
	}
	st := &session.State{}
	c.Set(ContextSessionKey, st)
	return st
}

// CloseSession drops the caller's server-side session once the handler returns.
func CloseSession(c *gin.Context) {
	c.Set(contextSessionClosed, true)
}

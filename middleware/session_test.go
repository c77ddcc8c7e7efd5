package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"DiaBot/models"
	"DiaBot/pkg/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := session.NewStore(10, time.Hour, 0)
	r := gin.New()
	r.Use(Session(store, false))
	r.POST("/add", func(c *gin.Context) {
		CurrentSession(c).AddTurn(models.UserTurn("hi"))
		c.Status(http.StatusOK)
	})
	r.POST("/close", func(c *gin.Context) {
		CloseSession(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/add", nil))
	id := w.Header().Get(SessionHeader)
	require.NotEmpty(t, id)
	assert.Contains(t, w.Header().Get("Set-Cookie"), SessionCookie+"="+id)

	// the cookie alone resumes the session
	req := httptest.NewRequest(http.MethodPost, "/add", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: id})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, id, w.Header().Get(SessionHeader))
	assert.Len(t, store.Load(id).Buffer, 2)

	req = httptest.NewRequest(http.MethodPost, "/close", nil)
	req.Header.Set(SessionHeader, id)
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.NotEqual(t, id, store.Load(id).ID)
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestIDKey)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
	assert.Equal(t, w.Header().Get(requestIDHeader), w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(requestIDHeader))
}

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestVisitorLimiter_BurstThenRefill(t *testing.T) {
	l := newVisitorLimiter(1, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"), "buckets are per caller")

	now = now.Add(time.Second)
	assert.True(t, l.allow("a"))
}

func TestVisitorLimiter_DropsIdleVisitors(t *testing.T) {
	l := newVisitorLimiter(1, 1)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.allow("a")
	l.allow("b")
	assert.Equal(t, 2, l.len())

	now = now.Add(2 * limiterIdleTTL)
	l.allow("c")
	assert.Equal(t, 1, l.len())
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit(0.001, 1))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(remoteAddr, session string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = remoteAddr
		req.Header.Set(SessionHeader, session)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:5000", "s1"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:5000", "s1"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:5001", "s2"), "new session id shares the caller's bucket")
	assert.Equal(t, http.StatusOK, send("10.0.0.2:5000", "s1"))
}

func TestRateLimitDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit(0, 1))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

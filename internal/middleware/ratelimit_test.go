package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limiterContext(t *testing.T, ip string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/query", nil)
	c.Request.RemoteAddr = ip + ":12345"
	return c, recorder
}

func TestRateLimitBlocksWithinWindow(t *testing.T) {
	limiter := &rateLimiter{window: time.Minute, last: make(map[string]time.Time)}

	c, recorder := limiterContext(t, "10.0.0.1")
	limiter.handle(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	c, recorder = limiterContext(t, "10.0.0.1")
	limiter.handle(c)
	assert.Equal(t, http.StatusTooManyRequests, recorder.Code)

	// a different client is unaffected
	c, recorder = limiterContext(t, "10.0.0.2")
	limiter.handle(c)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestRateLimitPrunesStaleClients(t *testing.T) {
	window := 100 * time.Millisecond
	limiter := &rateLimiter{window: window, last: make(map[string]time.Time)}

	for i := 0; i < 50; i++ {
		c, _ := limiterContext(t, fmt.Sprintf("10.0.1.%d", i))
		limiter.handle(c)
	}
	require.Len(t, limiter.last, 50)

	time.Sleep(2 * window)
	c, recorder := limiterContext(t, "10.0.2.1")
	limiter.handle(c)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Len(t, limiter.last, 1)
}

package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gala377/Auster/internal/v1/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, rate string) *RateLimiter {
	t.Helper()
	cfg := &config.Config{
		HTTP: config.HTTP{RateLimitRooms: rate},
	}
	rl, err := NewRateLimiter(cfg)
	require.NoError(t, err)
	return rl
}

func TestNewRateLimiter(t *testing.T) {
	rl := newTestLimiter(t, "5-M")
	assert.NotNil(t, rl)
}

func TestNewRateLimiter_InvalidRate(t *testing.T) {
	cfg := &config.Config{HTTP: config.HTTP{RateLimitRooms: "not-a-rate"}}
	_, err := NewRateLimiter(cfg)
	assert.Error(t, err)
}

func TestRoomsMiddleware_AllowsUnderLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := newTestLimiter(t, "5-M")

	r := gin.New()
	r.Use(rl.RoomsMiddleware())
	r.POST("/new_room", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("POST", "/new_room", nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "5", resp.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRoomsMiddleware_BlocksOverLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := newTestLimiter(t, "2-M")

	r := gin.New()
	r.Use(rl.RoomsMiddleware())
	r.POST("/new_room", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/new_room", nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		assert.Equal(t, http.StatusOK, resp.Code)
	}

	req := httptest.NewRequest("POST", "/new_room", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
}

func TestRoomsMiddleware_SeparatesByIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := newTestLimiter(t, "1-M")

	r := gin.New()
	r.Use(rl.RoomsMiddleware())
	r.POST("/new_room", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req1 := httptest.NewRequest("POST", "/new_room", nil)
	req1.RemoteAddr = "10.0.0.1:1234"
	resp1 := httptest.NewRecorder()
	r.ServeHTTP(resp1, req1)
	assert.Equal(t, http.StatusOK, resp1.Code)

	req2 := httptest.NewRequest("POST", "/new_room", nil)
	req2.RemoteAddr = "10.0.0.2:1234"
	resp2 := httptest.NewRecorder()
	r.ServeHTTP(resp2, req2)
	assert.Equal(t, http.StatusOK, resp2.Code, "a different IP should have its own bucket")
}

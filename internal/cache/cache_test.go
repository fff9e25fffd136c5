package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"moff.io/hedera-dapp/internal/config"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestInit(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, Init(context.Background(), &config.DBCredential{Address: mr.Host(), Port: mr.Port(), Database: "0"}))
	defer Close()
	assert.NotNil(t, Redis)
	assert.NotNil(t, RateLimiter)

	Close()
	assert.Nil(t, Redis)
	require.NoError(t, Init(context.Background(), &config.DBCredential{}))
	assert.Nil(t, Redis)

	mr.Close()
	assert.Error(t, Init(context.Background(), &config.DBCredential{Address: mr.Host(), Port: mr.Port()}))
	assert.Nil(t, Redis)
}

func TestRateLimitPerMinute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, client := newClient(t)
	router := gin.New()
	router.POST("/send-telegram", RateLimitPerMinute(redis_rate.NewLimiter(client), "send-telegram", 2), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/send-telegram", nil))
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, w.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestRateLimitDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", RateLimitPerMinute(nil, "root", 1), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}

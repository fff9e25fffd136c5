package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"moff.io/hedera-dapp/pkg/log/meta"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRecoveredHTTPLogWritesInternalErrorOnPanic(t *testing.T) {
	router := gin.New()
	router.Use(RecoveredHTTPLog())
	router.GET("/panic", func(ctx *gin.Context) {
		panic("kaboom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Server internal error"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("request-id"))
}

func TestRecoveredHTTPLogPropagatesRequestID(t *testing.T) {
	var seen string
	router := gin.New()
	router.Use(RecoveredHTTPLog())
	router.GET("/ok", func(ctx *gin.Context) {
		seen = meta.RequestID(ctx.Request.Context())
		ctx.JSON(http.StatusOK, gin.H{"success": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("x-request-id", "req-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-1", seen)
	assert.Equal(t, "req-1", w.Header().Get("request-id"))
}

func TestTimeoutHTTP(t *testing.T) {
	var deadline time.Time
	router := gin.New()
	router.Use(TimeoutHTTP(time.Second))
	router.GET("/t", func(ctx *gin.Context) {
		deadline, _ = ctx.Request.Context().Deadline()
		ctx.Status(http.StatusNoContent)
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t", nil).WithContext(context.Background()))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)
}

func TestRequestHeaderFilter(t *testing.T) {
	filtered := requestHeaderFilter(map[string][]string{
		"Authorization": {"Bearer x"},
		"Accept":        {"a", "b"},
	})
	assert.NotContains(t, filtered, "authorization")
	assert.Equal(t, "a;b", filtered["accept"])
}

func TestResponseError(t *testing.T) {
	assert.Equal(t, "Too many requests", responseError([]byte(`{"error":"Too many requests"}`)))
	assert.Nil(t, responseError([]byte(`{"success":true}`)))
	assert.Nil(t, responseError([]byte{0x89, 'P', 'N', 'G'}))
	assert.Nil(t, responseError(nil))
}

package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"moff.io/hedera-dapp/pkg/errors"
	"moff.io/hedera-dapp/pkg/log"
	"moff.io/hedera-dapp/pkg/log/meta"
)

// capturingWriter keeps a copy of JSON responses so the access log can
// print the handler's error message.
type capturingWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		w.body.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

type accessLog struct {
	RequestID string            `json:"request_id"`
	Method    string            `json:"method"`
	Path      string            `json:"path,omitempty"`
	Remote    string            `json:"remote_addr,omitempty"`
	Headers   map[string]string `json:"headers"`
	Status    int               `json:"status"`
	Error     interface{}       `json:"error,omitempty"`
	Elapsed   string            `json:"elapsed,omitempty"`
}

// RecoveredHTTPLog 请求日志拦截器，注入请求ID并在panic时返回500
func RecoveredHTTPLog() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		rctx := meta.Begin(ctx.Request.Context())
		requestID := ctx.GetHeader(meta.RequestIDKey)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		meta.WithValue(rctx, meta.RequestIDKey, requestID)
		ctx.Request = ctx.Request.WithContext(rctx)
		ctx.Header("request-id", requestID)

		w := &capturingWriter{ResponseWriter: ctx.Writer, body: &bytes.Buffer{}}
		ctx.Writer = w

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				log.Errorc(rctx, "%v", errors.ErrorfAndReport("%v", r))
			}
			logAccess(ctx, requestID, w, start)
		}()
		ctx.Next()
	}
}

const defaultRequestTimeout = time.Minute

// TimeoutHTTP bounds the request context, one minute unless given.
func TimeoutHTTP(timeout ...time.Duration) gin.HandlerFunc {
	d := defaultRequestTimeout
	if len(timeout) != 0 && timeout[0] > 0 {
		d = timeout[0]
	}
	return func(ctx *gin.Context) {
		tctx, cancel := context.WithTimeout(ctx.Request.Context(), d)
		defer cancel()
		ctx.Request = ctx.Request.WithContext(tctx)
		ctx.Next()
	}
}

func logAccess(ctx *gin.Context, requestID string, w *capturingWriter, start time.Time) {
	if !ctx.Writer.Written() {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Server internal error"})
	}

	entry := &accessLog{
		RequestID: requestID,
		Method:    ctx.Request.Method,
		Path:      ctx.Request.RequestURI,
		Remote:    ctx.ClientIP(),
		Headers:   requestHeaderFilter(ctx.Request.Header),
		Status:    w.Status(),
		Error:     responseError(w.body.Bytes()),
		Elapsed:   fmt.Sprintf("%dms", time.Since(start).Milliseconds()),
	}
	switch {
	case entry.Status >= http.StatusInternalServerError:
		log.Error(entry)
	case entry.Status >= http.StatusBadRequest:
		log.Warn(entry)
	default:
		log.Info(entry)
	}
}

func responseError(body []byte) interface{} {
	var resp struct {
		Error interface{} `json:"error"`
	}
	if len(body) == 0 || json.Unmarshal(body, &resp) != nil {
		return nil
	}
	return resp.Error
}

var excludedHeaders = map[string]bool{
	"token":         true,
	"access-token":  true,
	"authorization": true,
	"cookie":        true,
}

func requestHeaderFilter(headers map[string][]string) map[string]string {
	filtered := make(map[string]string, len(headers))
	for k, v := range headers {
		k = strings.ToLower(k)
		if excludedHeaders[k] {
			continue
		}
		filtered[k] = strings.Join(v, ";")
	}
	return filtered
}

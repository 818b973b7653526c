package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStartSpanPropagatesTrace(t *testing.T) {
	tracer := New("test", zap.NewNop())
	defer tracer.Close()

	parent, ctx := tracer.StartSpan(context.Background(), "parent")
	child, childCtx := tracer.StartSpan(ctx, "child")

	assert.NotEmpty(t, parent.TraceID)
	assert.Equal(t, parent.TraceID, child.TraceID)
	assert.Equal(t, parent.SpanID, child.ParentID)
	assert.Equal(t, child.SpanID, GetSpanID(childCtx))
	assert.Equal(t, parent.TraceID, GetTraceID(childCtx))
}

func TestInjectFromHeadersRoundTrip(t *testing.T) {
	tracer := New("test", nil)
	defer tracer.Close()

	span, ctx := tracer.StartSpan(context.Background(), "op")
	headers := http.Header{}
	Inject(ctx, headers)

	got := FromHeaders(context.Background(), headers)
	assert.Equal(t, span.TraceID, GetTraceID(got))
	assert.Equal(t, span.SpanID, GetSpanID(got))
}

func TestStartDispatchTags(t *testing.T) {
	tracer := New("test", nil)
	defer tracer.Close()

	span, _ := tracer.StartDispatch(context.Background(), "update-value", "win_1")
	assert.Equal(t, "dispatch update-value", span.Name)
	assert.Equal(t, "update-value", span.Tags["channel"])
	assert.Equal(t, "win_1", span.Tags["sender"])

	span, _ = tracer.StartDispatch(context.Background(), "open-or-focus", "")
	assert.NotContains(t, span.Tags, "sender")
}

func TestNilTracer(t *testing.T) {
	var tracer *Tracer

	span, ctx := tracer.StartDispatch(context.Background(), "close", "win_1")
	assert.Nil(t, span)
	assert.Empty(t, GetTraceID(ctx))
	tracer.End(span, errors.New("ignored"))
	tracer.Close()
}

func TestSetErrorKeepsClientStatus(t *testing.T) {
	s := &Span{Tags: map[string]string{}}
	s.SetStatus(404)
	s.SetError(errors.New("missing"))
	assert.Equal(t, 404, s.StatusCode)

	s = &Span{Tags: map[string]string{}}
	s.SetError(errors.New("boom"))
	assert.Equal(t, 500, s.StatusCode)
}

func TestSubmitAfterClose(t *testing.T) {
	tracer := New("test", nil)
	tracer.Close()
	tracer.Close()

	span, _ := tracer.StartSpan(context.Background(), "late")
	tracer.End(span, nil)
}

func TestHTTPMiddlewareContinuesTrace(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer := New("test", nil)
	defer tracer.Close()

	var seen TraceID
	r := gin.New()
	r.Use(HTTPMiddleware(tracer))
	r.GET("/ping", func(c *gin.Context) {
		seen = GetTraceID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Trace-ID", "trace-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, TraceID("trace-123"), seen)
	assert.Equal(t, "trace-123", w.Header().Get("X-Trace-ID"))
	assert.NotEmpty(t, w.Header().Get("X-Span-ID"))
}

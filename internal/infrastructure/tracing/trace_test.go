package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestStartSpanContinuesTrace(t *testing.T) {
	tracer := New("test", nil)
	defer tracer.Close()

	root, ctx := tracer.StartSpan(context.Background(), "root")
	assert.NotEmpty(t, root.TraceID)
	assert.Empty(t, root.ParentID)

	child, _ := tracer.StartSpan(ctx, "child")
	assert.Equal(t, root.TraceID, child.TraceID)
	assert.Equal(t, root.SpanID, child.ParentID)
}

func TestInjectExtract(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trc_abc")
	headers := map[string]string{}
	InjectTraceContext(ctx, headers)

	traceID, spanID := ExtractTraceContext(headers)
	assert.Equal(t, TraceID("trc_abc"), traceID)
	assert.Empty(t, spanID)
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)
	tracer := New("test", zap.New(core))

	var seen TraceID
	router := gin.New()
	router.Use(HTTPMiddleware(tracer))
	router.GET("/modules/:id", func(c *gin.Context) {
		seen = GetTraceID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/modules/inventory", nil)
	req.Header.Set(TraceHeader, "trc_incoming")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, TraceID("trc_incoming"), seen)
	assert.Equal(t, "trc_incoming", w.Header().Get(TraceHeader))
	assert.NotEmpty(t, w.Header().Get(SpanHeader))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/modules/billing", nil))
	assert.NotEmpty(t, w.Header().Get(TraceHeader))
	assert.NotEqual(t, "trc_incoming", w.Header().Get(TraceHeader))

	tracer.Close()
	entries := logs.FilterMessage("Request completed").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "inventory", entries[0].ContextMap()["module"])
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	Logger(WithTraceID(context.Background(), "trc_1"), base).Info("hello")
	Logger(context.Background(), base).Info("bare")

	all := logs.All()
	require.Len(t, all, 2)
	assert.Equal(t, "trc_1", all[0].ContextMap()["trace_id"])
	assert.NotContains(t, all[1].ContextMap(), "trace_id")
}

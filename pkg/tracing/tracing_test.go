package tracing

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestGinMiddlewareAndEndSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(t.Context())

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/boom/:id", func(c *gin.Context) {
		_, span := Tracer.Start(c.Request.Context(), "inner")
		EndSpan(span, errors.New("storage down"), attribute.String("userID", "u1"))
		c.Status(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom/7", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	inner, server := spans[0], spans[1]
	assert.Equal(t, "inner", inner.Name())
	assert.Equal(t, codes.Error, inner.Status().Code)
	assert.Equal(t, server.SpanContext().SpanID(), inner.Parent().SpanID())
	assert.Contains(t, inner.Attributes(), attribute.String("userID", "u1"))

	assert.Equal(t, "GET /boom/:id", server.Name())
	assert.Equal(t, codes.Error, server.Status().Code)
}

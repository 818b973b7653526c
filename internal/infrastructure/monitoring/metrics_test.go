package monitoring

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsAreIsolated(t *testing.T) {
	// Separate registries; a second collector must not panic on registration.
	a := NewMetrics()
	b := NewMetrics()

	a.RecordMessage("update-value", time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.MessagesTotal.WithLabelValues("update-value")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.MessagesTotal.WithLabelValues("update-value")))
}

func TestSnapshot(t *testing.T) {
	m := NewMetrics()

	m.RecordMessage("open-or-focus", time.Millisecond)
	m.RecordDrop("update-value", "unknown-session")
	m.SetSessionsActive(2)
	m.IncWindowsOpened()
	m.IncWindowsClosed()
	m.IncWSConnections()
	m.IncWSConnections()
	m.DecWSConnections()
	m.RecordLoad("url", time.Second, errors.New("refused"))
	m.RecordLoad("url", time.Second, nil)

	s := m.Snapshot()
	assert.Equal(t, int64(1), s.Messages)
	assert.Equal(t, int64(1), s.Dropped)
	assert.Equal(t, int64(2), s.ActiveSessions)
	assert.Equal(t, int64(1), s.ActiveConnections)
	assert.Equal(t, int64(1), s.WindowsOpened)
	assert.Equal(t, int64(1), s.WindowsClosed)
	assert.Equal(t, int64(1), s.LoadFailures)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesDropped.WithLabelValues("update-value", "unknown-session")))
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	r := gin.New()
	r.Use(Middleware(m))
	r.GET("/sessions/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/"+id, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/sessions/:id", "200")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics()
	m.IncWindowsOpened()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "windowsync_windows_opened_total 1"))
	assert.True(t, strings.Contains(string(body), "windowsync_uptime_seconds"))
}

func TestTimerRecordsFailure(t *testing.T) {
	m := NewMetrics()

	NewTimer(m, "file").Stop(errors.New("missing"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoadFailures.WithLabelValues("file")))

	// nil metrics is allowed
	assert.GreaterOrEqual(t, NewTimer(nil, "url").Stop(nil), time.Duration(0))
}

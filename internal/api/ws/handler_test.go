package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/windowsync/backend/internal/providers/wshost"
	"github.com/GriffinCanCode/windowsync/backend/internal/shared/types"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatched struct {
	sender types.WindowHandle
	msg    types.Message
}

type recorder struct {
	mu   sync.Mutex
	msgs []dispatched
}

func (r *recorder) Dispatch(sender types.WindowHandle, msg types.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, dispatched{sender: sender, msg: msg})
	return nil
}

func (r *recorder) all() []dispatched {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dispatched(nil), r.msgs...)
}

type fixture struct {
	host    *wshost.Host
	rec     *recorder
	handler *Handler
	metrics *monitoring.Metrics
	server  *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	host := wshost.New(wshost.Config{}, nil, nil)
	rec := &recorder{}
	metrics := monitoring.NewMetrics()
	handler := NewHandler(host, rec, Config{}, nil).WithMetrics(metrics)

	engine := gin.New()
	require.True(t, handler.Register(engine))

	server := httptest.NewServer(engine)
	t.Cleanup(func() {
		host.Close()
		server.Close()
	})
	return &fixture{host: host, rec: rec, handler: handler, metrics: metrics, server: server}
}

func (f *fixture) url(windowID, token string) string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + wshost.BridgePath + "/" + windowID + "?token=" + token
}

func (f *fixture) window(t *testing.T) *wshost.Handle {
	t.Helper()
	h, err := f.host.Create(types.WindowConfig{ID: "s1"})
	require.NoError(t, err)
	return h.(*wshost.Handle)
}

func (f *fixture) dial(t *testing.T, h *wshost.Handle) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(f.url(h.ID(), h.Token()), nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRegisterOnce(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.handler.Register(gin.New()))
}

func TestRejectsUnknownWindowAndBadToken(t *testing.T) {
	f := newFixture(t)
	h := f.window(t)

	tests := []struct {
		name     string
		url      string
		expected int
	}{
		{"unknown window", f.url("win_missing", h.Token()), http.StatusNotFound},
		{"bad token", f.url(h.ID(), "nope"), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(tt.url, nil)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			defer resp.Body.Close()
			assert.Equal(t, tt.expected, resp.StatusCode)
		})
	}
	assert.False(t, h.Attached())
}

func TestFramesReachDispatcher(t *testing.T) {
	f := newFixture(t)
	h := f.window(t)
	conn := f.dial(t, h)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"channel":"bogus"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"channel":"update-value","payload":{"id":"s1","value":"hello"}}`)))

	require.Eventually(t, func() bool { return len(f.rec.all()) == 1 }, time.Second, 5*time.Millisecond)
	got := f.rec.all()[0]
	assert.Same(t, h, got.sender)
	assert.Equal(t, types.UpdateValue{ID: "s1", Value: "hello"}, got.msg)
	assert.Equal(t, int64(1), f.metrics.Snapshot().Dropped)
}

func TestHandleSendReachesRenderer(t *testing.T) {
	f := newFixture(t)
	h := f.window(t)

	require.NoError(t, h.Send(types.ChannelInitValue, types.InitValue{ID: "s1", Value: "queued"}))
	conn := f.dial(t, h)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	frame, err := types.DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, types.ChannelInitValue, frame.Channel)
	assert.JSONEq(t, `{"id":"s1","value":"queued"}`, string(frame.Payload))
}

func TestDisconnectClosesWindow(t *testing.T) {
	f := newFixture(t)
	h := f.window(t)
	conn := f.dial(t, h)

	require.Eventually(t, func() bool { return f.metrics.Snapshot().ActiveConnections == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, conn.Close())

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("window stayed open after the renderer disconnected")
	}
	require.Eventually(t, func() bool { return f.metrics.Snapshot().ActiveConnections == 0 }, time.Second, 5*time.Millisecond)
}

func TestSecondRendererRejected(t *testing.T) {
	f := newFixture(t)
	h := f.window(t)
	f.dial(t, h)

	conn, resp, err := websocket.DefaultDialer.Dial(f.url(h.ID(), h.Token()), nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))
}

package wshost

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/windowsync/backend/internal/shared/id"
	"github.com/GriffinCanCode/windowsync/backend/internal/shared/types"
	"github.com/GriffinCanCode/windowsync/backend/internal/testutil"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	frames   [][]byte
	controls []int
	closed   bool
	writeErr error
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.frames = append(c.frames, data)
	return nil
}

func (c *fakeConn) WriteControl(messageType int, _ []byte, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controls = append(c.controls, messageType)
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) channels() []types.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]types.Channel, 0, len(c.frames))
	for _, f := range c.frames {
		frame, err := types.DecodeFrame(f)
		if err == nil {
			out = append(out, frame.Channel)
		}
	}
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func newHost(t *testing.T, launcher Launcher) *Host {
	t.Helper()
	host := New(Config{PublicURL: "http://127.0.0.1:8000", QueueSize: 4}, launcher, nil)
	t.Cleanup(host.Close)
	return host
}

func create(t *testing.T, host *Host, cfg types.WindowConfig) *Handle {
	t.Helper()
	h, err := host.Create(cfg)
	require.NoError(t, err)
	return h.(*Handle)
}

func TestCreateMintsIDs(t *testing.T) {
	host := newHost(t, nil)

	child := create(t, host, types.WindowConfig{ID: "s1"})
	primary := create(t, host, types.WindowConfig{Primary: true})

	assert.True(t, strings.HasPrefix(child.ID(), id.WindowPrefix+"_"))
	assert.True(t, id.WindowID(primary.ID()).IsPrimary())
	assert.True(t, primary.Primary())
	assert.NotEqual(t, child.Token(), primary.Token())
	assert.Equal(t, 2, host.Len())

	found, ok := host.Lookup(child.ID())
	require.True(t, ok)
	assert.Same(t, child, found)
}

func TestBridgeURL(t *testing.T) {
	host := newHost(t, nil)
	h := create(t, host, types.WindowConfig{})

	u, err := url.Parse(h.BridgeURL())
	require.NoError(t, err)
	assert.Equal(t, "ws", u.Scheme)
	assert.Equal(t, "127.0.0.1:8000", u.Host)
	assert.Equal(t, BridgePath+"/"+h.ID(), u.Path)
	assert.Equal(t, h.Token(), u.Query().Get("token"))
}

func TestLaunchURL(t *testing.T) {
	host := newHost(t, nil)
	h := create(t, host, types.WindowConfig{})

	raw := h.LaunchURL(types.Target{Kind: types.TargetURL, Location: "http://localhost:5173/newWindow.html", Fragment: "/edit"})
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:5173", u.Host)
	assert.Equal(t, "/newWindow.html", u.Path)
	assert.Equal(t, "/edit", u.Fragment)
	assert.Equal(t, h.ID(), u.Query().Get("window"))
	assert.Equal(t, h.BridgeURL(), u.Query().Get("bridge"))

	raw = h.LaunchURL(types.Target{Kind: types.TargetFile, Location: "/opt/app/dist/index.html"})
	u, err = url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "file", u.Scheme)
	assert.Equal(t, "/opt/app/dist/index.html", u.Path)
}

func TestAttachChecksToken(t *testing.T) {
	host := newHost(t, nil)
	h := create(t, host, types.WindowConfig{})

	_, err := host.Attach("win_missing", h.Token(), &fakeConn{})
	assert.ErrorIs(t, err, ErrUnknownWindow)

	_, err = host.Attach(h.ID(), "wrong", &fakeConn{})
	assert.ErrorIs(t, err, ErrBadToken)
	assert.False(t, h.Attached())

	got, err := host.Attach(h.ID(), h.Token(), &fakeConn{})
	require.NoError(t, err)
	assert.Same(t, h, got)
	assert.True(t, h.Attached())

	_, err = host.Attach(h.ID(), h.Token(), &fakeConn{})
	assert.ErrorIs(t, err, ErrAlreadyAttached)
}

func TestSendQueuesUntilAttach(t *testing.T) {
	host := newHost(t, nil)
	h := create(t, host, types.WindowConfig{})

	require.NoError(t, h.Send(types.ChannelInitValue, types.InitValue{ID: "s1", Value: "a"}))
	require.NoError(t, h.Send(types.ChannelUpdateValue, types.UpdateValue{ID: "s1", Value: "b"}))
	require.NoError(t, h.Focus())

	conn := &fakeConn{}
	_, err := host.Attach(h.ID(), h.Token(), conn)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(conn.channels()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []types.Channel{types.ChannelInitValue, types.ChannelUpdateValue, types.ChannelFocus}, conn.channels())
}

func TestSendQueueFull(t *testing.T) {
	host := newHost(t, nil)
	h := create(t, host, types.WindowConfig{})

	for i := 0; i < 4; i++ {
		require.NoError(t, h.Send(types.ChannelFocus, nil))
	}
	assert.ErrorIs(t, h.Send(types.ChannelFocus, nil), ErrQueueFull)
}

func TestCloseReportsOnce(t *testing.T) {
	host := newHost(t, nil)
	h := create(t, host, types.WindowConfig{})
	conn := &fakeConn{}
	_, err := host.Attach(h.ID(), h.Token(), conn)
	require.NoError(t, err)

	var fired atomic.Int32
	h.OnClosed(func() { fired.Add(1) })

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, conn.isClosed())
	assert.ErrorIs(t, h.Send(types.ChannelFocus, nil), types.ErrHandleClosed)
	assert.Equal(t, 0, host.Len())

	// Registering after the close still runs the callback
	late := make(chan struct{})
	h.OnClosed(func() { close(late) })
	select {
	case <-late:
	case <-time.After(time.Second):
		t.Fatal("late OnClosed callback did not run")
	}

	_, err = host.Attach(h.ID(), h.Token(), &fakeConn{})
	assert.ErrorIs(t, err, ErrUnknownWindow)
}

func TestWriteFailureClosesHandle(t *testing.T) {
	host := newHost(t, nil)
	h := create(t, host, types.WindowConfig{})
	_, err := host.Attach(h.ID(), h.Token(), &fakeConn{writeErr: errors.New("broken pipe")})
	require.NoError(t, err)

	require.NoError(t, h.Send(types.ChannelFocus, nil))

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("handle did not close after write failure")
	}
}

func TestLoadContentWaitsForAttach(t *testing.T) {
	launcher := &testutil.MockLauncher{}
	host := newHost(t, launcher)
	h := create(t, host, types.WindowConfig{ID: "s1"})
	conn := &fakeConn{}

	launcher.On("Launch", mock.Anything, h.ID(), mock.MatchedBy(func(u string) bool {
		return strings.Contains(u, url.QueryEscape(h.BridgeURL()))
	})).Run(func(mock.Arguments) {
		go func() {
			time.Sleep(10 * time.Millisecond)
			_, _ = host.Attach(h.ID(), h.Token(), conn)
		}()
	}).Return(nil)

	err := h.LoadContent(context.Background(), types.Target{Kind: types.TargetURL, Location: "http://localhost:5173/index.html"})
	require.NoError(t, err)
	assert.True(t, h.Attached())
	launcher.AssertExpectations(t)
}

func TestLoadContentFailures(t *testing.T) {
	target := types.Target{Kind: types.TargetURL, Location: "http://localhost:5173/index.html"}

	t.Run("launcher error", func(t *testing.T) {
		launcher := &testutil.MockLauncher{}
		launcher.On("Launch", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("no display"))
		h := create(t, newHost(t, launcher), types.WindowConfig{})

		err := h.LoadContent(context.Background(), target)
		assert.ErrorContains(t, err, "no display")
	})

	t.Run("renderer never attaches", func(t *testing.T) {
		launcher := &testutil.MockLauncher{}
		launcher.On("Launch", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		h := create(t, newHost(t, launcher), types.WindowConfig{})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, h.LoadContent(ctx, target), context.DeadlineExceeded)
	})

	t.Run("closed while loading", func(t *testing.T) {
		launcher := &testutil.MockLauncher{}
		host := newHost(t, launcher)
		h := create(t, host, types.WindowConfig{})
		launcher.On("Launch", mock.Anything, mock.Anything, mock.Anything).Run(func(mock.Arguments) {
			go func() { _ = h.Close() }()
		}).Return(nil)

		assert.ErrorIs(t, h.LoadContent(context.Background(), target), types.ErrHandleClosed)
		assert.ErrorIs(t, h.LoadContent(context.Background(), target), types.ErrHandleClosed)
	})
}

func TestExecLauncherArgs(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		expected []string
	}{
		{"appended", "xdg-open", []string{"xdg-open", "http://x/#/a"}},
		{"placeholder", "chromium --app={url} --new-window", []string{"chromium", "--app=http://x/#/a", "--new-window"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewExecLauncher(tt.command, nil)
			assert.Equal(t, tt.expected, l.Args("http://x/#/a"))
		})
	}
}

func TestNewLauncher(t *testing.T) {
	assert.IsType(t, &LogLauncher{}, NewLauncher("  ", nil))
	assert.IsType(t, &ExecLauncher{}, NewLauncher("xdg-open", nil))
	assert.NoError(t, NewLogLauncher(nil).Launch(context.Background(), "win_1", "http://x"))
	assert.Error(t, NewExecLauncher("", nil).Launch(context.Background(), "win_1", "http://x"))
}

func TestCloseSendsCloseFrame(t *testing.T) {
	host := newHost(t, nil)
	h := create(t, host, types.WindowConfig{})
	conn := &fakeConn{}
	_, err := host.Attach(h.ID(), h.Token(), conn)
	require.NoError(t, err)

	require.NoError(t, h.Close())

	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.Contains(t, conn.controls, websocket.CloseMessage)
}

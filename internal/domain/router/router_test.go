package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/GriffinCanCode/windowsync/backend/internal/domain/content"
	"github.com/GriffinCanCode/windowsync/backend/internal/domain/registry"
	"github.com/GriffinCanCode/windowsync/backend/internal/domain/window"
	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/loop"
	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/windowsync/backend/internal/shared/types"
	"github.com/GriffinCanCode/windowsync/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	lp       *loop.Loop
	cancel   context.CancelFunc
	reg      *registry.Registry
	provider *testutil.FakeProvider
	windows  *window.Manager
	router   *Router
	metrics  *monitoring.Metrics
	primary  *testutil.FakeHandle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	lp := loop.New(256, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go lp.Run(ctx)
	t.Cleanup(cancel)

	tracer := tracing.New("test", nil)
	t.Cleanup(tracer.Close)

	reg := registry.New()
	provider := testutil.NewFakeProvider()
	metrics := monitoring.NewMetrics()
	windows := window.NewManager(lp, reg, provider,
		content.NewResolver("http://localhost:5173", ""),
		content.NewLoader(content.LoaderConfig{Timeout: time.Second}),
		window.Options{MainPage: "index.html", ChildPage: "html/newWindow.html", Defaults: config.Default().Window},
		nil).WithMetrics(metrics)
	r := New(lp, reg, windows, nil).WithMetrics(metrics).WithTracer(tracer)

	f := &fixture{lp: lp, cancel: cancel, reg: reg, provider: provider, windows: windows, router: r, metrics: metrics}

	var primary types.WindowHandle
	f.flush(t, func() {
		var err error
		primary, err = windows.OpenPrimary(context.Background())
		require.NoError(t, err)
	})
	f.primary = primary.(*testutil.FakeHandle)
	f.waitReady(t, f.primary)
	return f
}

func (f *fixture) flush(t *testing.T, fn func()) {
	t.Helper()
	require.NoError(t, f.lp.Call(context.Background(), fn))
}

func (f *fixture) exec(t *testing.T, sender types.WindowHandle, msg types.Message) {
	t.Helper()
	require.NoError(t, f.router.Exec(context.Background(), sender, msg))
}

func (f *fixture) waitReady(t *testing.T, h types.WindowHandle) {
	t.Helper()
	require.Eventually(t, func() bool {
		state, _ := f.windows.State(h.ID())
		return state == types.WindowReady
	}, time.Second, 5*time.Millisecond)
	f.flush(t, func() {})
}

// open opens a session from the primary and waits until its window is ready
func (f *fixture) open(t *testing.T, id, value string) *testutil.FakeHandle {
	t.Helper()
	f.exec(t, f.primary, types.OpenOrFocus{ID: id, Value: value})
	s, ok := f.reg.Get(id)
	require.True(t, ok)
	h := s.Window.(*testutil.FakeHandle)
	f.waitReady(t, h)
	return h
}

func (f *fixture) childCount() int {
	return f.provider.Created() - 1
}

func TestIdempotentOpen(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.router.Dispatch(f.primary, types.OpenOrFocus{ID: "s1", Value: "v"}))
	require.NoError(t, f.router.Dispatch(f.primary, types.OpenOrFocus{ID: "s1", Value: "v2"}))
	f.flush(t, func() {})

	require.Equal(t, 1, f.childCount())
	child := f.provider.Handles()[1]
	assert.Equal(t, 1, child.Focused())

	update, ok := child.Last(types.ChannelUpdateValue)
	require.True(t, ok)
	assert.Equal(t, types.UpdateValue{ID: "s1", Value: "v2"}, update)

	f.waitReady(t, child)
	init, _ := child.Last(types.ChannelInitValue)
	assert.Equal(t, "v2", init.(types.InitValue).Value)
}

func TestCleanupOnClose(t *testing.T) {
	f := newFixture(t)
	child := f.open(t, "s1", "v")

	require.NoError(t, child.Close())
	f.flush(t, func() {})

	_, ok := f.reg.Get("s1")
	assert.False(t, ok)
	assert.Equal(t, 1, f.primary.Count(types.ChannelEditWindowClosed))

	// Late messages for the closed session are no-ops.
	f.exec(t, child, types.UpdateValue{ID: "s1", Value: "late"})
	f.exec(t, f.primary, types.Close{ID: "s1"})
	assert.Equal(t, 1, f.primary.Count(types.ChannelEditWindowClosed))
	assert.Equal(t, 0, f.primary.Count(types.ChannelUpdateValue))
}

func TestCloseRequestRunsClosePath(t *testing.T) {
	f := newFixture(t)
	child := f.open(t, "s1", "v")

	f.exec(t, f.primary, types.Close{ID: "s1"})
	f.flush(t, func() {})

	assert.True(t, child.IsClosed())
	assert.Equal(t, 0, f.reg.Len())
	assert.Equal(t, 1, f.primary.Count(types.ChannelEditWindowClosed))
}

func TestLastWriteWins(t *testing.T) {
	f := newFixture(t)
	a := f.open(t, "a", "")
	f.open(t, "b", "")

	f.exec(t, f.primary, types.UpdateValue{ID: "a", Value: "v1"})
	f.exec(t, f.primary, types.UpdateValue{ID: "b", Value: "other"})
	f.exec(t, f.primary, types.UpdateValue{ID: "a", Value: "v2"})

	a.Reset()
	f.exec(t, a, types.RequestCurrentValue{})

	require.Equal(t, 1, a.Count(types.ChannelInitValue))
	init, _ := a.Last(types.ChannelInitValue)
	assert.Equal(t, types.InitValue{ID: "a", Value: "v2"}, init)
}

func TestNoCrossTalk(t *testing.T) {
	f := newFixture(t)
	a := f.open(t, "a", "A")
	b := f.open(t, "b", "B")
	b.Reset()

	f.exec(t, f.primary, types.UpdateValue{ID: "a", Value: "A2"})
	f.exec(t, a, types.UpdateValue{ID: "a", Value: "A3"})

	value, _ := f.reg.Value("b")
	assert.Equal(t, "B", value)
	assert.Empty(t, b.Sent())
}

func TestCascadeClose(t *testing.T) {
	f := newFixture(t)
	a := f.open(t, "a", "")
	b := f.open(t, "b", "")

	require.NoError(t, f.primary.Close())
	f.flush(t, func() {})
	f.flush(t, func() {})

	assert.GreaterOrEqual(t, a.Closes(), 1)
	assert.GreaterOrEqual(t, b.Closes(), 1)
	assert.Equal(t, 0, f.reg.Len())
}

func TestLateJoinReceivesRegistryValue(t *testing.T) {
	f := newFixture(t)

	gate := make(chan struct{})
	f.provider.Prepare = func(_ types.WindowConfig, h *testutil.FakeHandle) { h.SetLoadGate(gate) }

	f.exec(t, f.primary, types.OpenOrFocus{ID: "s1", Value: "draft"})
	child := f.provider.Handles()[1]
	f.exec(t, f.primary, types.UpdateValue{ID: "s1", Value: "v"})

	// Still loading; the window asks anyway.
	f.exec(t, child, types.RequestCurrentValue{})
	init, ok := child.Last(types.ChannelInitValue)
	require.True(t, ok)
	assert.Equal(t, "v", init.(types.InitValue).Value)

	close(gate)
	f.waitReady(t, child)
	init, _ = child.Last(types.ChannelInitValue)
	assert.Equal(t, "v", init.(types.InitValue).Value)
}

func TestRequestCurrentValueFromUnknownSender(t *testing.T) {
	f := newFixture(t)
	stranger := testutil.NewFakeHandle()

	f.exec(t, stranger, types.RequestCurrentValue{})
	f.exec(t, nil, types.RequestCurrentValue{})

	assert.Empty(t, stranger.Sent())
}

func TestExampleScenario(t *testing.T) {
	f := newFixture(t)

	child := f.open(t, "msg-1", "hello")
	value, ok := f.reg.Value("msg-1")
	require.True(t, ok)
	assert.Equal(t, "hello", value)
	assert.Equal(t, 1, f.reg.Len())

	f.exec(t, child, types.UpdateValue{ID: "msg-1", Value: "hello world"})
	value, _ = f.reg.Value("msg-1")
	assert.Equal(t, "hello world", value)

	update, ok := f.primary.Last(types.ChannelUpdateValue)
	require.True(t, ok)
	assert.Equal(t, types.UpdateValue{ID: "msg-1", Value: "hello world"}, update)
	assert.Equal(t, 0, child.Count(types.ChannelUpdateValue))

	require.NoError(t, child.Close())
	f.flush(t, func() {})

	_, ok = f.reg.Get("msg-1")
	assert.False(t, ok)
	closed, _ := f.primary.Last(types.ChannelEditWindowClosed)
	assert.Equal(t, types.WindowClosedEvent{ID: "msg-1"}, closed)
}

func TestUpdateFromOutsideReachesBothSides(t *testing.T) {
	f := newFixture(t)
	child := f.open(t, "s1", "")

	f.exec(t, nil, types.UpdateValue{ID: "s1", Value: "api"})

	assert.Equal(t, 1, child.Count(types.ChannelUpdateValue))
	assert.Equal(t, 1, f.primary.Count(types.ChannelUpdateValue))
}

func TestEditingStateForwardedToChild(t *testing.T) {
	f := newFixture(t)
	child := f.open(t, "s1", "")

	f.exec(t, f.primary, types.NotifyEditingState{ID: "s1", Value: "draft", IsEditing: true})

	msg, ok := child.Last(types.ChannelEditingStateChanged)
	require.True(t, ok)
	assert.Equal(t, types.EditingState{ID: "s1", Value: "draft", IsEditing: true}, msg)
	assert.Equal(t, 0, f.primary.Count(types.ChannelEditingStateChanged))

	s, _ := f.reg.Get("s1")
	require.NotNil(t, s.Editing)
	assert.True(t, s.Editing.IsEditing)
	assert.Equal(t, "draft", s.Value)
}

func TestEditingProtocolForwardsToOpener(t *testing.T) {
	tests := []struct {
		action  types.EditingAction
		channel types.Channel
	}{
		{types.EditStart, types.ChannelStartEditing},
		{types.EditSync, types.ChannelSyncEditing},
		{types.EditSave, types.ChannelSaveEditing},
		{types.EditCancel, types.ChannelCancelEditing},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			f := newFixture(t)
			child := f.open(t, "s1", "committed")

			req := types.EditingRequest{Action: tt.action, ID: "s1", Value: "draft"}
			f.exec(t, child, req)

			got, ok := f.primary.Last(tt.channel)
			require.True(t, ok)
			assert.Equal(t, req, got)

			// Forward only: no registry write, child stays open.
			value, _ := f.reg.Value("s1")
			assert.Equal(t, "committed", value)
			assert.False(t, child.IsClosed())
			assert.Equal(t, 0, child.Count(tt.channel))
		})
	}
}

func TestEditingFromOpenerIsDropped(t *testing.T) {
	f := newFixture(t)
	f.open(t, "s1", "")

	f.exec(t, f.primary, types.EditingRequest{Action: types.EditSave, ID: "s1"})
	f.exec(t, f.primary, types.EditingRequest{Action: types.EditSave, ID: "missing"})

	assert.Equal(t, 0, f.primary.Count(types.ChannelSaveEditing))
}

func TestStreamBroadcastExceptSender(t *testing.T) {
	f := newFixture(t)
	a := f.open(t, "a", "")
	b := f.open(t, "b", "")

	env := types.Envelope{Topic: "chat", Payload: json.RawMessage(`{"text":"hi"}`), SourceID: "spoofed"}
	f.exec(t, a, env)

	assert.Equal(t, 0, a.Count(types.ChannelWindowStream))
	for _, h := range []*testutil.FakeHandle{b, f.primary} {
		got, ok := h.Last(types.ChannelWindowStream)
		require.True(t, ok)
		e := got.(types.Envelope)
		assert.Equal(t, "a", e.SourceID)
		assert.Equal(t, "chat", e.Topic)
		assert.JSONEq(t, `{"text":"hi"}`, string(e.Payload))
	}
}

func TestStreamTargeted(t *testing.T) {
	f := newFixture(t)
	a := f.open(t, "a", "")
	b := f.open(t, "b", "")

	f.exec(t, a, types.Envelope{Topic: "ping", TargetID: window.PrimaryLabel})
	f.exec(t, f.primary, types.Envelope{Topic: "pong", TargetID: "a"})
	f.exec(t, nil, types.Envelope{Topic: "note", TargetID: "b"})
	f.exec(t, a, types.Envelope{Topic: "lost", TargetID: "nobody"})

	got, _ := f.primary.Last(types.ChannelWindowStream)
	assert.Equal(t, "ping", got.(types.Envelope).Topic)
	assert.Equal(t, "a", got.(types.Envelope).SourceID)

	got, _ = a.Last(types.ChannelWindowStream)
	assert.Equal(t, "pong", got.(types.Envelope).Topic)
	assert.Equal(t, window.PrimaryLabel, got.(types.Envelope).SourceID)

	got, _ = b.Last(types.ChannelWindowStream)
	assert.Equal(t, "note", got.(types.Envelope).Topic)
	assert.Equal(t, HostLabel, got.(types.Envelope).SourceID)

	assert.Equal(t, 1, f.primary.Count(types.ChannelWindowStream))
}

func TestWindowCreateWithConfig(t *testing.T) {
	f := newFixture(t)

	data := map[string]any{"mode": "compact"}
	f.exec(t, f.primary, types.CreateWindow{WindowConfig: types.WindowConfig{
		ID: "cfg", Width: 900, Route: "/settings", InitialData: data,
	}})

	s, ok := f.reg.Get("cfg")
	require.True(t, ok)
	child := s.Window.(*testutil.FakeHandle)
	f.waitReady(t, child)

	cfg := f.provider.Configs()[1]
	assert.Equal(t, 900, cfg.Width)
	assert.Equal(t, 400, cfg.Height)
	assert.Equal(t, "html/newWindow.html", cfg.Page)

	loaded := child.Loaded()
	require.Len(t, loaded, 1)
	assert.Equal(t, "http://localhost:5173/html/newWindow.html#/settings", loaded[0].String())

	init, _ := child.Last(types.ChannelInitValue)
	assert.Equal(t, types.InitValue{ID: "cfg", Route: "/settings", Data: data}, init)

	// Re-creating with new data focuses and re-sends init.
	next := map[string]any{"mode": "full"}
	f.exec(t, f.primary, types.CreateWindow{WindowConfig: types.WindowConfig{ID: "cfg", InitialData: next}})
	assert.Equal(t, 1, f.childCount())
	assert.Equal(t, 1, child.Focused())
	init, _ = child.Last(types.ChannelInitValue)
	assert.Equal(t, next, init.(types.InitValue).Data)
}

func TestWindowCreateGeneratesID(t *testing.T) {
	f := newFixture(t)

	f.exec(t, nil, types.CreateWindow{})
	require.Equal(t, 1, f.reg.Len())

	s := f.reg.List()[0]
	assert.NotEmpty(t, s.ID)
	assert.Same(t, f.primary, s.Opener.(*testutil.FakeHandle))
}

func TestWindowCloseWithoutIDClosesSender(t *testing.T) {
	f := newFixture(t)
	child := f.open(t, "s1", "")

	f.exec(t, child, types.CloseWindow{})
	f.flush(t, func() {})

	assert.True(t, child.IsClosed())
	assert.Equal(t, 0, f.reg.Len())
	assert.Equal(t, 1, f.primary.Count(types.ChannelEditWindowClosed))
}

func TestWindowCloseByAddress(t *testing.T) {
	f := newFixture(t)
	child := f.open(t, "s1", "")

	f.exec(t, nil, types.CloseWindow{ID: "s1"})
	f.flush(t, func() {})
	assert.True(t, child.IsClosed())

	f.exec(t, nil, types.CloseWindow{ID: window.PrimaryLabel})
	f.flush(t, func() {})
	assert.True(t, f.primary.IsClosed())
}

func TestOpenWithPrimaryLabelLeavesPrimaryAlone(t *testing.T) {
	f := newFixture(t)
	other := f.open(t, "s1", "")

	f.exec(t, other, types.OpenOrFocus{ID: window.PrimaryLabel, Value: "v"})
	assert.Equal(t, 1, f.reg.Len())
	closed, ok := other.Last(types.ChannelEditWindowClosed)
	require.True(t, ok)
	assert.Equal(t, types.WindowClosedEvent{ID: window.PrimaryLabel}, closed)

	f.exec(t, other, types.CloseWindow{ID: window.PrimaryLabel})
	f.flush(t, func() {})
	assert.True(t, f.primary.IsClosed())
}

func TestCreateFailureTellsOpener(t *testing.T) {
	f := newFixture(t)
	f.provider.CreateErr = errors.New("no display")

	f.exec(t, f.primary, types.OpenOrFocus{ID: "s1", Value: "v"})

	assert.Equal(t, 0, f.reg.Len())
	closed, ok := f.primary.Last(types.ChannelEditWindowClosed)
	require.True(t, ok)
	assert.Equal(t, types.WindowClosedEvent{ID: "s1"}, closed)
}

func TestLoadFailureTellsOpener(t *testing.T) {
	f := newFixture(t)
	f.provider.Prepare = func(_ types.WindowConfig, h *testutil.FakeHandle) {
		h.SetLoadErr(errors.New("dev server down"))
	}

	f.exec(t, f.primary, types.OpenOrFocus{ID: "s1", Value: "v"})
	require.Eventually(t, func() bool { return f.reg.Len() == 0 }, time.Second, 5*time.Millisecond)
	f.flush(t, func() {})

	assert.Equal(t, 1, f.primary.Count(types.ChannelEditWindowClosed))
}

func TestDispatchAfterStop(t *testing.T) {
	f := newFixture(t)
	f.cancel()
	<-f.lp.Done()

	assert.ErrorIs(t, f.router.Dispatch(f.primary, types.RequestCurrentValue{}), loop.ErrStopped)
}

func TestMetricsCountMessagesAndDrops(t *testing.T) {
	f := newFixture(t)

	f.exec(t, f.primary, types.UpdateValue{ID: "ghost", Value: "x"})

	snap := f.metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Messages)
	assert.Equal(t, int64(1), snap.Dropped)
}

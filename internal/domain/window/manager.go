package window

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/windowsync/backend/internal/domain/content"
	"github.com/GriffinCanCode/windowsync/backend/internal/domain/registry"
	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/loop"
	"github.com/GriffinCanCode/windowsync/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/windowsync/backend/internal/shared/id"
	"github.com/GriffinCanCode/windowsync/backend/internal/shared/types"
	"go.uber.org/zap"
)

// PrimaryLabel addresses the primary window on the event bus
const PrimaryLabel = "main"

var (
	ErrPrimaryOpen = errors.New("primary window already open")
	ErrNoProvider  = errors.New("no window provider")
	ErrReservedID  = errors.New("session id is reserved")
)

// Loader loads content into a window, blocking until it is done
type Loader interface {
	Load(ctx context.Context, h types.WindowHandle, target types.Target) error
}

// Options configures a Manager
type Options struct {
	MainPage  string
	ChildPage string
	Defaults  config.WindowConfig
	Profiles  config.Profiles
}

// tracked is a window the manager owns. Mutated on the loop only.
type tracked struct {
	handle    types.WindowHandle
	sessionID string
	primary   bool
	state     types.WindowState
	cancel    context.CancelFunc
	createdAt time.Time
}

func (t *tracked) label() string {
	if t.primary {
		return PrimaryLabel
	}
	if t.sessionID != "" {
		return t.sessionID
	}
	return t.handle.ID()
}

func (t *tracked) info() types.WindowInfo {
	return types.WindowInfo{
		HandleID:  t.handle.ID(),
		SessionID: t.sessionID,
		Primary:   t.primary,
		State:     t.state,
		StateName: t.state.String(),
	}
}

// Manager owns window lifecycles: create, load, ready, close.
//
// Every method except State, Windows and the subscription calls must run on
// the event loop.
type Manager struct {
	loop     *loop.Loop
	registry *registry.Registry
	provider types.WindowProvider
	resolver content.Resolver
	loader   Loader
	opts     Options
	metrics  *monitoring.Metrics
	logger   *zap.Logger

	mu      sync.RWMutex
	windows map[string]*tracked // Protected by mu; keyed by handle id
	primary *tracked            // Protected by mu

	subMu     sync.Mutex
	nextSub   int
	onCreated map[int]func(types.WindowInfo) // Protected by subMu
	onClosed  map[int]func(types.WindowInfo) // Protected by subMu
}

// NewManager creates a window manager
func NewManager(
	lp *loop.Loop,
	reg *registry.Registry,
	provider types.WindowProvider,
	resolver content.Resolver,
	loader Loader,
	opts Options,
	logger *zap.Logger,
) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MainPage == "" {
		opts.MainPage = content.DefaultPage
	}
	if opts.ChildPage == "" {
		opts.ChildPage = opts.MainPage
	}

	return &Manager{
		loop:      lp,
		registry:  reg,
		provider:  provider,
		resolver:  resolver,
		loader:    loader,
		opts:      opts,
		logger:    logger.Named("window"),
		windows:   make(map[string]*tracked),
		onCreated: make(map[int]func(types.WindowInfo)),
		onClosed:  make(map[int]func(types.WindowInfo)),
	}
}

// WithMetrics adds metrics tracking to the manager
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// OpenPrimary creates and loads the primary window. Closing it closes every
// session window and clears the registry.
func (m *Manager) OpenPrimary(ctx context.Context) (types.WindowHandle, error) {
	m.mu.RLock()
	open := m.primary != nil
	m.mu.RUnlock()
	if open {
		return nil, ErrPrimaryOpen
	}

	width, height := m.opts.Profiles.Size(m.opts.MainPage, m.opts.Defaults)
	cfg := types.WindowConfig{
		Title:   m.opts.Profiles.Title(m.opts.MainPage),
		Width:   width,
		Height:  height,
		Page:    m.opts.MainPage,
		Primary: true,
	}

	t, err := m.open(ctx, cfg, "")
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.primary = t
	m.mu.Unlock()

	m.logger.Info("Primary window opened", zap.String("handle", t.handle.ID()))
	return t.handle, nil
}

// Create opens a session window for cfg.ID, generating an id when empty.
// If the session is already live, the existing session is returned with
// created false and nothing else happens.
func (m *Manager) Create(ctx context.Context, cfg types.WindowConfig, opener types.WindowHandle) (registry.Session, bool, error) {
	if cfg.ID == "" {
		cfg.ID = id.NewSessionID().String()
	}
	// The primary's event-bus address cannot name a session
	if cfg.ID == PrimaryLabel {
		return registry.Session{}, false, fmt.Errorf("%w: %q", ErrReservedID, cfg.ID)
	}
	if existing, ok := m.registry.Get(cfg.ID); ok {
		return existing, false, nil
	}

	if cfg.Page == "" {
		cfg.Page = m.opts.ChildPage
	}
	width, height := m.opts.Profiles.Size(cfg.Page, m.opts.Defaults)
	if cfg.Width <= 0 {
		cfg.Width = width
	}
	if cfg.Height <= 0 {
		cfg.Height = height
	}
	if cfg.Title == "" {
		cfg.Title = m.opts.Profiles.Title(cfg.Page)
	}
	cfg.Primary = false

	if opener == nil {
		opener = m.Primary()
	}

	t, err := m.open(ctx, cfg, cfg.ID)
	if err != nil {
		return registry.Session{}, false, err
	}

	// Written before the load completes so a burst of opens sees it as live.
	session, _ := m.registry.Put(registry.Session{
		ID:          cfg.ID,
		Value:       cfg.Value,
		Window:      t.handle,
		Opener:      opener,
		Route:       cfg.Route,
		InitialData: cfg.InitialData,
	})
	m.setSessionsGauge()

	m.logger.Info("Session window opened",
		zap.String("session", cfg.ID),
		zap.String("handle", t.handle.ID()),
		zap.String("page", cfg.Page))
	return session, true, nil
}

// open creates a handle, tracks it and starts the async load
func (m *Manager) open(ctx context.Context, cfg types.WindowConfig, sessionID string) (*tracked, error) {
	if m.provider == nil {
		return nil, ErrNoProvider
	}

	h, err := m.provider.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// Loads outlive the request that asked for them; closing the window cancels.
	loadCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t := &tracked{
		handle:    h,
		sessionID: sessionID,
		primary:   cfg.Primary,
		state:     types.WindowCreated,
		cancel:    cancel,
		createdAt: time.Now(),
	}

	m.mu.Lock()
	m.windows[h.ID()] = t
	t.state = types.WindowLoading
	m.mu.Unlock()

	h.OnClosed(func() {
		if err := m.loop.Post(func() { m.handleClosed(h) }); err != nil {
			m.logger.Debug("Close event after loop stopped", zap.String("handle", h.ID()))
		}
	})

	if m.metrics != nil {
		m.metrics.IncWindowsOpened()
	}

	target := m.resolver.Resolve(cfg.Page, cfg.Route)
	go func() {
		err := m.loader.Load(loadCtx, h, target)
		if postErr := m.loop.Post(func() { m.loadFinished(h, err) }); postErr != nil {
			cancel()
		}
	}()

	return t, nil
}

// loadFinished is the load continuation, run on the loop
func (m *Manager) loadFinished(h types.WindowHandle, loadErr error) {
	m.mu.Lock()
	t, ok := m.windows[h.ID()]
	if !ok || t.state == types.WindowClosed {
		m.mu.Unlock()
		return
	}
	if loadErr != nil {
		m.mu.Unlock()
		m.logger.Warn("Window failed to load",
			zap.String("window", t.label()),
			zap.String("handle", h.ID()),
			zap.Error(loadErr))
		// The close event removes the session and tells the opener.
		if err := h.Close(); err != nil {
			m.logger.Debug("Close after load failure", zap.String("handle", h.ID()), zap.Error(err))
		}
		return
	}
	t.state = types.WindowReady
	info := t.info()
	m.mu.Unlock()

	if !t.primary {
		m.sendInit(t)
	}

	m.broadcastEvent(types.EventCreated, t.label(), h)
	m.notify(m.createdSubscribers(), info)
}

// SendInit re-delivers init-value to a ready session window
func (m *Manager) SendInit(sessionID string) bool {
	s, ok := m.registry.Get(sessionID)
	if !ok || s.Window == nil {
		return false
	}

	m.mu.RLock()
	t, ok := m.windows[s.Window.ID()]
	ready := ok && t.state == types.WindowReady
	m.mu.RUnlock()
	if !ready {
		// Delivered when the load finishes.
		return false
	}
	return m.sendInit(t)
}

// sendInit sends the latest registry value, not the value at creation
func (m *Manager) sendInit(t *tracked) bool {
	s, ok := m.registry.Get(t.sessionID)
	if !ok || s.Window != t.handle {
		return false
	}

	payload := types.InitValue{ID: s.ID, Value: s.Value, Route: s.Route, Data: s.InitialData}
	if err := t.handle.Send(types.ChannelInitValue, payload); err != nil {
		m.logger.Debug("init-value not delivered", zap.String("session", s.ID), zap.Error(err))
		return false
	}
	return true
}

// handleClosed runs once per handle on the loop, whoever closed it
func (m *Manager) handleClosed(h types.WindowHandle) {
	m.mu.Lock()
	t, ok := m.windows[h.ID()]
	if !ok || t.state == types.WindowClosed {
		m.mu.Unlock()
		return
	}
	t.state = types.WindowClosed
	t.cancel()
	delete(m.windows, h.ID())
	if m.primary == t {
		m.primary = nil
	}
	info := t.info()
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.IncWindowsClosed()
	}

	if t.primary {
		m.cascade()
	} else if t.sessionID != "" {
		if s, removed := m.registry.RemoveIfWindow(t.sessionID, h); removed {
			m.setSessionsGauge()
			if s.Opener != nil && s.Opener != h {
				if err := s.Opener.Send(types.ChannelEditWindowClosed, types.WindowClosedEvent{ID: s.ID}); err != nil {
					m.logger.Debug("edit-window-closed not delivered", zap.String("session", s.ID), zap.Error(err))
				}
			}
		}
	}

	m.broadcastEvent(types.EventClosed, t.label(), h)
	m.notify(m.closedSubscribers(), info)

	m.logger.Info("Window closed",
		zap.String("window", t.label()),
		zap.String("handle", h.ID()))
}

// cascade closes every remaining window after the primary closed
func (m *Manager) cascade() {
	removed := m.registry.Clear()
	m.setSessionsGauge()

	m.mu.RLock()
	handles := make([]types.WindowHandle, 0, len(m.windows))
	for _, t := range m.windows {
		handles = append(handles, t.handle)
	}
	m.mu.RUnlock()

	for _, s := range removed {
		if s.Window != nil && !containsHandle(handles, s.Window) {
			handles = append(handles, s.Window)
		}
	}

	for _, h := range handles {
		if err := h.Close(); err != nil {
			m.logger.Debug("Cascade close failed", zap.String("handle", h.ID()), zap.Error(err))
		}
	}

	m.logger.Info("Primary window closed; closed session windows", zap.Int("count", len(handles)))
}

// Focus raises the live window for a session
func (m *Manager) Focus(sessionID string) bool {
	s, ok := m.registry.Get(sessionID)
	if !ok || s.Window == nil {
		return false
	}
	if err := s.Window.Focus(); err != nil {
		m.logger.Debug("Focus failed", zap.String("session", sessionID), zap.Error(err))
		return false
	}
	m.broadcastEvent(types.EventFocused, sessionID, s.Window)
	return true
}

// Close asks the session's window to close. Cleanup happens in its close event.
func (m *Manager) Close(sessionID string) bool {
	s, ok := m.registry.Get(sessionID)
	if !ok || s.Window == nil {
		return false
	}
	if err := s.Window.Close(); err != nil {
		m.logger.Debug("Close failed", zap.String("session", sessionID), zap.Error(err))
		return false
	}
	return true
}

// CloseAll closes every window, session windows first
func (m *Manager) CloseAll() {
	m.mu.RLock()
	var primary types.WindowHandle
	others := make([]types.WindowHandle, 0, len(m.windows))
	for _, t := range m.windows {
		if t.primary {
			primary = t.handle
			continue
		}
		others = append(others, t.handle)
	}
	m.mu.RUnlock()

	for _, h := range others {
		_ = h.Close()
	}
	if primary != nil {
		_ = primary.Close()
	}
}

// State returns the lifecycle state of a handle. Untracked handles report
// WindowClosed and false.
func (m *Manager) State(handleID string) (types.WindowState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.windows[handleID]
	if !ok {
		return types.WindowClosed, false
	}
	return t.state, true
}

// Windows returns every tracked window, oldest first
func (m *Manager) Windows() []types.WindowInfo {
	m.mu.RLock()
	list := make([]*tracked, 0, len(m.windows))
	for _, t := range m.windows {
		list = append(list, t)
	}
	infos := make([]types.WindowInfo, 0, len(list))
	sort.Slice(list, func(i, j int) bool { return list[i].createdAt.Before(list[j].createdAt) })
	for _, t := range list {
		infos = append(infos, t.info())
	}
	m.mu.RUnlock()

	return infos
}

// Primary returns the primary window, or nil
func (m *Manager) Primary() types.WindowHandle {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.primary == nil {
		return nil
	}
	return m.primary.handle
}

// IsPrimary reports whether h is the primary window
func (m *Manager) IsPrimary(h types.WindowHandle) bool {
	if h == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.primary != nil && m.primary.handle == h
}

// Label returns the event-bus address of h: "main", its session id, or its handle id
func (m *Manager) Label(h types.WindowHandle) string {
	if h == nil {
		return ""
	}
	m.mu.RLock()
	t, ok := m.windows[h.ID()]
	m.mu.RUnlock()
	if ok {
		return t.label()
	}
	if sid, ok := m.registry.FindIDByHandle(h); ok {
		return sid
	}
	return h.ID()
}

// Lookup resolves an event-bus address to a live handle
func (m *Manager) Lookup(address string) (types.WindowHandle, bool) {
	if address == PrimaryLabel {
		h := m.Primary()
		return h, h != nil
	}
	if s, ok := m.registry.Get(address); ok && s.Window != nil {
		return s.Window, true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.windows[address]; ok {
		return t.handle, true
	}
	return nil, false
}

// Broadcast sends to every live window except the given one. It returns the
// number of windows reached.
func (m *Manager) Broadcast(channel types.Channel, payload any, except types.WindowHandle) int {
	m.mu.RLock()
	targets := make([]types.WindowHandle, 0, len(m.windows))
	for _, t := range m.windows {
		if t.state == types.WindowClosed || t.handle == except {
			continue
		}
		targets = append(targets, t.handle)
	}
	m.mu.RUnlock()

	sent := 0
	for _, h := range targets {
		if err := h.Send(channel, payload); err != nil {
			m.logger.Debug("Broadcast not delivered",
				zap.String("channel", string(channel)),
				zap.String("handle", h.ID()),
				zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

func (m *Manager) broadcastEvent(kind types.WindowEventType, label string, subject types.WindowHandle) {
	m.Broadcast(types.ChannelWindowEvent, types.WindowEvent{
		Type:      kind,
		WindowID:  label,
		Timestamp: time.Now().UnixMilli(),
	}, subject)
}

// OnCreated registers fn to run when a window becomes ready.
// The returned func unsubscribes.
func (m *Manager) OnCreated(fn func(types.WindowInfo)) func() {
	return m.subscribe(m.onCreated, fn)
}

// OnClosed registers fn to run after a window closed.
// The returned func unsubscribes.
func (m *Manager) OnClosed(fn func(types.WindowInfo)) func() {
	return m.subscribe(m.onClosed, fn)
}

func (m *Manager) subscribe(set map[int]func(types.WindowInfo), fn func(types.WindowInfo)) func() {
	m.subMu.Lock()
	key := m.nextSub
	m.nextSub++
	set[key] = fn
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(set, key)
			m.subMu.Unlock()
		})
	}
}

func (m *Manager) createdSubscribers() []func(types.WindowInfo) {
	return m.subscribers(m.onCreated)
}

func (m *Manager) closedSubscribers() []func(types.WindowInfo) {
	return m.subscribers(m.onClosed)
}

func (m *Manager) subscribers(set map[int]func(types.WindowInfo)) []func(types.WindowInfo) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	fns := make([]func(types.WindowInfo), 0, len(keys))
	for _, k := range keys {
		fns = append(fns, set[k])
	}
	return fns
}

func (m *Manager) notify(fns []func(types.WindowInfo), info types.WindowInfo) {
	for _, fn := range fns {
		fn(info)
	}
}

func (m *Manager) setSessionsGauge() {
	if m.metrics != nil {
		m.metrics.SetSessionsActive(m.registry.Len())
	}
}

func containsHandle(list []types.WindowHandle, h types.WindowHandle) bool {
	for _, x := range list {
		if x == h {
			return true
		}
	}
	return false
}

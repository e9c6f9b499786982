// Package monitor polls VNNOX terminals for their status and keeps the
// content they play aligned with the display's active schedule.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ledmanager/internal/db"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/model"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/observability"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/vnnox"
)

const (
	DefaultInterval    = 30 * time.Second
	DefaultTickTimeout = 30 * time.Second

	// status writes after a failed call get their own budget so the
	// error is recorded even when the tick deadline has passed
	persistTimeout = 5 * time.Second
)

type DisplayStore interface {
	GetDisplay(ctx context.Context, id string) (model.Display, error)
	SetDisplayStatus(ctx context.Context, id string, status model.DisplayStatus, lastSeen *time.Time) error
	ListDisplaysByUser(ctx context.Context, userID string) ([]model.Display, error)
}

type ScheduleStore interface {
	// GetActiveSchedules returns enabled schedules of the display whose
	// window contains now, ordered by start time ascending.
	GetActiveSchedules(ctx context.Context, displayID string, now time.Time) ([]model.Schedule, error)
}

type DeviceClient interface {
	GetStatus(ctx context.Context, terminalID string) (vnnox.Envelope[vnnox.TerminalStatus], error)
	GetPlayingContent(ctx context.Context, terminalID string) (vnnox.PlayingContent, error)
	PublishContent(ctx context.Context, terminalID, contentID string) error
}

// StatusCache keeps the latest observation per display for fast reads.
type StatusCache interface {
	SetDisplayStatus(ctx context.Context, update model.StatusUpdate) error
}

// Notifier pushes status transitions to connected dashboards.
type Notifier interface {
	PublishDisplayUpdate(ctx context.Context, update model.StatusUpdate) error
}

type Config struct {
	Interval    time.Duration
	TickTimeout time.Duration
	// Location is used to compute the weekday for repeat schedules.
	Location *time.Location
}

type Dependencies struct {
	Displays  DisplayStore
	Schedules ScheduleStore
	Device    DeviceClient
	Cache     StatusCache // optional
	Notifier  Notifier    // optional
}

type tickerFunc func(d time.Duration) (<-chan time.Time, func())

func newTimeTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Monitor owns one polling goroutine per monitored display.
type Monitor struct {
	cfg  Config
	deps Dependencies

	now       func() time.Time
	newTicker tickerFunc

	mu    sync.Mutex
	tasks map[string]context.CancelFunc
	wg    sync.WaitGroup
}

func New(cfg Config, deps Dependencies) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = DefaultTickTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Monitor{
		cfg:       cfg,
		deps:      deps,
		now:       time.Now,
		newTicker: newTimeTicker,
		tasks:     make(map[string]context.CancelFunc),
	}
}

// StartMonitoring replaces any running timer for displayID with a new one
// and runs one check before returning.
func (m *Monitor) StartMonitoring(displayID string) {
	m.install(displayID)
	m.CheckDisplayStatus(context.Background(), displayID)
}

// install replaces the timer for displayID without running a check.
func (m *Monitor) install(displayID string) {
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	if prev, ok := m.tasks[displayID]; ok {
		prev()
	}
	m.tasks[displayID] = cancel
	active := len(m.tasks)
	m.wg.Add(1)
	m.mu.Unlock()

	observability.SetActiveDisplays(active)
	log.Info().Str("display_id", displayID).Dur("interval", m.cfg.Interval).Msg("monitoring started")

	go m.run(ctx, displayID)
}

// StopMonitoring cancels the timer for displayID. No tick starts after it
// returns; a tick already running is allowed to finish.
func (m *Monitor) StopMonitoring(displayID string) {
	m.mu.Lock()
	cancel, ok := m.tasks[displayID]
	if ok {
		cancel()
		delete(m.tasks, displayID)
	}
	active := len(m.tasks)
	m.mu.Unlock()

	if ok {
		observability.SetActiveDisplays(active)
		log.Info().Str("display_id", displayID).Msg("monitoring stopped")
	}
}

func (m *Monitor) StopAllMonitoring() {
	m.mu.Lock()
	n := len(m.tasks)
	for id, cancel := range m.tasks {
		cancel()
		delete(m.tasks, id)
	}
	m.mu.Unlock()

	observability.SetActiveDisplays(0)
	log.Info().Int("displays", n).Msg("all monitoring stopped")
}

// Wait blocks until every polling goroutine has exited or ctx is done.
func (m *Monitor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) IsMonitoring(displayID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tasks[displayID]
	return ok
}

// MonitoredDisplays returns the ids with a running timer, in no particular order.
func (m *Monitor) MonitoredDisplays() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.tasks))
	for id := range m.tasks {
		ids = append(ids, id)
	}
	return ids
}

// StartUserDisplayMonitoring starts monitoring every display owned by userID
// and returns how many were started. All timers are installed first; the
// immediate checks then run concurrently and are waited for.
func (m *Monitor) StartUserDisplayMonitoring(ctx context.Context, userID string) (int, error) {
	displays, err := m.deps.Displays.ListDisplaysByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to list displays for monitoring")
		return 0, fmt.Errorf("list displays for user %s: %w", userID, err)
	}
	for _, d := range displays {
		m.install(d.ID)
	}

	var wg sync.WaitGroup
	for _, d := range displays {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			m.safeCheck(id)
		}(d.ID)
	}
	wg.Wait()
	return len(displays), nil
}

// StopUserDisplayMonitoring stops the timers of every display owned by userID.
func (m *Monitor) StopUserDisplayMonitoring(ctx context.Context, userID string) (int, error) {
	displays, err := m.deps.Displays.ListDisplaysByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list displays for user %s: %w", userID, err)
	}
	stopped := 0
	for _, d := range displays {
		if m.IsMonitoring(d.ID) {
			m.StopMonitoring(d.ID)
			stopped++
		}
	}
	return stopped, nil
}

func (m *Monitor) run(ctx context.Context, displayID string) {
	defer m.wg.Done()

	ticks, stop := m.newTicker(m.cfg.Interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			// select picks randomly between ready cases
			if ctx.Err() != nil {
				return
			}
			m.safeCheck(displayID)
		}
	}
}

func (m *Monitor) safeCheck(displayID string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("display_id", displayID).Msg("display check panicked")
		}
	}()
	m.CheckDisplayStatus(context.Background(), displayID)
}

// CheckDisplayStatus is one tick: it records the terminal's status and, when
// the terminal is online, reconciles its content with the active schedule.
// Failures are recorded as StatusError and never returned.
func (m *Monitor) CheckDisplayStatus(ctx context.Context, displayID string) model.DisplayStatus {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, m.cfg.TickTimeout)
	defer cancel()

	status := m.check(ctx, displayID)
	observability.RecordTick(string(status), time.Since(start))
	return status
}

func (m *Monitor) check(ctx context.Context, displayID string) model.DisplayStatus {
	display, err := m.deps.Displays.GetDisplay(ctx, displayID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			err = fmt.Errorf("%w: %s", ErrNotFound, displayID)
		}
		log.Error().Err(err).Str("display_id", displayID).Msg("failed to load display")
		// no stored status to compare against
		m.persist(ctx, model.Display{ID: displayID}, model.StatusError, nil)
		return model.StatusError
	}
	if display.TerminalID == "" {
		err = fmt.Errorf("%w: display %s has no terminal id", ErrNotFound, displayID)
		log.Error().Err(err).Str("display_id", displayID).Msg("failed to load display")
		m.persist(ctx, display, model.StatusError, nil)
		return model.StatusError
	}

	resp, err := m.deps.Device.GetStatus(ctx, display.TerminalID)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
		log.Error().Err(err).
			Str("display_id", displayID).
			Str("terminal_id", display.TerminalID).
			Msg("failed to update display status")
		m.persist(ctx, display, model.StatusError, nil)
		return model.StatusError
	}

	now := m.now()
	status := model.StatusOffline
	var lastSeen *time.Time
	if resp.OK() && resp.Data.Online {
		status = model.StatusOnline
		lastSeen = &now
	}

	if err := m.persist(ctx, display, status, lastSeen); err != nil {
		return status
	}

	if status == model.StatusOnline {
		if err := m.reconcile(ctx, display, now); err != nil {
			log.Error().Err(err).Str("display_id", displayID).Msg("failed to check scheduled content")
		}
	}
	return status
}

// persist writes the status and then fans it out to the cache and, on a
// transition from the loaded status, the notifier. A display without a
// stored status is never broadcast. Only the store error is returned.
func (m *Monitor) persist(ctx context.Context, display model.Display, status model.DisplayStatus, lastSeen *time.Time) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := m.deps.Displays.SetDisplayStatus(writeCtx, display.ID, status, lastSeen); err != nil {
		log.Error().Err(err).
			Str("display_id", display.ID).
			Str("status", string(status)).
			Msg("failed to persist display status")
		return err
	}

	update := model.StatusUpdate{
		DisplayID: display.ID,
		Status:    status,
		LastSeen:  display.LastSeen,
		CheckedAt: m.now(),
	}
	if lastSeen != nil {
		update.LastSeen = lastSeen
	}

	if m.deps.Cache != nil {
		if err := m.deps.Cache.SetDisplayStatus(writeCtx, update); err != nil {
			log.Warn().Err(err).Str("display_id", display.ID).Msg("failed to cache display status")
		}
	}
	if m.deps.Notifier != nil && display.Status != "" && status != display.Status {
		if err := m.deps.Notifier.PublishDisplayUpdate(writeCtx, update); err != nil {
			log.Warn().Err(err).Str("display_id", display.ID).Msg("failed to broadcast display update")
		}
	}
	return nil
}

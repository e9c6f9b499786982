package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/ledmanager/internal/db"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/model"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/vnnox"
)

var testNow = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC) // Monday

type statusWrite struct {
	id       string
	status   model.DisplayStatus
	lastSeen *time.Time
}

type fakeStore struct {
	mu        sync.Mutex
	displays  map[string]model.Display
	schedules map[string][]model.Schedule
	writes    []statusWrite
	writeErr  error
}

func newFakeStore(displays ...model.Display) *fakeStore {
	s := &fakeStore{displays: map[string]model.Display{}, schedules: map[string][]model.Schedule{}}
	for _, d := range displays {
		s.displays[d.ID] = d
	}
	return s
}

func (s *fakeStore) GetDisplay(_ context.Context, id string) (model.Display, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.displays[id]
	if !ok {
		return model.Display{}, db.ErrNotFound
	}
	return d, nil
}

func (s *fakeStore) SetDisplayStatus(_ context.Context, id string, status model.DisplayStatus, lastSeen *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.writes = append(s.writes, statusWrite{id: id, status: status, lastSeen: lastSeen})
	if d, ok := s.displays[id]; ok {
		d.Status = status
		if lastSeen != nil {
			d.LastSeen = lastSeen
		}
		s.displays[id] = d
	}
	return nil
}

func (s *fakeStore) ListDisplaysByUser(_ context.Context, userID string) ([]model.Display, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Display
	for _, d := range s.displays {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *fakeStore) GetActiveSchedules(_ context.Context, displayID string, _ time.Time) ([]model.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedules[displayID], nil
}

func (s *fakeStore) Writes() []statusWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]statusWrite(nil), s.writes...)
}

type fakeDevice struct {
	mu         sync.Mutex
	status     vnnox.Envelope[vnnox.TerminalStatus]
	statusErr  error
	hang       map[string]bool // terminals whose status call blocks until ctx is done
	playing    *string
	playingErr error
	publishErr error
	publishes  []string
}

func (d *fakeDevice) GetStatus(ctx context.Context, terminalID string) (vnnox.Envelope[vnnox.TerminalStatus], error) {
	d.mu.Lock()
	hang := d.hang[terminalID]
	status, err := d.status, d.statusErr
	d.mu.Unlock()

	if hang {
		<-ctx.Done()
		return vnnox.Envelope[vnnox.TerminalStatus]{}, ctx.Err()
	}
	return status, err
}

func (d *fakeDevice) GetPlayingContent(context.Context, string) (vnnox.PlayingContent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.playingErr != nil {
		return vnnox.PlayingContent{}, d.playingErr
	}
	return vnnox.PlayingContent{ContentID: d.playing}, nil
}

// PublishContent records every attempt, including failed ones.
func (d *fakeDevice) PublishContent(_ context.Context, _ string, contentID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.publishes = append(d.publishes, contentID)
	if d.publishErr != nil {
		return d.publishErr
	}
	id := contentID
	d.playing = &id
	return nil
}

func (d *fakeDevice) Publishes() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.publishes...)
}

type fakeNotifier struct {
	mu      sync.Mutex
	updates []model.StatusUpdate
}

func (n *fakeNotifier) PublishDisplayUpdate(_ context.Context, u model.StatusUpdate) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, u)
	return nil
}

func (n *fakeNotifier) SetDisplayStatus(ctx context.Context, u model.StatusUpdate) error {
	return n.PublishDisplayUpdate(ctx, u)
}

func (n *fakeNotifier) Updates() []model.StatusUpdate {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.StatusUpdate(nil), n.updates...)
}

type manualTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (t *manualTicker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type tickers struct {
	mu  sync.Mutex
	all []*manualTicker
}

func (ts *tickers) new(time.Duration) (<-chan time.Time, func()) {
	t := &manualTicker{ch: make(chan time.Time, 1)}
	ts.mu.Lock()
	ts.all = append(ts.all, t)
	ts.mu.Unlock()
	return t.ch, func() {
		t.mu.Lock()
		t.stopped = true
		t.mu.Unlock()
	}
}

func (ts *tickers) get(i int) *manualTicker {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if i >= len(ts.all) {
		return nil
	}
	return ts.all[i]
}

func (ts *tickers) count() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.all)
}

func onlineDevice() *fakeDevice {
	return &fakeDevice{status: vnnox.Envelope[vnnox.TerminalStatus]{Code: vnnox.CodeSuccess, Data: vnnox.TerminalStatus{Online: true}}}
}

func testDisplay(id string) model.Display {
	return model.Display{ID: id, UserID: "u1", TerminalID: "term-" + id, Status: model.StatusOffline}
}

func newTestMonitor(store *fakeStore, device *fakeDevice, notifier *fakeNotifier) (*Monitor, *tickers) {
	deps := Dependencies{Displays: store, Schedules: store, Device: device}
	if notifier != nil {
		deps.Notifier = notifier
	}
	m := New(Config{Interval: time.Minute, Location: time.UTC}, deps)
	m.now = func() time.Time { return testNow }
	ts := &tickers{}
	m.newTicker = ts.new
	return m, ts
}

func schedule(id, contentID string, start time.Time) model.Schedule {
	return model.Schedule{ID: id, ContentType: model.ContentMedia, ContentID: contentID, StartTime: start, IsActive: true}
}

func TestCheckOnlineSetsLastSeen(t *testing.T) {
	store := newFakeStore(testDisplay("d1"))
	m, _ := newTestMonitor(store, onlineDevice(), nil)

	status := m.CheckDisplayStatus(context.Background(), "d1")

	assert.Equal(t, model.StatusOnline, status)
	writes := store.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, model.StatusOnline, writes[0].status)
	require.NotNil(t, writes[0].lastSeen)
	assert.True(t, writes[0].lastSeen.Equal(testNow))
}

func TestCheckFailureCodeIsOffline(t *testing.T) {
	store := newFakeStore(testDisplay("d1"))
	device := &fakeDevice{status: vnnox.Envelope[vnnox.TerminalStatus]{Code: 1003, Data: vnnox.TerminalStatus{Online: true}}}
	m, _ := newTestMonitor(store, device, nil)

	assert.Equal(t, model.StatusOffline, m.CheckDisplayStatus(context.Background(), "d1"))
	writes := store.Writes()
	require.Len(t, writes, 1)
	assert.Nil(t, writes[0].lastSeen)
}

func TestCheckRemoteErrorKeepsLastSeen(t *testing.T) {
	seen := testNow.Add(-time.Hour)
	d := testDisplay("d1")
	d.LastSeen = &seen
	store := newFakeStore(d)
	device := &fakeDevice{statusErr: errors.New("connection refused")}
	m, _ := newTestMonitor(store, device, nil)

	assert.Equal(t, model.StatusError, m.CheckDisplayStatus(context.Background(), "d1"))
	writes := store.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, model.StatusError, writes[0].status)
	assert.Nil(t, writes[0].lastSeen)

	got, _ := store.GetDisplay(context.Background(), "d1")
	require.NotNil(t, got.LastSeen)
	assert.True(t, got.LastSeen.Equal(seen))
}

func TestCheckMissingDisplayIsError(t *testing.T) {
	store := newFakeStore()
	m, _ := newTestMonitor(store, onlineDevice(), nil)

	assert.Equal(t, model.StatusError, m.CheckDisplayStatus(context.Background(), "missing"))
	writes := store.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, "missing", writes[0].id)
	assert.Equal(t, model.StatusError, writes[0].status)
}

func TestCheckWithoutTerminalIsError(t *testing.T) {
	d := testDisplay("d1")
	d.TerminalID = ""
	store := newFakeStore(d)
	device := onlineDevice()
	m, _ := newTestMonitor(store, device, nil)

	assert.Equal(t, model.StatusError, m.CheckDisplayStatus(context.Background(), "d1"))
	assert.Empty(t, device.Publishes())
}

func TestReconcilePublishesOnlyWhenDifferent(t *testing.T) {
	store := newFakeStore(testDisplay("d1"))
	store.schedules["d1"] = []model.Schedule{schedule("s1", "A", testNow.Add(-time.Hour))}
	device := onlineDevice()
	m, _ := newTestMonitor(store, device, nil)

	m.CheckDisplayStatus(context.Background(), "d1")
	assert.Equal(t, []string{"A"}, device.Publishes())

	// already playing A
	m.CheckDisplayStatus(context.Background(), "d1")
	assert.Equal(t, []string{"A"}, device.Publishes())
}

func TestReconcileSkippedWhenOffline(t *testing.T) {
	store := newFakeStore(testDisplay("d1"))
	store.schedules["d1"] = []model.Schedule{schedule("s1", "A", testNow.Add(-time.Hour))}
	device := &fakeDevice{status: vnnox.Envelope[vnnox.TerminalStatus]{Code: vnnox.CodeSuccess}}
	m, _ := newTestMonitor(store, device, nil)

	assert.Equal(t, model.StatusOffline, m.CheckDisplayStatus(context.Background(), "d1"))
	assert.Empty(t, device.Publishes())
}

func TestReconcileSkippedWhenPersistFails(t *testing.T) {
	store := newFakeStore(testDisplay("d1"))
	store.schedules["d1"] = []model.Schedule{schedule("s1", "A", testNow.Add(-time.Hour))}
	store.writeErr = errors.New("db down")
	device := onlineDevice()
	m, _ := newTestMonitor(store, device, nil)

	m.CheckDisplayStatus(context.Background(), "d1")
	assert.Empty(t, device.Publishes())
}

func TestReconcilePublishErrorKeepsOnline(t *testing.T) {
	store := newFakeStore(testDisplay("d1"))
	store.schedules["d1"] = []model.Schedule{schedule("s1", "B", testNow.Add(-time.Hour))}
	device := onlineDevice()
	playing := "A"
	device.playing = &playing
	device.publishErr = errors.New("publish rejected")
	m, _ := newTestMonitor(store, device, nil)

	assert.Equal(t, model.StatusOnline, m.CheckDisplayStatus(context.Background(), "d1"))

	writes := store.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, model.StatusOnline, writes[0].status)
	assert.Equal(t, []string{"B"}, device.Publishes())

	got, _ := store.GetDisplay(context.Background(), "d1")
	assert.Equal(t, model.StatusOnline, got.Status)

	// next tick tries again, once
	m.CheckDisplayStatus(context.Background(), "d1")
	assert.Equal(t, []string{"B", "B"}, device.Publishes())
	assert.Len(t, store.Writes(), 2)
}

func TestReconcilePlayingContentErrorKeepsOnline(t *testing.T) {
	store := newFakeStore(testDisplay("d1"))
	store.schedules["d1"] = []model.Schedule{schedule("s1", "B", testNow.Add(-time.Hour))}
	device := onlineDevice()
	device.playingErr = errors.New("timeout")
	m, _ := newTestMonitor(store, device, nil)

	assert.Equal(t, model.StatusOnline, m.CheckDisplayStatus(context.Background(), "d1"))

	writes := store.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, model.StatusOnline, writes[0].status)
	assert.Empty(t, device.Publishes())
}

func TestSelectScheduleTieBreak(t *testing.T) {
	start := testNow.Add(-2 * time.Hour)

	got, ok := SelectSchedule([]model.Schedule{
		schedule("a", "A", start),
		schedule("b", "B", start),
	}, testNow)
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)

	got, ok = SelectSchedule([]model.Schedule{
		schedule("a", "A", start),
		schedule("b", "B", start.Add(time.Hour)),
	}, testNow)
	require.True(t, ok)
	assert.Equal(t, "b", got.ID)
}

func TestSelectScheduleRepeatDaysOnMonday(t *testing.T) {
	start := testNow.Add(-time.Hour)
	everyDay := schedule("a", "A", start)
	everyDay.RepeatDays = []string{}
	mondays := schedule("b", "B", start)
	mondays.RepeatDays = []string{"monday"}

	got, ok := SelectSchedule([]model.Schedule{everyDay, mondays}, testNow)
	require.True(t, ok)
	assert.Equal(t, "A", got.ContentID)

	// the later start wins regardless of repeat days
	mondays.StartTime = start.Add(30 * time.Minute)
	got, ok = SelectSchedule([]model.Schedule{everyDay, mondays}, testNow)
	require.True(t, ok)
	assert.Equal(t, "B", got.ContentID)
}

func TestSelectScheduleFiltersInactive(t *testing.T) {
	ended := testNow.Add(-time.Minute)
	expired := schedule("old", "X", testNow.Add(-time.Hour))
	expired.EndTime = &ended
	disabled := schedule("off", "Y", testNow.Add(-time.Minute))
	disabled.IsActive = false
	tuesday := schedule("tue", "Z", testNow.Add(-time.Minute))
	tuesday.RepeatDays = []string{"tuesday"}
	future := schedule("later", "W", testNow.Add(time.Hour))

	_, ok := SelectSchedule([]model.Schedule{expired, disabled, tuesday, future}, testNow)
	assert.False(t, ok)

	_, ok = SelectSchedule(nil, testNow)
	assert.False(t, ok)
}

func TestNotifyOnlyOnTransition(t *testing.T) {
	store := newFakeStore(testDisplay("d1"))
	notifier := &fakeNotifier{}
	m, _ := newTestMonitor(store, onlineDevice(), notifier)

	m.CheckDisplayStatus(context.Background(), "d1")
	m.CheckDisplayStatus(context.Background(), "d1")

	updates := notifier.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, "d1", updates[0].DisplayID)
	assert.Equal(t, model.StatusOnline, updates[0].Status)
}

func TestMissingDisplayIsNotBroadcast(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	m, _ := newTestMonitor(store, onlineDevice(), notifier)

	m.CheckDisplayStatus(context.Background(), "gone")
	m.CheckDisplayStatus(context.Background(), "gone")

	assert.Len(t, store.Writes(), 2)
	assert.Empty(t, notifier.Updates())
}

func TestTransitionToErrorIsBroadcastOnce(t *testing.T) {
	store := newFakeStore(testDisplay("d1"))
	notifier := &fakeNotifier{}
	device := &fakeDevice{statusErr: errors.New("connection refused")}
	m, _ := newTestMonitor(store, device, notifier)

	m.CheckDisplayStatus(context.Background(), "d1")
	m.CheckDisplayStatus(context.Background(), "d1")

	updates := notifier.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, model.StatusError, updates[0].Status)
}

func TestCacheWrittenEveryCheck(t *testing.T) {
	store := newFakeStore(testDisplay("d1"))
	cache := &fakeNotifier{}
	m, _ := newTestMonitor(store, onlineDevice(), nil)
	m.deps.Cache = cache

	m.CheckDisplayStatus(context.Background(), "d1")
	m.CheckDisplayStatus(context.Background(), "d1")

	assert.Len(t, cache.Updates(), 2)
}

func TestStartRunsImmediateCheckAndTicks(t *testing.T) {
	store := newFakeStore(testDisplay("d1"))
	m, ts := newTestMonitor(store, onlineDevice(), nil)
	defer m.StopAllMonitoring()

	m.StartMonitoring("d1")
	assert.Len(t, store.Writes(), 1)
	assert.True(t, m.IsMonitoring("d1"))

	require.Eventually(t, func() bool { return ts.count() == 1 }, time.Second, 5*time.Millisecond)
	ts.get(0).ch <- testNow
	assert.Eventually(t, func() bool { return len(store.Writes()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestStartTwiceKeepsOneTimer(t *testing.T) {
	store := newFakeStore(testDisplay("d1"))
	m, ts := newTestMonitor(store, onlineDevice(), nil)
	defer m.StopAllMonitoring()

	m.StartMonitoring("d1")
	m.StartMonitoring("d1")

	assert.Equal(t, []string{"d1"}, m.MonitoredDisplays())
	require.Eventually(t, func() bool { return ts.count() == 2 }, time.Second, 5*time.Millisecond)

	// the replaced goroutine exits and releases its ticker
	assert.Eventually(t, func() bool {
		stopped := 0
		for i := 0; i < 2; i++ {
			if ts.get(i).Stopped() {
				stopped++
			}
		}
		return stopped == 1
	}, time.Second, 5*time.Millisecond)
}

func TestStopPreventsFurtherChecks(t *testing.T) {
	store := newFakeStore(testDisplay("d1"))
	m, ts := newTestMonitor(store, onlineDevice(), nil)

	m.StartMonitoring("d1")
	require.Eventually(t, func() bool { return ts.count() == 1 }, time.Second, 5*time.Millisecond)
	m.StopMonitoring("d1")
	assert.False(t, m.IsMonitoring("d1"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx))

	before := len(store.Writes())
	ts.get(0).ch <- testNow
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, len(store.Writes()))
	assert.True(t, ts.get(0).Stopped())
}

func TestStopUnknownDisplayIsNoop(t *testing.T) {
	m, _ := newTestMonitor(newFakeStore(), onlineDevice(), nil)
	m.StopMonitoring("nope")
	assert.Empty(t, m.MonitoredDisplays())
}

func TestStartUserDisplayMonitoring(t *testing.T) {
	other := testDisplay("d3")
	other.UserID = "u2"
	store := newFakeStore(testDisplay("d1"), testDisplay("d2"), other)
	m, _ := newTestMonitor(store, onlineDevice(), nil)
	defer m.StopAllMonitoring()

	n, err := m.StartUserDisplayMonitoring(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"d1", "d2"}, m.MonitoredDisplays())
}

func TestStartUserDisplayMonitoringHungTerminal(t *testing.T) {
	store := newFakeStore(testDisplay("d1"), testDisplay("d2"), testDisplay("d3"))
	device := onlineDevice()
	device.hang = map[string]bool{"term-d1": true}
	m, _ := newTestMonitor(store, device, nil)
	m.cfg.TickTimeout = 2 * time.Second
	defer m.StopAllMonitoring()

	done := make(chan int, 1)
	go func() {
		n, _ := m.StartUserDisplayMonitoring(context.Background(), "u1")
		done <- n
	}()

	// d2 and d3 are checked while d1 is still blocked
	require.Eventually(t, func() bool {
		online := 0
		for _, w := range store.Writes() {
			if w.status == model.StatusOnline {
				online++
			}
		}
		return online == 2
	}, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"d1", "d2", "d3"}, m.MonitoredDisplays())

	select {
	case n := <-done:
		assert.Equal(t, 3, n)
	case <-time.After(5 * time.Second):
		t.Fatal("StartUserDisplayMonitoring did not return")
	}

	got, _ := store.GetDisplay(context.Background(), "d1")
	assert.Equal(t, model.StatusError, got.Status)
}

func TestStopUserDisplayMonitoring(t *testing.T) {
	other := testDisplay("d3")
	other.UserID = "u2"
	store := newFakeStore(testDisplay("d1"), other)
	m, _ := newTestMonitor(store, onlineDevice(), nil)
	defer m.StopAllMonitoring()

	m.StartMonitoring("d1")
	m.StartMonitoring("d3")

	n, err := m.StopUserDisplayMonitoring(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"d3"}, m.MonitoredDisplays())
}

func TestStopAllMonitoring(t *testing.T) {
	store := newFakeStore(testDisplay("d1"), testDisplay("d2"))
	m, _ := newTestMonitor(store, onlineDevice(), nil)

	m.StartMonitoring("d1")
	m.StartMonitoring("d2")
	m.StopAllMonitoring()

	assert.Empty(t, m.MonitoredDisplays())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, m.Wait(ctx))
}

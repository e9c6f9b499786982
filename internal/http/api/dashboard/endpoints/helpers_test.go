package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/ledmanager/internal/db"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/http/api"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/model"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/vnnox"
)

// memStore implements every store interface of this package in memory.
type memStore struct {
	displays  map[string]model.Display
	schedules map[string]model.Schedule
	media     map[string]model.Media
	seq       int
}

func newMemStore() *memStore {
	return &memStore{
		displays:  map[string]model.Display{},
		schedules: map[string]model.Schedule{},
		media:     map[string]model.Media{},
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s%d", prefix, s.seq)
}

func (s *memStore) GetUserDisplay(_ context.Context, userID, id string) (model.Display, error) {
	d, ok := s.displays[id]
	if !ok || d.UserID != userID {
		return model.Display{}, db.ErrNotFound
	}
	return d, nil
}

func (s *memStore) ListDisplaysByUser(_ context.Context, userID string) ([]model.Display, error) {
	out := []model.Display{}
	for _, d := range s.displays {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) CreateDisplay(_ context.Context, d model.Display) (model.Display, error) {
	d.ID = s.nextID("d")
	s.displays[d.ID] = d
	return d, nil
}

func (s *memStore) UpdateDisplay(_ context.Context, userID, id string, in db.DisplayUpdate) (model.Display, error) {
	d, ok := s.displays[id]
	if !ok || d.UserID != userID {
		return model.Display{}, db.ErrNotFound
	}
	if in.DisplayName != nil {
		d.DisplayName = *in.DisplayName
	}
	if in.Location != nil {
		d.Location = in.Location
	}
	s.displays[id] = d
	return d, nil
}

func (s *memStore) DeleteDisplay(_ context.Context, userID, id string) error {
	d, ok := s.displays[id]
	if !ok || d.UserID != userID {
		return db.ErrNotFound
	}
	delete(s.displays, id)
	return nil
}

func (s *memStore) ListSchedules(_ context.Context, displayID string) ([]model.Schedule, error) {
	out := []model.Schedule{}
	for _, sc := range s.schedules {
		if sc.DisplayID == displayID {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *memStore) GetSchedule(_ context.Context, id string) (model.Schedule, error) {
	sc, ok := s.schedules[id]
	if !ok {
		return model.Schedule{}, db.ErrNotFound
	}
	return sc, nil
}

func (s *memStore) CreateSchedule(_ context.Context, sc model.Schedule) (model.Schedule, error) {
	sc.ID = s.nextID("s")
	s.schedules[sc.ID] = sc
	return sc, nil
}

func (s *memStore) UpdateSchedule(_ context.Context, id string, in db.ScheduleUpdate) (model.Schedule, error) {
	sc, ok := s.schedules[id]
	if !ok {
		return model.Schedule{}, db.ErrNotFound
	}
	if in.StartTime != nil {
		sc.StartTime = *in.StartTime
	}
	if in.ClearEndTime {
		sc.EndTime = nil
	} else if in.EndTime != nil {
		sc.EndTime = in.EndTime
	}
	if in.RepeatDays != nil {
		sc.RepeatDays = in.RepeatDays
	}
	if in.IsActive != nil {
		sc.IsActive = *in.IsActive
	}
	s.schedules[id] = sc
	return sc, nil
}

func (s *memStore) DeleteSchedule(_ context.Context, id string) error {
	if _, ok := s.schedules[id]; !ok {
		return db.ErrNotFound
	}
	delete(s.schedules, id)
	return nil
}

func (s *memStore) ListMediaByUser(_ context.Context, userID string) ([]model.Media, error) {
	out := []model.Media{}
	for _, m := range s.media {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) GetUserMedia(_ context.Context, userID, id string) (model.Media, error) {
	m, ok := s.media[id]
	if !ok || m.UserID != userID {
		return model.Media{}, db.ErrNotFound
	}
	return m, nil
}

func (s *memStore) CreateMedia(_ context.Context, m model.Media) (model.Media, error) {
	m.ID = s.nextID("m")
	s.media[m.ID] = m
	return m, nil
}

func (s *memStore) DeleteMedia(_ context.Context, userID, id string) error {
	m, ok := s.media[id]
	if !ok || m.UserID != userID {
		return db.ErrNotFound
	}
	delete(s.media, id)
	return nil
}

type fakeDevice struct {
	infoErr    error
	infoCode   int
	controlErr error
	calls      []string
	uploads    []vnnox.MediaUpload
	published  []string
	contentID  string
	lastLogs   vnnox.LogOptions
}

func (f *fakeDevice) record(call string) { f.calls = append(f.calls, call) }

func (f *fakeDevice) GetTerminalInfo(_ context.Context, id string) (vnnox.Envelope[vnnox.TerminalInfo], error) {
	f.record("info:" + id)
	return vnnox.Envelope[vnnox.TerminalInfo]{Code: f.infoCode, Data: vnnox.TerminalInfo{TerminalID: id}}, f.infoErr
}

func (f *fakeDevice) GetStatus(context.Context, string) (vnnox.Envelope[vnnox.TerminalStatus], error) {
	return vnnox.Envelope[vnnox.TerminalStatus]{Data: vnnox.TerminalStatus{Online: true}}, nil
}

func (f *fakeDevice) SetBrightness(_ context.Context, id string, v int) (vnnox.Raw, error) {
	f.record("brightness:" + id)
	return vnnox.Raw{}, f.controlErr
}

func (f *fakeDevice) SetVolume(_ context.Context, id string, v int) (vnnox.Raw, error) {
	f.record("volume:" + id)
	return vnnox.Raw{}, f.controlErr
}

func (f *fakeDevice) SetPower(_ context.Context, id string, on bool) (vnnox.Raw, error) {
	f.record("power:" + id)
	return vnnox.Raw{}, f.controlErr
}

func (f *fakeDevice) Reboot(_ context.Context, id string) (vnnox.Raw, error) {
	f.record("reboot:" + id)
	return vnnox.Raw{}, f.controlErr
}

func (f *fakeDevice) GetLogs(_ context.Context, id string, opts vnnox.LogOptions) (vnnox.Envelope[[]vnnox.LogEntry], error) {
	f.lastLogs = opts
	return vnnox.Envelope[[]vnnox.LogEntry]{Data: []vnnox.LogEntry{{Message: "boot"}}}, nil
}

func (f *fakeDevice) UploadMedia(_ context.Context, id string, m vnnox.MediaUpload) (vnnox.Envelope[vnnox.UploadResult], error) {
	f.uploads = append(f.uploads, m)
	return vnnox.Envelope[vnnox.UploadResult]{Data: vnnox.UploadResult{ContentID: f.contentID}}, nil
}

func (f *fakeDevice) PublishContent(_ context.Context, id, contentID string) error {
	f.published = append(f.published, contentID)
	return nil
}

type fakeMonitor struct {
	running map[string]bool
	started []string
}

func newFakeMonitor() *fakeMonitor { return &fakeMonitor{running: map[string]bool{}} }

func (f *fakeMonitor) StartMonitoring(id string) {
	f.running[id] = true
	f.started = append(f.started, id)
}
func (f *fakeMonitor) StopMonitoring(id string) { delete(f.running, id) }
func (f *fakeMonitor) IsMonitoring(id string) bool { return f.running[id] }

func (f *fakeMonitor) StartUserDisplayMonitoring(ctx context.Context, userID string) (int, error) {
	return 0, nil
}

type fakeAcks struct{ commands []string }

func (f *fakeAcks) PublishControlAck(_ context.Context, displayID, command string, _ any) error {
	f.commands = append(f.commands, displayID+":"+command)
	return nil
}

type fakeFiles struct {
	saved   map[string][]byte
	deleted []string
}

func (f *fakeFiles) Save(_ context.Context, userID, fileName, _ string, r io.Reader) (string, string, error) {
	raw, _ := io.ReadAll(r)
	key := userID + "/" + fileName
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[key] = raw
	return "https://cdn.test/" + key, key, nil
}

func (f *fakeFiles) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

var (
	alice = model.User{ID: "alice", Email: "alice@example.com"}
	bob   = model.User{ID: "bob", Email: "bob@example.com"}
)

// newTestRouter mounts modules with the user taken from the X-Test-User header.
func newTestRouter(modules ...api.Module) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	asUser := func(c *gin.Context) {
		switch c.GetHeader("X-Test-User") {
		case alice.ID:
			u := alice
			middleware.SetCurrentUser(c, &u)
		case bob.ID:
			u := bob
			middleware.SetCurrentUser(c, &u)
		}
		c.Next()
	}
	api.MountGroup(r, api.GroupConfig{Prefix: "/api", Middleware: []gin.HandlerFunc{asUser}}, modules...)
	return r
}

func call(t *testing.T, r http.Handler, user, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", user)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var monday = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/compasscal/compass/internal/core"
	"github.com/compasscal/compass/internal/reconcile"
	"github.com/compasscal/compass/internal/store"

	ical "github.com/arran4/golang-ical"
)

type stubSync struct {
	got    []reconcile.Notification
	result reconcile.Result
	err    error
	calc   *reconcile.Calculator
}

func (s *stubSync) HandleNotification(ctx context.Context, n reconcile.Notification) (reconcile.Result, error) {
	s.got = append(s.got, n)
	return s.result, s.err
}

func (s *stubSync) Calculator() *reconcile.Calculator { return s.calc }

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*httptest.Server, *stubSync, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	sync := &stubSync{calc: &reconcile.Calculator{Now: func() time.Time { return now }}}
	srv := httptest.NewServer(NewServer(Config{DefaultUser: "u1"}, st, sync, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, sync, st
}

func notify(t *testing.T, url string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/v1/sync/gcal/notifications", nil)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST notification: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func googleHeaders() map[string]string {
	return map[string]string{
		"X-Goog-Channel-ID":         "chan-1",
		"X-Goog-Resource-ID":        "res-1",
		"X-Goog-Resource-State":     "exists",
		"X-Goog-Channel-Expiration": "Tue, 17 Mar 2026 12:00:00 GMT",
	}
}

func TestNotificationMissingHeaders(t *testing.T) {
	srv, sync, _ := newTestServer(t)

	h := googleHeaders()
	delete(h, "X-Goog-Resource-State")
	resp := notify(t, srv.URL, h)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var body ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Code != ErrCodeMissingHeaders {
		t.Fatalf("error code = %q", body.Error.Code)
	}
	if len(sync.got) != 0 {
		t.Fatal("invalid notification reached the service")
	}
}

func TestNotificationApplied(t *testing.T) {
	srv, sync, _ := newTestServer(t)
	sync.result = reconcile.Result{
		Summary:    `updating: "A,B" `,
		User:       "u1",
		BulkResult: core.BulkResult{Upserted: 2},
	}

	resp := notify(t, srv.URL, googleHeaders())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["summary"] != `updating: "A,B" ` || body["upserted"] != float64(2) || body["deleted"] != float64(0) {
		t.Fatalf("body = %v", body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("missing request id")
	}
	if got := sync.got[0]; got.ChannelID != "chan-1" || got.ResourceID != "res-1" || got.ResourceState != reconcile.StateExists {
		t.Fatalf("notification = %+v", got)
	}
}

func TestNotificationStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		result reconcile.Result
		err    error
		want   int
	}{
		{"skipped", reconcile.Result{Skipped: true, Reason: reconcile.ReasonSyncHandshake}, nil, http.StatusNoContent},
		{"duplicate", reconcile.Result{}, fmt.Errorf("wrapped: %w", reconcile.ErrDuplicateResourceID), http.StatusBadRequest},
		{"internal", reconcile.Result{}, errors.New("provider down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, sync, _ := newTestServer(t)
			sync.result, sync.err = tt.result, tt.err
			if resp := notify(t, srv.URL, googleHeaders()); resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func seed(t *testing.T, st *store.MemoryStore) {
	t.Helper()
	ops := []core.BulkOperation{}
	for i, title := range []string{"Standup", "Lunch", "Retro"} {
		start := now.Add(time.Duration(i*24) * time.Hour)
		e := core.CompassEvent{User: "u1", GEventID: fmt.Sprintf("g%d", i), Title: title, Start: start, End: start.Add(time.Hour)}
		ops = append(ops, core.ReplaceOne{User: "u1", GEventID: e.GEventID, Replacement: e, Upsert: true})
	}
	offsite := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)
	allDay := core.CompassEvent{User: "u1", Title: "Offsite", IsAllDay: true, Start: offsite, End: offsite.AddDate(0, 0, 1)}
	if _, err := st.SaveEvent(context.Background(), allDay); err != nil {
		t.Fatal(err)
	}
	someday := core.CompassEvent{User: "u1", Title: "Read a book", IsSomeday: true, Start: now, End: now}
	if _, err := st.SaveEvent(context.Background(), someday); err != nil {
		t.Fatal(err)
	}
	if _, err := st.BulkWrite(context.Background(), ops); err != nil {
		t.Fatal(err)
	}
}

func TestListEvents(t *testing.T) {
	srv, _, st := newTestServer(t)
	seed(t, st)

	resp, err := http.Get(srv.URL + "/v1/events?from=2026-03-11T00:00:00Z&to=2026-03-12T00:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Events []core.CompassEvent `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Events) != 1 || body.Events[0].Title != "Lunch" {
		t.Fatalf("events = %+v", body.Events)
	}
}

func TestListEventsBadQuery(t *testing.T) {
	srv, _, _ := newTestServer(t)
	for _, q := range []string{"from=yesterday", "from=2026-03-12&to=2026-03-11"} {
		resp, err := http.Get(srv.URL + "/v1/events?" + q)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestExportICS(t *testing.T) {
	srv, _, st := newTestServer(t)
	seed(t, st)

	resp, err := http.Get(srv.URL + "/v1/events.ics?user=u1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Fatalf("content type = %q", ct)
	}

	cal, err := ical.ParseCalendar(resp.Body)
	if err != nil {
		t.Fatalf("parse ics: %v", err)
	}
	events := cal.Events()
	if len(events) != 4 {
		t.Fatalf("got %d VEVENTs, want 4 (someday excluded)", len(events))
	}
	titles := map[string]bool{}
	for _, ve := range events {
		if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
			titles[p.Value] = true
		}
	}
	for _, want := range []string{"Standup", "Lunch", "Retro", "Offsite"} {
		if !titles[want] {
			t.Fatalf("missing %q in %v", want, titles)
		}
	}
}

func TestSyncStatus(t *testing.T) {
	srv, _, st := newTestServer(t)
	soon := strconv.FormatInt(now.Add(24*time.Hour).UnixMilli(), 10)
	record := core.SyncRecord{
		User:       "u1",
		Watches:    []core.CalendarWatch{{GCalendarID: "primary", ResourceID: "r1", ChannelID: "c1", Expiration: soon}},
		LastActive: now.AddDate(0, 0, -20),
	}
	if err := st.SaveSync(context.Background(), record); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/v1/sync/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body syncStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body.Stale || len(body.Watches) != 1 {
		t.Fatalf("status = %+v", body)
	}
	if w := body.Watches[0]; w.Expired || !w.ExpiresSoon || w.ResourceID != "r1" {
		t.Fatalf("watch = %+v", w)
	}

	missing, err := http.Get(srv.URL + "/v1/sync/status?user=nobody")
	if err != nil {
		t.Fatal(err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", missing.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

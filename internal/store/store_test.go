package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/compasscal/compass/internal/core"
)

var base = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func googleEvent(user, gid, title string, startHour int) core.CompassEvent {
	return core.CompassEvent{
		User:     user,
		GEventID: gid,
		Title:    title,
		Priority: core.PriorityUnassigned,
		Origin:   core.OriginGoogleImport,
		Start:    base.Add(time.Duration(startHour) * time.Hour),
		End:      base.Add(time.Duration(startHour+1) * time.Hour),
	}
}

func upsert(e core.CompassEvent) core.ReplaceOne {
	return core.ReplaceOne{User: e.User, GEventID: e.GEventID, Replacement: e, Upsert: true}
}

func runStorageContract(t *testing.T, open func(t *testing.T) core.Storage) {
	t.Run("replace counts every row with the id", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		for range 2 {
			if _, err := s.SaveEvent(ctx, googleEvent("u1", "g1", "Standup", 0)); err != nil {
				t.Fatalf("save: %v", err)
			}
		}
		res, err := s.BulkWrite(ctx, []core.BulkOperation{upsert(googleEvent("u1", "g1", "Standup (moved)", 2))})
		if err != nil {
			t.Fatalf("bulk write: %v", err)
		}
		if res.Modified != 2 || res.Upserted != 0 {
			t.Fatalf("result = %+v", res)
		}
		events, err := s.ListEvents(ctx, core.EventFilter{User: "u1"})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		for _, e := range events {
			if e.Title != "Standup (moved)" {
				t.Fatalf("row not replaced: %+v", e)
			}
		}
	})

	t.Run("bulk write", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		res, err := s.BulkWrite(ctx, []core.BulkOperation{
			upsert(googleEvent("u1", "g1", "Standup", 0)),
			upsert(googleEvent("u1", "g2", "Lunch", 3)),
			upsert(googleEvent("u2", "g1", "Other user", 1)),
		})
		if err != nil {
			t.Fatalf("initial bulk write: %v", err)
		}
		if res.Upserted != 3 || res.Modified != 0 || res.Deleted != 0 {
			t.Fatalf("initial result = %+v", res)
		}

		renamed := googleEvent("u1", "g1", "Standup (moved)", 2)
		res, err = s.BulkWrite(ctx, []core.BulkOperation{
			core.DeleteMany{User: "u1", GEventIDs: []string{"g2", "missing"}},
			upsert(renamed),
		})
		if err != nil {
			t.Fatalf("second bulk write: %v", err)
		}
		if res.Deleted != 1 || res.Modified != 1 || res.Upserted != 0 {
			t.Fatalf("second result = %+v", res)
		}

		u1, err := s.ListEvents(ctx, core.EventFilter{User: "u1"})
		if err != nil {
			t.Fatalf("list u1: %v", err)
		}
		if len(u1) != 1 || u1[0].Title != "Standup (moved)" || !u1[0].Start.Equal(renamed.Start) {
			t.Fatalf("u1 events = %+v", u1)
		}
		if u1[0].ID == "" {
			t.Fatal("stored event has no ID")
		}

		u2, err := s.ListEvents(ctx, core.EventFilter{User: "u2"})
		if err != nil {
			t.Fatalf("list u2: %v", err)
		}
		if len(u2) != 1 || u2[0].Title != "Other user" {
			t.Fatalf("delete leaked across users: %+v", u2)
		}
	})

	t.Run("replace without upsert", func(t *testing.T) {
		s := open(t)
		res, err := s.BulkWrite(context.Background(), []core.BulkOperation{
			core.ReplaceOne{User: "u1", GEventID: "nope", Replacement: googleEvent("u1", "nope", "x", 0)},
		})
		if err != nil {
			t.Fatalf("bulk write: %v", err)
		}
		if res != (core.BulkResult{}) {
			t.Fatalf("result = %+v, want zero", res)
		}
	})

	t.Run("save event", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		draft := core.CompassEvent{
			User:   "u1",
			Title:  "Focus",
			Origin: core.OriginCompass,
			Start:  base,
			End:    base.Add(30 * time.Minute),
		}
		saved, err := s.SaveEvent(ctx, draft)
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		if saved.ID == "" {
			t.Fatal("insert did not assign an ID")
		}

		saved.Title = "Deep focus"
		saved.IsAllDay = true
		if _, err := s.SaveEvent(ctx, saved); err != nil {
			t.Fatalf("update: %v", err)
		}

		got, err := s.ListEvents(ctx, core.EventFilter{User: "u1"})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 1 || got[0].Title != "Deep focus" || !got[0].IsAllDay || got[0].ID != saved.ID {
			t.Fatalf("events = %+v", got)
		}

		_, err = s.SaveEvent(ctx, core.CompassEvent{ID: "ghost", User: "u1", Start: base, End: base})
		if !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("update unknown: err = %v, want ErrNotFound", err)
		}
	})

	t.Run("list events window", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		if _, err := s.BulkWrite(ctx, []core.BulkOperation{
			upsert(googleEvent("u1", "late", "Late", 8)),
			upsert(googleEvent("u1", "early", "Early", 0)),
			upsert(googleEvent("u1", "mid", "Mid", 4)),
		}); err != nil {
			t.Fatalf("bulk write: %v", err)
		}

		got, err := s.ListEvents(ctx, core.EventFilter{
			User:  "u1",
			Start: base.Add(2 * time.Hour),
			End:   base.Add(8 * time.Hour),
		})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 1 || got[0].GEventID != "mid" {
			t.Fatalf("windowed events = %+v", got)
		}

		all, err := s.ListEvents(ctx, core.EventFilter{User: "u1"})
		if err != nil {
			t.Fatalf("list all: %v", err)
		}
		var order []string
		for _, e := range all {
			order = append(order, e.GEventID)
		}
		if strings.Join(order, ",") != "early,mid,late" {
			t.Fatalf("order = %v", order)
		}
	})

	t.Run("sync records", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		if _, err := s.GetSync(ctx, "u1"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("GetSync on empty store: err = %v", err)
		}

		record := core.SyncRecord{
			User: "u2",
			Watches: []core.CalendarWatch{
				{GCalendarID: "primary", ResourceID: "r1", ChannelID: "c1", Expiration: "1700000000000", NextSyncToken: "tok"},
			},
			LastActive: base,
		}
		if err := s.SaveSync(ctx, record); err != nil {
			t.Fatalf("save: %v", err)
		}
		if err := s.SaveSync(ctx, core.SyncRecord{User: "u1", LastActive: base}); err != nil {
			t.Fatalf("save u1: %v", err)
		}

		got, err := s.GetSync(ctx, "u2")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if len(got.Watches) != 1 || got.Watches[0].NextSyncToken != "tok" || !got.LastActive.Equal(base) {
			t.Fatalf("record = %+v", got)
		}

		found, err := s.FindSyncByResource(ctx, "r1")
		if err != nil || found.User != "u2" {
			t.Fatalf("FindSyncByResource = %+v, %v", found, err)
		}
		if _, err := s.FindSyncByResource(ctx, "r9"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("FindSyncByResource(r9): err = %v", err)
		}

		got.Watches[0].NextSyncToken = "tok2"
		if err := s.SaveSync(ctx, got); err != nil {
			t.Fatalf("resave: %v", err)
		}
		again, err := s.GetSync(ctx, "u2")
		if err != nil || again.Watches[0].NextSyncToken != "tok2" {
			t.Fatalf("after resave = %+v, %v", again, err)
		}

		list, err := s.ListSyncs(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 2 || list[0].User != "u1" || list[1].User != "u2" {
			t.Fatalf("ListSyncs = %+v", list)
		}

		if err := s.DeleteSync(ctx, "u2"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := s.GetSync(ctx, "u2"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("after delete: err = %v", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStorageContract(t, func(t *testing.T) core.Storage {
		return NewMemoryStore()
	})
}

func TestMemoryStoreIsolatesRecords(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	record := core.SyncRecord{User: "u1", Watches: []core.CalendarWatch{{ResourceID: "r1"}}}
	if err := s.SaveSync(ctx, record); err != nil {
		t.Fatal(err)
	}
	record.Watches[0].ResourceID = "mutated"

	got, err := s.GetSync(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Watches[0].ResourceID != "r1" {
		t.Fatalf("store shares caller slice: %+v", got)
	}
}

func TestSQLiteStore(t *testing.T) {
	runStorageContract(t, func(t *testing.T) core.Storage {
		s, err := Open("sqlite://" + filepath.Join(t.TempDir(), "compass.db"))
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSQLite3Store(t *testing.T) {
	probe, err := Open("sqlite3://" + filepath.Join(t.TempDir(), "probe.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := probe.ListSyncs(context.Background()); err != nil {
		_ = probe.Close()
		t.Skipf("sqlite3 driver unavailable: %v", err)
	}
	_ = probe.Close()

	runStorageContract(t, func(t *testing.T) core.Storage {
		s, err := Open("sqlite3://" + filepath.Join(t.TempDir(), "compass.db"))
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestOpen(t *testing.T) {
	tests := []struct {
		dsn     string
		want    string
		wantErr bool
	}{
		{dsn: "memory://", want: "*store.MemoryStore"},
		{dsn: "sqlite://compass.db", want: "sqlite"},
		{dsn: "sqlite3://compass.db", want: "sqlite3"},
		{dsn: "postgres://localhost/compass?sslmode=disable", want: "postgres"},
		{dsn: "compass.db", want: "sqlite"},
		{dsn: "mongodb://localhost", wantErr: true},
		{dsn: "", wantErr: true},
	}
	for _, tt := range tests {
		s, err := Open(tt.dsn)
		if tt.wantErr {
			if !errors.Is(err, ErrUnsupportedScheme) {
				t.Errorf("Open(%q) err = %v, want ErrUnsupportedScheme", tt.dsn, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Open(%q): %v", tt.dsn, err)
			continue
		}
		switch v := s.(type) {
		case *MemoryStore:
			if tt.want != "*store.MemoryStore" {
				t.Errorf("Open(%q) = memory store, want %s", tt.dsn, tt.want)
			}
		case *SQLStore:
			if v.dialect.driver != tt.want {
				t.Errorf("Open(%q) driver = %s, want %s", tt.dsn, v.dialect.driver, tt.want)
			}
		default:
			t.Errorf("Open(%q) = %T", tt.dsn, s)
		}
	}
}

func TestRebind(t *testing.T) {
	s := &SQLStore{dialect: dialectPostgres}
	got := s.rebind("SELECT a FROM t WHERE x = ? AND y IN (?, ?)")
	want := "SELECT a FROM t WHERE x = $1 AND y IN ($2, $3)"
	if got != want {
		t.Fatalf("rebind = %q, want %q", got, want)
	}
	lite := &SQLStore{dialect: dialectSQLite}
	if q := "x = ?"; lite.rebind(q) != q {
		t.Fatal("sqlite query rewritten")
	}
}

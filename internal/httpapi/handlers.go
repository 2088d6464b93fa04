package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/compasscal/compass/internal/core"
	"github.com/compasscal/compass/internal/reconcile"
)

// handleHealth reports whether the store answers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.ListSyncs(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "detail": "store unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGcalNotification applies one Google push notification.
func (s *Server) handleGcalNotification(w http.ResponseWriter, r *http.Request) {
	n, err := reconcile.ParseNotification(reconcile.HeadersFromHTTP(r.Header))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeMissingHeaders, err.Error())
		return
	}

	res, err := s.sync.HandleNotification(r.Context(), n)
	switch {
	case errors.Is(err, reconcile.ErrDuplicateResourceID):
		logFor(r.Context()).Error("gcal notification", "resource", n.ResourceID, "err", err)
		writeError(w, http.StatusBadRequest, ErrCodeDuplicateResource, err.Error())
		return
	case err != nil:
		logFor(r.Context()).Error("gcal notification", "resource", n.ResourceID, "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to apply notification")
		return
	}

	if res.Skipped {
		logFor(r.Context()).Debug("gcal notification skipped", "reason", res.Reason, "resource", n.ResourceID)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type watchStatus struct {
	core.CalendarWatch
	Expired     bool `json:"expired"`
	ExpiresSoon bool `json:"expiresSoon"`
}

type syncStatusResponse struct {
	User       string        `json:"user"`
	LastActive time.Time     `json:"lastActive"`
	Stale      bool          `json:"stale"`
	Watches    []watchStatus `json:"watches"`
}

// handleSyncStatus describes a user's channels and whether they need attention.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	user := s.userParam(r)
	record, err := s.store.GetSync(r.Context(), user)
	if errors.Is(err, core.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "no sync record for "+user)
		return
	}
	if err != nil {
		logFor(r.Context()).Error("get sync record", "user", user, "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to load sync record")
		return
	}

	calc := s.sync.Calculator()
	resp := syncStatusResponse{
		User:       record.User,
		LastActive: record.LastActive,
		Stale:      record.LastActive.Before(calc.ActiveSyncDeadline()),
		Watches:    make([]watchStatus, 0, len(record.Watches)),
	}
	for _, wt := range record.Watches {
		resp.Watches = append(resp.Watches, watchStatus{
			CalendarWatch: wt,
			Expired:       calc.IsExpired(wt.Expiration),
			ExpiresSoon:   calc.ExpiresSoon(wt.Expiration),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListEvents returns a user's events, optionally windowed by from/to.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := s.eventFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidQuery, err.Error())
		return
	}
	events, err := s.store.ListEvents(r.Context(), filter)
	if err != nil {
		logFor(r.Context()).Error("list events", "user", filter.User, "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list events")
		return
	}
	if events == nil {
		events = []core.CompassEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// handleExportICS renders a user's events as an iCalendar feed.
func (s *Server) handleExportICS(w http.ResponseWriter, r *http.Request) {
	filter, err := s.eventFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidQuery, err.Error())
		return
	}
	events, err := s.store.ListEvents(r.Context(), filter)
	if err != nil {
		logFor(r.Context()).Error("export events", "user", filter.User, "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list events")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(BuildICS(events, time.Now())))
}

func (s *Server) userParam(r *http.Request) string {
	if u := strings.TrimSpace(r.URL.Query().Get("user")); u != "" {
		return u
	}
	return s.config.DefaultUser
}

func (s *Server) eventFilter(r *http.Request) (core.EventFilter, error) {
	q := r.URL.Query()
	filter := core.EventFilter{User: s.userParam(r)}
	if filter.User == "" {
		return filter, errors.New("user is required")
	}

	var err error
	if filter.Start, err = parseTimeParam(q.Get("from")); err != nil {
		return filter, fmt.Errorf("from: %w", err)
	}
	if filter.End, err = parseTimeParam(q.Get("to")); err != nil {
		return filter, fmt.Errorf("to: %w", err)
	}
	if !filter.Start.IsZero() && !filter.End.IsZero() && !filter.End.After(filter.Start) {
		return filter, errors.New("to must be after from")
	}
	return filter, nil
}

// parseTimeParam accepts RFC 3339 timestamps or local YYYY-MM-DD dates.
func parseTimeParam(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (use YYYY-MM-DD or RFC 3339)", v)
	}
	return t, nil
}

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/compasscal/compass/internal/core"
	"github.com/compasscal/compass/internal/logging"

	"google.golang.org/api/calendar/v3"
)

// ServiceConfig holds the settings the service needs from process config.
type ServiceConfig struct {
	// ChannelExpirationMin is the lifetime requested for new channels.
	ChannelExpirationMin int
	// WebhookURL is where Google delivers notifications.
	WebhookURL string
}

// Service applies provider notifications to the event store and keeps
// channels alive.
type Service struct {
	store     core.Storage
	provider  core.Provider
	toCompass MapFunc
	calc      *Calculator
	cfg       ServiceConfig
	logger    *slog.Logger

	// Notifications, watches and maintenance all read-modify-write sync
	// records; one at a time.
	mu sync.Mutex
}

// Result describes what a notification did.
type Result struct {
	Skipped    bool   `json:"skipped"`
	Reason     string `json:"reason,omitempty"`
	User       string `json:"user,omitempty"`
	CalendarID string `json:"calendarId,omitempty"`
	Summary    string `json:"summary"`
	core.BulkResult
}

// Skip reasons.
const (
	ReasonSyncHandshake   = "sync handshake"
	ReasonUnknownResource = "unknown resource"
	ReasonStaleChannel    = "stale channel"
)

// NewService wires a Service. calc and logger may be nil.
func NewService(store core.Storage, provider core.Provider, toCompass MapFunc, calc *Calculator, cfg ServiceConfig, logger *slog.Logger) *Service {
	logger = logging.OrDiscard(logger)
	if calc == nil {
		calc = NewCalculator(logger)
	}
	return &Service{
		store:     store,
		provider:  provider,
		toCompass: toCompass,
		calc:      calc,
		cfg:       cfg,
		logger:    logger,
	}
}

// Calculator returns the expiration calculator the service uses.
func (s *Service) Calculator() *Calculator {
	return s.calc
}

// HandleNotification reconciles the calendar behind n.
func (s *Service) HandleNotification(ctx context.Context, n Notification) (Result, error) {
	if n.ResourceState == StateSync {
		s.logger.Debug("sync handshake", "channel", n.ChannelID, "resource", n.ResourceID)
		return Result{Skipped: true, Reason: ReasonSyncHandshake}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.store.FindSyncByResource(ctx, n.ResourceID)
	if errors.Is(err, core.ErrNotFound) {
		s.logger.Error("no sync record for notification", "resource", n.ResourceID, "channel", n.ChannelID)
		return Result{Skipped: true, Reason: ReasonUnknownResource}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("find sync record: %w", err)
	}

	calendarID, found, err := FindCalendarID(n.ResourceID, record, s.logger)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{Skipped: true, Reason: ReasonUnknownResource}, nil
	}

	idx := record.WatchIndex(n.ResourceID)
	watch := record.Watches[idx]
	if watch.ChannelID != "" && n.ChannelID != watch.ChannelID {
		s.logger.Warn("notification on replaced channel", "channel", n.ChannelID, "current", watch.ChannelID)
		return Result{Skipped: true, Reason: ReasonStaleChannel, User: record.User, CalendarID: calendarID}, nil
	}

	res, next, err := s.syncCalendar(ctx, record.User, calendarID, watch.NextSyncToken)
	if err != nil {
		return Result{}, err
	}

	record.Watches[idx].NextSyncToken = next
	record.LastActive = s.calc.now()
	if err := s.store.SaveSync(ctx, record); err != nil {
		return Result{}, fmt.Errorf("save sync record: %w", err)
	}

	res.User = record.User
	res.CalendarID = calendarID
	return res, nil
}

// syncCalendar pulls changes since token and writes them. It returns the
// token for the next pull.
func (s *Service) syncCalendar(ctx context.Context, userID, calendarID, token string) (Result, string, error) {
	events, next, err := s.provider.ListChanges(ctx, calendarID, token)
	if err != nil {
		return Result{}, "", fmt.Errorf("list changes for %s: %w", calendarID, err)
	}

	res, err := s.apply(ctx, userID, events)
	if err != nil {
		return Result{}, "", err
	}
	if next == "" {
		next = token
	}
	return res, next, nil
}

func (s *Service) apply(ctx context.Context, userID string, events []*calendar.Event) (Result, error) {
	categorized := Categorize(events)
	ops := AssembleOperations(userID, categorized.ToDelete, categorized.ToUpdate, s.toCompass)
	if dropped := unmapped(categorized.ToUpdate, ops); len(dropped) > 0 {
		s.logger.Warn("dropped events without usable times", "user", userID, "ids", dropped)
	}

	var res Result
	if len(ops) > 0 {
		written, err := s.store.BulkWrite(ctx, ops)
		if err != nil {
			return Result{}, fmt.Errorf("bulk write: %w", err)
		}
		res.BulkResult = written
	}

	res.Summary = Summary(categorized.ToUpdate, categorized.ToDelete)
	if res.Summary != "" {
		s.logger.Info("gcal sync", "user", userID, "summary", res.Summary,
			"deleted", res.Deleted, "upserted", res.Upserted, "modified", res.Modified)
	}
	return res, nil
}

// unmapped lists the ids in toUpdate that no ReplaceOne in ops carries.
func unmapped(toUpdate []*calendar.Event, ops []core.BulkOperation) []string {
	written := make(map[string]bool, len(ops))
	for _, op := range ops {
		if r, ok := op.(core.ReplaceOne); ok {
			written[r.GEventID] = true
		}
	}
	var dropped []string
	for _, e := range toUpdate {
		if !written[e.Id] {
			dropped = append(dropped, e.Id)
		}
	}
	return dropped
}

// StartWatch imports calendarID for userID and opens a push channel on it.
// An existing watch on the same calendar is replaced.
func (s *Service) StartWatch(ctx context.Context, userID, calendarID string) (core.CalendarWatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.store.GetSync(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		record = core.SyncRecord{User: userID}
	} else if err != nil {
		return core.CalendarWatch{}, fmt.Errorf("load sync record: %w", err)
	}

	var replaced []core.CalendarWatch
	kept := make([]core.CalendarWatch, 0, len(record.Watches))
	for _, w := range record.Watches {
		if w.GCalendarID == calendarID {
			replaced = append(replaced, w)
			continue
		}
		kept = append(kept, w)
	}

	// The replaced channels stay open until the new one is recorded.
	_, token, err := s.syncCalendar(ctx, userID, calendarID, "")
	if err != nil {
		return core.CalendarWatch{}, err
	}

	watch, err := s.provider.Watch(ctx, calendarID, s.cfg.WebhookURL, s.calc.ChannelExpiration(s.cfg.ChannelExpirationMin))
	if err != nil {
		return core.CalendarWatch{}, fmt.Errorf("watch %s: %w", calendarID, err)
	}
	record.Watches = kept
	if record.WatchIndex(watch.ResourceID) >= 0 {
		s.stopQuietly(ctx, watch)
		return core.CalendarWatch{}, fmt.Errorf("%w: %s", ErrDuplicateResourceID, watch.ResourceID)
	}
	watch.GCalendarID = calendarID
	watch.NextSyncToken = token

	record.Watches = append(record.Watches, watch)
	record.LastActive = s.calc.now()
	if err := s.store.SaveSync(ctx, record); err != nil {
		s.stopQuietly(ctx, watch)
		return core.CalendarWatch{}, fmt.Errorf("save sync record: %w", err)
	}
	for _, w := range replaced {
		s.stopQuietly(ctx, w)
	}

	s.logger.Info("watching calendar", "user", userID, "calendar", calendarID,
		"channel", watch.ChannelID, "resource", watch.ResourceID, "expiration", watch.Expiration)
	return watch, nil
}

// StopWatches closes every channel for userID and forgets the sync record.
func (s *Service) StopWatches(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.store.GetSync(ctx, userID)
	if err != nil {
		return fmt.Errorf("load sync record: %w", err)
	}
	return s.prune(ctx, record)
}

func (s *Service) prune(ctx context.Context, record core.SyncRecord) error {
	for _, w := range record.Watches {
		s.stopQuietly(ctx, w)
	}
	if err := s.store.DeleteSync(ctx, record.User); err != nil {
		return fmt.Errorf("delete sync record %s: %w", record.User, err)
	}
	return nil
}

// stopQuietly stops a channel, logging failures. Expired channels are
// already gone on Google's side, so errors here are expected.
func (s *Service) stopQuietly(ctx context.Context, w core.CalendarWatch) {
	if err := s.provider.StopWatch(ctx, w); err != nil {
		s.logger.Warn("stop channel", "channel", w.ChannelID, "resource", w.ResourceID, "err", err)
	}
}

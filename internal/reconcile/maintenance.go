package reconcile

import (
	"context"
	"fmt"

	"github.com/compasscal/compass/internal/core"
)

// MaintenanceReport summarizes one maintenance pass.
type MaintenanceReport struct {
	Pruned    []string `json:"pruned"`
	Refreshed int      `json:"refreshed"`
	Failed    int      `json:"failed"`
}

// Maintain prunes sync records that have been idle past the active deadline
// and refreshes channels that are expired or about to expire.
func (s *Service) Maintain(ctx context.Context) (MaintenanceReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report MaintenanceReport

	records, err := s.store.ListSyncs(ctx)
	if err != nil {
		return report, fmt.Errorf("list sync records: %w", err)
	}

	deadline := s.calc.ActiveSyncDeadline()
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if record.LastActive.Before(deadline) {
			if err := s.prune(ctx, record); err != nil {
				s.logger.Error("prune stale sync", "user", record.User, "err", err)
				report.Failed++
				continue
			}
			s.logger.Info("pruned stale sync", "user", record.User, "lastActive", record.LastActive)
			report.Pruned = append(report.Pruned, record.User)
			continue
		}

		var replaced []core.CalendarWatch
		for i, w := range record.Watches {
			if !s.calc.IsExpired(w.Expiration) && !s.calc.ExpiresSoon(w.Expiration) {
				continue
			}
			fresh, err := s.provider.Watch(ctx, w.GCalendarID, s.cfg.WebhookURL, s.calc.ChannelExpiration(s.cfg.ChannelExpirationMin))
			if err != nil {
				s.logger.Error("refresh channel", "user", record.User, "calendar", w.GCalendarID, "err", err)
				report.Failed++
				continue
			}
			replaced = append(replaced, w)
			fresh.GCalendarID = w.GCalendarID
			fresh.NextSyncToken = w.NextSyncToken
			record.Watches[i] = fresh
			report.Refreshed++
			s.logger.Info("refreshed channel", "user", record.User, "calendar", w.GCalendarID,
				"channel", fresh.ChannelID, "expiration", fresh.Expiration)
		}

		if len(replaced) > 0 {
			if err := s.store.SaveSync(ctx, record); err != nil {
				return report, fmt.Errorf("save sync record %s: %w", record.User, err)
			}
			for _, w := range replaced {
				s.stopQuietly(ctx, w)
			}
		}
	}

	return report, nil
}

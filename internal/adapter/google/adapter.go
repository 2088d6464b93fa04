package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/compasscal/compass/internal/core"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Scopes requested at login. Read access is enough for listing and watching.
var Scopes = []string{calendar.CalendarReadonlyScope}

type GoogleAdapter struct {
	id        string
	name      string
	client    *http.Client
	service   *calendar.Service
	config    *oauth2.Config
	credsFile string
	tokenFile string
	calendars map[string]string
}

func NewGoogleAdapter(id, name, credsFile, tokenFile string) *GoogleAdapter {
	return &GoogleAdapter{
		id:        id,
		name:      name,
		credsFile: credsFile,
		tokenFile: tokenFile,
		calendars: make(map[string]string),
	}
}

// NewWithService wraps an already configured Calendar service.
func NewWithService(id, name string, service *calendar.Service) *GoogleAdapter {
	return &GoogleAdapter{
		id:        id,
		name:      name,
		service:   service,
		calendars: make(map[string]string),
	}
}

func (g *GoogleAdapter) ID() string   { return g.id }
func (g *GoogleAdapter) Name() string { return g.name }

// Login loads credentials and token, then initializes the Calendar service.
// Run `compass auth` first to generate the token file.
func (g *GoogleAdapter) Login(ctx context.Context) error {
	config, err := OAuthConfig(g.credsFile)
	if err != nil {
		return err
	}
	g.config = config

	tok, err := TokenFromFile(g.tokenFile)
	if err != nil {
		return fmt.Errorf("read token file (run compass auth first): %w", err)
	}

	g.client = g.config.Client(ctx, tok)
	g.service, err = calendar.NewService(ctx, option.WithHTTPClient(g.client))
	if err != nil {
		return err
	}
	return nil
}

// OAuthConfig reads a client secret file downloaded from the Google console.
func OAuthConfig(credsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	config, err := google.ConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return config, nil
}

// LoadCalendars fetches every calendar the user has access to.
func (g *GoogleAdapter) LoadCalendars(ctx context.Context) error {
	pageToken := ""
	for {
		req := g.service.CalendarList.List().Context(ctx)
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}
		calList, err := req.Do()
		if err != nil {
			return fmt.Errorf("load calendar list: %w", err)
		}
		for _, cal := range calList.Items {
			g.calendars[cal.Id] = cal.Summary
		}
		pageToken = calList.NextPageToken
		if pageToken == "" {
			return nil
		}
	}
}

// Calendars returns the calendars loaded by LoadCalendars (ID -> Name).
func (g *GoogleAdapter) Calendars() map[string]string {
	return g.calendars
}

// TokenFromFile reads an OAuth token from a JSON file.
func TokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// SaveToken writes tok to path, readable only by the owner.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}

// ListChanges pages through the events of calendarID. With a sync token only
// changes since that token are returned, cancelled events included. When
// Google has invalidated the token (410 Gone) it falls back to a full listing.
func (g *GoogleAdapter) ListChanges(ctx context.Context, calendarID, syncToken string) ([]*calendar.Event, string, error) {
	events, next, err := g.listEvents(ctx, calendarID, syncToken)
	if syncToken != "" && isGone(err) {
		return g.listEvents(ctx, calendarID, "")
	}
	return events, next, err
}

func (g *GoogleAdapter) listEvents(ctx context.Context, calendarID, syncToken string) ([]*calendar.Event, string, error) {
	var results []*calendar.Event
	pageToken := ""

	for {
		req := g.service.Events.List(calendarID).
			ShowDeleted(true).
			SingleEvents(true).
			Context(ctx)
		if syncToken != "" {
			req = req.SyncToken(syncToken)
		}
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}

		page, err := req.Do()
		if err != nil {
			return nil, "", fmt.Errorf("api call failed for calendar %s: %w", calendarID, err)
		}
		results = append(results, page.Items...)

		pageToken = page.NextPageToken
		if pageToken == "" {
			return results, page.NextSyncToken, nil
		}
	}
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusGone
}

// Watch opens a web_hook channel on calendarID. expiration is a millisecond
// epoch string; an unparseable value lets Google pick its default lifetime.
func (g *GoogleAdapter) Watch(ctx context.Context, calendarID, address, expiration string) (core.CalendarWatch, error) {
	ch := &calendar.Channel{
		Id:      uuid.NewString(),
		Type:    "web_hook",
		Address: address,
	}
	if ms, err := strconv.ParseInt(strings.TrimSpace(expiration), 10, 64); err == nil {
		ch.Expiration = ms
	}

	got, err := g.service.Events.Watch(calendarID, ch).Context(ctx).Do()
	if err != nil {
		return core.CalendarWatch{}, fmt.Errorf("watch calendar %s: %w", calendarID, err)
	}

	exp := expiration
	if got.Expiration != 0 {
		exp = strconv.FormatInt(got.Expiration, 10)
	}
	return core.CalendarWatch{
		GCalendarID: calendarID,
		ResourceID:  got.ResourceId,
		ChannelID:   got.Id,
		Expiration:  exp,
	}, nil
}

// StopWatch closes the channel behind watch.
func (g *GoogleAdapter) StopWatch(ctx context.Context, watch core.CalendarWatch) error {
	ch := &calendar.Channel{Id: watch.ChannelID, ResourceId: watch.ResourceID}
	if err := g.service.Channels.Stop(ch).Context(ctx).Do(); err != nil {
		return fmt.Errorf("stop channel %s: %w", watch.ChannelID, err)
	}
	return nil
}

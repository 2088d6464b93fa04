package reconcile

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Push notification headers, lower-cased.
const (
	HeaderChannelID         = "x-goog-channel-id"
	HeaderResourceID        = "x-goog-resource-id"
	HeaderResourceState     = "x-goog-resource-state"
	HeaderChannelExpiration = "x-goog-channel-expiration"
	HeaderMessageNumber     = "x-goog-message-number"
	HeaderChannelToken      = "x-goog-channel-token"
)

var requiredHeaders = []string{
	HeaderChannelID,
	HeaderResourceID,
	HeaderResourceState,
	HeaderChannelExpiration,
}

// Resource states Google sends.
const (
	StateSync      = "sync"
	StateExists    = "exists"
	StateNotExists = "not_exists"
)

// ErrMissingHeaders is returned when a request is not a Google push notification.
var ErrMissingHeaders = errors.New("missing google notification headers")

// Notification is a parsed push notification.
type Notification struct {
	ChannelID     string
	ResourceID    string
	ResourceState string
	// RFC 1123 date as sent by Google.
	ChannelExpiration string
	MessageNumber     string
	ChannelToken      string
}

// HasGoogleHeaders reports whether every required key is present. Values are
// not inspected and keys match case-sensitively.
func HasGoogleHeaders(headers map[string]string) bool {
	for _, k := range requiredHeaders {
		if _, ok := headers[k]; !ok {
			return false
		}
	}
	return true
}

// HeadersFromHTTP flattens h into a map keyed by lower-cased header name,
// keeping the first value of each.
func HeadersFromHTTP(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) == 0 {
			out[strings.ToLower(k)] = ""
			continue
		}
		out[strings.ToLower(k)] = v[0]
	}
	return out
}

// ParseNotification extracts a Notification from lower-cased headers.
func ParseNotification(headers map[string]string) (Notification, error) {
	if !HasGoogleHeaders(headers) {
		var missing []string
		for _, k := range requiredHeaders {
			if _, ok := headers[k]; !ok {
				missing = append(missing, k)
			}
		}
		return Notification{}, fmt.Errorf("%w: %s", ErrMissingHeaders, strings.Join(missing, ", "))
	}
	return Notification{
		ChannelID:         headers[HeaderChannelID],
		ResourceID:        headers[HeaderResourceID],
		ResourceState:     headers[HeaderResourceState],
		ChannelExpiration: headers[HeaderChannelExpiration],
		MessageNumber:     headers[HeaderMessageNumber],
		ChannelToken:      headers[HeaderChannelToken],
	}, nil
}

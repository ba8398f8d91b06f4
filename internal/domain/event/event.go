// Package event defines the tracking event vocabulary shared by the client
// session tracker and the collector pipeline.
package event

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of viewer interaction an event describes.
type Type string

// Known event types.
const (
	TypePageView    Type = "page_view"
	TypeSectionView Type = "section_view"
	TypeScroll      Type = "scroll"
	TypeClick       Type = "click"
	TypeTimeSpent   Type = "time_spent"
	TypeDownload    Type = "download"
)

// KnownTypes returns all event types in a fixed order.
func KnownTypes() []Type {
	return []Type{TypePageView, TypeSectionView, TypeScroll, TypeClick, TypeTimeSpent, TypeDownload}
}

// Valid reports whether t is a known event type.
func (t Type) Valid() bool {
	switch t {
	case TypePageView, TypeSectionView, TypeScroll, TypeClick, TypeTimeSpent, TypeDownload:
		return true
	default:
		return false
	}
}

// Well-known Data keys.
const (
	KeyScrollDepth    = "scrollDepth"
	KeySectionID      = "sectionId"
	KeySectionTitle   = "sectionTitle"
	KeyTimeSpent      = "timeSpent"
	KeyElementID      = "elementId"
	KeyElementType    = "elementType"
	KeyElementText    = "elementText"
	KeyFileName       = "fileName"
	KeyFileType       = "fileType"
	KeyViewportWidth  = "viewportWidth"
	KeyViewportHeight = "viewportHeight"
	KeyUserAgent      = "userAgent"
	KeyReferrer       = "referrer"
	KeyTimestamp      = "timestamp"
)

// Data is the open attribute mapping carried by an event. Values arriving
// over the wire decode as JSON types, so numeric reads coerce accordingly.
type Data map[string]any

// Number returns the value under key as a float64 if present and numeric.
func (d Data) Number(key string) (float64, bool) {
	switch v := d[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// String returns the value under key as a string if present.
func (d Data) String(key string) (string, bool) {
	v, ok := d[key].(string)
	return v, ok
}

// Event is one observed viewer interaction. Immutable once emitted.
type Event struct {
	EventID    string `json:"eventId"`
	ProposalID string `json:"proposalId"`
	Type       Type   `json:"eventType"`
	Data       Data   `json:"eventData"`
	SessionID  string `json:"sessionId"`
	// TS is captured at emission time, not at enqueue or send time.
	TS time.Time `json:"ts"`
}

// New mints an event with a fresh id and the given emission timestamp.
func New(proposalID string, t Type, data Data, sessionID string, ts time.Time) Event {
	if data == nil {
		data = Data{}
	}
	return Event{
		EventID:    uuid.NewString(),
		ProposalID: proposalID,
		Type:       t,
		Data:       data,
		SessionID:  sessionID,
		TS:         ts,
	}
}

// Validate checks the fields the collector requires.
func (e Event) Validate() error {
	switch {
	case strings.TrimSpace(e.EventID) == "":
		return errors.New("missing eventId")
	case strings.TrimSpace(e.ProposalID) == "":
		return errors.New("missing proposalId")
	case strings.TrimSpace(e.SessionID) == "":
		return errors.New("missing sessionId")
	case !e.Type.Valid():
		return fmt.Errorf("unknown eventType %q", e.Type)
	case e.TS.IsZero():
		return errors.New("missing ts")
	}
	return nil
}

const (
	sessionSuffixLen   = 7
	sessionSuffixChars = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// NewSessionID returns a session token in the form
// "<millisecond-timestamp>-<7-char-base36-suffix>".
func NewSessionID(now time.Time) string {
	var b strings.Builder
	b.Grow(sessionSuffixLen)
	for i := 0; i < sessionSuffixLen; i++ {
		b.WriteByte(sessionSuffixChars[rand.Intn(len(sessionSuffixChars))]) //nolint:gosec // opaque token, not a secret
	}
	return fmt.Sprintf("%d-%s", now.UnixMilli(), b.String())
}

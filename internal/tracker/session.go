// Package tracker implements the client-side engagement session: a small
// state machine that watches how a viewer reads a proposal and emits
// tracking events over a fire-and-forget transport.
package tracker

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/propely/engage/internal/domain/event"
	"github.com/propely/engage/pkg/logger"
	"github.com/propely/engage/pkg/metrics"
)

// State is the session lifecycle state.
type State string

// Session states.
const (
	StateIdle         State = "idle"
	StateActive       State = "active"
	StateBackgrounded State = "backgrounded"
)

// Default session timing constants.
const (
	defaultScrollDebounce = 150 * time.Millisecond
	defaultScrollDelta    = 10
	defaultHeartbeat      = 30 * time.Second
	defaultDwellThreshold = 2 * time.Second
	defaultStopThreshold  = time.Second
)

// ClientInfo is browser metadata attached to page_view events.
type ClientInfo struct {
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
	Referrer       string
}

// Session tracks one viewer across proposals. The session id is minted once
// per instance; Start reuses it for every proposal the viewer opens.
type Session struct {
	mu        sync.Mutex
	transport Transport
	logger    logger.Logger
	clock     func() time.Time

	scrollDebounce time.Duration
	scrollDelta    int
	heartbeat      time.Duration
	dwellThreshold time.Duration
	stopThreshold  time.Duration
	client         ClientInfo

	sessionID  string
	state      State
	proposalID string
	startTime  time.Time

	lastScrollDepth int
	viewedSections  map[string]struct{}
	sectionStart    map[string]time.Time
	sectionTitles   map[string]string

	heartbeatTimer *time.Timer
	debounceTimer  *time.Timer
	pendingScroll  *Viewport
}

// NewSession creates an idle session bound to a transport.
func NewSession(transport Transport, opts ...Option) *Session {
	s := &Session{
		transport:      transport,
		logger:         logger.Get().Named("tracker"),
		clock:          time.Now,
		scrollDebounce: defaultScrollDebounce,
		scrollDelta:    defaultScrollDelta,
		heartbeat:      defaultHeartbeat,
		dwellThreshold: defaultDwellThreshold,
		stopThreshold:  defaultStopThreshold,
		state:          StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sessionID = event.NewSessionID(s.clock())
	return s
}

// SessionID returns the session identifier minted at construction.
func (s *Session) SessionID() string {
	return s.sessionID
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins tracking a proposal, stopping any tracking already in
// progress first. It emits a page_view event with client metadata.
func (s *Session) Start(proposalID string) {
	if proposalID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		s.stopLocked()
	}

	s.proposalID = proposalID
	s.state = StateActive
	s.startTime = s.clock()
	s.lastScrollDepth = 0
	s.viewedSections = make(map[string]struct{})
	s.sectionStart = make(map[string]time.Time)
	s.sectionTitles = make(map[string]string)

	s.emitLocked(event.TypePageView, event.Data{
		event.KeyViewportWidth:  s.client.ViewportWidth,
		event.KeyViewportHeight: s.client.ViewportHeight,
		event.KeyUserAgent:      s.client.UserAgent,
		event.KeyReferrer:       s.client.Referrer,
	})
	s.scheduleHeartbeatLocked()
}

// Stop ends tracking: any accumulated page time of at least the stop
// threshold is reported, timers are cancelled and the session goes idle.
// Stopping an idle session is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Session) stopLocked() {
	if s.state == StateIdle {
		return
	}

	if s.state == StateActive {
		if elapsed := s.clock().Sub(s.startTime); elapsed >= s.stopThreshold {
			s.emitLocked(event.TypeTimeSpent, event.Data{
				event.KeyTimeSpent: roundSeconds(elapsed),
			})
		}
	}

	s.cancelTimersLocked()
	s.state = StateIdle
	s.proposalID = ""
}

// HandleVisibility reacts to the page being hidden or shown again. Hiding
// reports accumulated page time past the dwell threshold and suspends the
// heartbeat; showing restarts the time window and the heartbeat.
func (s *Session) HandleVisibility(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case !visible && s.state == StateActive:
		if elapsed := s.clock().Sub(s.startTime); elapsed >= s.dwellThreshold {
			s.emitLocked(event.TypeTimeSpent, event.Data{
				event.KeyTimeSpent: roundSeconds(elapsed),
			})
		}
		s.cancelTimersLocked()
		s.state = StateBackgrounded

	case visible && s.state == StateBackgrounded:
		s.state = StateActive
		s.startTime = s.clock()
		s.scheduleHeartbeatLocked()
	}
}

// Scroll feeds one viewport sample into the trailing-edge debounce window.
// Only the last sample of a burst is evaluated.
func (s *Session) Scroll(v Viewport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return
	}

	if s.scrollDebounce <= 0 {
		s.processScrollLocked(v)
		return
	}

	s.pendingScroll = &v
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = time.AfterFunc(s.scrollDebounce, s.fireScroll)
}

func (s *Session) fireScroll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	sample := s.pendingScroll
	s.pendingScroll = nil
	s.debounceTimer = nil
	if sample == nil || s.state != StateActive {
		return
	}
	s.processScrollLocked(*sample)
}

func (s *Session) processScrollLocked(v Viewport) {
	depth := v.ScrollDepth()
	if depth > s.lastScrollDepth+s.scrollDelta {
		s.emitLocked(event.TypeScroll, event.Data{
			event.KeyScrollDepth: depth,
		})
	}
	if depth > s.lastScrollDepth {
		s.lastScrollDepth = depth
	}

	s.updateSectionsLocked(v)
}

// updateSectionsLocked reconciles section visibility against the sample.
// A section's first appearance emits section_view; leaving a section after
// the dwell threshold emits a sectioned time_spent.
func (s *Session) updateSectionsLocked(v Viewport) {
	now := s.clock()
	visible := make(map[string]struct{}, len(v.Sections))

	for _, sec := range v.Sections {
		if sec.ID == "" || !v.Visible(sec) {
			continue
		}
		visible[sec.ID] = struct{}{}
		s.sectionTitles[sec.ID] = sec.Title

		if _, seen := s.viewedSections[sec.ID]; !seen {
			s.viewedSections[sec.ID] = struct{}{}
			s.emitLocked(event.TypeSectionView, event.Data{
				event.KeySectionID:    sec.ID,
				event.KeySectionTitle: sec.Title,
			})
		}
		if _, timing := s.sectionStart[sec.ID]; !timing {
			s.sectionStart[sec.ID] = now
		}
	}

	for id, since := range s.sectionStart {
		if _, still := visible[id]; still {
			continue
		}
		delete(s.sectionStart, id)
		if dwell := now.Sub(since); dwell >= s.dwellThreshold {
			s.emitLocked(event.TypeTimeSpent, event.Data{
				event.KeySectionID: id,
				event.KeyTimeSpent: roundSeconds(dwell),
			})
		}
	}
}

// TrackClick reports an interaction with a page element.
func (s *Session) TrackClick(elementID, elementType, elementText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle {
		return
	}
	s.emitLocked(event.TypeClick, event.Data{
		event.KeyElementID:   elementID,
		event.KeyElementType: elementType,
		event.KeyElementText: elementText,
	})
}

// TrackDownload reports a file download from the proposal.
func (s *Session) TrackDownload(fileName, fileType string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle {
		return
	}
	s.emitLocked(event.TypeDownload, event.Data{
		event.KeyFileName: fileName,
		event.KeyFileType: fileType,
	})
}

func (s *Session) scheduleHeartbeatLocked() {
	s.heartbeatTimer = time.AfterFunc(s.heartbeat, s.onHeartbeat)
}

func (s *Session) onHeartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return
	}
	now := s.clock()
	s.emitLocked(event.TypeTimeSpent, event.Data{
		event.KeyTimeSpent: roundSeconds(now.Sub(s.startTime)),
	})
	s.startTime = now
	s.scheduleHeartbeatLocked()
}

func (s *Session) cancelTimersLocked() {
	if s.heartbeatTimer != nil {
		s.heartbeatTimer.Stop()
		s.heartbeatTimer = nil
	}
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
		s.debounceTimer = nil
	}
	s.pendingScroll = nil
}

// emitLocked builds the event synchronously, then dispatches it without
// waiting for delivery. Transport failures are logged and dropped.
func (s *Session) emitLocked(t event.Type, data event.Data) {
	e := event.New(s.proposalID, t, data, s.sessionID, s.clock())

	go func() {
		if err := s.transport.Send(context.Background(), e); err != nil {
			metrics.RecordTransportFailure()
			s.logger.Warn(context.Background(), "dropping undeliverable event",
				logger.String("event_type", string(t)),
				logger.String("event_id", e.EventID),
				logger.Error(err))
			return
		}
		metrics.RecordTransportSend()
	}()
}

func roundSeconds(d time.Duration) int {
	return int(math.Round(d.Seconds()))
}

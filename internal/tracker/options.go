package tracker

import (
	"time"

	"github.com/propely/engage/pkg/logger"
)

// Option applies a configuration option to the Session.
type Option func(*Session)

// WithLogger sets a custom logger for the session.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the session's time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithScrollDebounce sets the trailing-edge scroll debounce interval.
// A zero or negative interval processes every sample synchronously.
func WithScrollDebounce(d time.Duration) Option {
	return func(s *Session) {
		s.scrollDebounce = d
	}
}

// WithScrollDelta sets how many percentage points past the last recorded
// depth a sample must reach before a scroll event is emitted.
func WithScrollDelta(delta int) Option {
	return func(s *Session) {
		if delta > 0 {
			s.scrollDelta = delta
		}
	}
}

// WithHeartbeat sets the periodic time_spent interval.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// WithDwellThreshold sets the minimum elapsed time before a backgrounded
// session or an exited section reports time_spent.
func WithDwellThreshold(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.dwellThreshold = d
		}
	}
}

// WithStopThreshold sets the minimum elapsed time before a stopping session
// reports its final time_spent.
func WithStopThreshold(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.stopThreshold = d
		}
	}
}

// WithClientInfo attaches browser metadata reported on page_view events.
func WithClientInfo(info ClientInfo) Option {
	return func(s *Session) {
		s.client = info
	}
}

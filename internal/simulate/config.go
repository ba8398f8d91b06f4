package simulate

import "time"

// Config holds configuration for the engagement simulator.
type Config struct {
	BaseURL   string        // Base URL of the service
	Proposals int           // Number of proposals to create
	Sessions  int           // Number of viewing sessions to simulate
	Workers   int           // Number of concurrent workers
	Timeout   time.Duration // HTTP request timeout
	LogFile   string        // Log file for simulator output
	Verbose   bool          // Enable verbose logging
}

// Stats holds simulation statistics.
type Stats struct {
	ProposalsCreated int
	SessionsRun      int
	EventsSent       int64
	EventsFailed     int64
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

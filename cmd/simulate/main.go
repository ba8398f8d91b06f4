package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/propely/engage/internal/simulate"
)

// Default configuration constants.
const (
	defaultProposals         = 20
	defaultSessions          = 100
	defaultWorkerMultiplier  = 2 // multiplier for runtime.NumCPU()
	defaultTimeout           = 30 * time.Second
	defaultSimulationTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		proposals = flag.Int("proposals", defaultProposals, "Number of proposals to create")
		sessions  = flag.Int("sessions", defaultSessions, "Number of viewing sessions to simulate")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkerMultiplier, "Number of concurrent workers")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFile   = flag.String("log", "", "Log file for simulator output (default: simulation_log_TIMESTAMP.log)")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	// Setup logging
	if err := simulate.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), defaultSimulationTimeout)
	defer cancel()

	// Create simulation configuration
	config := &simulate.Config{
		BaseURL:   *baseURL,
		Proposals: *proposals,
		Sessions:  *sessions,
		Workers:   *workers,
		Timeout:   *timeout,
		LogFile:   *logFile,
		Verbose:   *verbose,
	}

	// Run the simulation
	if err := simulate.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return
	}
}

package simulate

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/propely/engage/internal/tracker"
	"github.com/propely/engage/pkg/logger"
)

// Simulated document geometry.
const (
	documentHeight = 4200
	viewportHeight = 800
	viewportWidth  = 1280
	scrollStep     = 350
)

// Accelerated session timing so a run produces the full event mix in seconds
// instead of minutes.
const (
	simulatedDwellThreshold = 100 * time.Millisecond
	simulatedStopThreshold  = 50 * time.Millisecond
	simulatedHeartbeat      = 2 * time.Second
	simulatedDebounce       = 20 * time.Millisecond
	minStepPause            = 30 * time.Millisecond
	stepPauseRange          = 120
)

// Persona behavior probabilities, out of 100.
const (
	skimmerChance  = 30
	clickChance    = 40
	downloadChance = 20
	bounceChance   = 15
)

const randomFloatDivisor = 1000000

// proposalSections lays out the regions every simulated proposal document has.
var proposalSections = []tracker.Section{
	{ID: "overview", Title: "Overview", Top: 200, Bottom: 900},
	{ID: "scope", Title: "Scope of Work", Top: 900, Bottom: 1800},
	{ID: "pricing", Title: "Pricing", Top: 1800, Bottom: 2600},
	{ID: "timeline", Title: "Timeline", Top: 2600, Bottom: 3300},
	{ID: "terms", Title: "Terms", Top: 3300, Bottom: 4200},
}

// getRandomInt returns a random int in [0, n) using crypto/rand.
func getRandomInt(n int64) int64 {
	v, _ := rand.Int(rand.Reader, big.NewInt(n))
	return v.Int64()
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// runSession simulates one viewer reading one proposal. Skimmers bounce
// early; readers scroll the whole document, dwell on sections and sometimes
// click or download.
func runSession(ctx context.Context, transport *countingTransport, proposalID string) {
	session := tracker.NewSession(transport,
		tracker.WithScrollDebounce(simulatedDebounce),
		tracker.WithHeartbeat(simulatedHeartbeat),
		tracker.WithDwellThreshold(simulatedDwellThreshold),
		tracker.WithStopThreshold(simulatedStopThreshold),
		tracker.WithClientInfo(tracker.ClientInfo{
			ViewportWidth:  viewportWidth,
			ViewportHeight: viewportHeight,
			UserAgent:      "engage-simulator/1.0",
			Referrer:       "https://mail.example.com/",
		}),
	)

	session.Start(proposalID)
	defer session.Stop()

	skimmer := getRandomInt(100) < skimmerChance
	maxScroll := float64(documentHeight - viewportHeight)
	if skimmer {
		maxScroll = maxScroll * getRandomFloat()
	}

	for top := 0.0; top <= maxScroll; top += scrollStep {
		select {
		case <-ctx.Done():
			return
		default:
		}

		session.Scroll(tracker.Viewport{
			ScrollTop:      top,
			Height:         viewportHeight,
			DocumentHeight: documentHeight,
			Sections:       proposalSections,
		})
		pause(ctx, time.Duration(getRandomInt(stepPauseRange))*time.Millisecond+minStepPause)

		// Skimmers occasionally abandon the page mid-scroll.
		if skimmer && getRandomInt(100) < bounceChance {
			logger.Get().Debug(ctx, "session bounced",
				logger.String("proposalID", proposalID),
				logger.String("sessionID", session.SessionID()))
			return
		}
	}

	if getRandomInt(100) < clickChance {
		session.TrackClick("accept-btn", "button", "Accept proposal")
	}
	if getRandomInt(100) < downloadChance {
		session.TrackDownload("proposal.pdf", "pdf")
	}

	// Let the final debounce window and dwell timers settle before Stop.
	pause(ctx, 2*simulatedDebounce+simulatedDwellThreshold)
}

func pause(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

package engine

import "time"

// WPM limits for the operator's keyer.
const (
	MinUserWPM = 15
	MaxUserWPM = 50
)

// Timing holds the controller's timed waits.
type Timing struct {
	PostCQDelay     time.Duration // CQ end to first look for callers
	ResponseDelay   time.Duration // our transmission end to the caller's reply
	TailEnderDelay  time.Duration // TU end to a tail-ender calling
	CQPollInterval  time.Duration // re-check for callers while nobody answers
	CQSilenceWindow time.Duration // give up on a CQ after this much silence
}

// Settings is the controller's configuration. It is assumed validated.
type Settings struct {
	UserCallsign string
	UserWPM      int
	AGNMessage   string

	MaxSimultaneous       int
	AGNRequestProbability float64
	CorrectionProbability float64
	SingleProbability     float64
	MaxCorrectionAttempts int

	Timing Timing
}

// DefaultTiming returns the stock waits.
func DefaultTiming() Timing {
	return Timing{
		PostCQDelay:     300 * time.Millisecond,
		ResponseDelay:   250 * time.Millisecond,
		TailEnderDelay:  100 * time.Millisecond,
		CQPollInterval:  500 * time.Millisecond,
		CQSilenceWindow: 3 * time.Second,
	}
}

// DefaultSettings returns settings for a stock session.
func DefaultSettings() Settings {
	return Settings{
		UserCallsign:          "N9UNX",
		UserWPM:               32,
		AGNMessage:            "?",
		MaxSimultaneous:       2,
		AGNRequestProbability: 0.1,
		CorrectionProbability: 0.8,
		SingleProbability:     0.75,
		MaxCorrectionAttempts: 2,
		Timing:                DefaultTiming(),
	}
}

func clampWPM(wpm int) int {
	return min(max(wpm, MinUserWPM), MaxUserWPM)
}

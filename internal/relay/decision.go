package relay

// Decision is the outcome of should_relay_smart.
type Decision string

const (
	NoRelay   Decision = "no_relay"
	Proactive Decision = "proactive"
	Reactive  Decision = "reactive"
)

// DefaultThreshold is the usage ratio past which a relay is recommended.
const DefaultThreshold = 0.8

// ShouldRelay implements should_relay_smart: Reactive fires when the
// current usage ratio alone already crosses threshold; Proactive fires
// when usage plus the anticipated task cost would cross it. Reactive wins
// when both fire.
func ShouldRelay(usage Usage, taskCost int, threshold float64) Decision {
	if usage.UsageRatio >= threshold {
		return Reactive
	}
	projected := float64(usage.EstimatedTokens+taskCost) / float64(usage.MaxTokens)
	if projected >= threshold {
		return Proactive
	}
	return NoRelay
}

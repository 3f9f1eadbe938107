package turn

import (
	"strings"

	"github.com/nextlevelbuilder/myclaw/internal/eventbus"
)

// ringBuffer keeps the most recent `capacity` items, oldest dropped first.
type ringBuffer struct {
	capacity int
	items    []string
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{capacity: capacity}
}

func (r *ringBuffer) push(s string) {
	r.items = append(r.items, s)
	if len(r.items) > r.capacity {
		r.items = r.items[len(r.items)-r.capacity:]
	}
}

// fingerprint normalizes a tool output for oscillation comparison:
// whitespace-collapsed and truncated to 220 characters.
func fingerprint(output string) string {
	const maxLen = 220
	collapsed := strings.Join(strings.Fields(output), " ")
	if len(collapsed) > maxLen {
		collapsed = collapsed[:maxLen]
	}
	return collapsed
}

// computeOscillation derives the observational metrics from a session's
// recent call-signature and output-fingerprint ring buffers. Observation
// only — nothing here changes turn-loop behavior.
func computeOscillation(st *sessionTurnState) eventbus.OscillationMetrics {
	calls := st.callSigs.items
	outputs := st.outputFingerprints.items

	repeatRatio := 0.0
	if len(calls) > 0 {
		repeatRatio = float64(len(calls)-distinctCount(calls)) / float64(len(calls))
	}

	noveltyRatio := 0.0
	if len(outputs) > 0 {
		noveltyRatio = float64(distinctNonEmpty(outputs)) / float64(len(outputs))
	}

	return eventbus.OscillationMetrics{
		RepeatRatio:         repeatRatio,
		NoveltyRatio:        noveltyRatio,
		NoMutationSteps:     st.noMutationSteps,
		PossibleOscillation: repeatRatio >= 0.5 && noveltyRatio <= 0.5 && st.noMutationSteps >= 2,
	}
}

func distinctCount(items []string) int {
	seen := make(map[string]bool, len(items))
	for _, i := range items {
		seen[i] = true
	}
	return len(seen)
}

func distinctNonEmpty(items []string) int {
	seen := make(map[string]bool, len(items))
	for _, i := range items {
		if i != "" {
			seen[i] = true
		}
	}
	return len(seen)
}

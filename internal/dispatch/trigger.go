package dispatch

import (
	"math"

	"github.com/subhash0x/agentnet/internal/storage"
)

// Evaluate decides whether a trigger condition hits at the current
// price. Boundary equality counts as a hit: an alert set to fire on a
// 10% drop from 100 fires at exactly 90. Non-finite or non-positive
// price inputs never hit; the caller is expected to skip the pass on a
// bad quote, but the evaluator degrades safely on its own.
func Evaluate(triggerType string, triggerValue, baselinePrice, currentPrice float64) bool {
	if !isFinitePositive(baselinePrice) || !isFinitePositive(currentPrice) {
		return false
	}
	if !isFinitePositive(triggerValue) {
		return false
	}

	switch triggerType {
	case storage.TriggerPercentDrop:
		return currentPrice <= baselinePrice*(1-triggerValue/100)
	case storage.TriggerPercentRise:
		return currentPrice >= baselinePrice*(1+triggerValue/100)
	default:
		return false
	}
}

func isFinitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

package dispatch

import (
	"math"
	"testing"

	"github.com/subhash0x/agentnet/internal/storage"
)

func TestEvaluateDropBoundaryInclusive(t *testing.T) {
	// 10% drop from 100: threshold is exactly 90.
	if !Evaluate(storage.TriggerPercentDrop, 10, 100, 90) {
		t.Fatal("exact threshold should hit")
	}
	if !Evaluate(storage.TriggerPercentDrop, 10, 100, 89.99) {
		t.Fatal("below threshold should hit")
	}
	if Evaluate(storage.TriggerPercentDrop, 10, 100, 90.01) {
		t.Fatal("above threshold should not hit")
	}
}

func TestEvaluateRiseBoundaryInclusive(t *testing.T) {
	// 10% rise from 100: threshold is exactly 110.
	if !Evaluate(storage.TriggerPercentRise, 10, 100, 110) {
		t.Fatal("exact threshold should hit")
	}
	if !Evaluate(storage.TriggerPercentRise, 10, 100, 110.01) {
		t.Fatal("above threshold should hit")
	}
	if Evaluate(storage.TriggerPercentRise, 10, 100, 109.99) {
		t.Fatal("below threshold should not hit")
	}
}

func TestEvaluateDegradesOnBadInputs(t *testing.T) {
	cases := []struct {
		name             string
		value, base, cur float64
	}{
		{"zero price", 10, 100, 0},
		{"negative price", 10, 100, -5},
		{"nan price", 10, 100, math.NaN()},
		{"inf price", 10, 100, math.Inf(1)},
		{"zero baseline", 10, 0, 50},
		{"nan baseline", 10, math.NaN(), 50},
		{"zero trigger value", 0, 100, 1},
	}
	for _, tc := range cases {
		if Evaluate(storage.TriggerPercentDrop, tc.value, tc.base, tc.cur) {
			t.Fatalf("%s: drop should not hit", tc.name)
		}
		if Evaluate(storage.TriggerPercentRise, tc.value, tc.base, tc.cur) {
			t.Fatalf("%s: rise should not hit", tc.name)
		}
	}
}

func TestEvaluateUnknownTriggerType(t *testing.T) {
	if Evaluate("percent_sideways", 10, 100, 50) {
		t.Fatal("unknown trigger type should never hit")
	}
}

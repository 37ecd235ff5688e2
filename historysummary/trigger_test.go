// Copyright 2025 achetronic
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package historysummary

import "testing"

func TestResolveContextWindowTokensLongestKeyWins(t *testing.T) {
	cfg := &Config{
		ContextWindowTokensDefault: 1000,
		ContextWindowTokensOverrides: map[string]uint32{
			"claude":       2000,
			"claude-3-opus": 3000,
		},
	}
	tokens, ok := resolveContextWindowTokens(cfg, "claude-3-opus-20240229")
	if !ok || tokens != 3000 {
		t.Fatalf("resolveContextWindowTokens() = (%d, %v), want (3000, true)", tokens, ok)
	}
}

func TestResolveContextWindowTokensFallsBackToDefault(t *testing.T) {
	cfg := &Config{ContextWindowTokensDefault: 1000}
	tokens, ok := resolveContextWindowTokens(cfg, "gpt-4o")
	if !ok || tokens != 1000 {
		t.Fatalf("resolveContextWindowTokens() = (%d, %v), want (1000, true)", tokens, ok)
	}
}

func TestResolveContextWindowTokensUnknown(t *testing.T) {
	cfg := &Config{}
	_, ok := resolveContextWindowTokens(cfg, "mystery-model")
	if ok {
		t.Fatalf("resolveContextWindowTokens() ok = true, want false")
	}
}

func TestEvaluateTriggerCharsBelowThreshold(t *testing.T) {
	cfg := &Config{TriggerStrategy: "chars", TriggerOnHistorySizeChars: 10_000_000}
	_, ok := evaluateTrigger(cfg, "any-model", 200, 200)
	if ok {
		t.Fatalf("evaluateTrigger() ok = true, want false below threshold")
	}
}

func TestEvaluateTriggerCharsAboveThreshold(t *testing.T) {
	cfg := &Config{TriggerStrategy: "chars", TriggerOnHistorySizeChars: 500, HistoryTailSizeCharsToExclude: 200}
	decision, ok := evaluateTrigger(cfg, "any-model", 1500, 1500)
	if !ok {
		t.Fatalf("evaluateTrigger() ok = false, want true")
	}
	if decision.kind != triggerChars || decision.tailBudget != 200 {
		t.Fatalf("evaluateTrigger() = %+v, want chars/200", decision)
	}
}

func TestEvaluateAutoFallsBackToCharsWithoutContextWindow(t *testing.T) {
	cfg := &Config{TriggerStrategy: "auto", TriggerOnHistorySizeChars: 500, HistoryTailSizeCharsToExclude: 200}
	decision, ok := evaluateTrigger(cfg, "unknown-model", 1500, 1500)
	if !ok || decision.kind != triggerChars {
		t.Fatalf("evaluateTrigger() = (%+v, %v), want chars strategy", decision, ok)
	}
}

func TestEvaluateRatioTriggerWithResolvedContextWindowComputesThresholdAndBudget(t *testing.T) {
	cfg := &Config{
		TriggerStrategy:            "ratio",
		TriggerOnContextRatio:      0.5,
		TargetContextRatio:         0.3,
		ContextWindowTokensDefault: 100_000,
	}

	decision, ok := evaluateTrigger(cfg, "gpt-4o", 200_000, 200_000)
	if !ok {
		t.Fatalf("evaluateTrigger() ok = false, want true")
	}
	if decision.kind != triggerRatio {
		t.Fatalf("evaluateTrigger() kind = %v, want triggerRatio", decision.kind)
	}
	if decision.thresholdChars != 200_000 {
		t.Fatalf("evaluateTrigger() thresholdChars = %d, want 200000 (ceil(100000*0.5)*4)", decision.thresholdChars)
	}
	if decision.tailBudget != 115_904 {
		t.Fatalf("evaluateTrigger() tailBudget = %d, want 115904", decision.tailBudget)
	}
}

func TestEvaluateRatioTriggerBelowRatioDoesNotFire(t *testing.T) {
	cfg := &Config{
		TriggerStrategy:            "ratio",
		TriggerOnContextRatio:      0.9,
		TargetContextRatio:         0.3,
		ContextWindowTokensDefault: 100_000,
	}

	_, ok := evaluateTrigger(cfg, "gpt-4o", 1_000, 1_000)
	if ok {
		t.Fatalf("evaluateTrigger() ok = true, want false below trigger_on_context_ratio")
	}
}

func TestEvaluateRatioTriggerThresholdRoundsUp(t *testing.T) {
	decision, ok := applyRatioMath(&Config{TriggerOnContextRatio: 0.1, TargetContextRatio: 0.1}, 33, 1000)
	if !ok {
		t.Fatalf("applyRatioMath() ok = false, want true")
	}
	// ceil(33*0.1) = ceil(3.3) = 4 tokens, *4 = 16 chars.
	if decision.thresholdChars != 16 {
		t.Fatalf("applyRatioMath() thresholdChars = %d, want 16", decision.thresholdChars)
	}
}

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

import (
	"sort"
	"strings"
)

// triggerKind distinguishes the two ways a trigger can fire; a third,
// implicit "not triggered" case is represented by evaluateTrigger
// returning ok=false.
type triggerKind int

const (
	triggerChars triggerKind = iota
	triggerRatio
)

// triggerDecision is the output of the trigger evaluator: which strategy
// fired, the byte threshold the history was judged against, and the byte
// budget it implies for the tail.
type triggerDecision struct {
	kind          triggerKind
	thresholdChars int
	tailBudget     int
}

// resolveContextWindowTokens looks up the context window for modelName by
// longest-matching substring override, falling back to the configured
// default. It returns ok=false when neither source yields a positive
// value ("no context window known").
func resolveContextWindowTokens(cfg *Config, modelName string) (tokens uint32, ok bool) {
	trimmed := strings.TrimSpace(modelName)

	type override struct {
		key   string
		value uint32
	}
	overrides := make([]override, 0, len(cfg.ContextWindowTokensOverrides))
	for k, v := range cfg.ContextWindowTokensOverrides {
		overrides = append(overrides, override{key: k, value: v})
	}
	sort.Slice(overrides, func(i, j int) bool {
		return len(overrides[i].key) > len(overrides[j].key)
	})

	for _, o := range overrides {
		if o.key == "" {
			continue
		}
		if strings.Contains(trimmed, o.key) {
			return o.value, true
		}
	}

	if cfg.ContextWindowTokensDefault > 0 {
		return cfg.ContextWindowTokensDefault, true
	}

	return 0, false
}

// evaluateTrigger implements the chars/ratio/auto trigger strategies. It
// never mutates cfg or the history; totalChars and totalWithExtra are
// precomputed by the caller from the size estimator.
func evaluateTrigger(cfg *Config, modelName string, totalChars, totalWithExtra int) (triggerDecision, bool) {
	strategy := cfg.TriggerStrategy

	switch strategy {
	case "chars":
		return evaluateCharsTrigger(cfg, totalWithExtra)
	case "ratio":
		return evaluateRatioTrigger(cfg, modelName, totalWithExtra)
	default:
		return evaluateAutoTrigger(cfg, modelName, totalWithExtra)
	}
}

func evaluateCharsTrigger(cfg *Config, totalWithExtra int) (triggerDecision, bool) {
	if totalWithExtra < cfg.TriggerOnHistorySizeChars {
		return triggerDecision{}, false
	}
	return triggerDecision{
		kind:           triggerChars,
		thresholdChars: cfg.TriggerOnHistorySizeChars,
		tailBudget:     cfg.HistoryTailSizeCharsToExclude,
	}, true
}

func evaluateRatioTrigger(cfg *Config, modelName string, totalWithExtra int) (triggerDecision, bool) {
	contextWindow, ok := resolveContextWindowTokens(cfg, modelName)
	if !ok {
		return evaluateCharsTrigger(cfg, totalWithExtra)
	}
	return applyRatioMath(cfg, contextWindow, totalWithExtra)
}

func evaluateAutoTrigger(cfg *Config, modelName string, totalWithExtra int) (triggerDecision, bool) {
	contextWindow, ok := resolveContextWindowTokens(cfg, modelName)
	if !ok {
		return evaluateCharsTrigger(cfg, totalWithExtra)
	}

	if cfg.TriggerOnHistorySizeChars > 0 {
		cap64 := uint64(cfg.TriggerOnHistorySizeChars) / 4
		if cap64 > 0 && uint64(contextWindow) > cap64 {
			contextWindow = uint32(cap64)
		}
	}

	return applyRatioMath(cfg, contextWindow, totalWithExtra)
}

// applyRatioMath is the shared ratio threshold/budget computation used by
// both the ratio and auto strategies once a context window is known. It
// computes both the char-equivalent threshold the history was judged
// against (ceil(context_window_tokens * trigger_on_context_ratio) * 4) and
// the post-compaction tail budget derived from target_context_ratio.
func applyRatioMath(cfg *Config, contextWindow uint32, totalWithExtra int) (triggerDecision, bool) {
	approxTotalTokens := approxTokenCountFromByteLen(totalWithExtra)

	if contextWindow == 0 {
		return triggerDecision{}, false
	}

	ratio := float64(approxTotalTokens) / float64(contextWindow)
	if ratio < cfg.TriggerOnContextRatio {
		return triggerDecision{}, false
	}

	thresholdTokens := ceilDiv4WithRatio(contextWindow, cfg.TriggerOnContextRatio)
	thresholdChars := thresholdTokens * 4

	targetCharsBudget := uint64(float64(contextWindow)*cfg.TargetContextRatio) * 4

	summaryOverhead := uint64(cfg.AbridgedHistoryParams.TotalCharsLimit) +
		uint64(cfg.MaxTokens)*4 + 4096

	var targetTailBudgetChars uint64
	if targetCharsBudget > summaryOverhead {
		targetTailBudgetChars = targetCharsBudget - summaryOverhead
	}

	return triggerDecision{
		kind:           triggerRatio,
		thresholdChars: int(thresholdChars),
		tailBudget:     int(targetTailBudgetChars),
	}, true
}

// ceilDiv4WithRatio returns ceil(contextWindow * ratio), matching the
// threshold_chars formula's token-count rounding.
func ceilDiv4WithRatio(contextWindow uint32, ratio float64) uint64 {
	product := float64(contextWindow) * ratio
	whole := uint64(product)
	if float64(whole) < product {
		whole++
	}
	return whole
}

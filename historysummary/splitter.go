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

// historySplit is the result of splitHistoryForSummary: head is the older
// prefix destined for summarization, tail is the newer suffix left
// untouched. Both are in chronological order and their concatenation
// equals the original history.
type historySplit struct {
	head []Exchange
	tail []Exchange
}

// splitHistoryForSummary walks history from newest to oldest, assigning
// each exchange to the tail while either the tail byte budget is not yet
// spent or the tail holds fewer than minTailExchanges exchanges.
func splitHistoryForSummary(history []Exchange, tailBudgetChars, triggerThresholdChars, minTailExchanges int) historySplit {
	n := len(history)
	tailStart := n
	seenBytes := 0

	for i := n - 1; i >= 0; i-- {
		tailCount := n - tailStart
		if seenBytes < tailBudgetChars || tailCount < minTailExchanges {
			tailStart = i
			seenBytes += estimateExchangeSizeChars(history[i])
			continue
		}
		break
	}

	total := estimateHistorySizeChars(history)
	if total < triggerThresholdChars {
		return historySplit{head: nil, tail: append([]Exchange(nil), history...)}
	}

	head := append([]Exchange(nil), history[:tailStart]...)
	tail := append([]Exchange(nil), history[tailStart:]...)
	return historySplit{head: head, tail: tail}
}

// adjustTailToAvoidToolResultOrphans walks tailStart backward one exchange
// at a time while the tail-leading exchange still contains a tool-result
// node, stopping at index 0. It never increases tailStart.
func adjustTailToAvoidToolResultOrphans(history []Exchange, tailStart int) int {
	for tailStart > 0 && tailStart < len(history) && history[tailStart].HasToolResult() {
		tailStart--
	}
	return tailStart
}

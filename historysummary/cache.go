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

import "sync"

// HistorySummaryCache holds one rolling summary per conversation. It is a
// single reader-writer-lock-guarded map: writers overwrite the whole entry
// for a conversation-id, there is no coalescing of concurrent
// summarizations, and the last writer wins.
type HistorySummaryCache struct {
	mu      sync.RWMutex
	entries map[string]RollingSummaryState
}

// NewHistorySummaryCache returns an empty cache ready for use.
func NewHistorySummaryCache() *HistorySummaryCache {
	return &HistorySummaryCache{entries: make(map[string]RollingSummaryState)}
}

func isFresh(state RollingSummaryState, nowMs int64, ttlMs int64) bool {
	if ttlMs <= 0 {
		return true
	}
	return nowMs-state.UpdatedAtMs <= ttlMs
}

// GetFresh returns the cached summary text and summarization id for
// conversationID only if an entry exists, is fresh under ttlMs, and its
// SummarizedUntilRequestID matches boundaryRequestID exactly.
func (c *HistorySummaryCache) GetFresh(conversationID, boundaryRequestID string, nowMs, ttlMs int64) (text string, summarizationID string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state, exists := c.entries[conversationID]
	if !exists {
		return "", "", false
	}
	if !isFresh(state, nowMs, ttlMs) {
		return "", "", false
	}
	if state.SummarizedUntilRequestID != boundaryRequestID {
		return "", "", false
	}
	return state.SummaryText, state.SummarizationRequestID, true
}

// GetFreshState returns the cached state for conversationID if it exists
// and is fresh under ttlMs, without matching against any boundary. Used by
// the rolling-update path to find a usable previous summary.
func (c *HistorySummaryCache) GetFreshState(conversationID string, nowMs, ttlMs int64) (RollingSummaryState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state, exists := c.entries[conversationID]
	if !exists || !isFresh(state, nowMs, ttlMs) {
		return RollingSummaryState{}, false
	}
	return state, true
}

// Put unconditionally inserts or overwrites the cache entry for
// conversationID.
func (c *HistorySummaryCache) Put(conversationID, boundaryRequestID, text, summarizationID string, nowMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[conversationID] = RollingSummaryState{
		SummaryText:              text,
		SummarizedUntilRequestID: boundaryRequestID,
		SummarizationRequestID:   summarizationID,
		UpdatedAtMs:              nowMs,
	}
}

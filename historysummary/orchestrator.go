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
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dstmath/Augment-BYOK-Proxy/historysummary/summarizer"
)

var tracer = otel.Tracer("history_summary")

const (
	rollingSummaryPromptSuffix = "\n\nYou will be given an existing summary and additional new conversation turns. " +
		"Update the summary to include the new information. Output only the updated summary."
	previousSummaryWrapperFormat = "[PREVIOUS_SUMMARY]\n%s\n[/PREVIOUS_SUMMARY]"
)

// CompactRequest is the single incoming request the orchestrator decides
// whether to rewrite.
type CompactRequest struct {
	ConversationID string
	Model          string
	Message        string
	ChatHistory    []Exchange
}

// Compact runs the end-to-end guard/trigger/split/summarize/splice
// procedure. On success it mutates req.ChatHistory in place and returns
// true. On any silent no-op path it returns false, nil and leaves req
// untouched. On a surfaced failure it returns false, err.
func Compact(ctx context.Context, cfg *Config, cache *HistorySummaryCache, nowMs int64, req *CompactRequest) (bool, error) {
	ctx, span := tracer.Start(ctx, "history_summary.compact")
	defer span.End()
	span.SetAttributes(
		attribute.String("conversation_id", req.ConversationID),
		attribute.String("trigger_strategy", cfg.TriggerStrategy),
	)

	compacted, err := compact(ctx, cfg, cache, nowMs, req)

	span.SetAttributes(attribute.Bool("compacted", compacted))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return compacted, err
}

func compact(ctx context.Context, cfg *Config, cache *HistorySummaryCache, nowMs int64, req *CompactRequest) (bool, error) {
	// Step 1: guards.
	if !cfg.Enabled {
		slog.Debug("history_summary: disabled, skipping", "conversation_id", req.ConversationID)
		return false, nil
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		slog.Debug("history_summary: missing conversation_id, skipping")
		return false, nil
	}
	if len(req.ChatHistory) == 0 {
		slog.Debug("history_summary: empty chat_history, skipping", "conversation_id", req.ConversationID)
		return false, nil
	}
	for _, ex := range req.ChatHistory {
		if ex.HasHistorySummaryNode() {
			slog.Debug("history_summary: history already contains a summary node, skipping", "conversation_id", req.ConversationID)
			return false, nil
		}
	}

	// Step 2: sizes.
	totalChars := estimateHistorySizeChars(req.ChatHistory)
	totalWithExtra := totalChars + len(req.Message)

	// Step 3: trigger.
	decision, triggered := evaluateTrigger(cfg, req.Model, totalChars, totalWithExtra)
	if !triggered {
		slog.Debug("history_summary: not triggered", "conversation_id", req.ConversationID, "total_chars", totalChars)
		return false, nil
	}

	// Step 4: split.
	split := splitHistoryForSummary(req.ChatHistory, decision.tailBudget, decision.thresholdChars, cfg.MinTailExchanges)
	if len(split.head) == 0 || len(split.tail) == 0 {
		slog.Debug("history_summary: split produced empty head or tail", "conversation_id", req.ConversationID)
		return false, nil
	}

	// Step 5: boundary + sanitize.
	boundaryRequestID := split.tail[0].RequestID
	if boundaryRequestID == "" {
		return false, nil
	}
	tailStart := len(split.head)
	tailStart = adjustTailToAvoidToolResultOrphans(req.ChatHistory, tailStart)
	if tailStart >= len(req.ChatHistory) {
		return false, nil
	}
	boundaryRequestID = req.ChatHistory[tailStart].RequestID
	if boundaryRequestID == "" {
		return false, nil
	}
	if tailStart == 0 || tailStart >= len(req.ChatHistory) {
		slog.Debug("history_summary: sanitized tail emptied head or tail", "conversation_id", req.ConversationID)
		return false, nil
	}
	head := req.ChatHistory[:tailStart]
	tail := req.ChatHistory[tailStart:]

	// Step 6: abridge.
	abridged := buildAbridgedHistoryText(req.ChatHistory[:tailStart], "", cfg.AbridgedHistoryParams)

	// Step 7: cache lookup.
	var summaryText, summarizationID string
	if text, id, ok := cache.GetFresh(req.ConversationID, boundaryRequestID, nowMs, cfg.CacheTTLMs); ok {
		summaryText, summarizationID = text, id
		slog.Debug("history_summary: cache hit", "conversation_id", req.ConversationID, "boundary", boundaryRequestID)
	} else {
		// Step 8: summarize.
		text, id, err := summarizeAndCache(ctx, cfg, cache, nowMs, req.ConversationID, boundaryRequestID, tailStart, head)
		if err != nil {
			slog.Error("history_summary: summarization failed", "conversation_id", req.ConversationID, "error", err)
			return false, err
		}
		if text == "" {
			return false, nil
		}
		summaryText, summarizationID = text, id
	}

	// Step 9/10/11: render and splice.
	template := cfg.SummaryNodeRequestMessageTemplate
	var historyEnd []HistoryEndTurn
	if cfg.UseHistorySummaryNew {
		template = cfg.SummaryNodeRequestMessageTemplateNew
		historyEnd = make([]HistoryEndTurn, 0, len(tail))
		for _, ex := range tail {
			historyEnd = append(historyEnd, HistoryEndTurn{
				RequestID:      ex.RequestID,
				RequestMessage: ex.RequestMessage,
				ResponseText:   ex.ResponseText,
				RequestNodes:   ex.RequestSideNodes(),
				ResponseNodes:  ex.ResponseSideNodes(),
			})
		}
	}

	value := SummaryNodeValue{
		SummaryText:                          summaryText,
		SummarizationRequestID:               summarizationID,
		HistoryBeginningDroppedNumExchanges:  abridged.droppedBeginning,
		HistoryMiddleAbridgedText:            abridged.text,
		HistoryEnd:                           historyEnd,
		MessageTemplate:                      template,
	}

	rendered, ok := RenderHistorySummaryNodeValue(value, nil)
	if !ok {
		slog.Debug("history_summary: renderer declined, skipping", "conversation_id", req.ConversationID)
		return false, nil
	}

	synthetic := Exchange{
		RequestID:    RequestIDSummary,
		RequestNodes: []Node{{NodeType: NodeText, TextContent: rendered}},
	}

	if cfg.UseHistorySummaryNew {
		req.ChatHistory = []Exchange{synthetic}
	} else {
		newHistory := make([]Exchange, 0, 1+len(tail))
		newHistory = append(newHistory, synthetic)
		newHistory = append(newHistory, tail...)
		req.ChatHistory = newHistory
	}

	slog.Info("history_summary: compacted", "conversation_id", req.ConversationID, "boundary", boundaryRequestID, "dropped_exchanges", abridged.droppedBeginning)
	return true, nil
}

// summarizeAndCache performs step 8: resolve the provider, optionally
// build the rolling-update input, call the summarizer, and persist the
// result.
func summarizeAndCache(ctx context.Context, cfg *Config, cache *HistorySummaryCache, nowMs int64, conversationID, boundaryRequestID string, tailStart int, head []Exchange) (string, string, error) {
	provider, ok := cfg.ProviderByID(cfg.ProviderID)
	if !ok {
		return "", "", fmt.Errorf("history_summary: unknown provider_id %q", cfg.ProviderID)
	}

	prompt := cfg.Prompt
	inputHistory := head
	rolled := false

	if cfg.RollingSummary {
		if prevState, ok := cache.GetFreshState(conversationID, nowMs, cfg.CacheTTLMs); ok && prevState.SummarizedUntilRequestID != boundaryRequestID {
			prevPos := indexOfRequestID(head, prevState.SummarizedUntilRequestID)
			if prevPos >= 0 && prevPos < tailStart {
				synthetic := Exchange{
					RequestID:      RequestIDSummaryPrev,
					RequestMessage: fmt.Sprintf(previousSummaryWrapperFormat, prevState.SummaryText),
				}
				delta := append([]Exchange(nil), head[prevPos:]...)
				inputHistory = append([]Exchange{synthetic}, delta...)
				prompt += rollingSummaryPromptSuffix
				rolled = true
			}
		}
	}

	if cfg.MaxSummarizationInputChars > 0 {
		inputHistory = shrinkToFit(inputHistory, cfg.MaxSummarizationInputChars, rolled)
	}

	if len(inputHistory) == 0 {
		return "", "", nil
	}

	turns := make([]summarizer.HistoryTurn, 0, len(inputHistory))
	for _, ex := range inputHistory {
		turns = append(turns, summarizer.HistoryTurn{
			RequestID:      ex.RequestID,
			RequestMessage: ex.RequestMessage,
			ResponseText:   ex.ResponseText,
		})
	}

	result, err := summarizer.RunOnce(ctx, summarizer.Request{
		Provider:       summarizer.Provider{ID: provider.ID, Variant: summarizer.Variant(provider.Variant), BaseURL: provider.BaseURL, APIKey: provider.APIKey, ExtraHeaders: provider.ExtraHeaders},
		Model:          cfg.Model,
		Prompt:         prompt,
		History:        turns,
		MaxTokens:      cfg.MaxTokens,
		TimeoutSeconds: cfg.TimeoutSeconds,
	})
	if err != nil {
		return "", "", err
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", "", nil
	}

	responseID := result.ProviderResponseID
	if responseID == "" {
		responseID = fmt.Sprintf("proxy_history_summary_%d", nowMs)
	}

	cache.Put(conversationID, boundaryRequestID, text, responseID, nowMs)
	return text, responseID, nil
}

func indexOfRequestID(history []Exchange, requestID string) int {
	if requestID == "" {
		return -1
	}
	for i, ex := range history {
		if ex.RequestID == requestID {
			return i
		}
	}
	return -1
}

// shrinkToFit removes exchanges from the front of history until the
// estimated size fits within maxChars, preserving a leading synthetic
// previous-summary exchange (present when rolling is true) at index 0.
func shrinkToFit(history []Exchange, maxChars int, rolling bool) []Exchange {
	start := 0
	if rolling && len(history) > 0 {
		start = 1
	}

	for estimateHistorySizeChars(history) > maxChars && start < len(history) {
		history = append(append([]Exchange(nil), history[:start]...), history[start+1:]...)
	}
	return history
}

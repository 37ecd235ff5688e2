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

import "strings"

// HistoryEndTurn is one tail exchange projected for the "new" summary-node
// template: request/response text plus their node sequences.
type HistoryEndTurn struct {
	RequestID      string
	RequestMessage string
	ResponseText   string
	RequestNodes   []Node
	ResponseNodes  []Node
}

// SummaryNodeValue is the payload handed to the summary-node renderer.
type SummaryNodeValue struct {
	SummaryText                       string
	SummarizationRequestID            string
	HistoryBeginningDroppedNumExchanges int
	HistoryMiddleAbridgedText         string
	HistoryEnd                        []HistoryEndTurn
	MessageTemplate                   string
}

// RenderHistorySummaryNodeValue is the default summary-node renderer: it
// substitutes the well-known placeholders into MessageTemplate. ok is
// false when the template is empty, signalling "treat as abort without
// compaction".
func RenderHistorySummaryNodeValue(value SummaryNodeValue, extra map[string]string) (string, bool) {
	template := strings.TrimSpace(value.MessageTemplate)
	if template == "" {
		return "", false
	}

	var historyEndText strings.Builder
	for i, turn := range value.HistoryEnd {
		if i > 0 {
			historyEndText.WriteString("\n")
		}
		historyEndText.WriteString(turn.RequestMessage)
		if turn.ResponseText != "" {
			historyEndText.WriteString("\n")
			historyEndText.WriteString(turn.ResponseText)
		}
	}

	replacements := []string{
		"{{summary_text}}", value.SummaryText,
		"{{summarization_request_id}}", value.SummarizationRequestID,
		"{{history_middle_abridged_text}}", value.HistoryMiddleAbridgedText,
		"{{history_end}}", historyEndText.String(),
	}
	for k, v := range extra {
		replacements = append(replacements, "{{"+k+"}}", v)
	}

	rendered := strings.NewReplacer(replacements...).Replace(template)
	return rendered, true
}

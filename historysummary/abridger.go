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
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// buildAbridgedEntries folds a head slice of exchanges into AbridgedEntry
// values. untilRequestID, when non-empty, truncates the slice exclusively
// at the first exchange carrying that request-id.
func buildAbridgedEntries(head []Exchange, untilRequestID string) []AbridgedEntry {
	var entries []AbridgedEntry

	for _, ex := range head {
		if untilRequestID != "" && ex.RequestID == untilRequestID {
			break
		}

		if !ex.HasToolResult() || len(entries) == 0 {
			userMessage := ex.RequestMessage
			for _, n := range ex.RequestSideNodes() {
				if n.HasImage() {
					userMessage += "\n[User attached image]"
					break
				}
			}
			for _, n := range ex.RequestSideNodes() {
				if n.HasFile() {
					userMessage += "\n[User attached document]"
					break
				}
			}
			entries = append(entries, AbridgedEntry{
				UserMessage:         userMessage,
				AgentActionsSummary: newAgentActionsSummary(),
			})
		}

		cur := &entries[len(entries)-1]

		hadToolUse := false
		for _, n := range ex.ResponseSideNodes() {
			if n.IsToolUse() {
				hadToolUse = true
				addToolUseToActions(*n.ToolUse, &cur.AgentActionsSummary)
			}
		}

		if !hadToolUse && ex.ResponseText != "" {
			cur.AgentFinalResponse = ex.ResponseText
		}
	}

	if len(entries) > 0 {
		last := &entries[len(entries)-1]
		if last.AgentFinalResponse == "" {
			last.Continues = true
			for i := 0; i < len(entries)-1; i++ {
				if entries[i].AgentFinalResponse == "" {
					entries[i].WasInterrupted = true
				}
			}
		}
	}

	for i := range entries {
		entries[i].AgentActionsSummary.finalize()
	}

	return entries
}

// addToolUseToActions maps a single tool-use payload to the actions set it
// affects, keyed by tool name. Unknown tool names, or a non-JSON-object
// input, are silently ignored.
func addToolUseToActions(tu ToolUse, actions *AgentActionsSummary) {
	var input map[string]any
	if err := json.Unmarshal([]byte(tu.InputJSON), &input); err != nil {
		return
	}

	switch tu.ToolName {
	case "str-replace-editor":
		if path, ok := input["path"].(string); ok && path != "" {
			actions.FilesModified[path] = struct{}{}
		}
	case "save-file":
		if path, ok := input["path"].(string); ok && path != "" {
			actions.FilesCreated[path] = struct{}{}
		}
	case "remove-files":
		if paths, ok := input["file_paths"].([]any); ok {
			for _, p := range paths {
				if s, ok := p.(string); ok && s != "" {
					actions.FilesDeleted[s] = struct{}{}
				}
			}
		}
	case "view":
		if path, ok := input["path"].(string); ok && path != "" {
			actions.FilesViewed[path] = struct{}{}
		}
	case "launch-process":
		if command, ok := input["command"].(string); ok && command != "" {
			actions.TerminalCommands[command] = struct{}{}
		}
	}
}

// middleTruncateWithEllipsis keeps a leading and trailing slice of runes
// around a literal "...", sized by startRatio/endRatio of the remaining
// budget.
func middleTruncateWithEllipsis(s string, limit int, startRatio, endRatio float64) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		ellipsis := []rune("...")
		if limit < len(ellipsis) {
			return string(ellipsis[:limit])
		}
		return string(ellipsis)
	}

	budget := limit - 3
	start := int(float64(budget) * startRatio)
	end := int(float64(budget) * endRatio)
	if start+end > budget {
		end = budget - start
	}
	if end < 0 {
		end = 0
	}

	head := string(runes[:start])
	var tail string
	if end > 0 {
		tail = string(runes[len(runes)-end:])
	}
	return head + "..." + tail
}

func truncateDefault(s string, limit int) string {
	return middleTruncateWithEllipsis(s, limit, 0.5, 0.5)
}

// limitSetItems sorts the keys of set, keeps at most limit of them, and
// appends a "... N more {noun}" line when items were dropped.
func limitSetItems(set map[string]struct{}, limit int, noun string) []string {
	items := make([]string, 0, len(set))
	for k := range set {
		items = append(items, k)
	}
	sort.Strings(items)

	if limit < 0 {
		limit = 0
	}
	if len(items) <= limit {
		return items
	}

	kept := append([]string(nil), items[:limit]...)
	more := len(items) - limit
	kept = append(kept, fmt.Sprintf("... %d more %s", more, noun))
	return kept
}

// renderAbridgedEntry renders one entry into its tagged-text form.
func renderAbridgedEntry(entry AbridgedEntry, params AbridgedHistoryParams) string {
	var b strings.Builder

	b.WriteString("<user_request>\n")
	b.WriteString(truncateDefault(entry.UserMessage, params.UserMessageCharsLimit))
	b.WriteString("\n</user_request>")

	if entry.AgentActionsSummary.hasAny() {
		b.WriteString("\n<agent_actions_summary>")
		writeActionsBlock(&b, "files_modified", entry.AgentActionsSummary.FilesModified, params.NumFilesModifiedLimit, "files", params.ActionCharsLimit)
		writeActionsBlock(&b, "files_created", entry.AgentActionsSummary.FilesCreated, params.NumFilesCreatedLimit, "files", params.ActionCharsLimit)
		writeActionsBlock(&b, "files_deleted", entry.AgentActionsSummary.FilesDeleted, params.NumFilesDeletedLimit, "files", params.ActionCharsLimit)
		writeActionsBlock(&b, "files_viewed", entry.AgentActionsSummary.FilesViewed, params.NumFilesViewedLimit, "files", params.ActionCharsLimit)
		writeActionsBlock(&b, "terminal_commands", entry.AgentActionsSummary.TerminalCommands, params.NumTerminalCommandsLimit, "commands", params.ActionCharsLimit)
		b.WriteString("\n</agent_actions_summary>")
	}

	if entry.AgentFinalResponse != "" {
		b.WriteString("\n<agent_response>\n")
		b.WriteString(truncateDefault(entry.AgentFinalResponse, params.AgentResponseCharsLimit))
		b.WriteString("\n</agent_response>")
	}

	if entry.WasInterrupted {
		b.WriteString("\n<agent_was_interrupted/>")
	}
	if entry.Continues {
		b.WriteString("\n<agent_continues/>")
	}

	return b.String()
}

func writeActionsBlock(b *strings.Builder, tag string, set map[string]struct{}, limit int, noun string, actionCharsLimit int) {
	if len(set) == 0 {
		return
	}
	items := limitSetItems(set, limit, noun)
	fmt.Fprintf(b, "\n<%s>\n", tag)
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(truncateDefault(item, actionCharsLimit))
	}
	fmt.Fprintf(b, "\n</%s>", tag)
}

// abridgedHistoryResult is the abridger's final product: the rendered text
// and how many leading entries were dropped to respect total_chars_limit.
type abridgedHistoryResult struct {
	text            string
	droppedBeginning int
}

// buildAbridgedHistoryText folds head into entries, then renders them
// newest-first admitting each while the cumulative length stays within
// params.TotalCharsLimit, finally reversing admitted entries back to
// chronological order.
func buildAbridgedHistoryText(head []Exchange, untilRequestID string, params AbridgedHistoryParams) abridgedHistoryResult {
	entries := buildAbridgedEntries(head, untilRequestID)
	if len(entries) == 0 {
		return abridgedHistoryResult{}
	}

	rendered := make([]string, len(entries))
	for i, e := range entries {
		rendered[i] = renderAbridgedEntry(e, params)
	}

	var admitted []string
	cumulative := 0
	cutoffIndex := len(entries)
	for i := len(rendered) - 1; i >= 0; i-- {
		candidateLen := len(rendered[i])
		if len(admitted) > 0 {
			candidateLen += len("\n")
		}
		if cumulative+candidateLen > params.TotalCharsLimit {
			break
		}
		cumulative += candidateLen
		admitted = append(admitted, rendered[i])
		cutoffIndex = i
	}

	for i, j := 0, len(admitted)-1; i < j; i, j = i+1, j-1 {
		admitted[i], admitted[j] = admitted[j], admitted[i]
	}

	droppedBeginning := cutoffIndex
	return abridgedHistoryResult{
		text:             strings.TrimSpace(strings.Join(admitted, "\n")),
		droppedBeginning: droppedBeginning,
	}
}

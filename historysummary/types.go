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

// Package historysummary implements a rolling conversation-history compactor
// for a proxy standing between a chat agent client and an upstream LLM
// provider. It decides, per request, whether a conversation's accumulated
// history threatens the provider's context window and, if so, replaces an
// old prefix of the conversation with a single synthesized summary node
// while leaving the tail and the client's view of the protocol untouched.
package historysummary

// Node type tags, shared with the external chat protocol. Only node_type
// values the core inspects are named; unrecognized values fall through to
// the generic byte-size and action-extraction defaults.
const (
	NodeText             = "text"
	NodeToolResult       = "tool_result"
	NodeImage            = "image"
	NodeImageID          = "image_id"
	NodeIDEState         = "ide_state"
	NodeEditEvents       = "edit_events"
	NodeCheckpointRef    = "checkpoint_ref"
	NodeChangePersonality = "change_personality"
	NodeFile             = "file"
	NodeFileID           = "file_id"
	NodeHistorySummary   = "history_summary"
	NodeToolUse          = "tool_use"
	NodeToolUseStart     = "tool_use_start"
)

// Reserved synthetic request-ids the orchestrator may introduce. Real
// exchanges must never carry these.
const (
	RequestIDSummary      = "proxy_history_summary"
	RequestIDSummaryPrev  = "proxy_history_summary_prev"
	requestIDSummaryPrefix = "proxy_history_summary_"
)

// ToolUse is the payload of a NodeToolUse / NodeToolUseStart node.
type ToolUse struct {
	ToolUseID     string
	ToolName      string
	InputJSON     string
	MCPServerName string
	MCPToolName   string
}

// ToolResultContentNode is one segment of a tool result's content (text or
// image).
type ToolResultContentNode struct {
	NodeType    string
	TextContent string
	ImageData   string
}

// ToolResultNode is the payload of a NodeToolResult node.
type ToolResultNode struct {
	ToolUseID    string
	Content      string
	ContentNodes []ToolResultContentNode
	IsError      bool
}

// Node is a polymorphic record: NodeType selects which optional payload is
// populated. Content is a shared untyped fallback used by size estimation
// when no richer payload applies.
type Node struct {
	ID      int
	NodeType string
	Content string

	TextContent string

	ToolResult *ToolResultNode
	ToolUse    *ToolUse

	ImageData string

	// Unknown/auxiliary payloads are represented generically; their byte
	// contribution is the length of their canonical JSON encoding.
	Other any

	ThinkingSummary string
}

// HasImage reports whether this node carries an image attachment marker.
func (n Node) HasImage() bool {
	return n.NodeType == NodeImage || n.NodeType == NodeImageID
}

// HasFile reports whether this node carries a file attachment marker.
func (n Node) HasFile() bool {
	return n.NodeType == NodeFile || n.NodeType == NodeFileID
}

// IsToolResult reports whether this node is a populated tool-result node.
func (n Node) IsToolResult() bool {
	return n.NodeType == NodeToolResult && n.ToolResult != nil
}

// IsToolUse reports whether this node is a tool-use (or tool-use-start)
// node carrying a payload.
func (n Node) IsToolUse() bool {
	return (n.NodeType == NodeToolUse || n.NodeType == NodeToolUseStart) && n.ToolUse != nil
}

// IsHistorySummary reports whether this node is a history-summary node.
func (n Node) IsHistorySummary() bool {
	return n.NodeType == NodeHistorySummary
}

// Exchange is one ordered element of the conversation history: a user
// request paired with the agent's response, plus the node sequences
// attached to either side.
type Exchange struct {
	RequestID      string
	RequestMessage string
	ResponseText   string

	RequestNodes           []Node
	StructuredRequestNodes []Node
	Nodes                  []Node

	ResponseNodes           []Node
	StructuredOutputNodes   []Node
}

// RequestSideNodes returns the logical concatenation of the three
// request-side node sequences, in order.
func (e Exchange) RequestSideNodes() []Node {
	if len(e.RequestNodes) == 0 && len(e.StructuredRequestNodes) == 0 && len(e.Nodes) == 0 {
		return nil
	}
	out := make([]Node, 0, len(e.RequestNodes)+len(e.StructuredRequestNodes)+len(e.Nodes))
	out = append(out, e.RequestNodes...)
	out = append(out, e.StructuredRequestNodes...)
	out = append(out, e.Nodes...)
	return out
}

// ResponseSideNodes returns the logical concatenation of the two
// response-side node sequences, in order.
func (e Exchange) ResponseSideNodes() []Node {
	if len(e.ResponseNodes) == 0 && len(e.StructuredOutputNodes) == 0 {
		return nil
	}
	out := make([]Node, 0, len(e.ResponseNodes)+len(e.StructuredOutputNodes))
	out = append(out, e.ResponseNodes...)
	out = append(out, e.StructuredOutputNodes...)
	return out
}

// HasToolResult reports whether any request-side node of this exchange is a
// populated tool-result node.
func (e Exchange) HasToolResult() bool {
	for _, n := range e.RequestSideNodes() {
		if n.IsToolResult() {
			return true
		}
	}
	return false
}

// HasHistorySummaryNode reports whether any node (request or response side)
// of this exchange is a history-summary node.
func (e Exchange) HasHistorySummaryNode() bool {
	for _, n := range e.RequestSideNodes() {
		if n.IsHistorySummary() {
			return true
		}
	}
	for _, n := range e.ResponseSideNodes() {
		if n.IsHistorySummary() {
			return true
		}
	}
	return false
}

// AgentActionsSummary accumulates the file and command side-effects of an
// AbridgedEntry's tool uses. The invariant files_modified ∩ files_viewed = ∅
// is enforced by finalize, not by individual inserts.
type AgentActionsSummary struct {
	FilesModified     map[string]struct{}
	FilesCreated      map[string]struct{}
	FilesDeleted      map[string]struct{}
	FilesViewed       map[string]struct{}
	TerminalCommands  map[string]struct{}
}

func newAgentActionsSummary() AgentActionsSummary {
	return AgentActionsSummary{
		FilesModified:    make(map[string]struct{}),
		FilesCreated:     make(map[string]struct{}),
		FilesDeleted:     make(map[string]struct{}),
		FilesViewed:      make(map[string]struct{}),
		TerminalCommands: make(map[string]struct{}),
	}
}

func (a *AgentActionsSummary) hasAny() bool {
	return len(a.FilesModified) > 0 || len(a.FilesCreated) > 0 ||
		len(a.FilesDeleted) > 0 || len(a.FilesViewed) > 0 || len(a.TerminalCommands) > 0
}

func (a *AgentActionsSummary) finalize() {
	for p := range a.FilesModified {
		delete(a.FilesViewed, p)
	}
}

// AbridgedEntry is one user turn plus the contiguous agent actions that
// followed it, as folded by the abridger.
type AbridgedEntry struct {
	UserMessage         string
	AgentActionsSummary AgentActionsSummary
	AgentFinalResponse  string
	WasInterrupted      bool
	Continues           bool
}

// RollingSummaryState is the cache value for one conversation: the latest
// summary text plus the boundary and provenance it was produced against.
type RollingSummaryState struct {
	SummaryText              string
	SummarizedUntilRequestID string
	SummarizationRequestID   string
	UpdatedAtMs              int64
}

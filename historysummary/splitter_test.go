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

func padded(id string, n int) Exchange {
	msg := make([]byte, n)
	for i := range msg {
		msg[i] = 'x'
	}
	return Exchange{RequestID: id, RequestMessage: string(msg)}
}

func TestSplitHistoryRespectsMinTailExchanges(t *testing.T) {
	history := []Exchange{padded("r1", 300), padded("r2", 300), padded("r3", 300), padded("r4", 300), padded("r5", 300)}
	split := splitHistoryForSummary(history, 200, 500, 1)

	if len(split.head)+len(split.tail) != len(history) {
		t.Fatalf("head+tail = %d, want %d", len(split.head)+len(split.tail), len(history))
	}
	if len(split.tail) < 1 {
		t.Fatalf("tail length = %d, want >= min_tail_exchanges 1", len(split.tail))
	}
	// concatenation must reproduce history in order
	joined := append(append([]Exchange(nil), split.head...), split.tail...)
	for i := range history {
		if joined[i].RequestID != history[i].RequestID {
			t.Fatalf("joined[%d].RequestID = %q, want %q", i, joined[i].RequestID, history[i].RequestID)
		}
	}
}

func TestSplitHistoryBelowThresholdIsNoOp(t *testing.T) {
	history := []Exchange{padded("r1", 100), padded("r2", 100)}
	split := splitHistoryForSummary(history, 200, 10_000_000, 1)

	if len(split.head) != 0 {
		t.Fatalf("head length = %d, want 0 (no-op below threshold)", len(split.head))
	}
	if len(split.tail) != len(history) {
		t.Fatalf("tail length = %d, want %d", len(split.tail), len(history))
	}
}

func TestAdjustTailToAvoidToolResultOrphans(t *testing.T) {
	history := []Exchange{
		padded("r1", 50),
		{RequestID: "r2", RequestNodes: []Node{{NodeType: NodeToolResult, ToolResult: &ToolResultNode{ToolUseID: "tu1"}}}},
		padded("r3", 50),
	}
	tailStart := adjustTailToAvoidToolResultOrphans(history, 1)
	if tailStart != 0 {
		t.Fatalf("adjustTailToAvoidToolResultOrphans() = %d, want 0", tailStart)
	}
}

func TestAdjustTailToAvoidToolResultOrphansNoOrphan(t *testing.T) {
	history := []Exchange{padded("r1", 50), padded("r2", 50), padded("r3", 50)}
	tailStart := adjustTailToAvoidToolResultOrphans(history, 1)
	if tailStart != 1 {
		t.Fatalf("adjustTailToAvoidToolResultOrphans() = %d, want 1 (unchanged)", tailStart)
	}
}

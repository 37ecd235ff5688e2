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

import "encoding/json"

const nodeBaseCostBytes = 16

// estimateNodeSizeChars returns the deterministic byte-size contribution of
// a single node: a base cost plus the lengths of all present text-bearing
// sub-fields. Unknown optional payloads (Other) contribute the length of
// their canonical JSON encoding.
func estimateNodeSizeChars(n Node) int {
	size := nodeBaseCostBytes
	size += len(n.Content)
	size += len(n.TextContent)

	if tr := n.ToolResult; tr != nil {
		size += len(tr.ToolUseID)
		size += len(tr.Content)
		for _, c := range tr.ContentNodes {
			size += 8
			size += len(c.TextContent)
			size += len(c.ImageData)
		}
	}

	size += len(n.ImageData)
	size += len(n.ThinkingSummary)

	if tu := n.ToolUse; tu != nil {
		size += len(tu.ToolUseID)
		size += len(tu.ToolName)
		size += len(tu.InputJSON)
		size += len(tu.MCPServerName)
		size += len(tu.MCPToolName)
	}

	if n.Other != nil {
		if data, err := json.Marshal(n.Other); err == nil {
			size += len(data)
		}
	}

	return size
}

// estimateExchangeSizeChars sums node costs over the effective request-side
// and response-side node sets; a side with no nodes falls back to its raw
// text field.
func estimateExchangeSizeChars(e Exchange) int {
	total := 0

	if reqNodes := e.RequestSideNodes(); len(reqNodes) > 0 {
		for _, n := range reqNodes {
			total += estimateNodeSizeChars(n)
		}
	} else {
		total += len(e.RequestMessage)
	}

	if respNodes := e.ResponseSideNodes(); len(respNodes) > 0 {
		for _, n := range respNodes {
			total += estimateNodeSizeChars(n)
		}
	} else {
		total += len(e.ResponseText)
	}

	return total
}

// estimateHistorySizeChars is the sum of exchange sizes over the whole
// history.
func estimateHistorySizeChars(history []Exchange) int {
	total := 0
	for _, e := range history {
		total += estimateExchangeSizeChars(e)
	}
	return total
}

const maxUint32 = 1<<32 - 1

// approxTokenCountFromByteLen converts a byte length to a token estimate
// using the ceil(bytes/4) heuristic, saturated to the max uint32 value.
func approxTokenCountFromByteLen(n int) uint32 {
	if n < 0 {
		return 0
	}
	tokens := (n + 3) / 4
	if tokens > maxUint32 {
		return maxUint32
	}
	return uint32(tokens)
}

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

package summarizer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"
)

func runOpenAIOnce(ctx context.Context, req Request, timeoutSeconds uint64) (Result, error) {
	apiKey := normalizeRawToken(req.Provider.APIKey)

	httpClient := &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
	}
	if req.Provider.BaseURL != "" {
		base, err := joinURL(req.Provider.BaseURL, "")
		if err != nil {
			return Result{}, fmt.Errorf("summarizer: openai base_url: %w", err)
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	for k, v := range req.Provider.ExtraHeaders {
		opts = append(opts, option.WithHeader(k, v))
	}

	client := openai.NewClient(opts...)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+1)
	for _, turn := range req.History {
		if turn.RequestMessage != "" {
			messages = append(messages, openai.UserMessage(turn.RequestMessage))
		}
		if turn.ResponseText != "" {
			messages = append(messages, openai.AssistantMessage(turn.ResponseText))
		}
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:     shared.ChatModel(req.Model),
		Messages:  messages,
		MaxTokens: param.NewOpt(int64(req.MaxTokens)),
	}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	resp, err := client.Chat.Completions.New(callCtx, params)
	if err != nil {
		return Result{}, fmt.Errorf("summarizer: openai call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("summarizer: openai response had no choices")
	}

	return Result{ProviderResponseID: resp.ID, Text: resp.Choices[0].Message.Content}, nil
}

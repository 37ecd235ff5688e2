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
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AbridgedHistoryParams bounds the abridger's rendering output.
type AbridgedHistoryParams struct {
	UserMessageCharsLimit    int `yaml:"user_message_chars_limit"`
	AgentResponseCharsLimit  int `yaml:"agent_response_chars_limit"`
	ActionCharsLimit         int `yaml:"action_chars_limit"`
	TotalCharsLimit          int `yaml:"total_chars_limit"`
	NumFilesModifiedLimit    int `yaml:"num_files_modified_limit"`
	NumFilesCreatedLimit     int `yaml:"num_files_created_limit"`
	NumFilesDeletedLimit     int `yaml:"num_files_deleted_limit"`
	NumFilesViewedLimit      int `yaml:"num_files_viewed_limit"`
	NumTerminalCommandsLimit int `yaml:"num_terminal_commands_limit"`
}

// DefaultAbridgedHistoryParams mirrors sane production defaults; callers
// normally override these from a loaded config file.
func DefaultAbridgedHistoryParams() AbridgedHistoryParams {
	return AbridgedHistoryParams{
		UserMessageCharsLimit:    2000,
		AgentResponseCharsLimit:  2000,
		ActionCharsLimit:         200,
		TotalCharsLimit:          20000,
		NumFilesModifiedLimit:    20,
		NumFilesCreatedLimit:     20,
		NumFilesDeletedLimit:     20,
		NumFilesViewedLimit:      20,
		NumTerminalCommandsLimit: 20,
	}
}

// ProviderVariant is the closed two-case enum the summarizer dispatches on.
// No third transport is ever added to this set.
type ProviderVariant int

const (
	// ProviderAnthropic selects the Anthropic Messages API transport.
	ProviderAnthropic ProviderVariant = iota
	// ProviderOpenAICompatible selects the OpenAI-compatible Chat
	// Completions transport.
	ProviderOpenAICompatible
)

// providerVariantFromYAML maps the YAML-visible "type" discriminator to a
// ProviderVariant. An empty or unrecognized type defaults to Anthropic,
// matching the zero value of ProviderVariant.
func providerVariantFromYAML(t string) ProviderVariant {
	switch t {
	case "openai_compatible":
		return ProviderOpenAICompatible
	default:
		return ProviderAnthropic
	}
}

// Provider is one entry in the history_summary provider registry.
type Provider struct {
	ID           string
	Variant      ProviderVariant
	BaseURL      string
	APIKey       string
	ExtraHeaders map[string]string
}

// providerYAML is Provider's YAML wire shape: Type is the discriminator
// ("anthropic" or "openai_compatible") that UnmarshalYAML maps onto
// Provider.Variant.
type providerYAML struct {
	ID           string            `yaml:"id"`
	Type         string            `yaml:"type"`
	BaseURL      string            `yaml:"base_url"`
	APIKey       string            `yaml:"api_key"`
	ExtraHeaders map[string]string `yaml:"extra_headers"`
}

// UnmarshalYAML decodes a provider entry and resolves its "type" field
// into the closed ProviderVariant enum.
func (p *Provider) UnmarshalYAML(value *yaml.Node) error {
	var raw providerYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*p = Provider{
		ID:           raw.ID,
		Variant:      providerVariantFromYAML(raw.Type),
		BaseURL:      raw.BaseURL,
		APIKey:       raw.APIKey,
		ExtraHeaders: raw.ExtraHeaders,
	}
	return nil
}

// Config is the history_summary configuration block.
type Config struct {
	Enabled bool `yaml:"enabled"`

	TriggerStrategy           string  `yaml:"trigger_strategy"`
	TriggerOnHistorySizeChars int     `yaml:"trigger_on_history_size_chars"`
	TriggerOnContextRatio     float64 `yaml:"trigger_on_context_ratio"`
	TargetContextRatio        float64 `yaml:"target_context_ratio"`

	ContextWindowTokensDefault   uint32            `yaml:"context_window_tokens_default"`
	ContextWindowTokensOverrides map[string]uint32 `yaml:"context_window_tokens_overrides"`

	HistoryTailSizeCharsToExclude int `yaml:"history_tail_size_chars_to_exclude"`
	MinTailExchanges              int `yaml:"min_tail_exchanges"`

	MaxTokens      uint32 `yaml:"max_tokens"`
	TimeoutSeconds uint64 `yaml:"timeout_seconds"`

	ProviderID string     `yaml:"provider_id"`
	Providers  []Provider `yaml:"providers"`
	Model      string     `yaml:"model"`
	Prompt     string     `yaml:"prompt"`

	RollingSummary             bool  `yaml:"rolling_summary"`
	MaxSummarizationInputChars int   `yaml:"max_summarization_input_chars"`
	CacheTTLMs                 int64 `yaml:"cache_ttl_ms"`

	UseHistorySummaryNew                 bool   `yaml:"use_history_summary_new"`
	SummaryNodeRequestMessageTemplate     string `yaml:"summary_node_request_message_template"`
	SummaryNodeRequestMessageTemplateNew  string `yaml:"summary_node_request_message_template_new"`

	AbridgedHistoryParams AbridgedHistoryParams `yaml:"abridged_history_params"`
}

// LoadConfig reads and parses a history_summary YAML document from path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("history_summary: read config %q: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("history_summary: parse config %q: %w", path, err)
	}
	return &cfg, nil
}

// ProviderByID returns the first configured provider whose Id matches pid,
// in configured order. When multiple providers share an id, the first one
// wins.
func (c *Config) ProviderByID(pid string) (Provider, bool) {
	for _, p := range c.Providers {
		if p.ID == pid {
			return p, true
		}
	}
	return Provider{}, false
}

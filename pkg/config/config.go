// Package config loads the process's static configuration: which chains to
// monitor and which LLM providers back the Hybrid Analyzer, following the
// teacher's convention of reading everything from environment variables
// (utils.Env) with JSON blobs for anything shaped like a list.
package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/govsentinel/sentinel/pkg/chain"
	"github.com/govsentinel/sentinel/pkg/utils"
)

// LoadChains reads the CHAINS_JSON environment variable, a JSON array of
// ChainDescriptor, matching §3's "immutable within a process run; reloaded at
// start only." A missing or empty CHAINS_JSON falls back to a single
// well-known chain so a bare `docker run` still does something useful.
func LoadChains() ([]chain.ChainDescriptor, error) {
	raw := utils.Env("CHAINS_JSON", "")
	if raw == "" {
		return []chain.ChainDescriptor{
			{
				ChainID:   "cosmoshub-4",
				Name:      "Cosmos Hub",
				Endpoints: []string{"https://rest.cosmos.directory/cosmoshub"},
			},
		}, nil
	}

	var chains []chain.ChainDescriptor
	if err := json.Unmarshal([]byte(raw), &chains); err != nil {
		return nil, fmt.Errorf("parse CHAINS_JSON: %w", err)
	}
	if len(chains) == 0 {
		return nil, fmt.Errorf("CHAINS_JSON must describe at least one chain")
	}
	for _, c := range chains {
		if c.ChainID == "" || len(c.Endpoints) == 0 {
			return nil, fmt.Errorf("chain %q missing chainID or endpoints", c.Name)
		}
	}
	return chains, nil
}

// ProviderNames reads ANALYZER_PROVIDERS, a comma-separated ordered fallback
// chain such as "anthropic,openai,local" (§4.4: "providers are tried in a
// fixed configured order"). Defaults to "local" so a fresh checkout with no
// API keys still boots against an Ollama-compatible endpoint.
func ProviderNames() []string {
	raw := utils.Env("ANALYZER_PROVIDERS", "local")
	var names []string
	for _, n := range strings.Split(raw, ",") {
		n = strings.TrimSpace(n)
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}

// NotifierKind reads NOTIFIER_KIND, either "log" (default, safe for
// development) or "smtp".
func NotifierKind() string {
	return utils.Env("NOTIFIER_KIND", "log")
}

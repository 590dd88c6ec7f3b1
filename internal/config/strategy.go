// Package config loads a directory node's startup configuration: the
// dissemination/discovery strategy selection from config.ini, and the
// ambient observability settings from observability.yaml.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Dissemination selects whether lookups return matching publishers
// directly or are redirected to the broker slot.
type Dissemination string

const (
	DisseminationDirect Dissemination = "Direct"
	DisseminationBroker Dissemination = "Broker"
)

// Discovery selects whether the ring has one member (all routing local)
// or several (finger-table forwarding required).
type Discovery string

const (
	DiscoveryCentralized Discovery = "Centralized"
	DiscoveryDistributed Discovery = "Distributed"
)

// StrategyConfig is the parsed content of config.ini.
type StrategyConfig struct {
	Dissemination Dissemination
	Discovery     Discovery
}

// LoadStrategyConfig reads config.ini, a flat `Key=Value` file (blank
// lines and `#`/`;`-prefixed comments ignored), and validates the two
// keys spec.md §6 requires: Dissemination.Strategy and
// Discovery.Strategy.
func LoadStrategyConfig(path string) (StrategyConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return StrategyConfig{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			return StrategyConfig{}, fmt.Errorf("config: malformed line %q in %s", line, path)
		}
		values[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	if err := scanner.Err(); err != nil {
		return StrategyConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := StrategyConfig{
		Dissemination: Dissemination(values["Dissemination.Strategy"]),
		Discovery:     Discovery(values["Discovery.Strategy"]),
	}
	if cfg.Dissemination != DisseminationDirect && cfg.Dissemination != DisseminationBroker {
		return StrategyConfig{}, fmt.Errorf("config: invalid Dissemination.Strategy %q", values["Dissemination.Strategy"])
	}
	if cfg.Discovery != DiscoveryCentralized && cfg.Discovery != DiscoveryDistributed {
		return StrategyConfig{}, fmt.Errorf("config: invalid Discovery.Strategy %q", values["Discovery.Strategy"])
	}
	return cfg, nil
}

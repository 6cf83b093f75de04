package imem

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds the timing parameters of the instruction-memory protocol.
type Config struct {
	// GrantLatency is the number of cycles between a request being seen
	// and its grant pulse. 0 grants in the same cycle the request is seen.
	GrantLatency uint64 `json:"grant_latency"`

	// ResponseLatency is the number of cycles between the grant pulse and
	// the response valid pulse. Must be at least 1.
	ResponseLatency uint64 `json:"response_latency"`
}

// DefaultConfig returns the timing of an ideal single-cycle memory: grant
// in the cycle the request is seen, data one cycle later.
func DefaultConfig() *Config {
	return &Config{
		GrantLatency:    0,
		ResponseLatency: 1,
	}
}

// LoadConfig loads a Config from a JSON file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read memory config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse memory config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize memory config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write memory config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.ResponseLatency == 0 {
		return fmt.Errorf("response_latency must be > 0")
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

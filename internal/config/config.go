// Package config loads and validates the daemon's JSON configuration:
// ICE servers, timing budgets, and the signaling listen address.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	ICEServers []ICEServer `json:"ice_servers"`
	HideIP     bool        `json:"hide_ip"`
	Timing     Timing      `json:"timing"`
	Signaling  Signaling   `json:"signaling"`
}

type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

type Timing struct {
	SetupBudgetSec     int `json:"setup_budget_seconds"`
	ReconnectBudgetSec int `json:"reconnect_budget_seconds"`
	OfferExpirySec     int `json:"offer_expiry_seconds"`
}

type Signaling struct {
	ListenAddr string `json:"listen_addr"`
}

func Default() Config {
	return Config{
		ICEServers: []ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
		HideIP: false,
		Timing: Timing{
			SetupBudgetSec:     60,
			ReconnectBudgetSec: 30,
			OfferExpirySec:     60,
		},
		Signaling: Signaling{
			ListenAddr: "127.0.0.1:8088",
		},
	}
}

func (c *Config) Validate() error {
	if len(c.ICEServers) == 0 {
		return errors.New("ice_servers must contain at least one entry")
	}
	for i, s := range c.ICEServers {
		if len(s.URLs) == 0 {
			return fmt.Errorf("ice_servers[%d].urls is required", i)
		}
	}
	if c.Timing.SetupBudgetSec <= 0 {
		return errors.New("timing.setup_budget_seconds must be > 0")
	}
	if c.Timing.ReconnectBudgetSec <= 0 {
		return errors.New("timing.reconnect_budget_seconds must be > 0")
	}
	if c.Timing.OfferExpirySec <= 0 {
		return errors.New("timing.offer_expiry_seconds must be > 0")
	}
	if strings.TrimSpace(c.Signaling.ListenAddr) == "" {
		return errors.New("signaling.listen_addr is required")
	}
	return nil
}

// SetupBudget returns the configured setup timeout as a time.Duration.
func (c Config) SetupBudget() time.Duration {
	return time.Duration(c.Timing.SetupBudgetSec) * time.Second
}

// ReconnectBudget returns the configured reconnect timeout as a time.Duration.
func (c Config) ReconnectBudget() time.Duration {
	return time.Duration(c.Timing.ReconnectBudgetSec) * time.Second
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	// Start from defaults so missing JSON fields remain initialized.
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return writeJSONFile(path, cfg)
}

// Ensure loads config if it exists; otherwise creates a default config file.
// Returns (cfg, createdNew, err).
func Ensure(path string) (Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, false, err
	} else if !os.IsNotExist(err) {
		return Config{}, false, err
	}

	cfg := Default()
	if err := Save(path, cfg); err != nil {
		return Config{}, false, fmt.Errorf("create default config: %w", err)
	}
	return cfg, true, nil
}

func writeJSONFile(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

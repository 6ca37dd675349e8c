package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile is the on-disk run profile. Durations are strings ("60s", "8s", "1m").
type Profile struct {
	Target      string            `yaml:"target"`
	Method      string            `yaml:"method"`
	Duration    string            `yaml:"duration"`
	Concurrency int               `yaml:"concurrency"`
	Timeout     string            `yaml:"timeout"`
	Data        string            `yaml:"data"`
	Headers     map[string]string `yaml:"headers"`
	PayloadSize string            `yaml:"payload_size"`
	KeepAlive   *bool             `yaml:"keepalive"`
	DNSRefresh  string            `yaml:"dns_refresh"`
	DNSServer   string            `yaml:"dns_server"`
	VerifyTLS   *bool             `yaml:"verify_tls"`
	Proxy       string            `yaml:"proxy"`
	RPS         float64           `yaml:"rps"`
}

// LoadProfile reads a YAML profile and applies it on top of the defaults
func LoadProfile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}

	settings := DefaultSettings()
	if err := profile.apply(&settings); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}

	return &settings, nil
}

func (p *Profile) apply(s *Settings) error {
	if p.Target != "" {
		s.Target = p.Target
	}
	if p.Method != "" {
		s.Method = p.Method
	}
	if p.Concurrency > 0 {
		s.Concurrency = p.Concurrency
	}
	if p.Data != "" {
		s.Data = p.Data
	}
	if p.PayloadSize != "" {
		s.PayloadSize = p.PayloadSize
	}
	if len(p.Headers) > 0 {
		raw, err := json.Marshal(p.Headers)
		if err != nil {
			return fmt.Errorf("invalid headers: %w", err)
		}
		s.Headers = string(raw)
	}
	if p.KeepAlive != nil {
		s.KeepAlive = *p.KeepAlive
	}
	if p.VerifyTLS != nil {
		s.VerifyTLS = *p.VerifyTLS
	}
	if p.DNSServer != "" {
		s.DNSServer = p.DNSServer
	}
	if p.Proxy != "" {
		s.Proxy = p.Proxy
	}
	if p.RPS > 0 {
		s.RPS = p.RPS
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"duration", p.Duration, &s.Duration},
		{"timeout", p.Timeout, &s.Timeout},
		{"dns_refresh", p.DNSRefresh, &s.DNSRefresh},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	return nil
}

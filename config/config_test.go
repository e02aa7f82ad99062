package config

import (
	"testing"

	"adx-systemv1/internal/markethours"
)

func validConfig() *Config {
	return &Config{
		Symbols:          []string{"SBIN"},
		BarInterval:      300,
		DIPeriod:         14,
		MinDISeparation:  2.0,
		MinADXStrength:   20,
		VolumePercentile: 60,
		VolumeWindow:     100,
		MinVolumeRatio:   1.5,
		MinConfidence:    0.60,
		SignalCutoff:     markethours.TimeOfDay{Hour: 14, Minute: 30},
		PortfolioValue:   10000000,
		RiskPerTradePct:  1.0,
		MaxPositions:     5,
		TrailingStopPct:  5.0,
		SquareOffTime:    markethours.TimeOfDay{Hour: 15, Minute: 20},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no symbols", func(c *Config) { c.Symbols = nil }},
		{"zero interval", func(c *Config) { c.BarInterval = 0 }},
		{"period too small", func(c *Config) { c.DIPeriod = 1 }},
		{"percentile above 100", func(c *Config) { c.VolumePercentile = 101 }},
		{"zero volume window", func(c *Config) { c.VolumeWindow = 0 }},
		{"confidence above 1", func(c *Config) { c.MinConfidence = 1.5 }},
		{"zero portfolio", func(c *Config) { c.PortfolioValue = 0 }},
		{"risk above 100", func(c *Config) { c.RiskPerTradePct = 150 }},
		{"zero max positions", func(c *Config) { c.MaxPositions = 0 }},
		{"trailing stop 100%", func(c *Config) { c.TrailingStopPct = 100 }},
		{"cutoff after square-off", func(c *Config) {
			c.SignalCutoff = markethours.TimeOfDay{Hour: 15, Minute: 30}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" SBIN, TCS ,,RELIANCE ")
	want := []string{"SBIN", "TCS", "RELIANCE"}
	if len(got) != len(want) {
		t.Fatalf("expected %d symbols, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("symbol %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

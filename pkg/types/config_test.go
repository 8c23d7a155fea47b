package types

import (
	"strings"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultBacktestConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateMinFractionBounds(t *testing.T) {
	cfg := DefaultBacktestConfig()
	cfg.Sizing.MinFraction = -0.01
	if err := cfg.Validate(); err == nil {
		t.Error("negative min_fraction accepted")
	}

	cfg.Sizing.MinFraction = 1.0
	if err := cfg.Validate(); err == nil {
		t.Error("min_fraction = 1 accepted")
	}
}

func TestValidateMinFractionAgainstKellyCap(t *testing.T) {
	// A floor above the cap would invert the Kelly clamp, sizing every
	// trade at the floor regardless of edge.
	cfg := DefaultBacktestConfig()
	cfg.Sizing.MinFraction = cfg.RiskLimits.KellyFractionCap + 0.05

	err := cfg.Validate()
	if err == nil {
		t.Fatal("min_fraction above kelly_fraction_cap accepted")
	}
	if !strings.Contains(err.Error(), "min_fraction") {
		t.Errorf("err = %v, want mention of min_fraction", err)
	}
}

func TestValidateStatisticalModelNeedsSeed(t *testing.T) {
	cfg := DefaultBacktestConfig()
	cfg.OutcomeModel = "statistical"
	if err := cfg.Validate(); err == nil {
		t.Error("statistical model without a seed accepted")
	}
	cfg.StatSeed = 42
	if err := cfg.Validate(); err != nil {
		t.Errorf("seeded statistical model rejected: %v", err)
	}
}

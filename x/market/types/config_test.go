package types

import (
	"testing"

	"cosmossdk.io/math"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config must validate, got %v", err)
	}
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CrankExecs = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected zero crank execs to be rejected")
	}

	cfg = DefaultConfig()
	cfg.MaxLeverage = math.LegacyZeroDec()
	if err := cfg.Validate(); err == nil {
		t.Error("expected zero max leverage to be rejected")
	}

	cfg = DefaultConfig()
	cfg.CrankFeeCharged = math.LegacyNewDec(-1)
	if err := cfg.Validate(); err == nil {
		t.Error("expected a negative crank fee to be rejected")
	}
}

func TestQueueCeilingUnknownReasonUnbounded(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.QueueCeiling(CongestionReason("other")); got != 0 {
		t.Errorf("expected unknown reasons to be unbounded, got %d", got)
	}
	if got := cfg.QueueCeiling(CongestionReasonOpenMarket); got != 30 {
		t.Errorf("expected a ceiling of 30 for market opens, got %d", got)
	}
}

package keeper

import (
	"errors"
	"testing"

	"github.com/openalpha/perp-market/x/market/types"
)

func TestUpdateConfigRequiresAuthority(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)

	cfg := types.DefaultConfig()
	cfg.CrankExecs = 3

	if err := k.UpdateConfig(ctx, testAddr(0x01), cfg); !errors.Is(err, types.ErrUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	if got := k.GetConfig(ctx).CrankExecs; got != types.DefaultConfig().CrankExecs {
		t.Errorf("expected config unchanged, got crank execs %d", got)
	}

	if err := k.UpdateConfig(ctx, testAuthority, cfg); err != nil {
		t.Fatalf("update config: %v", err)
	}
	if got := k.GetConfig(ctx).CrankExecs; got != 3 {
		t.Errorf("expected crank execs 3, got %d", got)
	}
}

func TestUpdateConfigRejectsInvalid(t *testing.T) {
	k, ctx, _, _ := setupKeeper(t)

	cfg := types.DefaultConfig()
	cfg.CrankExecs = 0

	if err := k.UpdateConfig(ctx, testAuthority, cfg); err == nil {
		t.Fatal("expected validation error for zero crank execs")
	}
}

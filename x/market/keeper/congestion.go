package keeper

import (
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Congestion backpressure: for every 10 items already sitting in the
// deferred execution queue, the configured surcharge is added to the crank
// fee charged at enqueue time. Protocol-internal work (liquidations,
// liquifunding) is never surcharged since congestion is user-caused.

const congestionSurchargeStep = 10

// CrankFeeSurchargeUsd computes the congestion surcharge in USD for the
// given queue depth. The surcharge is a step function: zero below 10 queued
// items, one step per full 10 thereafter.
func (k *Keeper) CrankFeeSurchargeUsd(ctx sdk.Context, depth uint32) math.LegacyDec {
	cfg := k.GetConfig(ctx)
	steps := int64(depth / congestionSurchargeStep)
	if steps == 0 {
		return math.LegacyZeroDec()
	}
	return cfg.CrankFeeSurcharge.MulInt64(steps)
}

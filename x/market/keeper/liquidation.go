package keeper

import (
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/openalpha/perp-market/x/market/types"
)

// Liquidation covers every price-triggered close: margin exhaustion, max
// gains, stop loss and take profit. Triggers are evaluated against the
// latest available price; liquidations outrank queued user actions in the
// work selector so queue growth can never starve them.

// nextLiquidatablePosition scans open positions in ascending ID order for
// the first one with a fired trigger at the given price.
func (k *Keeper) nextLiquidatablePosition(ctx sdk.Context, price types.PricePoint) (*types.Position, *types.LiquidationReason) {
	cfg := k.GetConfig(ctx)
	var hit *types.Position
	var reason *types.LiquidationReason
	k.IteratePositions(ctx, func(pos *types.Position) bool {
		if r := pos.LiquidationReasonAt(price.PriceBase, cfg.ExposureMarginRatio); r != nil {
			hit, reason = pos, r
			return true
		}
		return false
	})
	return hit, reason
}

// executeLiquidation closes a position for the given trigger reason.
func (k *Keeper) executeLiquidation(ctx sdk.Context, pos *types.Position, reason types.LiquidationReason, price types.PricePoint) error {
	if err := k.closePosition(ctx, pos, price, string(reason)); err != nil {
		return err
	}
	ctx.EventManager().EmitEvent(sdk.NewEvent(types.EventTypeLiquidation,
		sdk.NewAttribute(types.AttributeKeyPositionId, pos.Id.String()),
		sdk.NewAttribute(types.AttributeKeyReason, string(reason)),
		sdk.NewAttribute(types.AttributeKeyPrice, price.PriceBase.String()),
	))
	return nil
}

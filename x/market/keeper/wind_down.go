package keeper

import (
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/openalpha/perp-market/x/market/types"
)

// Market wind-down: once triggered, no new positions or orders are
// accepted, the crank closes every open position oldest-first, and once the
// liquidity pool has been drained all LP balances are reset.

// CloseAllTriggered reports whether wind-down has been triggered.
func (k *Keeper) CloseAllTriggered(ctx sdk.Context) bool {
	return k.GetStore(ctx).Has(CloseAllTriggeredKey)
}

// TriggerCloseAll puts the market into wind-down. Gated on the authority by
// the message server. Pending deferred items are left to resolve normally;
// they fail at execution time if their target was closed first.
func (k *Keeper) TriggerCloseAll(ctx sdk.Context, authority string) error {
	if authority != k.authority {
		return types.ErrUnauthorized.Wrapf("expected %s, got %s", k.authority, authority)
	}
	k.GetStore(ctx).Set(CloseAllTriggeredKey, []byte{1})
	k.GetStore(ctx).Set(LpResetNeededKey, []byte{1})
	k.logger.Info("market wind-down triggered")
	return nil
}

// oldestOpenPosition returns the open position with the lowest ID, the next
// one to close during wind-down.
func (k *Keeper) oldestOpenPosition(ctx sdk.Context) *types.Position {
	var oldest *types.Position
	k.IteratePositions(ctx, func(pos *types.Position) bool {
		oldest = pos
		return true
	})
	return oldest
}

// lpResetNeeded reports whether the post-wind-down LP balance reset is
// still outstanding.
func (k *Keeper) lpResetNeeded(ctx sdk.Context) bool {
	return k.GetStore(ctx).Has(LpResetNeededKey) && k.liquidityKeeper.Drained(ctx)
}

func (k *Keeper) resetLpBalances(ctx sdk.Context) {
	k.liquidityKeeper.ResetLpBalances(ctx)
	k.GetStore(ctx).Delete(LpResetNeededKey)
	k.logger.Info("lp balances reset")
}

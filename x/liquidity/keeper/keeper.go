package keeper

import (
	"context"
	"encoding/json"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	"github.com/cosmos/cosmos-sdk/codec"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/openalpha/perp-market/x/liquidity/types"
)

// ModuleName is the liquidity module's name and its escrow account.
const ModuleName = "liquidity"

// MarketModuleName is the escrow account of the market module, the
// counterparty of pool payouts and absorptions.
const MarketModuleName = "market"

// Store key prefixes
var (
	PoolKey         = []byte{0x01}
	SharesKeyPrefix = []byte{0x02} // + provider address
)

// BankKeeper defines the expected interface for the bank module
type BankKeeper interface {
	SendCoinsFromAccountToModule(ctx context.Context, senderAddr sdk.AccAddress, recipientModule string, amt sdk.Coins) error
	SendCoinsFromModuleToAccount(ctx context.Context, senderModule string, recipientAddr sdk.AccAddress, amt sdk.Coins) error
	SendCoinsFromModuleToModule(ctx context.Context, senderModule, recipientModule string, amt sdk.Coins) error
}

// Keeper manages the liquidity pool state
type Keeper struct {
	cdc             codec.BinaryCodec
	storeKey        storetypes.StoreKey
	bankKeeper      BankKeeper
	collateralDenom string
	logger          log.Logger
}

// NewKeeper creates a new liquidity keeper
func NewKeeper(
	cdc codec.BinaryCodec,
	storeKey storetypes.StoreKey,
	bankKeeper BankKeeper,
	collateralDenom string,
	logger log.Logger,
) *Keeper {
	return &Keeper{
		cdc:             cdc,
		storeKey:        storeKey,
		bankKeeper:      bankKeeper,
		collateralDenom: collateralDenom,
		logger:          logger.With("module", "x/liquidity"),
	}
}

// Logger returns the module logger
func (k *Keeper) Logger() log.Logger {
	return k.logger
}

// GetStore returns the KVStore
func (k *Keeper) GetStore(ctx sdk.Context) storetypes.KVStore {
	return ctx.KVStore(k.storeKey)
}

// GetPool retrieves the pool, initializing an empty one on first access.
func (k *Keeper) GetPool(ctx sdk.Context) *types.Pool {
	bz := k.GetStore(ctx).Get(PoolKey)
	if bz == nil {
		return types.NewPool()
	}
	var pool types.Pool
	if err := json.Unmarshal(bz, &pool); err != nil {
		return types.NewPool()
	}
	return &pool
}

// SetPool saves the pool
func (k *Keeper) SetPool(ctx sdk.Context, pool *types.Pool) {
	pool.UpdatedAt = ctx.BlockTime().Unix()
	bz, _ := json.Marshal(pool)
	k.GetStore(ctx).Set(PoolKey, bz)
}

func sharesKey(provider string) []byte {
	return append(SharesKeyPrefix, []byte(provider)...)
}

// GetShares returns a provider's share balance.
func (k *Keeper) GetShares(ctx sdk.Context, provider string) math.LegacyDec {
	bz := k.GetStore(ctx).Get(sharesKey(provider))
	if bz == nil {
		return math.LegacyZeroDec()
	}
	var s math.LegacyDec
	if err := s.Unmarshal(bz); err != nil {
		return math.LegacyZeroDec()
	}
	return s
}

func (k *Keeper) setShares(ctx sdk.Context, provider string, shares math.LegacyDec) {
	if shares.IsZero() {
		k.GetStore(ctx).Delete(sharesKey(provider))
		return
	}
	bz, _ := shares.Marshal()
	k.GetStore(ctx).Set(sharesKey(provider), bz)
}

// IterateShares walks all provider share balances.
func (k *Keeper) IterateShares(ctx sdk.Context, fn func(types.LpShares) bool) {
	iterator := storetypes.KVStorePrefixIterator(k.GetStore(ctx), SharesKeyPrefix)
	defer iterator.Close()
	for ; iterator.Valid(); iterator.Next() {
		var s math.LegacyDec
		if err := s.Unmarshal(iterator.Value()); err != nil {
			continue
		}
		entry := types.LpShares{
			Address: string(iterator.Key()[len(SharesKeyPrefix):]),
			Shares:  s,
		}
		if fn(entry) {
			break
		}
	}
}

func (k *Keeper) coins(amount math.LegacyDec) sdk.Coins {
	return sdk.NewCoins(sdk.NewCoin(k.collateralDenom, amount.TruncateInt()))
}

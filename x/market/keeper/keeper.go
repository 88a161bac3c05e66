package keeper

import (
	"context"
	"encoding/binary"
	"encoding/json"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	"github.com/cosmos/cosmos-sdk/codec"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/openalpha/perp-market/x/market/types"
)

// ModuleName is the market module's name and escrow account.
const ModuleName = "market"

// Store key prefixes
var (
	ConfigKey                = []byte{0x01}
	PricePointKeyPrefix      = []byte{0x02} // + big-endian nanos
	DeferredExecKeyPrefix    = []byte{0x03} // + big-endian id
	DeferredOwnerKeyPrefix   = []byte{0x04} // + owner + 0x00 + big-endian id
	PendingTargetKeyPrefix   = []byte{0x05} // + target key -> id
	NextDeferredExecIdKey    = []byte{0x06}
	PendingCountKey          = []byte{0x07}
	LastProcessedIdKey       = []byte{0x08}
	PositionKeyPrefix        = []byte{0x09} // + big-endian id
	NextPositionIdKey        = []byte{0x0A}
	LiquifundingKeyPrefix    = []byte{0x0B} // + big-endian nanos + big-endian position id
	LimitOrderKeyPrefix      = []byte{0x0C} // + big-endian id
	NextOrderIdKey           = []byte{0x0D}
	CloseAllTriggeredKey     = []byte{0x0E}
	LastCrankCompletedKey    = []byte{0x0F}
	CrankRewardsKey          = []byte{0x10}
	PendingReasonCountPrefix = []byte{0x11} // + congestion reason
	NetNotionalKey           = []byte{0x12}
	LpResetNeededKey         = []byte{0x13}
)

// BankKeeper defines the expected interface for the bank module
type BankKeeper interface {
	SendCoinsFromAccountToModule(ctx context.Context, senderAddr sdk.AccAddress, recipientModule string, amt sdk.Coins) error
	SendCoinsFromModuleToAccount(ctx context.Context, senderModule string, recipientAddr sdk.AccAddress, amt sdk.Coins) error
	SendCoinsFromModuleToModule(ctx context.Context, senderModule, recipientModule string, amt sdk.Coins) error
}

// LiquidityKeeper defines the expected interface for the liquidity pool.
// The pool holds counter collateral backing open positions.
type LiquidityKeeper interface {
	LockCounterCollateral(ctx sdk.Context, amount math.LegacyDec) error
	UnlockCounterCollateral(ctx sdk.Context, amount math.LegacyDec)
	// PayoutFromPool moves realized trader gains out of the pool into the
	// market escrow.
	PayoutFromPool(ctx sdk.Context, amount math.LegacyDec) error
	// AbsorbIntoPool moves realized trader losses and fees into the pool.
	AbsorbIntoPool(ctx sdk.Context, amount math.LegacyDec)
	// Drained reports whether all liquidity has been removed, which gates
	// the LP balance reset crank work.
	Drained(ctx sdk.Context) bool
	ResetLpBalances(ctx sdk.Context)
}

// Keeper manages the market module state: the price store, the deferred
// execution queue, positions, limit orders and the crank.
type Keeper struct {
	cdc             codec.BinaryCodec
	storeKey        storetypes.StoreKey
	bankKeeper      BankKeeper
	liquidityKeeper LiquidityKeeper
	feeModels       types.FeeModels
	collateralDenom string
	authority       string
	logger          log.Logger
}

// NewKeeper creates a new market keeper
func NewKeeper(
	cdc codec.BinaryCodec,
	storeKey storetypes.StoreKey,
	bankKeeper BankKeeper,
	liquidityKeeper LiquidityKeeper,
	collateralDenom string,
	authority string,
	logger log.Logger,
) *Keeper {
	return &Keeper{
		cdc:             cdc,
		storeKey:        storeKey,
		bankKeeper:      bankKeeper,
		liquidityKeeper: liquidityKeeper,
		feeModels:       types.DefaultFeeModels(),
		collateralDenom: collateralDenom,
		authority:       authority,
		logger:          logger.With("module", "x/market"),
	}
}

// SetFeeModels swaps the fee calculation strategies.
func (k *Keeper) SetFeeModels(models types.FeeModels) {
	k.feeModels = models
}

// Logger returns the module logger
func (k *Keeper) Logger() log.Logger {
	return k.logger
}

// GetAuthority returns the governance authority address
func (k *Keeper) GetAuthority() string {
	return k.authority
}

// GetStore returns the KVStore
func (k *Keeper) GetStore(ctx sdk.Context) storetypes.KVStore {
	return ctx.KVStore(k.storeKey)
}

// GetConfig retrieves the market configuration, falling back to defaults.
func (k *Keeper) GetConfig(ctx sdk.Context) types.Config {
	store := k.GetStore(ctx)
	bz := store.Get(ConfigKey)
	if bz == nil {
		return types.DefaultConfig()
	}
	var cfg types.Config
	if err := json.Unmarshal(bz, &cfg); err != nil {
		return types.DefaultConfig()
	}
	return cfg
}

// SetConfig saves the market configuration.
func (k *Keeper) SetConfig(ctx sdk.Context, cfg types.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	store := k.GetStore(ctx)
	bz, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	store.Set(ConfigKey, bz)
	return nil
}

// UpdateConfig replaces the market configuration. Gated on the authority by
// the message server.
func (k *Keeper) UpdateConfig(ctx sdk.Context, authority string, cfg types.Config) error {
	if authority != k.authority {
		return types.ErrUnauthorized.Wrapf("expected %s, got %s", k.authority, authority)
	}
	if err := k.SetConfig(ctx, cfg); err != nil {
		return err
	}
	k.logger.Info("market config updated")
	return nil
}

// ============ Counters and small state ============

func (k *Keeper) getUint64(ctx sdk.Context, key []byte) uint64 {
	bz := k.GetStore(ctx).Get(key)
	if bz == nil {
		return 0
	}
	return binary.BigEndian.Uint64(bz)
}

func (k *Keeper) setUint64(ctx sdk.Context, key []byte, v uint64) {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, v)
	k.GetStore(ctx).Set(key, bz)
}

func (k *Keeper) getDec(ctx sdk.Context, key []byte) math.LegacyDec {
	bz := k.GetStore(ctx).Get(key)
	if bz == nil {
		return math.LegacyZeroDec()
	}
	var d math.LegacyDec
	if err := d.Unmarshal(bz); err != nil {
		return math.LegacyZeroDec()
	}
	return d
}

func (k *Keeper) setDec(ctx sdk.Context, key []byte, d math.LegacyDec) {
	bz, _ := d.Marshal()
	k.GetStore(ctx).Set(key, bz)
}

func u64Key(prefix []byte, v uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], v)
	return key
}

// ============ Crank rewards pool ============

// CrankRewards returns the collateral collected and waiting to be paid out
// to crankers.
func (k *Keeper) CrankRewards(ctx sdk.Context) math.LegacyDec {
	return k.getDec(ctx, CrankRewardsKey)
}

func (k *Keeper) addCrankRewards(ctx sdk.Context, amount math.LegacyDec) {
	k.setDec(ctx, CrankRewardsKey, k.CrankRewards(ctx).Add(amount))
}

// NetNotional is the signed net long-minus-short notional exposure, input to
// the funding and delta neutrality fee models.
func (k *Keeper) NetNotional(ctx sdk.Context) math.LegacyDec {
	return k.getDec(ctx, NetNotionalKey)
}

func (k *Keeper) adjustNetNotional(ctx sdk.Context, delta math.LegacyDec) {
	k.setDec(ctx, NetNotionalKey, k.NetNotional(ctx).Add(delta))
}

// ============ Collateral movement ============

// escrowFromUser moves collateral from a user into the market escrow.
func (k *Keeper) escrowFromUser(ctx sdk.Context, owner string, amount math.LegacyDec) error {
	if amount.IsZero() {
		return nil
	}
	addr, err := sdk.AccAddressFromBech32(owner)
	if err != nil {
		return err
	}
	coins := sdk.NewCoins(sdk.NewCoin(k.collateralDenom, amount.TruncateInt()))
	return k.bankKeeper.SendCoinsFromAccountToModule(ctx, addr, ModuleName, coins)
}

// payToUser moves collateral from the market escrow back to a user.
func (k *Keeper) payToUser(ctx sdk.Context, owner string, amount math.LegacyDec) error {
	if amount.IsZero() || amount.IsNegative() {
		return nil
	}
	addr, err := sdk.AccAddressFromBech32(owner)
	if err != nil {
		return err
	}
	coins := sdk.NewCoins(sdk.NewCoin(k.collateralDenom, amount.TruncateInt()))
	return k.bankKeeper.SendCoinsFromModuleToAccount(ctx, ModuleName, addr, coins)
}

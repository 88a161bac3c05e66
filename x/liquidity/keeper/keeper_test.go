package keeper

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"cosmossdk.io/store"
	"cosmossdk.io/store/metrics"
	storetypes "cosmossdk.io/store/types"
	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/cosmos/cosmos-sdk/codec"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/openalpha/perp-market/x/liquidity/types"
)

// mockBank records transfers without holding balances.
type mockBank struct {
	deposited  math.Int
	withdrawn  map[string]math.Int
	toMarket   math.Int
	fromMarket math.Int
}

func newMockBank() *mockBank {
	return &mockBank{
		deposited:  math.ZeroInt(),
		withdrawn:  make(map[string]math.Int),
		toMarket:   math.ZeroInt(),
		fromMarket: math.ZeroInt(),
	}
}

func (b *mockBank) SendCoinsFromAccountToModule(ctx context.Context, senderAddr sdk.AccAddress, recipientModule string, amt sdk.Coins) error {
	b.deposited = b.deposited.Add(amt.AmountOf("uusdc"))
	return nil
}

func (b *mockBank) SendCoinsFromModuleToAccount(ctx context.Context, senderModule string, recipientAddr sdk.AccAddress, amt sdk.Coins) error {
	cur, ok := b.withdrawn[recipientAddr.String()]
	if !ok {
		cur = math.ZeroInt()
	}
	b.withdrawn[recipientAddr.String()] = cur.Add(amt.AmountOf("uusdc"))
	return nil
}

func (b *mockBank) SendCoinsFromModuleToModule(ctx context.Context, senderModule, recipientModule string, amt sdk.Coins) error {
	if recipientModule == MarketModuleName {
		b.toMarket = b.toMarket.Add(amt.AmountOf("uusdc"))
	} else {
		b.fromMarket = b.fromMarket.Add(amt.AmountOf("uusdc"))
	}
	return nil
}

func setupKeeper(t *testing.T) (*Keeper, sdk.Context, *mockBank) {
	t.Helper()

	storeKey := storetypes.NewKVStoreKey("liquidity")
	db := dbm.NewMemDB()
	stateStore := store.NewCommitMultiStore(db, log.NewNopLogger(), metrics.NewNoOpMetrics())
	stateStore.MountStoreWithDB(storeKey, storetypes.StoreTypeIAVL, db)
	if err := stateStore.LoadLatestVersion(); err != nil {
		t.Fatalf("failed to load store: %v", err)
	}

	blockTime := time.Unix(1_700_000_000, 0).UTC()
	ctx := sdk.NewContext(stateStore, cmtproto.Header{Time: blockTime}, false, log.NewNopLogger())

	interfaceRegistry := codectypes.NewInterfaceRegistry()
	cdc := codec.NewProtoCodec(interfaceRegistry)

	bank := newMockBank()
	k := NewKeeper(cdc, storeKey, bank, "uusdc", log.NewNopLogger())
	return k, ctx, bank
}

func testProvider(b byte) string {
	return sdk.AccAddress(bytes.Repeat([]byte{b}, 20)).String()
}

func dec(v int64) math.LegacyDec { return math.LegacyNewDec(v) }

func TestFirstDepositMintsSharesOneToOne(t *testing.T) {
	k, ctx, bank := setupKeeper(t)
	provider := testProvider(1)

	shares, err := k.Deposit(ctx, provider, dec(1000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !shares.Equal(dec(1000)) {
		t.Errorf("expected 1000 shares at price one, got %s", shares)
	}
	if !k.GetShares(ctx, provider).Equal(dec(1000)) {
		t.Errorf("expected a share balance of 1000, got %s", k.GetShares(ctx, provider))
	}
	if !bank.deposited.Equal(math.NewInt(1000)) {
		t.Errorf("expected 1000 moved into escrow, got %s", bank.deposited)
	}

	pool := k.GetPool(ctx)
	if !pool.TotalLiquidity.Equal(dec(1000)) || !pool.TotalShares.Equal(dec(1000)) {
		t.Errorf("unexpected pool %+v", pool)
	}
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	k, ctx, _ := setupKeeper(t)
	if _, err := k.Deposit(ctx, testProvider(1), dec(0)); !errors.Is(err, types.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestAbsorbRaisesSharePrice(t *testing.T) {
	k, ctx, _ := setupKeeper(t)
	provider := testProvider(1)
	if _, err := k.Deposit(ctx, provider, dec(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	k.AbsorbIntoPool(ctx, dec(100))

	pool := k.GetPool(ctx)
	if !pool.SharePrice().Equal(math.LegacyMustNewDecFromStr("1.1")) {
		t.Errorf("expected share price 1.1, got %s", pool.SharePrice())
	}

	// A second depositor now gets fewer shares for the same amount.
	shares, err := k.Deposit(ctx, testProvider(2), dec(1100))
	if err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	if !shares.Equal(dec(1000)) {
		t.Errorf("expected 1000 shares at price 1.1, got %s", shares)
	}
}

func TestWithdrawAtAppreciatedPrice(t *testing.T) {
	k, ctx, bank := setupKeeper(t)
	provider := testProvider(1)
	if _, err := k.Deposit(ctx, provider, dec(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	k.AbsorbIntoPool(ctx, dec(100))

	amount, err := k.Withdraw(ctx, provider, dec(500))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !amount.Equal(dec(550)) {
		t.Errorf("expected 550 for 500 shares at price 1.1, got %s", amount)
	}
	if got := bank.withdrawn[provider]; !got.Equal(math.NewInt(550)) {
		t.Errorf("expected a transfer of 550, got %s", got)
	}
	if !k.GetShares(ctx, provider).Equal(dec(500)) {
		t.Errorf("expected 500 shares remaining, got %s", k.GetShares(ctx, provider))
	}
}

func TestWithdrawZeroMeansFullBalance(t *testing.T) {
	k, ctx, _ := setupKeeper(t)
	provider := testProvider(1)
	if _, err := k.Deposit(ctx, provider, dec(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	amount, err := k.Withdraw(ctx, provider, math.LegacyZeroDec())
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !amount.Equal(dec(1000)) {
		t.Errorf("expected the full 1000, got %s", amount)
	}
	if !k.GetShares(ctx, provider).IsZero() {
		t.Errorf("expected no shares left, got %s", k.GetShares(ctx, provider))
	}
}

func TestWithdrawBlockedByLockedLiquidity(t *testing.T) {
	k, ctx, _ := setupKeeper(t)
	provider := testProvider(1)
	if _, err := k.Deposit(ctx, provider, dec(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := k.LockCounterCollateral(ctx, dec(800)); err != nil {
		t.Fatalf("lock: %v", err)
	}

	if _, err := k.Withdraw(ctx, provider, dec(500)); !errors.Is(err, types.ErrInsufficientLiquidity) {
		t.Errorf("expected ErrInsufficientLiquidity, got %v", err)
	}

	// The unlocked remainder is still withdrawable.
	if _, err := k.Withdraw(ctx, provider, dec(200)); err != nil {
		t.Errorf("expected the unlocked part to withdraw, got %v", err)
	}
}

func TestWithdrawRejectsMoreThanBalance(t *testing.T) {
	k, ctx, _ := setupKeeper(t)
	provider := testProvider(1)
	if _, err := k.Deposit(ctx, provider, dec(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := k.Withdraw(ctx, provider, dec(101)); !errors.Is(err, types.ErrInsufficientShares) {
		t.Errorf("expected ErrInsufficientShares, got %v", err)
	}
}

func TestLockUnlockRoundTrip(t *testing.T) {
	k, ctx, _ := setupKeeper(t)
	if _, err := k.Deposit(ctx, testProvider(1), dec(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if err := k.LockCounterCollateral(ctx, dec(1200)); !errors.Is(err, types.ErrInsufficientLiquidity) {
		t.Errorf("expected a lock beyond the pool to fail, got %v", err)
	}
	if err := k.LockCounterCollateral(ctx, dec(600)); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if got := k.GetPool(ctx).Unlocked(); !got.Equal(dec(400)) {
		t.Errorf("expected 400 unlocked, got %s", got)
	}

	k.UnlockCounterCollateral(ctx, dec(600))
	if got := k.GetPool(ctx).Unlocked(); !got.Equal(dec(1000)) {
		t.Errorf("expected 1000 unlocked after release, got %s", got)
	}
}

func TestPayoutShrinksPool(t *testing.T) {
	k, ctx, bank := setupKeeper(t)
	if _, err := k.Deposit(ctx, testProvider(1), dec(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if err := k.PayoutFromPool(ctx, dec(300)); err != nil {
		t.Fatalf("payout: %v", err)
	}
	if !bank.toMarket.Equal(math.NewInt(300)) {
		t.Errorf("expected 300 sent to the market escrow, got %s", bank.toMarket)
	}
	if got := k.GetPool(ctx).TotalLiquidity; !got.Equal(dec(700)) {
		t.Errorf("expected 700 left, got %s", got)
	}

	if err := k.PayoutFromPool(ctx, dec(701)); !errors.Is(err, types.ErrInsufficientLiquidity) {
		t.Errorf("expected an over-payout to fail, got %v", err)
	}
}

func TestDrainedAndReset(t *testing.T) {
	k, ctx, _ := setupKeeper(t)
	provider := testProvider(1)
	if _, err := k.Deposit(ctx, provider, dec(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if k.Drained(ctx) {
		t.Error("a funded pool is not drained")
	}

	if err := k.PayoutFromPool(ctx, dec(100)); err != nil {
		t.Fatalf("payout: %v", err)
	}
	if !k.Drained(ctx) {
		t.Error("expected the emptied pool to report drained")
	}

	// Shares survive the drain until the reset wipes the ledger.
	if k.GetShares(ctx, provider).IsZero() {
		t.Fatal("expected shares to survive the drain")
	}
	k.ResetLpBalances(ctx)
	if !k.GetShares(ctx, provider).IsZero() {
		t.Errorf("expected shares wiped, got %s", k.GetShares(ctx, provider))
	}
	pool := k.GetPool(ctx)
	if !pool.TotalShares.IsZero() || !pool.TotalLiquidity.IsZero() {
		t.Errorf("expected an empty pool after reset, got %+v", pool)
	}
}

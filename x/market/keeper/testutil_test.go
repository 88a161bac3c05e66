package keeper

import (
	"bytes"
	"context"
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
	"github.com/openalpha/perp-market/x/market/types"
)

// mockBank records collateral movement without holding balances.
type mockBank struct {
	escrowed math.Int            // net amount moved from users into the market
	paid     map[string]math.Int // module -> account payouts, keyed by address
}

func newMockBank() *mockBank {
	return &mockBank{
		escrowed: math.ZeroInt(),
		paid:     make(map[string]math.Int),
	}
}

func (b *mockBank) SendCoinsFromAccountToModule(ctx context.Context, senderAddr sdk.AccAddress, recipientModule string, amt sdk.Coins) error {
	b.escrowed = b.escrowed.Add(amt.AmountOf("uusdc"))
	return nil
}

func (b *mockBank) SendCoinsFromModuleToAccount(ctx context.Context, senderModule string, recipientAddr sdk.AccAddress, amt sdk.Coins) error {
	cur, ok := b.paid[recipientAddr.String()]
	if !ok {
		cur = math.ZeroInt()
	}
	b.paid[recipientAddr.String()] = cur.Add(amt.AmountOf("uusdc"))
	return nil
}

func (b *mockBank) SendCoinsFromModuleToModule(ctx context.Context, senderModule, recipientModule string, amt sdk.Coins) error {
	return nil
}

// mockLiquidity tracks pool interactions for assertions.
type mockLiquidity struct {
	unlocked math.LegacyDec
	locked   math.LegacyDec
	absorbed math.LegacyDec
	paidOut  math.LegacyDec
	drained  bool
	resets   int
}

func newMockLiquidity(unlocked math.LegacyDec) *mockLiquidity {
	return &mockLiquidity{
		unlocked: unlocked,
		locked:   math.LegacyZeroDec(),
		absorbed: math.LegacyZeroDec(),
		paidOut:  math.LegacyZeroDec(),
	}
}

func (m *mockLiquidity) LockCounterCollateral(ctx sdk.Context, amount math.LegacyDec) error {
	if m.unlocked.LT(amount) {
		return types.ErrInsufficientLiquidity.Wrapf("need %s, unlocked %s", amount, m.unlocked)
	}
	m.unlocked = m.unlocked.Sub(amount)
	m.locked = m.locked.Add(amount)
	return nil
}

func (m *mockLiquidity) UnlockCounterCollateral(ctx sdk.Context, amount math.LegacyDec) {
	m.locked = m.locked.Sub(amount)
	m.unlocked = m.unlocked.Add(amount)
}

func (m *mockLiquidity) PayoutFromPool(ctx sdk.Context, amount math.LegacyDec) error {
	m.paidOut = m.paidOut.Add(amount)
	return nil
}

func (m *mockLiquidity) AbsorbIntoPool(ctx sdk.Context, amount math.LegacyDec) {
	m.absorbed = m.absorbed.Add(amount)
}

func (m *mockLiquidity) Drained(ctx sdk.Context) bool { return m.drained }

func (m *mockLiquidity) ResetLpBalances(ctx sdk.Context) { m.resets++ }

var testAuthority = sdk.AccAddress(bytes.Repeat([]byte{0xFF}, 20)).String()

// setupKeeper creates a market keeper backed by an in-memory store. The pool
// mock starts with a generous unlocked balance so opens succeed by default.
func setupKeeper(t *testing.T) (*Keeper, sdk.Context, *mockBank, *mockLiquidity) {
	t.Helper()

	storeKey := storetypes.NewKVStoreKey("market")
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
	liquidity := newMockLiquidity(math.LegacyNewDec(1_000_000))
	k := NewKeeper(cdc, storeKey, bank, liquidity, "uusdc", testAuthority, log.NewNopLogger())

	return k, ctx, bank, liquidity
}

// testAddr builds a deterministic bech32 address from a single byte.
func testAddr(b byte) string {
	return sdk.AccAddress(bytes.Repeat([]byte{b}, 20)).String()
}

// advanceTime moves block time forward, as consecutive blocks would.
func advanceTime(ctx sdk.Context, d time.Duration) sdk.Context {
	return ctx.WithBlockTime(ctx.BlockTime().Add(d))
}

// appendTestPrice publishes a price point stamped at the current block time,
// with collateral pegged 1:1 to USD so fee math stays readable.
func appendTestPrice(t *testing.T, k *Keeper, ctx sdk.Context, base string) types.PricePoint {
	t.Helper()
	point := types.PricePoint{
		PriceBase: math.LegacyMustNewDecFromStr(base),
		PriceUsd:  math.LegacyOneDec(),
		Timestamp: types.NewTimestampFromTime(ctx.BlockTime()),
	}
	if err := k.AppendPricePoint(ctx, point); err != nil {
		t.Fatalf("append price: %v", err)
	}
	return point
}

// openItem is a plain long market open with no overrides.
func openItem(amount, leverage string) types.DeferredExecItem {
	return types.DeferredExecItem{OpenPosition: &types.OpenPositionItem{
		Amount:    math.LegacyMustNewDecFromStr(amount),
		Leverage:  math.LegacyMustNewDecFromStr(leverage),
		Direction: types.DirectionLong,
	}}
}

func closeItem(id types.PositionId) types.DeferredExecItem {
	return types.DeferredExecItem{ClosePosition: &types.ClosePositionItem{Id: id}}
}

func maxGainsItem(id types.PositionId, ratio string) types.DeferredExecItem {
	return types.DeferredExecItem{UpdatePositionMaxGains: &types.UpdateMaxGainsItem{
		Id:       id,
		MaxGains: math.LegacyMustNewDecFromStr(ratio),
	}}
}

// mustEnqueue enqueues an item or fails the test.
func mustEnqueue(t *testing.T, k *Keeper, ctx sdk.Context, owner string, item types.DeferredExecItem) types.DeferredExecId {
	t.Helper()
	id, _, err := k.EnqueueDeferredExec(ctx, owner, item)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return id
}

// openTestPosition drives a full open through the queue and crank, returning
// the resulting position ID.
func openTestPosition(t *testing.T, k *Keeper, ctx sdk.Context, owner, amount, leverage string) types.PositionId {
	t.Helper()
	mustEnqueue(t, k, ctx, owner, openItem(amount, leverage))
	appendTestPrice(t, k, ctx, "100")
	kinds, err := k.Crank(ctx, owner, 1, "")
	if err != nil {
		t.Fatalf("crank: %v", err)
	}
	if len(kinds) != 1 || kinds[0] != "deferred_exec" {
		t.Fatalf("expected one deferred_exec, got %v", kinds)
	}
	last := k.LastProcessedDeferredExecId(ctx)
	item := k.GetDeferredExec(ctx, *last)
	if item.Status.Success == nil {
		t.Fatalf("open did not succeed: %+v", item.Status)
	}
	return *item.Status.Success.Target.Position
}

package api

import (
	"context"
	"fmt"
	"sync"
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

	apitypes "github.com/openalpha/perp-market/api/types"
	liquiditykeeper "github.com/openalpha/perp-market/x/liquidity/keeper"
	marketkeeper "github.com/openalpha/perp-market/x/market/keeper"
	markettypes "github.com/openalpha/perp-market/x/market/types"
)

// KeeperService serves API queries from an in-memory market keeper. It powers
// the standalone gateway mode: state lives in a memdb multistore rather than
// a running chain, which is enough for development and load testing.
type KeeperService struct {
	marketKeeper    *marketkeeper.Keeper
	liquidityKeeper *liquiditykeeper.Keeper
	ctx             sdk.Context
	mu              sync.RWMutex
}

// noopBank satisfies the bank interfaces of both keepers without moving real
// coins. Balances are irrelevant in standalone mode.
type noopBank struct{}

func (noopBank) SendCoinsFromAccountToModule(ctx context.Context, senderAddr sdk.AccAddress, recipientModule string, amt sdk.Coins) error {
	return nil
}

func (noopBank) SendCoinsFromModuleToAccount(ctx context.Context, senderModule string, recipientAddr sdk.AccAddress, amt sdk.Coins) error {
	return nil
}

func (noopBank) SendCoinsFromModuleToModule(ctx context.Context, senderModule, recipientModule string, amt sdk.Coins) error {
	return nil
}

// NewKeeperService creates a KeeperService backed by an in-memory store
func NewKeeperService() (*KeeperService, error) {
	interfaceRegistry := codectypes.NewInterfaceRegistry()
	cdc := codec.NewProtoCodec(interfaceRegistry)

	marketKey := storetypes.NewKVStoreKey(marketkeeper.ModuleName)
	liquidityKey := storetypes.NewKVStoreKey(liquiditykeeper.ModuleName)

	db := dbm.NewMemDB()
	stateStore := store.NewCommitMultiStore(db, log.NewNopLogger(), metrics.NewNoOpMetrics())
	stateStore.MountStoreWithDB(marketKey, storetypes.StoreTypeIAVL, db)
	stateStore.MountStoreWithDB(liquidityKey, storetypes.StoreTypeIAVL, db)
	if err := stateStore.LoadLatestVersion(); err != nil {
		return nil, fmt.Errorf("failed to load store: %w", err)
	}

	ctx := sdk.NewContext(stateStore, cmtproto.Header{
		Time:   time.Now(),
		Height: 1,
	}, false, log.NewNopLogger())

	lk := liquiditykeeper.NewKeeper(cdc, liquidityKey, noopBank{}, "uusdc", log.NewNopLogger())
	mk := marketkeeper.NewKeeper(cdc, marketKey, noopBank{}, lk, "uusdc", "authority", log.NewNopLogger())

	if err := mk.SetConfig(ctx, markettypes.DefaultConfig()); err != nil {
		return nil, fmt.Errorf("failed to set config: %w", err)
	}

	return &KeeperService{
		marketKeeper:    mk,
		liquidityKeeper: lk,
		ctx:             ctx,
	}, nil
}

// tick advances block height and time so enqueue/crank timestamps move
func (s *KeeperService) tick() {
	s.ctx = s.ctx.
		WithBlockHeight(s.ctx.BlockHeight() + 1).
		WithBlockTime(time.Now())
}

// ============================================================================
// StatusService Implementation
// ============================================================================

func (s *KeeperService) GetStatus(ctx context.Context) (*apitypes.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := s.marketKeeper.Status(s.ctx)

	out := &apitypes.Status{
		QueueDepth:      resp.DeferredExecutionItems,
		CrankRewards:    resp.CrankRewards.String(),
		OpenPositions:   resp.OpenPositions,
		OpenLimitOrders: resp.OpenLimitOrders,
		WoundDown:       resp.WoundDown,
	}
	if resp.NextCrank != nil {
		out.NextCrank = resp.NextCrank.Kind()
	}
	if resp.LastCrankCompleted != nil {
		out.LastCrankCompleted = resp.LastCrankCompleted.ToTime().UnixMilli()
	}
	if resp.NextDeferredExecution != nil {
		out.NextDeferredExecution = resp.NextDeferredExecution.ToTime().UnixMilli()
	}
	if resp.NewestDeferredExecution != nil {
		out.NewestDeferredExecution = resp.NewestDeferredExecution.ToTime().UnixMilli()
	}
	if resp.LastProcessedDeferredExecId != nil {
		out.LastProcessedExecId = uint64(*resp.LastProcessedDeferredExecId)
	}
	if resp.LatestPrice != nil {
		out.LatestPrice = priceInfo(*resp.LatestPrice)
	}
	return out, nil
}

func (s *KeeperService) GetPrices(ctx context.Context, limit int) ([]*apitypes.PriceInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	now := markettypes.NewTimestampFromTime(s.ctx.BlockTime()).PlusSeconds(1)
	points := s.marketKeeper.SpotPriceHistory(s.ctx, now, limit)

	out := make([]*apitypes.PriceInfo, 0, len(points))
	for _, p := range points {
		out = append(out, priceInfo(p))
	}
	return out, nil
}

// ============================================================================
// ExecService Implementation
// ============================================================================

func (s *KeeperService) GetDeferredExec(ctx context.Context, id uint64) (*apitypes.DeferredExec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item := s.marketKeeper.GetDeferredExec(s.ctx, markettypes.DeferredExecId(id))
	if item == nil {
		return nil, fmt.Errorf("deferred exec not found: %d", id)
	}
	return execInfo(item), nil
}

func (s *KeeperService) ListDeferredExecs(ctx context.Context, owner string, startAfter uint64, limit int) (*apitypes.ListDeferredExecsResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if owner == "" {
		return nil, fmt.Errorf("owner is required")
	}
	var after *markettypes.DeferredExecId
	if startAfter > 0 {
		id := markettypes.DeferredExecId(startAfter)
		after = &id
	}
	resp := s.marketKeeper.ListDeferredExecs(s.ctx, owner, after, limit)

	items := make([]*apitypes.DeferredExec, 0, len(resp.Items))
	for i := range resp.Items {
		items = append(items, execInfo(&resp.Items[i]))
	}
	out := &apitypes.ListDeferredExecsResponse{
		Items: items,
		Total: len(items),
	}
	if resp.NextStartAfter != nil {
		out.NextStartAfter = uint64(*resp.NextStartAfter)
	}
	return out, nil
}

// ============================================================================
// PositionService Implementation
// ============================================================================

func (s *KeeperService) GetPositions(ctx context.Context, owner string) ([]*apitypes.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*apitypes.Position, 0)
	s.marketKeeper.IteratePositions(s.ctx, func(pos *markettypes.Position) bool {
		if owner != "" && pos.Owner != owner {
			return false
		}
		out = append(out, positionInfo(pos))
		return false
	})
	return out, nil
}

func (s *KeeperService) GetLimitOrders(ctx context.Context, owner string) ([]*apitypes.LimitOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*apitypes.LimitOrder, 0)
	s.marketKeeper.IterateLimitOrders(s.ctx, func(order *markettypes.LimitOrder) bool {
		if owner != "" && order.Owner != owner {
			return false
		}
		out = append(out, orderInfo(order))
		return false
	})
	return out, nil
}

// ============================================================================
// PoolService Implementation
// ============================================================================

func (s *KeeperService) GetPool(ctx context.Context) (*apitypes.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pool := s.liquidityKeeper.GetPool(s.ctx)
	return &apitypes.Pool{
		TotalLiquidity:  pool.TotalLiquidity.String(),
		LockedLiquidity: pool.LockedLiquidity.String(),
		TotalShares:     pool.TotalShares.String(),
		SharePrice:      pool.SharePrice().String(),
		UpdatedAt:       pool.UpdatedAt,
	}, nil
}

// ============================================================================
// Standalone write path
// ============================================================================

// SubmitPrice appends a price point, standalone mode only
func (s *KeeperService) SubmitPrice(req *apitypes.SubmitPriceRequest) (*apitypes.PriceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick()

	priceBase, err := math.LegacyNewDecFromStr(req.PriceBase)
	if err != nil {
		return nil, fmt.Errorf("invalid price_base: %w", err)
	}
	priceUsd := priceBase
	if req.PriceUsd != "" {
		priceUsd, err = math.LegacyNewDecFromStr(req.PriceUsd)
		if err != nil {
			return nil, fmt.Errorf("invalid price_usd: %w", err)
		}
	}

	ts := markettypes.NewTimestampFromTime(s.ctx.BlockTime())
	if req.Timestamp > 0 {
		ts = markettypes.NewTimestampFromTime(time.UnixMilli(req.Timestamp))
	}

	point := markettypes.PricePoint{
		PriceNotional: priceBase,
		PriceUsd:      priceUsd,
		PriceBase:     priceBase,
		Timestamp:     ts,
	}
	if err := s.marketKeeper.AppendPricePoint(s.ctx, point); err != nil {
		return nil, err
	}
	return priceInfo(point), nil
}

// Enqueue pushes a deferred execution item, standalone mode only
func (s *KeeperService) Enqueue(owner string, item markettypes.DeferredExecItem) (uint64, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick()

	id, fee, err := s.marketKeeper.EnqueueDeferredExec(s.ctx, owner, item)
	if err != nil {
		return 0, "", err
	}
	return uint64(id), fee.String(), nil
}

// RunCrank processes pending work, standalone mode only
func (s *KeeperService) RunCrank(req *apitypes.CrankRequest) (*apitypes.CrankResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick()

	cranker := req.Cranker
	if cranker == "" {
		cranker = "gateway-cranker"
	}
	work, err := s.marketKeeper.Crank(s.ctx, cranker, req.Execs, req.Rewards)
	if err != nil {
		return nil, err
	}
	return &apitypes.CrankResponse{
		Processed: len(work),
		Work:      work,
	}, nil
}

// DepositLiquidity funds the pool, standalone mode only
func (s *KeeperService) DepositLiquidity(provider, amount string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick()

	amt, err := math.LegacyNewDecFromStr(amount)
	if err != nil {
		return "", fmt.Errorf("invalid amount: %w", err)
	}
	shares, err := s.liquidityKeeper.Deposit(s.ctx, provider, amt)
	if err != nil {
		return "", err
	}
	return shares.String(), nil
}

// ============================================================================
// Conversion helpers
// ============================================================================

func priceInfo(p markettypes.PricePoint) *apitypes.PriceInfo {
	return &apitypes.PriceInfo{
		PriceNotional: p.PriceNotional.String(),
		PriceUsd:      p.PriceUsd.String(),
		PriceBase:     p.PriceBase.String(),
		Timestamp:     p.Timestamp.ToTime().UnixMilli(),
	}
}

func execInfo(item *markettypes.DeferredExecWithStatus) *apitypes.DeferredExec {
	out := &apitypes.DeferredExec{
		Id:      uint64(item.Id),
		Owner:   item.Owner,
		Variant: item.Item.Variant(),
		Status:  item.Status.String(),
		Created: item.Created.ToTime().UnixMilli(),
	}
	if item.Status.Success != nil {
		out.Executed = item.Status.Success.Executed.ToTime().UnixMilli()
	}
	if item.Status.Failure != nil {
		out.Reason = item.Status.Failure.Reason
		out.Executed = item.Status.Failure.Executed.ToTime().UnixMilli()
	}
	return out
}

func positionInfo(pos *markettypes.Position) *apitypes.Position {
	out := &apitypes.Position{
		Id:                uint64(pos.Id),
		Owner:             pos.Owner,
		Direction:         pos.Direction.String(),
		DepositCollateral: pos.DepositCollateral.String(),
		ActiveCollateral:  pos.ActiveCollateral.String(),
		CounterCollateral: pos.CounterCollateral.String(),
		NotionalSize:      pos.NotionalSize.String(),
		Leverage:          pos.Leverage.String(),
		EntryPrice:        pos.EntryPrice.String(),
		NextLiquifunding:  pos.NextLiquifunding.ToTime().UnixMilli(),
		CreatedAt:         pos.CreatedAt.ToTime().UnixMilli(),
	}
	if pos.StopLossOverride != nil {
		out.StopLoss = pos.StopLossOverride.String()
	}
	if pos.TakeProfitOverride != nil {
		out.TakeProfit = pos.TakeProfitOverride.String()
	}
	return out
}

func orderInfo(order *markettypes.LimitOrder) *apitypes.LimitOrder {
	out := &apitypes.LimitOrder{
		OrderId:      uint64(order.OrderId),
		Owner:        order.Owner,
		TriggerPrice: order.TriggerPrice.String(),
		Collateral:   order.Collateral.String(),
		Leverage:     order.Leverage.String(),
		Direction:    order.Direction.String(),
		CreatedAt:    order.CreatedAt.ToTime().UnixMilli(),
	}
	if order.StopLossOverride != nil {
		out.StopLoss = order.StopLossOverride.String()
	}
	if order.TakeProfit != nil {
		out.TakeProfit = order.TakeProfit.String()
	}
	return out
}

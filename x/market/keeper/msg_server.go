package keeper

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/openalpha/perp-market/x/market/types"
)

var _ types.MsgServer = (*msgServer)(nil)

type msgServer struct {
	Keeper *Keeper
}

// NewMsgServerImpl returns an implementation of the MsgServer interface
func NewMsgServerImpl(keeper *Keeper) types.MsgServer {
	return &msgServer{Keeper: keeper}
}

// parseDec parses a required decimal field.
func parseDec(field, s string) (math.LegacyDec, error) {
	d, err := math.LegacyNewDecFromStr(s)
	if err != nil {
		return math.LegacyDec{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return d, nil
}

// parseOptDec parses an optional decimal field; empty means absent.
func parseOptDec(field, s string) (*math.LegacyDec, error) {
	if s == "" {
		return nil, nil
	}
	d, err := parseDec(field, s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseDirection(s string) (types.DirectionToBase, error) {
	switch s {
	case "long":
		return types.DirectionLong, nil
	case "short":
		return types.DirectionShort, nil
	default:
		return 0, types.ErrInvalidDirection.Wrapf("direction %q", s)
	}
}

func parseSlippage(price, tolerance string) (*types.SlippageAssert, error) {
	if price == "" {
		return nil, nil
	}
	p, err := parseDec("slippage_price", price)
	if err != nil {
		return nil, err
	}
	tol := math.LegacyZeroDec()
	if tolerance != "" {
		tol, err = parseDec("slippage_tolerance", tolerance)
		if err != nil {
			return nil, err
		}
	}
	return &types.SlippageAssert{Price: p, Tolerance: tol}, nil
}

// enqueue wraps EnqueueDeferredExec into the shared queue response.
func (m *msgServer) enqueue(ctx sdk.Context, owner string, item types.DeferredExecItem) (*types.MsgQueueResponse, error) {
	id, fee, err := m.Keeper.EnqueueDeferredExec(ctx, owner, item)
	if err != nil {
		return nil, err
	}
	return &types.MsgQueueResponse{DeferredExecId: id, CrankFee: fee.String()}, nil
}

func (m *msgServer) OpenPosition(ctx context.Context, msg *types.MsgOpenPosition) (*types.MsgQueueResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	amount, err := parseDec("amount", msg.Amount)
	if err != nil {
		return nil, err
	}
	leverage, err := parseDec("leverage", msg.Leverage)
	if err != nil {
		return nil, err
	}
	direction, err := parseDirection(msg.Direction)
	if err != nil {
		return nil, err
	}
	maxGains, err := parseOptDec("max_gains", msg.MaxGains)
	if err != nil {
		return nil, err
	}
	stopLoss, err := parseOptDec("stop_loss_override", msg.StopLossOverride)
	if err != nil {
		return nil, err
	}
	takeProfit, err := parseOptDec("take_profit", msg.TakeProfit)
	if err != nil {
		return nil, err
	}
	slippage, err := parseSlippage(msg.SlippagePrice, msg.SlippageTolerance)
	if err != nil {
		return nil, err
	}
	return m.enqueue(sdkCtx, msg.Owner, types.DeferredExecItem{
		OpenPosition: &types.OpenPositionItem{
			Amount:           amount,
			Leverage:         leverage,
			Direction:        direction,
			MaxGains:         maxGains,
			StopLossOverride: stopLoss,
			TakeProfit:       takeProfit,
			SlippageAssert:   slippage,
		},
	})
}

func (m *msgServer) AddCollateral(ctx context.Context, msg *types.MsgAddCollateral) (*types.MsgQueueResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	amount, err := parseDec("amount", msg.Amount)
	if err != nil {
		return nil, err
	}
	item := types.DeferredExecItem{}
	if msg.Impact == "size" {
		slippage, err := parseSlippage(msg.SlippagePrice, msg.SlippageTolerance)
		if err != nil {
			return nil, err
		}
		item.UpdatePositionAddCollateralImpactSize = &types.UpdateCollateralSizeItem{
			Id: msg.Id, Amount: amount, SlippageAssert: slippage,
		}
	} else {
		item.UpdatePositionAddCollateralImpactLeverage = &types.UpdateCollateralItem{Id: msg.Id, Amount: amount}
	}
	return m.enqueue(sdkCtx, msg.Owner, item)
}

func (m *msgServer) RemoveCollateral(ctx context.Context, msg *types.MsgRemoveCollateral) (*types.MsgQueueResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	amount, err := parseDec("amount", msg.Amount)
	if err != nil {
		return nil, err
	}
	item := types.DeferredExecItem{}
	if msg.Impact == "size" {
		slippage, err := parseSlippage(msg.SlippagePrice, msg.SlippageTolerance)
		if err != nil {
			return nil, err
		}
		item.UpdatePositionRemoveCollateralImpactSize = &types.UpdateCollateralSizeItem{
			Id: msg.Id, Amount: amount, SlippageAssert: slippage,
		}
	} else {
		item.UpdatePositionRemoveCollateralImpactLeverage = &types.UpdateCollateralItem{Id: msg.Id, Amount: amount}
	}
	return m.enqueue(sdkCtx, msg.Owner, item)
}

func (m *msgServer) UpdateLeverage(ctx context.Context, msg *types.MsgUpdateLeverage) (*types.MsgQueueResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	leverage, err := parseDec("leverage", msg.Leverage)
	if err != nil {
		return nil, err
	}
	slippage, err := parseSlippage(msg.SlippagePrice, msg.SlippageTolerance)
	if err != nil {
		return nil, err
	}
	return m.enqueue(sdkCtx, msg.Owner, types.DeferredExecItem{
		UpdatePositionLeverage: &types.UpdateLeverageItem{
			Id:             msg.Id,
			Leverage:       leverage,
			SlippageAssert: slippage,
		},
	})
}

func (m *msgServer) UpdateMaxGains(ctx context.Context, msg *types.MsgUpdateMaxGains) (*types.MsgQueueResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	maxGains, err := parseDec("max_gains", msg.MaxGains)
	if err != nil {
		return nil, err
	}
	return m.enqueue(sdkCtx, msg.Owner, types.DeferredExecItem{
		UpdatePositionMaxGains: &types.UpdateMaxGainsItem{Id: msg.Id, MaxGains: maxGains},
	})
}

func (m *msgServer) UpdateTakeProfitPrice(ctx context.Context, msg *types.MsgUpdateTakeProfitPrice) (*types.MsgQueueResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	price, err := parseDec("price", msg.Price)
	if err != nil {
		return nil, err
	}
	return m.enqueue(sdkCtx, msg.Owner, types.DeferredExecItem{
		UpdatePositionTakeProfitPrice: &types.UpdateTakeProfitItem{Id: msg.Id, Price: price},
	})
}

func (m *msgServer) UpdateStopLossPrice(ctx context.Context, msg *types.MsgUpdateStopLossPrice) (*types.MsgQueueResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	stopLoss, err := parseOptDec("stop_loss", msg.StopLoss)
	if err != nil {
		return nil, err
	}
	return m.enqueue(sdkCtx, msg.Owner, types.DeferredExecItem{
		UpdatePositionStopLossPrice: &types.UpdateStopLossItem{Id: msg.Id, StopLoss: stopLoss},
	})
}

func (m *msgServer) SetTriggerOrder(ctx context.Context, msg *types.MsgSetTriggerOrder) (*types.MsgQueueResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	stopLoss, err := parseOptDec("stop_loss_override", msg.StopLossOverride)
	if err != nil {
		return nil, err
	}
	takeProfit, err := parseOptDec("take_profit", msg.TakeProfit)
	if err != nil {
		return nil, err
	}
	return m.enqueue(sdkCtx, msg.Owner, types.DeferredExecItem{
		SetTriggerOrder: &types.SetTriggerOrderItem{
			Id:               msg.Id,
			StopLossOverride: stopLoss,
			TakeProfit:       takeProfit,
		},
	})
}

func (m *msgServer) ClosePosition(ctx context.Context, msg *types.MsgClosePosition) (*types.MsgQueueResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	slippage, err := parseSlippage(msg.SlippagePrice, msg.SlippageTolerance)
	if err != nil {
		return nil, err
	}
	return m.enqueue(sdkCtx, msg.Owner, types.DeferredExecItem{
		ClosePosition: &types.ClosePositionItem{Id: msg.Id, SlippageAssert: slippage},
	})
}

func (m *msgServer) PlaceLimitOrder(ctx context.Context, msg *types.MsgPlaceLimitOrder) (*types.MsgQueueResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	trigger, err := parseDec("trigger_price", msg.TriggerPrice)
	if err != nil {
		return nil, err
	}
	amount, err := parseDec("amount", msg.Amount)
	if err != nil {
		return nil, err
	}
	leverage, err := parseDec("leverage", msg.Leverage)
	if err != nil {
		return nil, err
	}
	direction, err := parseDirection(msg.Direction)
	if err != nil {
		return nil, err
	}
	maxGains, err := parseOptDec("max_gains", msg.MaxGains)
	if err != nil {
		return nil, err
	}
	stopLoss, err := parseOptDec("stop_loss_override", msg.StopLossOverride)
	if err != nil {
		return nil, err
	}
	takeProfit, err := parseOptDec("take_profit", msg.TakeProfit)
	if err != nil {
		return nil, err
	}
	return m.enqueue(sdkCtx, msg.Owner, types.DeferredExecItem{
		PlaceLimitOrder: &types.PlaceLimitOrderItem{
			TriggerPrice:     trigger,
			Amount:           amount,
			Leverage:         leverage,
			Direction:        direction,
			MaxGains:         maxGains,
			StopLossOverride: stopLoss,
			TakeProfit:       takeProfit,
		},
	})
}

func (m *msgServer) CancelLimitOrder(ctx context.Context, msg *types.MsgCancelLimitOrder) (*types.MsgQueueResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	return m.enqueue(sdkCtx, msg.Owner, types.DeferredExecItem{
		CancelLimitOrder: &types.CancelLimitOrderItem{OrderId: msg.OrderId},
	})
}

func (m *msgServer) Crank(ctx context.Context, msg *types.MsgCrank) (*types.MsgCrankResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	work, err := m.Keeper.Crank(sdkCtx, msg.Cranker, msg.Execs, msg.Rewards)
	if err != nil {
		return nil, err
	}
	return &types.MsgCrankResponse{Processed: uint32(len(work)), Work: work}, nil
}

func (m *msgServer) ProvideCrankFunds(ctx context.Context, msg *types.MsgProvideCrankFunds) (*types.MsgProvideCrankFundsResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	amount, err := parseDec("amount", msg.Amount)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, types.ErrInvalidAmount
	}
	if err := m.Keeper.escrowFromUser(sdkCtx, msg.Provider, amount); err != nil {
		return nil, err
	}
	m.Keeper.addCrankRewards(sdkCtx, amount)
	return &types.MsgProvideCrankFundsResponse{}, nil
}

func (m *msgServer) SetPrice(ctx context.Context, msg *types.MsgSetPrice) (*types.MsgSetPriceResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	priceBase, err := parseDec("price_base", msg.PriceBase)
	if err != nil {
		return nil, err
	}
	priceUsd, err := parseDec("price_usd", msg.PriceUsd)
	if err != nil {
		return nil, err
	}
	ts := msg.Timestamp
	if ts == 0 {
		ts = types.NewTimestampFromTime(sdkCtx.BlockTime())
	}
	point := types.PricePoint{
		PriceBase: priceBase,
		PriceUsd:  priceUsd,
		Timestamp: ts,
	}
	if err := m.Keeper.AppendPricePoint(sdkCtx, point); err != nil {
		return nil, err
	}
	return &types.MsgSetPriceResponse{}, nil
}

func (m *msgServer) CloseAllPositions(ctx context.Context, msg *types.MsgCloseAllPositions) (*types.MsgCloseAllPositionsResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	if err := m.Keeper.TriggerCloseAll(sdkCtx, msg.Authority); err != nil {
		return nil, err
	}
	return &types.MsgCloseAllPositionsResponse{}, nil
}

func (m *msgServer) UpdateConfig(ctx context.Context, msg *types.MsgUpdateConfig) (*types.MsgUpdateConfigResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	if err := m.Keeper.UpdateConfig(sdkCtx, msg.Authority, msg.Config); err != nil {
		return nil, err
	}
	return &types.MsgUpdateConfigResponse{}, nil
}

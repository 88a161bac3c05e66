package keeper

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/openalpha/perp-market/x/liquidity/types"
)

var _ types.MsgServer = (*msgServer)(nil)

type msgServer struct {
	Keeper *Keeper
}

// NewMsgServerImpl returns an implementation of the MsgServer interface
func NewMsgServerImpl(keeper *Keeper) types.MsgServer {
	return &msgServer{Keeper: keeper}
}

// DepositLiquidity handles the MsgDepositLiquidity message
func (m *msgServer) DepositLiquidity(ctx context.Context, msg *types.MsgDepositLiquidity) (*types.MsgDepositLiquidityResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	amount, err := math.LegacyNewDecFromStr(msg.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	shares, err := m.Keeper.Deposit(sdkCtx, msg.Provider, amount)
	if err != nil {
		return nil, err
	}
	return &types.MsgDepositLiquidityResponse{Shares: shares.String()}, nil
}

// WithdrawLiquidity handles the MsgWithdrawLiquidity message
func (m *msgServer) WithdrawLiquidity(ctx context.Context, msg *types.MsgWithdrawLiquidity) (*types.MsgWithdrawLiquidityResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	shares := math.LegacyZeroDec()
	if msg.Shares != "" {
		var err error
		shares, err = math.LegacyNewDecFromStr(msg.Shares)
		if err != nil {
			return nil, fmt.Errorf("invalid shares: %w", err)
		}
	}
	amount, err := m.Keeper.Withdraw(sdkCtx, msg.Provider, shares)
	if err != nil {
		return nil, err
	}
	return &types.MsgWithdrawLiquidityResponse{Amount: amount.String()}, nil
}

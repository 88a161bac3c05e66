package types

import (
	"context"

	cdctypes "github.com/cosmos/cosmos-sdk/codec/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// RegisterInterfaces registers the module's message types
func RegisterInterfaces(registry cdctypes.InterfaceRegistry) {
	registry.RegisterImplementations((*sdk.Msg)(nil),
		&MsgDepositLiquidity{},
		&MsgWithdrawLiquidity{},
	)
}

// MsgServer defines the liquidity module's message service
type MsgServer interface {
	DepositLiquidity(context.Context, *MsgDepositLiquidity) (*MsgDepositLiquidityResponse, error)
	WithdrawLiquidity(context.Context, *MsgWithdrawLiquidity) (*MsgWithdrawLiquidityResponse, error)
}

// RegisterMsgServer registers the MsgServer to the configurator's MsgServer
func RegisterMsgServer(s interface{}, srv MsgServer) {
	// Placeholder - in production this would use gRPC registration.
	// Messages are handled through the module's handler.
}

// MsgDepositLiquidity adds collateral to the pool in exchange for shares.
type MsgDepositLiquidity struct {
	Provider string `json:"provider"`
	Amount   string `json:"amount"`
}

type MsgDepositLiquidityResponse struct {
	Shares string `json:"shares"`
}

// MsgWithdrawLiquidity burns shares for unlocked collateral. Empty Shares
// withdraws the provider's full balance.
type MsgWithdrawLiquidity struct {
	Provider string `json:"provider"`
	Shares   string `json:"shares,omitempty"`
}

type MsgWithdrawLiquidityResponse struct {
	Amount string `json:"amount"`
}

// Proto interface implementations

func (msg *MsgDepositLiquidity) Reset()         { *msg = MsgDepositLiquidity{} }
func (msg *MsgDepositLiquidity) String() string { return msg.Provider }
func (msg *MsgDepositLiquidity) ProtoMessage()  {}
func (msg *MsgDepositLiquidity) XXX_MessageName() string {
	return "perpmarket.liquidity.v1.MsgDepositLiquidity"
}

func (msg *MsgWithdrawLiquidity) Reset()         { *msg = MsgWithdrawLiquidity{} }
func (msg *MsgWithdrawLiquidity) String() string { return msg.Provider }
func (msg *MsgWithdrawLiquidity) ProtoMessage()  {}
func (msg *MsgWithdrawLiquidity) XXX_MessageName() string {
	return "perpmarket.liquidity.v1.MsgWithdrawLiquidity"
}

// ValidateBasic implementations

func (msg *MsgDepositLiquidity) ValidateBasic() error {
	if msg.Provider == "" {
		return ErrUnauthorized.Wrap("provider required")
	}
	if msg.Amount == "" {
		return ErrInvalidAmount
	}
	return nil
}

func (msg *MsgWithdrawLiquidity) ValidateBasic() error {
	if msg.Provider == "" {
		return ErrUnauthorized.Wrap("provider required")
	}
	return nil
}

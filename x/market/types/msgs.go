package types

import (
	"context"

	cdctypes "github.com/cosmos/cosmos-sdk/codec/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// RegisterInterfaces registers the module's message types
func RegisterInterfaces(registry cdctypes.InterfaceRegistry) {
	registry.RegisterImplementations((*sdk.Msg)(nil),
		&MsgOpenPosition{},
		&MsgAddCollateral{},
		&MsgRemoveCollateral{},
		&MsgUpdateLeverage{},
		&MsgUpdateMaxGains{},
		&MsgUpdateTakeProfitPrice{},
		&MsgUpdateStopLossPrice{},
		&MsgSetTriggerOrder{},
		&MsgClosePosition{},
		&MsgPlaceLimitOrder{},
		&MsgCancelLimitOrder{},
		&MsgCrank{},
		&MsgProvideCrankFunds{},
		&MsgSetPrice{},
		&MsgCloseAllPositions{},
		&MsgUpdateConfig{},
	)
}

// MsgServer defines the market module's message service. Every
// position/order mutation enqueues a deferred execution item; only MsgCrank
// and MsgSetPrice act immediately.
type MsgServer interface {
	OpenPosition(context.Context, *MsgOpenPosition) (*MsgQueueResponse, error)
	AddCollateral(context.Context, *MsgAddCollateral) (*MsgQueueResponse, error)
	RemoveCollateral(context.Context, *MsgRemoveCollateral) (*MsgQueueResponse, error)
	UpdateLeverage(context.Context, *MsgUpdateLeverage) (*MsgQueueResponse, error)
	UpdateMaxGains(context.Context, *MsgUpdateMaxGains) (*MsgQueueResponse, error)
	UpdateTakeProfitPrice(context.Context, *MsgUpdateTakeProfitPrice) (*MsgQueueResponse, error)
	UpdateStopLossPrice(context.Context, *MsgUpdateStopLossPrice) (*MsgQueueResponse, error)
	SetTriggerOrder(context.Context, *MsgSetTriggerOrder) (*MsgQueueResponse, error)
	ClosePosition(context.Context, *MsgClosePosition) (*MsgQueueResponse, error)
	PlaceLimitOrder(context.Context, *MsgPlaceLimitOrder) (*MsgQueueResponse, error)
	CancelLimitOrder(context.Context, *MsgCancelLimitOrder) (*MsgQueueResponse, error)
	Crank(context.Context, *MsgCrank) (*MsgCrankResponse, error)
	ProvideCrankFunds(context.Context, *MsgProvideCrankFunds) (*MsgProvideCrankFundsResponse, error)
	SetPrice(context.Context, *MsgSetPrice) (*MsgSetPriceResponse, error)
	CloseAllPositions(context.Context, *MsgCloseAllPositions) (*MsgCloseAllPositionsResponse, error)
	UpdateConfig(context.Context, *MsgUpdateConfig) (*MsgUpdateConfigResponse, error)
}

// RegisterMsgServer registers the MsgServer to the configurator's MsgServer
func RegisterMsgServer(s interface{}, srv MsgServer) {
	// Placeholder - in production this would use gRPC registration.
	// Messages are handled through the module's handler.
}

// MsgQueueResponse is returned by every message that enqueues a deferred
// execution item.
type MsgQueueResponse struct {
	DeferredExecId DeferredExecId `json:"deferred_exec_id"`
	// Crank fee charged at enqueue time, including congestion surcharge,
	// in collateral.
	CrankFee string `json:"crank_fee"`
}

// MsgOpenPosition queues opening a new position. Amount is attached as
// escrowed collateral.
type MsgOpenPosition struct {
	Owner             string `json:"owner"`
	Amount            string `json:"amount"`
	Leverage          string `json:"leverage"`
	Direction         string `json:"direction"`
	MaxGains          string `json:"max_gains,omitempty"`
	StopLossOverride  string `json:"stop_loss_override,omitempty"`
	TakeProfit        string `json:"take_profit,omitempty"`
	SlippagePrice     string `json:"slippage_price,omitempty"`
	SlippageTolerance string `json:"slippage_tolerance,omitempty"`
}

// MsgAddCollateral queues adding collateral to a position. Impact is
// "leverage" (leverage decreases) or "size" (notional size increases).
type MsgAddCollateral struct {
	Owner             string     `json:"owner"`
	Id                PositionId `json:"id"`
	Amount            string     `json:"amount"`
	Impact            string     `json:"impact"`
	SlippagePrice     string     `json:"slippage_price,omitempty"`
	SlippageTolerance string     `json:"slippage_tolerance,omitempty"`
}

// MsgRemoveCollateral queues removing collateral from a position.
type MsgRemoveCollateral struct {
	Owner             string     `json:"owner"`
	Id                PositionId `json:"id"`
	Amount            string     `json:"amount"`
	Impact            string     `json:"impact"`
	SlippagePrice     string     `json:"slippage_price,omitempty"`
	SlippageTolerance string     `json:"slippage_tolerance,omitempty"`
}

// MsgUpdateLeverage queues a leverage change.
type MsgUpdateLeverage struct {
	Owner             string     `json:"owner"`
	Id                PositionId `json:"id"`
	Leverage          string     `json:"leverage"`
	SlippagePrice     string     `json:"slippage_price,omitempty"`
	SlippageTolerance string     `json:"slippage_tolerance,omitempty"`
}

// MsgUpdateMaxGains queues a max gains change.
type MsgUpdateMaxGains struct {
	Owner    string     `json:"owner"`
	Id       PositionId `json:"id"`
	MaxGains string     `json:"max_gains"`
}

// MsgUpdateTakeProfitPrice queues a take profit price change.
type MsgUpdateTakeProfitPrice struct {
	Owner string     `json:"owner"`
	Id    PositionId `json:"id"`
	Price string     `json:"price"`
}

// MsgUpdateStopLossPrice queues a stop loss price change. Empty StopLoss
// removes the override.
type MsgUpdateStopLossPrice struct {
	Owner    string     `json:"owner"`
	Id       PositionId `json:"id"`
	StopLoss string     `json:"stop_loss,omitempty"`
}

// MsgSetTriggerOrder queues setting stop loss / take profit overrides.
type MsgSetTriggerOrder struct {
	Owner            string     `json:"owner"`
	Id               PositionId `json:"id"`
	StopLossOverride string     `json:"stop_loss_override,omitempty"`
	TakeProfit       string     `json:"take_profit,omitempty"`
}

// MsgClosePosition queues closing a position.
type MsgClosePosition struct {
	Owner             string     `json:"owner"`
	Id                PositionId `json:"id"`
	SlippagePrice     string     `json:"slippage_price,omitempty"`
	SlippageTolerance string     `json:"slippage_tolerance,omitempty"`
}

// MsgPlaceLimitOrder queues placing a limit order.
type MsgPlaceLimitOrder struct {
	Owner            string `json:"owner"`
	TriggerPrice     string `json:"trigger_price"`
	Amount           string `json:"amount"`
	Leverage         string `json:"leverage"`
	Direction        string `json:"direction"`
	MaxGains         string `json:"max_gains,omitempty"`
	StopLossOverride string `json:"stop_loss_override,omitempty"`
	TakeProfit       string `json:"take_profit,omitempty"`
}

// MsgCancelLimitOrder queues cancelling a limit order.
type MsgCancelLimitOrder struct {
	Owner   string  `json:"owner"`
	OrderId OrderId `json:"order_id"`
}

// MsgCrank asks the market to process pending work. Execs of zero uses the
// configured default. Rewards, when set, receives the crank rewards instead
// of the cranker.
type MsgCrank struct {
	Cranker string `json:"cranker"`
	Execs   uint32 `json:"execs,omitempty"`
	Rewards string `json:"rewards,omitempty"`
}

// MsgCrankResponse reports what the crank batch accomplished.
type MsgCrankResponse struct {
	Processed uint32 `json:"processed"`
	// Work kinds processed, in order.
	Work []string `json:"work,omitempty"`
}

// MsgProvideCrankFunds donates collateral to the crank reward pool. The
// sender receives no benefit; intended for incentivizing cranking.
type MsgProvideCrankFunds struct {
	Provider string `json:"provider"`
	Amount   string `json:"amount"`
}

type MsgProvideCrankFundsResponse struct{}

// MsgSetPrice appends a price point from the oracle feed composer.
type MsgSetPrice struct {
	Sender    string `json:"sender"`
	PriceBase string `json:"price_base"`
	PriceUsd  string `json:"price_usd"`
	// Publish time in nanoseconds; zero means block time.
	Timestamp Timestamp `json:"timestamp,omitempty"`
}

type MsgSetPriceResponse struct{}

// MsgCloseAllPositions triggers market wind-down. Gated on the authority.
type MsgCloseAllPositions struct {
	Authority string `json:"authority"`
}

type MsgCloseAllPositionsResponse struct{}

// MsgUpdateConfig replaces the market configuration. Gated on the authority.
type MsgUpdateConfig struct {
	Authority string `json:"authority"`
	Config    Config `json:"config"`
}

type MsgUpdateConfigResponse struct{}

// Proto interface implementations

func (msg *MsgOpenPosition) Reset()         { *msg = MsgOpenPosition{} }
func (msg *MsgOpenPosition) String() string { return msg.Owner }
func (msg *MsgOpenPosition) ProtoMessage()  {}
func (msg *MsgOpenPosition) XXX_MessageName() string {
	return "perpmarket.market.v1.MsgOpenPosition"
}

func (msg *MsgAddCollateral) Reset()         { *msg = MsgAddCollateral{} }
func (msg *MsgAddCollateral) String() string { return msg.Owner }
func (msg *MsgAddCollateral) ProtoMessage()  {}
func (msg *MsgAddCollateral) XXX_MessageName() string {
	return "perpmarket.market.v1.MsgAddCollateral"
}

func (msg *MsgRemoveCollateral) Reset()         { *msg = MsgRemoveCollateral{} }
func (msg *MsgRemoveCollateral) String() string { return msg.Owner }
func (msg *MsgRemoveCollateral) ProtoMessage()  {}
func (msg *MsgRemoveCollateral) XXX_MessageName() string {
	return "perpmarket.market.v1.MsgRemoveCollateral"
}

func (msg *MsgUpdateLeverage) Reset()         { *msg = MsgUpdateLeverage{} }
func (msg *MsgUpdateLeverage) String() string { return msg.Owner }
func (msg *MsgUpdateLeverage) ProtoMessage()  {}
func (msg *MsgUpdateLeverage) XXX_MessageName() string {
	return "perpmarket.market.v1.MsgUpdateLeverage"
}

func (msg *MsgUpdateMaxGains) Reset()         { *msg = MsgUpdateMaxGains{} }
func (msg *MsgUpdateMaxGains) String() string { return msg.Owner }
func (msg *MsgUpdateMaxGains) ProtoMessage()  {}
func (msg *MsgUpdateMaxGains) XXX_MessageName() string {
	return "perpmarket.market.v1.MsgUpdateMaxGains"
}

func (msg *MsgUpdateTakeProfitPrice) Reset()         { *msg = MsgUpdateTakeProfitPrice{} }
func (msg *MsgUpdateTakeProfitPrice) String() string { return msg.Owner }
func (msg *MsgUpdateTakeProfitPrice) ProtoMessage()  {}
func (msg *MsgUpdateTakeProfitPrice) XXX_MessageName() string {
	return "perpmarket.market.v1.MsgUpdateTakeProfitPrice"
}

func (msg *MsgUpdateStopLossPrice) Reset()         { *msg = MsgUpdateStopLossPrice{} }
func (msg *MsgUpdateStopLossPrice) String() string { return msg.Owner }
func (msg *MsgUpdateStopLossPrice) ProtoMessage()  {}
func (msg *MsgUpdateStopLossPrice) XXX_MessageName() string {
	return "perpmarket.market.v1.MsgUpdateStopLossPrice"
}

func (msg *MsgSetTriggerOrder) Reset()         { *msg = MsgSetTriggerOrder{} }
func (msg *MsgSetTriggerOrder) String() string { return msg.Owner }
func (msg *MsgSetTriggerOrder) ProtoMessage()  {}
func (msg *MsgSetTriggerOrder) XXX_MessageName() string {
	return "perpmarket.market.v1.MsgSetTriggerOrder"
}

func (msg *MsgClosePosition) Reset()         { *msg = MsgClosePosition{} }
func (msg *MsgClosePosition) String() string { return msg.Owner }
func (msg *MsgClosePosition) ProtoMessage()  {}
func (msg *MsgClosePosition) XXX_MessageName() string {
	return "perpmarket.market.v1.MsgClosePosition"
}

func (msg *MsgPlaceLimitOrder) Reset()         { *msg = MsgPlaceLimitOrder{} }
func (msg *MsgPlaceLimitOrder) String() string { return msg.Owner }
func (msg *MsgPlaceLimitOrder) ProtoMessage()  {}
func (msg *MsgPlaceLimitOrder) XXX_MessageName() string {
	return "perpmarket.market.v1.MsgPlaceLimitOrder"
}

func (msg *MsgCancelLimitOrder) Reset()         { *msg = MsgCancelLimitOrder{} }
func (msg *MsgCancelLimitOrder) String() string { return msg.Owner }
func (msg *MsgCancelLimitOrder) ProtoMessage()  {}
func (msg *MsgCancelLimitOrder) XXX_MessageName() string {
	return "perpmarket.market.v1.MsgCancelLimitOrder"
}

func (msg *MsgCrank) Reset()         { *msg = MsgCrank{} }
func (msg *MsgCrank) String() string { return msg.Cranker }
func (msg *MsgCrank) ProtoMessage()  {}
func (msg *MsgCrank) XXX_MessageName() string {
	return "perpmarket.market.v1.MsgCrank"
}

func (msg *MsgProvideCrankFunds) Reset()         { *msg = MsgProvideCrankFunds{} }
func (msg *MsgProvideCrankFunds) String() string { return msg.Provider }
func (msg *MsgProvideCrankFunds) ProtoMessage()  {}
func (msg *MsgProvideCrankFunds) XXX_MessageName() string {
	return "perpmarket.market.v1.MsgProvideCrankFunds"
}

func (msg *MsgSetPrice) Reset()         { *msg = MsgSetPrice{} }
func (msg *MsgSetPrice) String() string { return msg.Sender }
func (msg *MsgSetPrice) ProtoMessage()  {}
func (msg *MsgSetPrice) XXX_MessageName() string {
	return "perpmarket.market.v1.MsgSetPrice"
}

func (msg *MsgCloseAllPositions) Reset()         { *msg = MsgCloseAllPositions{} }
func (msg *MsgCloseAllPositions) String() string { return msg.Authority }
func (msg *MsgCloseAllPositions) ProtoMessage()  {}
func (msg *MsgCloseAllPositions) XXX_MessageName() string {
	return "perpmarket.market.v1.MsgCloseAllPositions"
}

func (msg *MsgUpdateConfig) Reset()         { *msg = MsgUpdateConfig{} }
func (msg *MsgUpdateConfig) String() string { return msg.Authority }
func (msg *MsgUpdateConfig) ProtoMessage()  {}
func (msg *MsgUpdateConfig) XXX_MessageName() string {
	return "perpmarket.market.v1.MsgUpdateConfig"
}

// ValidateBasic implementations

func (msg *MsgOpenPosition) ValidateBasic() error {
	if msg.Owner == "" {
		return ErrUnauthorized.Wrap("owner required")
	}
	if msg.Amount == "" {
		return ErrInvalidAmount
	}
	if msg.Direction != "long" && msg.Direction != "short" {
		return ErrInvalidDirection
	}
	return nil
}

func (msg *MsgAddCollateral) ValidateBasic() error {
	if msg.Owner == "" {
		return ErrUnauthorized.Wrap("owner required")
	}
	if msg.Impact != "leverage" && msg.Impact != "size" {
		return ErrInvalidAmount.Wrap("impact must be leverage or size")
	}
	return nil
}

func (msg *MsgRemoveCollateral) ValidateBasic() error {
	if msg.Owner == "" {
		return ErrUnauthorized.Wrap("owner required")
	}
	if msg.Impact != "leverage" && msg.Impact != "size" {
		return ErrInvalidAmount.Wrap("impact must be leverage or size")
	}
	return nil
}

func (msg *MsgUpdateLeverage) ValidateBasic() error {
	if msg.Owner == "" {
		return ErrUnauthorized.Wrap("owner required")
	}
	if msg.Leverage == "" {
		return ErrInvalidLeverage
	}
	return nil
}

func (msg *MsgUpdateMaxGains) ValidateBasic() error {
	if msg.Owner == "" {
		return ErrUnauthorized.Wrap("owner required")
	}
	return nil
}

func (msg *MsgUpdateTakeProfitPrice) ValidateBasic() error {
	if msg.Owner == "" {
		return ErrUnauthorized.Wrap("owner required")
	}
	return nil
}

func (msg *MsgUpdateStopLossPrice) ValidateBasic() error {
	if msg.Owner == "" {
		return ErrUnauthorized.Wrap("owner required")
	}
	return nil
}

func (msg *MsgSetTriggerOrder) ValidateBasic() error {
	if msg.Owner == "" {
		return ErrUnauthorized.Wrap("owner required")
	}
	return nil
}

func (msg *MsgClosePosition) ValidateBasic() error {
	if msg.Owner == "" {
		return ErrUnauthorized.Wrap("owner required")
	}
	return nil
}

func (msg *MsgPlaceLimitOrder) ValidateBasic() error {
	if msg.Owner == "" {
		return ErrUnauthorized.Wrap("owner required")
	}
	if msg.TriggerPrice == "" {
		return ErrInvalidTriggerPrice
	}
	if msg.Direction != "long" && msg.Direction != "short" {
		return ErrInvalidDirection
	}
	return nil
}

func (msg *MsgCancelLimitOrder) ValidateBasic() error {
	if msg.Owner == "" {
		return ErrUnauthorized.Wrap("owner required")
	}
	return nil
}

func (msg *MsgCrank) ValidateBasic() error {
	if msg.Cranker == "" {
		return ErrUnauthorized.Wrap("cranker required")
	}
	return nil
}

func (msg *MsgProvideCrankFunds) ValidateBasic() error {
	if msg.Provider == "" {
		return ErrUnauthorized.Wrap("provider required")
	}
	if msg.Amount == "" {
		return ErrInvalidAmount
	}
	return nil
}

func (msg *MsgSetPrice) ValidateBasic() error {
	if msg.Sender == "" {
		return ErrUnauthorized.Wrap("sender required")
	}
	if msg.PriceBase == "" || msg.PriceUsd == "" {
		return ErrInvalidPrice
	}
	return nil
}

func (msg *MsgCloseAllPositions) ValidateBasic() error {
	if msg.Authority == "" {
		return ErrUnauthorized.Wrap("authority required")
	}
	return nil
}

func (msg *MsgUpdateConfig) ValidateBasic() error {
	if msg.Authority == "" {
		return ErrUnauthorized.Wrap("authority required")
	}
	return msg.Config.Validate()
}

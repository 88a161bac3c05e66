package market

import (
	"encoding/json"

	"cosmossdk.io/core/appmodule"
	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/codec"
	cdctypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/cosmos-sdk/types/module"
	"github.com/grpc-ecosystem/grpc-gateway/runtime"

	"github.com/openalpha/perp-market/x/market/keeper"
	"github.com/openalpha/perp-market/x/market/types"
)

const (
	ModuleName = "market"
)

var (
	_ module.AppModuleBasic = AppModuleBasic{}
	_ appmodule.AppModule   = AppModule{}
)

// AppModuleBasic defines the basic application module for the market
type AppModuleBasic struct{}

// Name returns the module's name
func (AppModuleBasic) Name() string {
	return ModuleName
}

// RegisterLegacyAminoCodec registers the module's types on the given LegacyAmino codec
func (AppModuleBasic) RegisterLegacyAminoCodec(cdc *codec.LegacyAmino) {
	cdc.RegisterConcrete(&types.MsgOpenPosition{}, "market/MsgOpenPosition", nil)
	cdc.RegisterConcrete(&types.MsgAddCollateral{}, "market/MsgAddCollateral", nil)
	cdc.RegisterConcrete(&types.MsgRemoveCollateral{}, "market/MsgRemoveCollateral", nil)
	cdc.RegisterConcrete(&types.MsgUpdateLeverage{}, "market/MsgUpdateLeverage", nil)
	cdc.RegisterConcrete(&types.MsgUpdateMaxGains{}, "market/MsgUpdateMaxGains", nil)
	cdc.RegisterConcrete(&types.MsgUpdateTakeProfitPrice{}, "market/MsgUpdateTakeProfitPrice", nil)
	cdc.RegisterConcrete(&types.MsgUpdateStopLossPrice{}, "market/MsgUpdateStopLossPrice", nil)
	cdc.RegisterConcrete(&types.MsgSetTriggerOrder{}, "market/MsgSetTriggerOrder", nil)
	cdc.RegisterConcrete(&types.MsgClosePosition{}, "market/MsgClosePosition", nil)
	cdc.RegisterConcrete(&types.MsgPlaceLimitOrder{}, "market/MsgPlaceLimitOrder", nil)
	cdc.RegisterConcrete(&types.MsgCancelLimitOrder{}, "market/MsgCancelLimitOrder", nil)
	cdc.RegisterConcrete(&types.MsgCrank{}, "market/MsgCrank", nil)
	cdc.RegisterConcrete(&types.MsgProvideCrankFunds{}, "market/MsgProvideCrankFunds", nil)
	cdc.RegisterConcrete(&types.MsgSetPrice{}, "market/MsgSetPrice", nil)
	cdc.RegisterConcrete(&types.MsgCloseAllPositions{}, "market/MsgCloseAllPositions", nil)
	cdc.RegisterConcrete(&types.MsgUpdateConfig{}, "market/MsgUpdateConfig", nil)
}

// RegisterInterfaces registers the module's interface types
func (AppModuleBasic) RegisterInterfaces(registry cdctypes.InterfaceRegistry) {
	types.RegisterInterfaces(registry)
}

// DefaultGenesis returns default genesis state as raw bytes
func (AppModuleBasic) DefaultGenesis(cdc codec.JSONCodec) json.RawMessage {
	return nil
}

// ValidateGenesis performs genesis state validation
func (AppModuleBasic) ValidateGenesis(cdc codec.JSONCodec, config client.TxEncodingConfig, bz json.RawMessage) error {
	return nil
}

// RegisterGRPCGatewayRoutes registers the gRPC Gateway routes for the module
func (AppModuleBasic) RegisterGRPCGatewayRoutes(clientCtx client.Context, mux *runtime.ServeMux) {
	// No-op for now
}

// AppModule implements an application module for the market module
type AppModule struct {
	AppModuleBasic
	keeper *keeper.Keeper
}

// NewAppModule creates a new AppModule object
func NewAppModule(keeper *keeper.Keeper) AppModule {
	return AppModule{
		AppModuleBasic: AppModuleBasic{},
		keeper:         keeper,
	}
}

// Name returns the module's name
func (am AppModule) Name() string {
	return ModuleName
}

// RegisterServices registers module services
func (am AppModule) RegisterServices(cfg module.Configurator) {
	types.RegisterMsgServer(cfg.MsgServer(), keeper.NewMsgServerImpl(am.keeper))
}

// IsOnePerModuleType implements the depinject.OnePerModuleType interface
func (am AppModule) IsOnePerModuleType() {}

// IsAppModule implements the appmodule.AppModule interface
func (am AppModule) IsAppModule() {}

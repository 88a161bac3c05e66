package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/flags"
	"github.com/cosmos/cosmos-sdk/client/tx"

	"github.com/openalpha/perp-market/x/market/types"
)

const (
	flagMaxGains          = "max-gains"
	flagStopLoss          = "stop-loss"
	flagTakeProfit        = "take-profit"
	flagSlippagePrice     = "slippage-price"
	flagSlippageTolerance = "slippage-tolerance"
	flagImpact            = "impact"
	flagExecs             = "execs"
	flagRewards           = "rewards"
)

// GetTxCmd returns the transaction commands for the market module
func GetTxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                        "market",
		Short:                      "Market module transaction commands",
		DisableFlagParsing:         true,
		SuggestionsMinimumDistance: 2,
		RunE:                       client.ValidateCmd,
	}

	cmd.AddCommand(
		CmdOpenPosition(),
		CmdClosePosition(),
		CmdAddCollateral(),
		CmdRemoveCollateral(),
		CmdUpdateLeverage(),
		CmdSetTriggerOrder(),
		CmdPlaceLimitOrder(),
		CmdCancelLimitOrder(),
		CmdCrank(),
		CmdProvideCrankFunds(),
		CmdSetPrice(),
	)

	return cmd
}

func addSlippageFlags(cmd *cobra.Command) {
	cmd.Flags().String(flagSlippagePrice, "", "expected execution price for the slippage check")
	cmd.Flags().String(flagSlippageTolerance, "", "relative tolerance around the expected price")
}

// CmdOpenPosition returns the command to queue opening a position
func CmdOpenPosition() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open-position [amount] [leverage] [direction]",
		Short: "Queue opening a leveraged position (direction: long or short)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}

			maxGains, _ := cmd.Flags().GetString(flagMaxGains)
			stopLoss, _ := cmd.Flags().GetString(flagStopLoss)
			takeProfit, _ := cmd.Flags().GetString(flagTakeProfit)
			slipPrice, _ := cmd.Flags().GetString(flagSlippagePrice)
			slipTol, _ := cmd.Flags().GetString(flagSlippageTolerance)

			msg := &types.MsgOpenPosition{
				Owner:             clientCtx.GetFromAddress().String(),
				Amount:            args[0],
				Leverage:          args[1],
				Direction:         args[2],
				MaxGains:          maxGains,
				StopLossOverride:  stopLoss,
				TakeProfit:        takeProfit,
				SlippagePrice:     slipPrice,
				SlippageTolerance: slipTol,
			}

			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	cmd.Flags().String(flagMaxGains, "", "max gains ratio, sizing the locked counter collateral")
	cmd.Flags().String(flagStopLoss, "", "stop loss trigger price")
	cmd.Flags().String(flagTakeProfit, "", "take profit trigger price")
	addSlippageFlags(cmd)
	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdClosePosition returns the command to queue closing a position
func CmdClosePosition() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close-position [position-id]",
		Short: "Queue closing a position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}

			id, err := parsePositionId(args[0])
			if err != nil {
				return err
			}
			slipPrice, _ := cmd.Flags().GetString(flagSlippagePrice)
			slipTol, _ := cmd.Flags().GetString(flagSlippageTolerance)

			msg := &types.MsgClosePosition{
				Owner:             clientCtx.GetFromAddress().String(),
				Id:                id,
				SlippagePrice:     slipPrice,
				SlippageTolerance: slipTol,
			}

			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	addSlippageFlags(cmd)
	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdAddCollateral returns the command to queue adding collateral
func CmdAddCollateral() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-collateral [position-id] [amount]",
		Short: "Queue adding collateral to a position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}

			id, err := parsePositionId(args[0])
			if err != nil {
				return err
			}
			impact, _ := cmd.Flags().GetString(flagImpact)
			slipPrice, _ := cmd.Flags().GetString(flagSlippagePrice)
			slipTol, _ := cmd.Flags().GetString(flagSlippageTolerance)

			msg := &types.MsgAddCollateral{
				Owner:             clientCtx.GetFromAddress().String(),
				Id:                id,
				Amount:            args[1],
				Impact:            impact,
				SlippagePrice:     slipPrice,
				SlippageTolerance: slipTol,
			}

			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	cmd.Flags().String(flagImpact, "leverage", "what the extra collateral changes: leverage or size")
	addSlippageFlags(cmd)
	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdRemoveCollateral returns the command to queue removing collateral
func CmdRemoveCollateral() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove-collateral [position-id] [amount]",
		Short: "Queue removing collateral from a position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}

			id, err := parsePositionId(args[0])
			if err != nil {
				return err
			}
			impact, _ := cmd.Flags().GetString(flagImpact)
			slipPrice, _ := cmd.Flags().GetString(flagSlippagePrice)
			slipTol, _ := cmd.Flags().GetString(flagSlippageTolerance)

			msg := &types.MsgRemoveCollateral{
				Owner:             clientCtx.GetFromAddress().String(),
				Id:                id,
				Amount:            args[1],
				Impact:            impact,
				SlippagePrice:     slipPrice,
				SlippageTolerance: slipTol,
			}

			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	cmd.Flags().String(flagImpact, "leverage", "what the removed collateral changes: leverage or size")
	addSlippageFlags(cmd)
	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdUpdateLeverage returns the command to queue a leverage change
func CmdUpdateLeverage() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update-leverage [position-id] [leverage]",
		Short: "Queue changing a position's leverage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}

			id, err := parsePositionId(args[0])
			if err != nil {
				return err
			}
			slipPrice, _ := cmd.Flags().GetString(flagSlippagePrice)
			slipTol, _ := cmd.Flags().GetString(flagSlippageTolerance)

			msg := &types.MsgUpdateLeverage{
				Owner:             clientCtx.GetFromAddress().String(),
				Id:                id,
				Leverage:          args[1],
				SlippagePrice:     slipPrice,
				SlippageTolerance: slipTol,
			}

			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	addSlippageFlags(cmd)
	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdSetTriggerOrder returns the command to queue stop loss / take profit updates
func CmdSetTriggerOrder() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-trigger-order [position-id]",
		Short: "Queue setting stop loss and take profit triggers on a position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}

			id, err := parsePositionId(args[0])
			if err != nil {
				return err
			}
			stopLoss, _ := cmd.Flags().GetString(flagStopLoss)
			takeProfit, _ := cmd.Flags().GetString(flagTakeProfit)

			msg := &types.MsgSetTriggerOrder{
				Owner:            clientCtx.GetFromAddress().String(),
				Id:               id,
				StopLossOverride: stopLoss,
				TakeProfit:       takeProfit,
			}

			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	cmd.Flags().String(flagStopLoss, "", "stop loss trigger price, empty removes")
	cmd.Flags().String(flagTakeProfit, "", "take profit trigger price")
	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdPlaceLimitOrder returns the command to queue placing a limit order
func CmdPlaceLimitOrder() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "place-limit-order [trigger-price] [amount] [leverage] [direction]",
		Short: "Queue placing a limit order",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}

			maxGains, _ := cmd.Flags().GetString(flagMaxGains)
			stopLoss, _ := cmd.Flags().GetString(flagStopLoss)
			takeProfit, _ := cmd.Flags().GetString(flagTakeProfit)

			msg := &types.MsgPlaceLimitOrder{
				Owner:            clientCtx.GetFromAddress().String(),
				TriggerPrice:     args[0],
				Amount:           args[1],
				Leverage:         args[2],
				Direction:        args[3],
				MaxGains:         maxGains,
				StopLossOverride: stopLoss,
				TakeProfit:       takeProfit,
			}

			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	cmd.Flags().String(flagMaxGains, "", "max gains ratio, sizing the locked counter collateral")
	cmd.Flags().String(flagStopLoss, "", "stop loss trigger price")
	cmd.Flags().String(flagTakeProfit, "", "take profit trigger price")
	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdCancelLimitOrder returns the command to queue cancelling a limit order
func CmdCancelLimitOrder() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel-limit-order [order-id]",
		Short: "Queue cancelling a limit order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}

			raw, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return err
			}

			msg := &types.MsgCancelLimitOrder{
				Owner:   clientCtx.GetFromAddress().String(),
				OrderId: types.OrderId(raw),
			}

			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdCrank returns the command to process pending crank work
func CmdCrank() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crank",
		Short: "Process pending market work and collect crank rewards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}

			execs, _ := cmd.Flags().GetUint32(flagExecs)
			rewards, _ := cmd.Flags().GetString(flagRewards)

			msg := &types.MsgCrank{
				Cranker: clientCtx.GetFromAddress().String(),
				Execs:   execs,
				Rewards: rewards,
			}

			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	cmd.Flags().Uint32(flagExecs, 0, "number of work items to process, 0 for the configured default")
	cmd.Flags().String(flagRewards, "", "address receiving the crank rewards instead of the sender")
	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdProvideCrankFunds returns the command to donate to the crank reward pool
func CmdProvideCrankFunds() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provide-crank-funds [amount]",
		Short: "Donate collateral to the crank reward pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}

			msg := &types.MsgProvideCrankFunds{
				Provider: clientCtx.GetFromAddress().String(),
				Amount:   args[0],
			}

			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdSetPrice returns the command to append an oracle price point
func CmdSetPrice() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-price [price-base] [price-usd]",
		Short: "Append an oracle price point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}

			msg := &types.MsgSetPrice{
				Sender:    clientCtx.GetFromAddress().String(),
				PriceBase: args[0],
				PriceUsd:  args[1],
			}

			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

func parsePositionId(s string) (types.PositionId, error) {
	raw, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return types.PositionId(raw), nil
}

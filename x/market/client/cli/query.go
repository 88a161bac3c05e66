package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/flags"
)

// GetQueryCmd returns the cli query commands for the market module
func GetQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                        "market",
		Short:                      "Querying commands for the market module",
		DisableFlagParsing:         true,
		SuggestionsMinimumDistance: 2,
		RunE:                       client.ValidateCmd,
	}

	cmd.AddCommand(
		CmdQueryStatus(),
		CmdQueryDeferredExec(),
		CmdQueryDeferredExecs(),
		CmdQueryPrices(),
	)

	return cmd
}

// CmdQueryStatus returns the command to query the overall market status
func CmdQueryStatus() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query the market status: crank progress, queue depth, latest price",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Status query requires running node connection")
			fmt.Println("Use REST API: GET /v1/status")
			return nil
		},
	}

	flags.AddQueryFlagsToCmd(cmd)
	return cmd
}

// CmdQueryDeferredExec returns the command to query one deferred execution item
func CmdQueryDeferredExec() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deferred-exec [id]",
		Short: "Query a deferred execution item by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Deferred exec query requires running node connection")
			fmt.Printf("Use REST API: GET /v1/deferred-exec/%s\n", args[0])
			return nil
		},
	}

	flags.AddQueryFlagsToCmd(cmd)
	return cmd
}

// CmdQueryDeferredExecs returns the command to list an owner's items
func CmdQueryDeferredExecs() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deferred-execs [owner]",
		Short: "List deferred execution items for an owner, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Deferred execs query requires running node connection")
			fmt.Printf("Use REST API: GET /v1/deferred-execs?owner=%s\n", args[0])
			return nil
		},
	}

	flags.AddQueryFlagsToCmd(cmd)
	return cmd
}

// CmdQueryPrices returns the command to query price history
func CmdQueryPrices() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Query spot price history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Price history query requires running node connection")
			fmt.Println("Use REST API: GET /v1/prices")
			return nil
		},
	}

	flags.AddQueryFlagsToCmd(cmd)
	return cmd
}

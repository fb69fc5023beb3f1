package main

import (
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/optifreight/liboptifreight-go/engine"
	"github.com/optifreight/liboptifreight-go/registry"
)

var assetFlags struct {
	Mint        string
	Name        string
	Symbol      string
	URI         string
	Series      string
	TotalValue  uint64
	TokenPrice  uint64
	TotalTokens uint16
	APY         uint16
	TermYears   uint8
}

var assetCmd = &cobra.Command{
	Use:   "asset",
	Short: "Trailer asset registry",
}

var assetCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a trailer asset under the signing key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var mint solana.PublicKey
		if assetFlags.Mint != "" {
			var err error
			if mint, err = parseKey(assetFlags.Mint); err != nil {
				return err
			}
		} else {
			pk, err := solana.NewRandomPrivateKey()
			if err != nil {
				return err
			}
			mint = pk.PublicKey()
		}
		return withEngine(func(e *engine.Engine) error {
			p, err := authorize(e, registry.ActionCreate)
			if err != nil {
				return err
			}
			a, err := e.Registry.Create(cmd.Context(), p, registry.CreateParams{
				Mint:        mint,
				Name:        assetFlags.Name,
				Symbol:      assetFlags.Symbol,
				URI:         assetFlags.URI,
				Series:      assetFlags.Series,
				TotalValue:  assetFlags.TotalValue,
				TokenPrice:  assetFlags.TokenPrice,
				TotalTokens: assetFlags.TotalTokens,
				APY:         assetFlags.APY,
				TermYears:   assetFlags.TermYears,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, a)
		})
	},
}

var assetShowCmd = &cobra.Command{
	Use:   "show [mint]",
	Short: "Print one asset, or every asset",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(e *engine.Engine) error {
			if len(args) == 0 {
				all, err := e.Registry.List(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, all)
			}
			mint, err := parseKey(args[0])
			if err != nil {
				return err
			}
			a, err := e.Registry.Get(cmd.Context(), mint)
			if err != nil {
				return err
			}
			return printJSON(cmd, a)
		})
	},
}

var assetLockCmd = &cobra.Command{
	Use:   "lock <mint> <true|false>",
	Short: "Lock or unlock an asset",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mint, err := parseKey(args[0])
		if err != nil {
			return err
		}
		locked, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("invalid lock status %q: %w", args[1], err)
		}
		return withEngine(func(e *engine.Engine) error {
			p, err := authorize(e, registry.ActionSetLock)
			if err != nil {
				return err
			}
			return e.Registry.SetLockStatus(cmd.Context(), p, mint, locked)
		})
	},
}

var assetURICmd = &cobra.Command{
	Use:   "uri <mint> <uri>",
	Short: "Replace an asset's metadata URI",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mint, err := parseKey(args[0])
		if err != nil {
			return err
		}
		return withEngine(func(e *engine.Engine) error {
			p, err := authorize(e, registry.ActionUpdateURI)
			if err != nil {
				return err
			}
			return e.Registry.UpdateMetadata(cmd.Context(), p, mint, args[1])
		})
	},
}

var assetIssueCmd = &cobra.Command{
	Use:   "issue <mint> <holder>",
	Short: "Issue one custody unit of an asset to holder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mint, err := parseKey(args[0])
		if err != nil {
			return err
		}
		holder, err := parseKey(args[1])
		if err != nil {
			return err
		}
		return withEngine(func(e *engine.Engine) error {
			p, err := authorize(e, registry.ActionIssue)
			if err != nil {
				return err
			}
			return e.Registry.IssueUnit(cmd.Context(), p, mint, holder)
		})
	},
}

var unitsCmd = &cobra.Command{
	Use:   "units <owner> <mint>",
	Short: "Print the custody units owner holds of mint",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := parseKey(args[0])
		if err != nil {
			return err
		}
		mint, err := parseKey(args[1])
		if err != nil {
			return err
		}
		return withEngine(func(e *engine.Engine) error {
			n, err := e.Units(cmd.Context(), owner, mint)
			if err != nil {
				return err
			}
			return printJSON(cmd, n)
		})
	},
}

func init() {
	f := assetCreateCmd.Flags()
	f.StringVar(&assetFlags.Mint, "mint", "", "mint address (default: random)")
	f.StringVar(&assetFlags.Name, "name", "", "asset name")
	f.StringVar(&assetFlags.Symbol, "symbol", "", "asset symbol")
	f.StringVar(&assetFlags.URI, "uri", "", "metadata URI")
	f.StringVar(&assetFlags.Series, "series", "", "trailer series")
	f.Uint64Var(&assetFlags.TotalValue, "total-value", 0, "appraised value in lamports")
	f.Uint64Var(&assetFlags.TokenPrice, "token-price", 0, "unit price in lamports")
	f.Uint16Var(&assetFlags.TotalTokens, "total-tokens", 0, "unit supply")
	f.Uint16Var(&assetFlags.APY, "apy", 0, "annual yield in percent")
	f.Uint8Var(&assetFlags.TermYears, "term", 0, "term in years")

	assetCmd.AddCommand(assetCreateCmd, assetShowCmd, assetLockCmd, assetURICmd, assetIssueCmd)
	rootCmd.AddCommand(unitsCmd)
}

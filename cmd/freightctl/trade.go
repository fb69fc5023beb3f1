package main

import (
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/optifreight/liboptifreight-go/engine"
	"github.com/optifreight/liboptifreight-go/market"
	"github.com/optifreight/liboptifreight-go/returns"
	"github.com/optifreight/liboptifreight-go/sale"
)

var saleFlags struct {
	Price  uint64
	Total  uint16
	Seller string
}

var listFlags struct {
	Holding      string
	PurchaseDate int64
}

var saleCmd = &cobra.Command{
	Use:   "sale",
	Short: "Primary unit sales",
}

var saleInitCmd = &cobra.Command{
	Use:   "init <mint>",
	Short: "Open a primary sale of an asset's units",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mint, err := parseKey(args[0])
		if err != nil {
			return err
		}
		var seller solana.PublicKey
		if saleFlags.Seller != "" {
			if seller, err = parseKey(saleFlags.Seller); err != nil {
				return err
			}
		}
		return withEngine(func(e *engine.Engine) error {
			p, err := authorize(e, sale.ActionInit)
			if err != nil {
				return err
			}
			s, err := e.Sales.Init(cmd.Context(), p, sale.InitParams{
				Mint:   mint,
				Price:  saleFlags.Price,
				Total:  saleFlags.Total,
				Seller: seller,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, s)
		})
	},
}

var saleBuyCmd = &cobra.Command{
	Use:   "buy <sale> <units>",
	Short: "Buy units from a primary sale",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseKey(args[0])
		if err != nil {
			return err
		}
		n, err := parseUint16(args[1])
		if err != nil {
			return err
		}
		return withEngine(func(e *engine.Engine) error {
			p, err := authorize(e, sale.ActionBuy)
			if err != nil {
				return err
			}
			r, err := e.Sales.Buy(cmd.Context(), p, addr, n)
			if err != nil {
				return err
			}
			return printJSON(cmd, r)
		})
	},
}

var saleCloseCmd = &cobra.Command{
	Use:   "close <sale>",
	Short: "Close a primary sale",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseKey(args[0])
		if err != nil {
			return err
		}
		return withEngine(func(e *engine.Engine) error {
			p, err := authorize(e, sale.ActionClose)
			if err != nil {
				return err
			}
			return e.Sales.Close(cmd.Context(), p, addr)
		})
	},
}

var saleShowCmd = &cobra.Command{
	Use:   "show <sale> [holder]",
	Short: "Print a sale, or a holder's position in it",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseKey(args[0])
		if err != nil {
			return err
		}
		return withEngine(func(e *engine.Engine) error {
			if len(args) == 2 {
				holder, err := parseKey(args[1])
				if err != nil {
					return err
				}
				pos, err := e.Sales.Position(cmd.Context(), addr, holder)
				if err != nil {
					return err
				}
				return printJSON(cmd, pos)
			}
			s, err := e.Sales.Get(cmd.Context(), addr)
			if err != nil {
				return err
			}
			return printJSON(cmd, s)
		})
	},
}

var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "Escrowed resale listings",
}

var marketListCmd = &cobra.Command{
	Use:   "list <mint> <price>",
	Short: "Escrow a custody unit and list it for resale",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mint, err := parseKey(args[0])
		if err != nil {
			return err
		}
		price, err := parseUint64(args[1])
		if err != nil {
			return err
		}
		var holding solana.PublicKey
		if listFlags.Holding != "" {
			if holding, err = parseKey(listFlags.Holding); err != nil {
				return err
			}
		}
		return withEngine(func(e *engine.Engine) error {
			p, err := authorize(e, market.ActionList)
			if err != nil {
				return err
			}
			l, err := e.Market.List(cmd.Context(), p, market.ListParams{
				Mint:         mint,
				Holding:      holding,
				Price:        price,
				PurchaseDate: listFlags.PurchaseDate,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, l)
		})
	},
}

var marketBuyCmd = &cobra.Command{
	Use:   "buy <listing>",
	Short: "Buy a listed unit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseKey(args[0])
		if err != nil {
			return err
		}
		return withEngine(func(e *engine.Engine) error {
			p, err := authorize(e, market.ActionBuy)
			if err != nil {
				return err
			}
			r, err := e.Market.Buy(cmd.Context(), p, addr)
			if err != nil {
				return err
			}
			return printJSON(cmd, r)
		})
	},
}

var marketCancelCmd = &cobra.Command{
	Use:   "cancel <listing>",
	Short: "Cancel a listing and return the unit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseKey(args[0])
		if err != nil {
			return err
		}
		return withEngine(func(e *engine.Engine) error {
			p, err := authorize(e, market.ActionCancel)
			if err != nil {
				return err
			}
			return e.Market.Cancel(cmd.Context(), p, addr)
		})
	},
}

var marketQuoteCmd = &cobra.Command{
	Use:   "quote <listing>",
	Short: "Print the settlement a purchase would perform now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseKey(args[0])
		if err != nil {
			return err
		}
		return withEngine(func(e *engine.Engine) error {
			s, err := e.Market.Quote(cmd.Context(), addr)
			if err != nil {
				return err
			}
			return printJSON(cmd, s)
		})
	},
}

var marketShowCmd = &cobra.Command{
	Use:   "show [listing]",
	Short: "Print one listing, or every listing",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(e *engine.Engine) error {
			if len(args) == 0 {
				all, err := e.Market.Listings(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, all)
			}
			addr, err := parseKey(args[0])
			if err != nil {
				return err
			}
			l, err := e.Market.Get(cmd.Context(), addr)
			if err != nil {
				return err
			}
			return printJSON(cmd, l)
		})
	},
}

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Returns pools",
}

var poolInitCmd = &cobra.Command{
	Use:   "init <apy>",
	Short: "Open the signing key's returns pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		apy, err := parseUint16(args[0])
		if err != nil {
			return err
		}
		return withEngine(func(e *engine.Engine) error {
			p, err := authorize(e, returns.ActionInit)
			if err != nil {
				return err
			}
			pool, err := e.Returns.InitPool(cmd.Context(), p, apy)
			if err != nil {
				return err
			}
			return printJSON(cmd, pool)
		})
	},
}

var poolDepositCmd = &cobra.Command{
	Use:   "deposit <pool> <lamports>",
	Short: "Deposit funds into a pool vault",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseKey(args[0])
		if err != nil {
			return err
		}
		amount, err := parseUint64(args[1])
		if err != nil {
			return err
		}
		return withEngine(func(e *engine.Engine) error {
			p, err := authorize(e, returns.ActionDeposit)
			if err != nil {
				return err
			}
			return e.Returns.Deposit(cmd.Context(), p, addr, amount)
		})
	},
}

var poolClaimCmd = &cobra.Command{
	Use:   "claim <pool> <units>",
	Short: "Record this cycle's entitlement for units held",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseKey(args[0])
		if err != nil {
			return err
		}
		n, err := parseUint16(args[1])
		if err != nil {
			return err
		}
		return withEngine(func(e *engine.Engine) error {
			p, err := authorize(e, returns.ActionClaim)
			if err != nil {
				return err
			}
			c, err := e.Returns.Claim(cmd.Context(), p, addr, n)
			if err != nil {
				return err
			}
			return printJSON(cmd, c)
		})
	},
}

var poolDistributeCmd = &cobra.Command{
	Use:   "distribute <pool> <holder> <units>",
	Short: "Pay a holder's share of the pool vault",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseKey(args[0])
		if err != nil {
			return err
		}
		holder, err := parseKey(args[1])
		if err != nil {
			return err
		}
		n, err := parseUint16(args[2])
		if err != nil {
			return err
		}
		return withEngine(func(e *engine.Engine) error {
			p, err := authorize(e, returns.ActionDistribute)
			if err != nil {
				return err
			}
			out, err := e.Returns.Distribute(cmd.Context(), p, addr, holder, n)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		})
	},
}

var poolShowCmd = &cobra.Command{
	Use:   "show <pool>",
	Short: "Print a pool, its vault balance and its claims",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseKey(args[0])
		if err != nil {
			return err
		}
		return withEngine(func(e *engine.Engine) error {
			pool, err := e.Returns.Get(cmd.Context(), addr)
			if err != nil {
				return err
			}
			bal, err := e.Returns.Balance(cmd.Context(), addr)
			if err != nil {
				return err
			}
			claims, err := e.Returns.Claims(cmd.Context(), addr)
			if err != nil {
				return err
			}
			return printJSON(cmd, struct {
				Pool    *returns.Pool
				Balance uint64
				Claims  []*returns.ClaimRecord
			}{pool, bal, claims})
		})
	},
}

func init() {
	saleInitCmd.Flags().Uint64Var(&saleFlags.Price, "price", 0, "unit price in lamports (default: asset token price)")
	saleInitCmd.Flags().Uint16Var(&saleFlags.Total, "total", 0, "units offered (default: remaining supply)")
	saleInitCmd.Flags().StringVar(&saleFlags.Seller, "seller", "", "account receiving the base cost (default: signer)")
	saleCmd.AddCommand(saleInitCmd, saleBuyCmd, saleCloseCmd, saleShowCmd)

	marketListCmd.Flags().StringVar(&listFlags.Holding, "holding", "", "custody account holding the unit (default: signer's)")
	marketListCmd.Flags().Int64Var(&listFlags.PurchaseDate, "purchase-date", 0, "unix time the unit was bought")
	marketCmd.AddCommand(marketListCmd, marketBuyCmd, marketCancelCmd, marketQuoteCmd, marketShowCmd)

	poolCmd.AddCommand(poolInitCmd, poolDepositCmd, poolClaimCmd, poolDistributeCmd, poolShowCmd)
}

package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/optifreight/liboptifreight-go/auth"
	"github.com/optifreight/liboptifreight-go/config"
	"github.com/optifreight/liboptifreight-go/engine"
	"github.com/optifreight/liboptifreight-go/governance"
)

var initFlags struct {
	ProgramID   string
	Platform    string
	MetricsAddr string
	Force       bool
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write config.yaml to the data directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ConfigPath(cfg.DataDir)
		if _, err := os.Stat(path); err == nil && !initFlags.Force {
			return fmt.Errorf("%s exists (use --force to overwrite)", path)
		}
		if cmd.Flags().Changed("program-id") {
			cfg.ProgramID = initFlags.ProgramID
		}
		if cmd.Flags().Changed("platform") {
			cfg.Platform = initFlags.Platform
		}
		if cmd.Flags().Changed("metrics-addr") {
			cfg.MetricsAddr = initFlags.MetricsAddr
		}
		if err := config.ValidateConfig(cfg); err != nil {
			return err
		}
		if err := config.SaveConfig(path, cfg); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage signing keys",
}

var keyNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Generate and store a new key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(e *engine.Engine) error {
			pw, err := password("New password for " + args[0])
			if err != nil {
				return err
			}
			k, err := auth.NewKey()
			if err != nil {
				return err
			}
			if err := e.Keys.Save(args[0], k, pw); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), k.Address())
			return nil
		})
	},
}

var keyShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print the address of a stored key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		globalFlags.Key = args[0]
		return withEngine(func(e *engine.Engine) error {
			k, err := signingKey(e)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), k.Address())
			return nil
		})
	},
}

var keyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored key names",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(e *engine.Engine) error {
			names, err := e.Keys.Names()
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		})
	},
}

var fundCmd = &cobra.Command{
	Use:   "fund <address> <lamports>",
	Short: "Credit an account",
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
			return e.Fund(cmd.Context(), addr, amount)
		})
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "Print an account balance in lamports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseKey(args[0])
		if err != nil {
			return err
		}
		return withEngine(func(e *engine.Engine) error {
			bal, err := e.Balance(cmd.Context(), addr)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), bal)
			return nil
		})
	},
}

var journalCmd = &cobra.Command{
	Use:   "journal <address>",
	Short: "Print the journal entries touching an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseKey(args[0])
		if err != nil {
			return err
		}
		return withEngine(func(e *engine.Engine) error {
			entries, err := e.Journal(cmd.Context(), addr)
			if err != nil {
				return err
			}
			return printJSON(cmd, entries)
		})
	},
}

var governanceCmd = &cobra.Command{
	Use:   "governance",
	Short: "Protocol governance",
}

var governanceInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Record the signing key as governance authority",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(e *engine.Engine) error {
			p, err := authorize(e, governance.ActionInit)
			if err != nil {
				return err
			}
			st, err := e.Governance.Initialize(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printJSON(cmd, st)
		})
	},
}

var governanceShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the governance state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(e *engine.Engine) error {
			st, err := e.Governance.Get(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, st)
		})
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Prometheus metrics",
}

var metricsServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve Prometheus metrics until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.MetricsAddr == "" {
			return errors.New("metrics_addr is not configured")
		}
		return withEngine(func(e *engine.Engine) error {
			mux := http.NewServeMux()
			mux.Handle("/metrics", e.MetricsHandler())
			fmt.Fprintf(cmd.ErrOrStderr(), "serving metrics on %s/metrics\n", cfg.MetricsAddr)
			return http.ListenAndServe(cfg.MetricsAddr, mux)
		})
	},
}

func init() {
	initCmd.Flags().StringVar(&initFlags.ProgramID, "program-id", "", "program id (base58)")
	initCmd.Flags().StringVar(&initFlags.Platform, "platform", "", "platform fee account (base58)")
	initCmd.Flags().StringVar(&initFlags.MetricsAddr, "metrics-addr", "", "metrics listen address")
	initCmd.Flags().BoolVar(&initFlags.Force, "force", false, "overwrite an existing config")

	keyCmd.AddCommand(keyNewCmd, keyShowCmd, keyListCmd)
	governanceCmd.AddCommand(governanceInitCmd, governanceShowCmd)
	metricsCmd.AddCommand(metricsServeCmd)
	rootCmd.AddCommand(journalCmd)
}
